// internal/tui/shop_view.go
//
// Key handling and rendering for the customer-facing screens: catalog,
// product detail, cart, checkout and order history.

package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sieger/storefront/internal/cart"
	"github.com/sieger/storefront/internal/catalog"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	faintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	selectStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
)

func (a *App) handleCatalogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		item, ok := a.catalogList.SelectedItem().(productItem)
		if !ok {
			return a, nil
		}
		a.detail = item.product
		a.state = stateProductDetail
		// Re-fetch so stock shown on the detail screen is current.
		return a, a.loadProduct(item.product.ID)
	case "+", "a":
		item, ok := a.catalogList.SelectedItem().(productItem)
		if !ok {
			return a, nil
		}
		a.addToCart(item.product, 1)
		return a, nil
	}
	var cmd tea.Cmd
	a.catalogList, cmd = a.catalogList.Update(msg)
	return a, cmd
}

func (a *App) handleDetailKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "+", "a", "enter":
		a.addToCart(a.detail, 1)
	case "-":
		current := a.cart.GetItemQuantity(a.detail.ID)
		if current > 0 {
			a.cart.UpdateQuantity(a.detail.ID, current-1)
			a.statusMsg = fmt.Sprintf("%s: %d in cart", a.detail.Name, a.cart.GetItemQuantity(a.detail.ID))
		}
	}
	return a, nil
}

// addToCart adds the product and surfaces the stock warning when the
// requested quantity was clamped.
func (a *App) addToCart(product catalog.Product, quantity int) {
	if !product.InStock() && !a.cart.IsInCart(product.ID) {
		a.statusMsg = fmt.Sprintf("%s is out of stock", product.Name)
		return
	}
	if warning := a.cart.AddItem(product, quantity); warning != nil {
		a.statusMsg = fmt.Sprintf("%s: %s", product.Name, warning.Message())
		return
	}
	a.statusMsg = fmt.Sprintf("Added %s (%d in cart)", product.Name, a.cart.GetItemQuantity(product.ID))
}

func (a *App) handleCartKey(key string) (tea.Model, tea.Cmd) {
	items := a.cart.Items()
	switch key {
	case "up", "k":
		if a.cartSelection > 0 {
			a.cartSelection--
		}
	case "down", "j":
		if a.cartSelection < len(items)-1 {
			a.cartSelection++
		}
	case "+":
		if line, ok := a.selectedCartLine(items); ok {
			if warning := a.cart.UpdateQuantity(line.Product.ID, line.Quantity+1); warning != nil {
				a.statusMsg = fmt.Sprintf("%s: %s", line.Product.Name, warning.Message())
			}
		}
	case "-":
		if line, ok := a.selectedCartLine(items); ok {
			a.cart.UpdateQuantity(line.Product.ID, line.Quantity-1)
			a.clampCartSelection()
		}
	case "x", "delete":
		if line, ok := a.selectedCartLine(items); ok {
			a.cart.RemoveItem(line.Product.ID)
			a.statusMsg = fmt.Sprintf("Removed %s", line.Product.Name)
			a.clampCartSelection()
		}
	case "X":
		a.cart.ClearCart()
		a.cartSelection = 0
		a.statusMsg = "Cart cleared"
	case "enter":
		if a.cart.IsEmpty() {
			a.statusMsg = "Cart is empty"
			return a, nil
		}
		return a.navigate(stateCheckout)
	}
	return a, nil
}

func (a *App) selectedCartLine(items []cart.Line) (cart.Line, bool) {
	if len(items) == 0 || a.cartSelection < 0 || a.cartSelection >= len(items) {
		return cart.Line{}, false
	}
	return items[a.cartSelection], true
}

func (a *App) clampCartSelection() {
	if n := a.cart.Len(); a.cartSelection >= n {
		a.cartSelection = max(0, n-1)
	}
}

func (a *App) handleCheckoutKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "enter":
		if a.cart.IsEmpty() {
			a.statusMsg = "Cart is empty"
			return a.navigate(stateCart)
		}
		a.statusMsg = "Placing order..."
		return a, a.submitOrder()
	}
	return a, nil
}

func (a *App) handleMyOrdersKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if a.orderSelection > 0 {
			a.orderSelection--
		}
	case "down", "j":
		if a.orderSelection < len(a.myOrders)-1 {
			a.orderSelection++
		}
	case "enter":
		if a.orderSelection < len(a.myOrders) {
			a.orderDetail = a.myOrders[a.orderSelection]
			a.state = stateOrderDetail
			return a, a.loadOrder(a.orderDetail.ID)
		}
	}
	return a, nil
}

func (a *App) handleOrderDetailKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "x":
		order := a.orderDetail
		if err := catalog.ValidateTransition(order.Status, catalog.StatusCanceled); err != nil {
			a.statusMsg = fmt.Sprintf("Order %s can no longer be canceled", order.ID)
			return a, nil
		}
		a.statusMsg = "Canceling order..."
		return a, a.cancelOrder(order)
	}
	return a, nil
}

func (a *App) renderProductDetail(width int) string {
	p := a.detail
	lines := []string{
		headingStyle.Render(p.Name),
		"",
		formatPrice(p.Price),
	}
	if p.Description != "" {
		lines = append(lines, "", p.Description)
	}
	stock := fmt.Sprintf("%d in stock", p.Quantity)
	if !p.InStock() {
		stock = warnStyle.Render("Out of stock")
	}
	lines = append(lines, "", stock)
	if inCart := a.cart.GetItemQuantity(p.ID); inCart > 0 {
		lines = append(lines, fmt.Sprintf("%d in your cart", inCart))
	}
	if p.ImageURL != "" {
		lines = append(lines, "", faintStyle.Render(p.ImageURL))
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
}

func (a *App) renderCart(width int) string {
	items := a.cart.Items()
	lines := []string{headingStyle.Render("Your Cart"), ""}
	if len(items) == 0 {
		lines = append(lines, faintStyle.Render("Empty. Add products from the catalog."))
		return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
	}
	for i, line := range items {
		row := fmt.Sprintf("%dx %s · %s each · %s",
			line.Quantity, line.Product.Name,
			formatPrice(line.Product.Price), formatPrice(line.LineTotal()))
		if i == a.cartSelection {
			row = selectStyle.Render("> " + row)
		} else {
			row = "  " + row
		}
		lines = append(lines, row)
	}
	totals := a.cart.Totals()
	lines = append(lines, "",
		fmt.Sprintf("%d item(s) · Total %s", totals.ItemCount, formatPrice(totals.Total)))
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
}

func (a *App) renderCheckout(width int) string {
	totals := a.cart.Totals()
	lines := []string{headingStyle.Render("Checkout"), ""}
	for _, line := range a.cart.Items() {
		lines = append(lines, fmt.Sprintf("%dx %s · %s",
			line.Quantity, line.Product.Name, formatPrice(line.LineTotal())))
	}
	lines = append(lines, "",
		fmt.Sprintf("Total: %s", formatPrice(totals.Total)),
		"",
		"Press enter to place this order.")
	if a.session.Authenticated() {
		lines = append(lines, faintStyle.Render(fmt.Sprintf("Ordering as %s", a.session.User().DisplayName())))
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
}

func (a *App) renderMyOrders(width int) string {
	lines := []string{headingStyle.Render("My Orders"), ""}
	if !a.ordersLoaded {
		lines = append(lines, faintStyle.Render("Loading orders..."))
	} else if len(a.myOrders) == 0 {
		lines = append(lines, faintStyle.Render("No orders yet."))
	}
	for i, order := range a.myOrders {
		row := fmt.Sprintf("%s · %s · %s · %s",
			order.ID,
			order.Date.Format("2006-01-02"),
			order.Status,
			formatPrice(order.TotalAmount))
		if i == a.orderSelection {
			row = selectStyle.Render("> " + row)
		} else {
			row = "  " + row
		}
		lines = append(lines, row)
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
}

func (a *App) renderOrderDetail(width int) string {
	order := a.orderDetail
	lines := []string{
		headingStyle.Render(fmt.Sprintf("Order %s", order.ID)),
		"",
		fmt.Sprintf("Placed: %s", order.Date.Format("2006-01-02 15:04")),
		fmt.Sprintf("Status: %s", renderStatus(order.Status)),
		"",
	}
	for _, line := range order.OrderLines {
		lines = append(lines, fmt.Sprintf("%dx %s · %s each · %s",
			line.Quantity, line.Product.Name,
			formatPrice(line.Price), formatPrice(line.LineTotal())))
	}
	lines = append(lines, "", fmt.Sprintf("Total: %s", formatPrice(order.TotalAmount)))
	if order.Status.CanTransitionTo(catalog.StatusCanceled) {
		lines = append(lines, "", faintStyle.Render("x → cancel this order"))
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
}

func renderStatus(status catalog.OrderStatus) string {
	switch status {
	case catalog.StatusDelivered:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Render(string(status))
	case catalog.StatusCanceled:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render(string(status))
	case catalog.StatusPending:
		return warnStyle.Render(string(status))
	default:
		return string(status)
	}
}
