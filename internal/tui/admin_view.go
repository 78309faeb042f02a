// internal/tui/admin_view.go
//
// The back-office sub-view: dashboard, product management with an inline
// edit form, and the order status workflow. Only reachable with the admin
// role; the route guard in app.go enforces that.

package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sieger/storefront/internal/catalog"
)

type adminScreen int

const (
	adminDashboard adminScreen = iota
	adminProducts
	adminProductForm
	adminOrders
)

const (
	formFieldName = iota
	formFieldDescription
	formFieldPrice
	formFieldQuantity
	formFieldImageURL
	formFieldCount
)

type adminStatsMsg struct {
	stats catalog.Stats
	err   error
}

type adminProductsMsg struct {
	products []catalog.Product
	err      error
}

type adminOrdersMsg struct {
	orders []catalog.Order
	err    error
}

type productSavedMsg struct {
	product catalog.Product
	created bool
	err     error
}

type productDeletedMsg struct {
	id  string
	err error
}

type orderStatusMsg struct {
	order catalog.Order
	err   error
}

type adminView struct {
	app    *App
	screen adminScreen
	width  int

	stats       catalog.Stats
	statsLoaded bool

	products         []catalog.Product
	productsLoaded   bool
	productSelection int

	orders         []catalog.Order
	ordersLoaded   bool
	orderSelection int

	inputs    [formFieldCount]textinput.Model
	focus     int
	editingID string
	formErr   string
}

func newAdminView(app *App) *adminView {
	v := &adminView{app: app}
	labels := [formFieldCount]string{"Name", "Description", "Price", "Quantity", "Image URL"}
	for i := range v.inputs {
		input := textinput.New()
		input.Prompt = labels[i] + ": "
		input.CharLimit = 200
		v.inputs[i] = input
	}
	return v
}

func (v *adminView) setSize(width, _ int) {
	v.width = width
}

// enter resets to the dashboard and loads its data.
func (v *adminView) enter() tea.Cmd {
	v.screen = adminDashboard
	return v.loadStats()
}

// back pops one admin screen. It reports false when already at the
// dashboard so the caller can leave the back office entirely.
func (v *adminView) back() bool {
	switch v.screen {
	case adminProductForm:
		v.screen = adminProducts
		return true
	case adminProducts, adminOrders:
		v.screen = adminDashboard
		return true
	}
	return false
}

func (v *adminView) reload() tea.Cmd {
	switch v.screen {
	case adminDashboard:
		return v.loadStats()
	case adminProducts:
		return v.loadProducts()
	case adminOrders:
		return v.loadOrders()
	}
	return nil
}

func (v *adminView) update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case adminStatsMsg:
		if m.err != nil {
			v.app.fail("Could not load dashboard", m.err)
			return nil
		}
		v.stats = m.stats
		v.statsLoaded = true
		return nil
	case adminProductsMsg:
		if m.err != nil {
			v.app.fail("Could not load products", m.err)
			return nil
		}
		v.products = m.products
		v.productsLoaded = true
		if v.productSelection >= len(v.products) {
			v.productSelection = max(0, len(v.products)-1)
		}
		return nil
	case adminOrdersMsg:
		if m.err != nil {
			v.app.fail("Could not load orders", m.err)
			return nil
		}
		v.orders = m.orders
		v.ordersLoaded = true
		if v.orderSelection >= len(v.orders) {
			v.orderSelection = max(0, len(v.orders)-1)
		}
		return nil
	case productSavedMsg:
		if m.err != nil {
			v.app.fail("Could not save product", m.err)
			return nil
		}
		action := "updated"
		if m.created {
			action = "created"
		}
		v.app.logInfo("Product %s %s", m.product.ID, action)
		v.app.statusMsg = fmt.Sprintf("Product %q %s", m.product.Name, action)
		v.screen = adminProducts
		// The public catalog shows the same records.
		v.app.catalogLoaded = false
		return v.loadProducts()
	case productDeletedMsg:
		if m.err != nil {
			v.app.fail("Could not delete product", m.err)
			return nil
		}
		v.app.logInfo("Product %s deleted", m.id)
		v.app.statusMsg = "Product deleted"
		v.app.catalogLoaded = false
		return v.loadProducts()
	case orderStatusMsg:
		if m.err != nil {
			v.app.fail("Could not update order", m.err)
			return nil
		}
		v.app.logInfo("Order %s is now %s", m.order.ID, m.order.Status)
		v.app.statusMsg = fmt.Sprintf("Order %s → %s", m.order.ID, m.order.Status)
		return v.loadOrders()
	case tea.KeyMsg:
		return v.handleKey(m)
	}
	return nil
}

func (v *adminView) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch v.screen {
	case adminDashboard:
		switch msg.String() {
		case "p":
			v.screen = adminProducts
			return v.loadProducts()
		case "o":
			v.screen = adminOrders
			return v.loadOrders()
		}
	case adminProducts:
		return v.handleProductsKey(msg.String())
	case adminProductForm:
		return v.handleFormKey(msg)
	case adminOrders:
		return v.handleOrdersKey(msg.String())
	}
	return nil
}

func (v *adminView) handleProductsKey(key string) tea.Cmd {
	switch key {
	case "up", "k":
		if v.productSelection > 0 {
			v.productSelection--
		}
	case "down", "j":
		if v.productSelection < len(v.products)-1 {
			v.productSelection++
		}
	case "n":
		v.openForm(catalog.Product{})
	case "e", "enter":
		if v.productSelection < len(v.products) {
			v.openForm(v.products[v.productSelection])
		}
	case "d":
		if v.productSelection < len(v.products) {
			return v.deleteProduct(v.products[v.productSelection].ID)
		}
	}
	return nil
}

func (v *adminView) openForm(product catalog.Product) {
	v.editingID = product.ID
	v.formErr = ""
	v.inputs[formFieldName].SetValue(product.Name)
	v.inputs[formFieldDescription].SetValue(product.Description)
	v.inputs[formFieldImageURL].SetValue(product.ImageURL)
	if product.ID == "" {
		v.inputs[formFieldPrice].SetValue("")
		v.inputs[formFieldQuantity].SetValue("")
	} else {
		v.inputs[formFieldPrice].SetValue(strconv.FormatFloat(product.Price, 'f', 2, 64))
		v.inputs[formFieldQuantity].SetValue(strconv.Itoa(product.Quantity))
	}
	v.focus = formFieldName
	for i := range v.inputs {
		v.inputs[i].Blur()
	}
	v.inputs[v.focus].Focus()
	v.screen = adminProductForm
}

func (v *adminView) handleFormKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		v.moveFocus(1)
		return nil
	case "shift+tab", "up":
		v.moveFocus(-1)
		return nil
	case "enter":
		return v.submitForm()
	}
	var cmd tea.Cmd
	v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
	return cmd
}

func (v *adminView) moveFocus(delta int) {
	v.inputs[v.focus].Blur()
	v.focus = (v.focus + delta + formFieldCount) % formFieldCount
	v.inputs[v.focus].Focus()
}

func (v *adminView) submitForm() tea.Cmd {
	req, err := v.formRequest()
	if err != nil {
		v.formErr = err.Error()
		return nil
	}
	v.formErr = ""
	svc := v.app.products
	id := v.editingID
	if id == "" {
		return func() tea.Msg {
			product, err := svc.Create(context.Background(), req)
			return productSavedMsg{product: product, created: true, err: err}
		}
	}
	return func() tea.Msg {
		product, err := svc.Update(context.Background(), id, req)
		return productSavedMsg{product: product, err: err}
	}
}

func (v *adminView) formRequest() (catalog.ProductRequest, error) {
	name := strings.TrimSpace(v.inputs[formFieldName].Value())
	if name == "" {
		return catalog.ProductRequest{}, fmt.Errorf("name is required")
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(v.inputs[formFieldPrice].Value()), 64)
	if err != nil || price < 0 {
		return catalog.ProductRequest{}, fmt.Errorf("price must be a non-negative number")
	}
	quantityText := strings.TrimSpace(v.inputs[formFieldQuantity].Value())
	quantity := 0
	if quantityText != "" {
		quantity, err = strconv.Atoi(quantityText)
		if err != nil || quantity < 0 {
			return catalog.ProductRequest{}, fmt.Errorf("quantity must be a non-negative integer")
		}
	}
	return catalog.ProductRequest{
		Name:        name,
		Description: strings.TrimSpace(v.inputs[formFieldDescription].Value()),
		Price:       price,
		Quantity:    quantity,
		ImageURL:    strings.TrimSpace(v.inputs[formFieldImageURL].Value()),
	}, nil
}

func (v *adminView) handleOrdersKey(key string) tea.Cmd {
	switch key {
	case "up", "k":
		if v.orderSelection > 0 {
			v.orderSelection--
		}
	case "down", "j":
		if v.orderSelection < len(v.orders)-1 {
			v.orderSelection++
		}
	case "s":
		if v.orderSelection < len(v.orders) {
			order := v.orders[v.orderSelection]
			next := order.Status.Next()
			if next == "" {
				v.app.statusMsg = fmt.Sprintf("Order %s is already %s", order.ID, order.Status)
				return nil
			}
			return v.changeStatus(order, next)
		}
	case "x":
		if v.orderSelection < len(v.orders) {
			order := v.orders[v.orderSelection]
			if !order.Status.CanTransitionTo(catalog.StatusCanceled) {
				v.app.statusMsg = fmt.Sprintf("Order %s can no longer be canceled", order.ID)
				return nil
			}
			return v.changeStatus(order, catalog.StatusCanceled)
		}
	}
	return nil
}

func (v *adminView) deleteProduct(id string) tea.Cmd {
	svc := v.app.products
	return func() tea.Msg {
		err := svc.Delete(context.Background(), id)
		return productDeletedMsg{id: id, err: err}
	}
}

func (v *adminView) changeStatus(order catalog.Order, next catalog.OrderStatus) tea.Cmd {
	svc := v.app.orders
	return func() tea.Msg {
		if next == catalog.StatusCanceled {
			updated, err := svc.Cancel(context.Background(), order)
			return orderStatusMsg{order: updated, err: err}
		}
		updated, err := svc.UpdateStatus(context.Background(), order, next)
		return orderStatusMsg{order: updated, err: err}
	}
}

func (v *adminView) loadStats() tea.Cmd {
	svc := v.app.orders
	return func() tea.Msg {
		stats, err := svc.Stats(context.Background())
		return adminStatsMsg{stats: stats, err: err}
	}
}

func (v *adminView) loadProducts() tea.Cmd {
	svc := v.app.products
	return func() tea.Msg {
		products, err := svc.List(context.Background())
		return adminProductsMsg{products: products, err: err}
	}
}

func (v *adminView) loadOrders() tea.Cmd {
	svc := v.app.orders
	return func() tea.Msg {
		orders, err := svc.List(context.Background())
		return adminOrdersMsg{orders: orders, err: err}
	}
}

func (v *adminView) view(width int) string {
	switch v.screen {
	case adminDashboard:
		return v.renderDashboard(width)
	case adminProducts:
		return v.renderProducts(width)
	case adminProductForm:
		return v.renderForm(width)
	case adminOrders:
		return v.renderOrders(width)
	}
	return ""
}

func (v *adminView) keyHints() string {
	switch v.screen {
	case adminDashboard:
		return "p products · o orders · esc back"
	case adminProducts:
		return "n new · e edit · d delete · esc back"
	case adminProductForm:
		return "tab next field · enter save · esc cancel"
	case adminOrders:
		return "s advance status · x cancel · esc back"
	}
	return "esc back"
}

func (v *adminView) renderDashboard(width int) string {
	lines := []string{headingStyle.Render("Dashboard"), ""}
	if !v.statsLoaded {
		lines = append(lines, faintStyle.Render("Loading statistics..."))
		return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
	}
	lines = append(lines,
		fmt.Sprintf("Orders: %d total · revenue %s", v.stats.Total, formatPrice(v.stats.TotalRevenue)),
		fmt.Sprintf("Created %d · Pending %d · Delivered %d · Canceled %d",
			v.stats.ByStatus[catalog.StatusCreated],
			v.stats.ByStatus[catalog.StatusPending],
			v.stats.ByStatus[catalog.StatusDelivered],
			v.stats.ByStatus[catalog.StatusCanceled]),
		"")
	if len(v.stats.RecentOrders) > 0 {
		lines = append(lines, headingStyle.Render("Recent orders"))
		for _, order := range v.stats.RecentOrders {
			lines = append(lines, fmt.Sprintf("%s · %s · %s · %s",
				order.ID, order.Date.Format("2006-01-02"),
				order.Status, formatPrice(order.TotalAmount)))
		}
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
}

func (v *adminView) renderProducts(width int) string {
	lines := []string{headingStyle.Render("Products"), ""}
	if !v.productsLoaded {
		lines = append(lines, faintStyle.Render("Loading products..."))
	} else if len(v.products) == 0 {
		lines = append(lines, faintStyle.Render("No products. Press n to create one."))
	}
	for i, product := range v.products {
		row := fmt.Sprintf("%s · %s · %d in stock", product.Name, formatPrice(product.Price), product.Quantity)
		if i == v.productSelection {
			row = selectStyle.Render("> " + row)
		} else {
			row = "  " + row
		}
		lines = append(lines, row)
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
}

func (v *adminView) renderForm(width int) string {
	title := "New Product"
	if v.editingID != "" {
		title = "Edit Product"
	}
	lines := []string{headingStyle.Render(title), ""}
	for i := range v.inputs {
		lines = append(lines, v.inputs[i].View())
	}
	if v.formErr != "" {
		lines = append(lines, "", warnStyle.Render(v.formErr))
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
}

func (v *adminView) renderOrders(width int) string {
	lines := []string{headingStyle.Render("Orders"), ""}
	if !v.ordersLoaded {
		lines = append(lines, faintStyle.Render("Loading orders..."))
	} else if len(v.orders) == 0 {
		lines = append(lines, faintStyle.Render("No orders yet."))
	}
	for i, order := range v.orders {
		row := fmt.Sprintf("%s · %s · %s · %s",
			order.ID, order.Date.Format("2006-01-02"),
			renderStatus(order.Status), formatPrice(order.TotalAmount))
		if i == v.orderSelection {
			row = selectStyle.Render("> " + row)
		} else {
			row = "  " + row
		}
		lines = append(lines, row)
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
}
