// internal/tui/app.go
//
// This is the main TUI for the storefront. It uses bubbletea, which follows
// The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen
//
// All state lives on App and is only touched from Update. Blocking work
// (backend calls, the browser login) runs inside tea.Cmd closures and comes
// back as messages.

package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sieger/storefront/internal/api"
	"github.com/sieger/storefront/internal/cart"
	"github.com/sieger/storefront/internal/catalog"
	"github.com/sieger/storefront/internal/logging"
	"github.com/sieger/storefront/internal/session"
)

// appState represents which "screen" we're on
type appState int

const (
	stateCatalog       appState = iota // Product browsing, the landing screen
	stateProductDetail                 // One product with stock and cart controls
	stateCart                          // Cart review and quantity edits
	stateCheckout                      // Order confirmation before submit
	stateMyOrders                      // The signed-in user's order history
	stateOrderDetail                   // One order with its lines
	stateAdmin                         // Back-office sub-view, admin role only
	stateUnauthorized                  // Shown when a guarded screen is denied
)

const panelRefreshInterval = 3 * time.Second

// ProductService is the slice of the products service the UI needs.
type ProductService interface {
	List(ctx context.Context) ([]catalog.Product, error)
	Get(ctx context.Context, id string) (catalog.Product, error)
	Create(ctx context.Context, req catalog.ProductRequest) (catalog.Product, error)
	Update(ctx context.Context, id string, req catalog.ProductRequest) (catalog.Product, error)
	Delete(ctx context.Context, id string) error
}

// OrderService is the slice of the orders service the UI needs.
type OrderService interface {
	List(ctx context.Context) ([]catalog.Order, error)
	MyOrders(ctx context.Context) ([]catalog.Order, error)
	Get(ctx context.Context, id string) (catalog.Order, error)
	Create(ctx context.Context, req catalog.OrderRequest) (catalog.Order, error)
	UpdateStatus(ctx context.Context, order catalog.Order, next catalog.OrderStatus) (catalog.Order, error)
	Cancel(ctx context.Context, order catalog.Order) (catalog.Order, error)
	Stats(ctx context.Context) (catalog.Stats, error)
}

// Session is the authentication surface the UI needs. The session adapter
// satisfies it.
type Session interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context)
	State() session.State
	Authenticated() bool
	User() session.User
	Roles() []string
	HasRole(role string) bool
	HasAnyRole(roles ...string) bool
}

type productsLoadedMsg struct {
	products []catalog.Product
	err      error
}

type productLoadedMsg struct {
	product catalog.Product
	err     error
}

type myOrdersLoadedMsg struct {
	orders []catalog.Order
	err    error
}

type orderLoadedMsg struct {
	order catalog.Order
	err   error
}

type orderPlacedMsg struct {
	order catalog.Order
	err   error
}

type orderCanceledMsg struct {
	order catalog.Order
	err   error
}

type loginFinishedMsg struct {
	err error
}

type logoutFinishedMsg struct{}

type panelTickMsg struct{}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state    appState
	products ProductService
	orders   OrderService
	session  Session
	cart     *cart.Store
	log      *logging.Logger

	// Window size (we get this from bubbletea)
	width  int
	height int

	statusMsg string

	// Catalog screen
	catalogList   list.Model
	catalogLoaded bool

	// Product detail screen
	detail catalog.Product

	// Cart screen
	cartSelection int

	// Order history screens
	myOrders       []catalog.Order
	ordersLoaded   bool
	orderSelection int
	orderDetail    catalog.Order

	// Back office
	admin *adminView

	// Where to go once a forced login finishes
	pendingState appState
	hasPending   bool

	// Screen the unauthorized notice returns to
	deniedFrom appState
}

// productItem implements list.Item for catalog entries.
type productItem struct {
	product catalog.Product
}

func (i productItem) Title() string {
	title := i.product.Name
	if !i.product.InStock() {
		title += " · out of stock"
	}
	return title
}

func (i productItem) Description() string {
	return fmt.Sprintf("%s · %d in stock", formatPrice(i.product.Price), i.product.Quantity)
}

func (i productItem) FilterValue() string {
	return i.product.Name + " " + i.product.Description
}

// NewApp wires the UI to its services. The session adapter must already be
// initialized.
func NewApp(products ProductService, orders OrderService, sess Session, store *cart.Store, log *logging.Logger) *App {
	catalogList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	catalogList.Title = "⬡ STOREFRONT"
	catalogList.SetShowStatusBar(false)
	catalogList.SetFilteringEnabled(true)

	app := &App{
		state:       stateCatalog,
		products:    products,
		orders:      orders,
		session:     sess,
		cart:        store,
		log:         log,
		catalogList: catalogList,
	}
	app.admin = newAdminView(app)
	return app
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadCatalog(), a.scheduleTick())
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.catalogList.SetSize(max(0, msg.Width-6), max(0, msg.Height-12))
		a.admin.setSize(msg.Width, msg.Height)
		return a, nil

	case panelTickMsg:
		return a, a.scheduleTick()

	case productsLoadedMsg:
		if msg.err != nil {
			a.fail("Could not load products", msg.err)
			return a, nil
		}
		a.catalogLoaded = true
		items := make([]list.Item, len(msg.products))
		for i := range msg.products {
			items[i] = productItem{product: msg.products[i]}
		}
		a.catalogList.SetItems(items)
		a.statusMsg = fmt.Sprintf("%d product(s) loaded", len(msg.products))
		return a, nil

	case productLoadedMsg:
		if msg.err != nil {
			a.fail("Could not load product", msg.err)
			return a, nil
		}
		a.detail = msg.product
		return a, nil

	case myOrdersLoadedMsg:
		if msg.err != nil {
			a.fail("Could not load your orders", msg.err)
			return a, nil
		}
		a.ordersLoaded = true
		a.myOrders = msg.orders
		if a.orderSelection >= len(a.myOrders) {
			a.orderSelection = max(0, len(a.myOrders)-1)
		}
		return a, nil

	case orderLoadedMsg:
		if msg.err != nil {
			a.fail("Could not load order", msg.err)
			return a, nil
		}
		a.orderDetail = msg.order
		return a, nil

	case orderPlacedMsg:
		if msg.err != nil {
			a.fail("Order was not placed", msg.err)
			return a, nil
		}
		// The cart is only cleared once the backend confirms the order.
		a.cart.ClearCart()
		a.logInfo("Order %s placed", msg.order.ID)
		a.statusMsg = fmt.Sprintf("Order %s placed", msg.order.ID)
		a.orderDetail = msg.order
		a.state = stateOrderDetail
		a.ordersLoaded = false
		return a, nil

	case orderCanceledMsg:
		if msg.err != nil {
			a.fail("Could not cancel order", msg.err)
			return a, nil
		}
		a.orderDetail = msg.order
		a.logInfo("Order %s canceled", msg.order.ID)
		a.statusMsg = fmt.Sprintf("Order %s canceled", msg.order.ID)
		return a, a.loadMyOrders()

	case loginFinishedMsg:
		if msg.err != nil {
			a.hasPending = false
			a.fail("Sign-in failed", msg.err)
			return a, nil
		}
		a.logInfo("Signed in as %s", a.session.User().DisplayName())
		a.statusMsg = fmt.Sprintf("Signed in as %s", a.session.User().DisplayName())
		if a.hasPending {
			target := a.pendingState
			a.hasPending = false
			return a.navigate(target)
		}
		return a, nil

	case logoutFinishedMsg:
		a.statusMsg = "Signed out"
		a.ordersLoaded = false
		a.myOrders = nil
		if a.state != stateCatalog {
			return a.navigate(stateCatalog)
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	// Back-office messages land here even if the user already navigated
	// away, so the admin view stays current.
	if cmd := a.admin.update(msg); cmd != nil {
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The catalog filter input swallows everything while it is open.
	if a.state == stateCatalog && a.catalogList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		a.catalogList, cmd = a.catalogList.Update(msg)
		return a, cmd
	}
	// So does the product form, except for escape and quit.
	if a.state == stateAdmin && a.admin.screen == adminProductForm {
		switch msg.String() {
		case "esc", "ctrl+c":
		default:
			return a, a.admin.update(msg)
		}
	}

	key := msg.String()
	switch key {
	case "ctrl+c":
		return a, tea.Quit
	case "q":
		if a.state == stateCatalog {
			return a, tea.Quit
		}
	case "esc":
		return a.goBack()
	case "L":
		return a.toggleSession()
	case "C":
		return a.navigate(stateCart)
	case "O":
		return a.navigate(stateMyOrders)
	case "A":
		return a.navigate(stateAdmin)
	case "R":
		return a, a.reloadCurrent()
	}

	switch a.state {
	case stateCatalog:
		return a.handleCatalogKey(msg)
	case stateProductDetail:
		return a.handleDetailKey(key)
	case stateCart:
		return a.handleCartKey(key)
	case stateCheckout:
		return a.handleCheckoutKey(key)
	case stateMyOrders:
		return a.handleMyOrdersKey(key)
	case stateOrderDetail:
		return a.handleOrderDetailKey(key)
	case stateAdmin:
		if cmd := a.admin.update(msg); cmd != nil {
			return a, cmd
		}
	case stateUnauthorized:
		if key == "enter" {
			return a.goBack()
		}
	}
	return a, nil
}

// navigate routes to a screen, forcing sign-in and checking roles for the
// guarded ones.
func (a *App) navigate(target appState) (tea.Model, tea.Cmd) {
	if guardRoles, guarded := screenGuards[target]; guarded {
		if !a.session.Authenticated() {
			a.pendingState = target
			a.hasPending = true
			a.statusMsg = "Sign-in required, opening browser..."
			return a, a.startLogin()
		}
		if len(guardRoles) > 0 && !a.session.HasAnyRole(guardRoles...) {
			a.deniedFrom = a.state
			a.state = stateUnauthorized
			a.logInfo("Access denied to screen %d for %s", target, a.session.User().Username)
			return a, nil
		}
	}

	a.state = target
	switch target {
	case stateCatalog:
		if !a.catalogLoaded {
			return a, a.loadCatalog()
		}
	case stateCart:
		a.cartSelection = 0
	case stateCheckout:
		if a.cart.IsEmpty() {
			a.statusMsg = "Cart is empty"
			a.state = stateCart
		}
	case stateMyOrders:
		if !a.ordersLoaded {
			return a, a.loadMyOrders()
		}
	case stateAdmin:
		return a, a.admin.enter()
	}
	return a, nil
}

// screenGuards lists the role requirements per guarded screen. An empty
// role list means any signed-in user.
var screenGuards = map[appState][]string{
	stateCheckout:    nil,
	stateMyOrders:    nil,
	stateOrderDetail: nil,
	stateAdmin:       {catalog.RoleAdmin},
}

func (a *App) goBack() (tea.Model, tea.Cmd) {
	switch a.state {
	case stateCatalog:
		return a, nil
	case stateProductDetail, stateCart, stateMyOrders:
		return a.navigate(stateCatalog)
	case stateCheckout:
		return a.navigate(stateCart)
	case stateOrderDetail:
		return a.navigate(stateMyOrders)
	case stateAdmin:
		if a.admin.back() {
			return a, nil
		}
		return a.navigate(stateCatalog)
	case stateUnauthorized:
		a.state = a.deniedFrom
		return a, nil
	}
	return a.navigate(stateCatalog)
}

func (a *App) reloadCurrent() tea.Cmd {
	a.statusMsg = "Refreshing..."
	switch a.state {
	case stateCatalog:
		return a.loadCatalog()
	case stateProductDetail:
		return a.loadProduct(a.detail.ID)
	case stateMyOrders:
		return a.loadMyOrders()
	case stateOrderDetail:
		return a.loadOrder(a.orderDetail.ID)
	case stateAdmin:
		return a.admin.reload()
	}
	return nil
}

func (a *App) toggleSession() (tea.Model, tea.Cmd) {
	if a.session.Authenticated() {
		return a, a.startLogout()
	}
	a.statusMsg = "Opening browser for sign-in..."
	return a, a.startLogin()
}

func (a *App) startLogin() tea.Cmd {
	sess := a.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		return loginFinishedMsg{err: sess.Login(ctx)}
	}
}

func (a *App) startLogout() tea.Cmd {
	sess := a.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		sess.Logout(ctx)
		return logoutFinishedMsg{}
	}
}

func (a *App) loadCatalog() tea.Cmd {
	svc := a.products
	return func() tea.Msg {
		products, err := svc.List(context.Background())
		return productsLoadedMsg{products: products, err: err}
	}
}

func (a *App) loadProduct(id string) tea.Cmd {
	svc := a.products
	return func() tea.Msg {
		product, err := svc.Get(context.Background(), id)
		return productLoadedMsg{product: product, err: err}
	}
}

func (a *App) loadMyOrders() tea.Cmd {
	svc := a.orders
	return func() tea.Msg {
		orders, err := svc.MyOrders(context.Background())
		return myOrdersLoadedMsg{orders: orders, err: err}
	}
}

func (a *App) loadOrder(id string) tea.Cmd {
	svc := a.orders
	return func() tea.Msg {
		order, err := svc.Get(context.Background(), id)
		return orderLoadedMsg{order: order, err: err}
	}
}

func (a *App) submitOrder() tea.Cmd {
	svc := a.orders
	req := a.cart.ToOrderRequest()
	return func() tea.Msg {
		order, err := svc.Create(context.Background(), req)
		return orderPlacedMsg{order: order, err: err}
	}
}

func (a *App) cancelOrder(order catalog.Order) tea.Cmd {
	svc := a.orders
	return func() tea.Msg {
		canceled, err := svc.Cancel(context.Background(), order)
		return orderCanceledMsg{order: canceled, err: err}
	}
}

func (a *App) scheduleTick() tea.Cmd {
	return tea.Tick(panelRefreshInterval, func(time.Time) tea.Msg {
		return panelTickMsg{}
	})
}

// fail records an error in the status line and the log, translated to the
// user-facing message for its kind.
func (a *App) fail(what string, err error) {
	a.logError("%s: %v", what, err)
	a.statusMsg = fmt.Sprintf("%s: %s", what, api.UserMessage(err))
	if api.IsAuthenticationRequired(err) {
		a.statusMsg = "Session expired, press L to sign in again"
	}
}

func (a *App) logInfo(format string, args ...any) {
	if a.log == nil {
		return
	}
	a.log.Z().Info().Msgf(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.log == nil {
		return
	}
	a.log.Z().Error().Msgf(format, args...)
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	rightWidth := max(30, width/3)
	leftWidth := width - rightWidth - 4
	if leftWidth < 40 {
		leftWidth = width - 4
		rightWidth = 0
	}

	var content string
	switch a.state {
	case stateCatalog:
		content = a.catalogList.View()
	case stateProductDetail:
		content = a.renderProductDetail(leftWidth - 4)
	case stateCart:
		content = a.renderCart(leftWidth - 4)
	case stateCheckout:
		content = a.renderCheckout(leftWidth - 4)
	case stateMyOrders:
		content = a.renderMyOrders(leftWidth - 4)
	case stateOrderDetail:
		content = a.renderOrderDetail(leftWidth - 4)
	case stateAdmin:
		content = a.admin.view(leftWidth - 4)
	case stateUnauthorized:
		content = a.renderUnauthorized()
	}
	return a.renderBoard(content, leftWidth, rightWidth)
}

func (a *App) renderBoard(mainContent string, leftWidth, rightWidth int) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		MarginBottom(1).
		Render("⬡ STOREFRONT")
	leftBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(20, leftWidth)).
		Render(mainContent)
	var body string
	if rightWidth > 0 {
		right := lipgloss.JoinVertical(lipgloss.Left,
			a.renderAccountPanel(rightWidth-4),
			"",
			a.renderCartPanel(rightWidth-4),
		)
		rightBox := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			Width(max(20, rightWidth)).
			Render(right)
		body = lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)
	} else {
		body = leftBox
	}
	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(a.renderFooter())
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) renderAccountPanel(width int) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("Account")
	var lines []string
	if a.session.Authenticated() {
		user := a.session.User()
		lines = append(lines, user.DisplayName())
		if user.Email != "" {
			lines = append(lines, user.Email)
		}
		if roles := a.session.Roles(); len(roles) > 0 {
			lines = append(lines, "Roles: "+strings.Join(roles, ", "))
		}
		lines = append(lines, "L → sign out")
	} else {
		lines = append(lines, "Browsing as guest", "L → sign in")
	}
	body := lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

func (a *App) renderCartPanel(width int) string {
	totals := a.cart.Totals()
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("Cart (%d)", totals.ItemCount))
	var lines []string
	if a.cart.IsEmpty() {
		lines = append(lines, "Empty. Add products from the catalog.")
	} else {
		for _, line := range a.cart.Items() {
			lines = append(lines, fmt.Sprintf("%dx %s", line.Quantity, line.Product.Name))
		}
		lines = append(lines, fmt.Sprintf("Total: %s", formatPrice(totals.Total)))
	}
	lines = append(lines, "C → open cart")
	body := lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

func (a *App) renderLogPanel() string {
	if a.log == nil {
		return ""
	}
	lines := a.log.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.log.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", fileName))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func (a *App) renderFooter() string {
	hints := a.keyHints()
	if a.statusMsg == "" {
		return hints
	}
	return a.statusMsg + "\n" + hints
}

func (a *App) keyHints() string {
	base := "C cart · O orders · L sign in/out · R refresh · q quit"
	if a.session.HasRole(catalog.RoleAdmin) {
		base = "A admin · " + base
	}
	switch a.state {
	case stateCatalog:
		return "enter view · + add to cart · / filter · " + base
	case stateProductDetail:
		return "+ add · - remove · esc back · " + base
	case stateCart:
		return "enter checkout · +/- quantity · x remove · X clear · esc back"
	case stateCheckout:
		return "enter place order · esc back to cart"
	case stateMyOrders:
		return "enter view order · esc back · " + base
	case stateOrderDetail:
		return "x cancel order · esc back"
	case stateAdmin:
		return a.admin.keyHints()
	case stateUnauthorized:
		return "enter/esc back"
	}
	return base
}

func (a *App) renderUnauthorized() string {
	warn := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		Render("Access denied")
	return warn + "\n\nYour account does not have the role required for this screen."
}

func formatPrice(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
