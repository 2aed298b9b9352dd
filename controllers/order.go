package controllers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"go-storefront/metrics"
	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/storage"
	"go-storefront/utils"
)

// OrderController handles order-related requests
type OrderController struct {
	Orders       storage.Collection[models.Order]
	Products     storage.Collection[models.Product]
	Users        storage.Collection[models.User]
	EmailService *utils.EmailService
	Payments     utils.PaymentGateway
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	now          func() time.Time
}

// NewOrderController creates a new OrderController. payments and m may be nil.
func NewOrderController(stores storage.Stores, emailService *utils.EmailService, payments utils.PaymentGateway, m *metrics.Metrics, logger *slog.Logger) *OrderController {
	return &OrderController{
		Orders:       stores.Orders,
		Products:     stores.Products,
		Users:        stores.Users,
		EmailService: emailService,
		Payments:     payments,
		Metrics:      m,
		Logger:       loggerOrDefault(logger),
		now:          time.Now,
	}
}

type checkoutItem struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type checkoutRequest struct {
	Items           []checkoutItem         `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
}

type orderResponse struct {
	*models.Order
	Payment *models.Payment `json:"payment,omitempty"`
}

// orderView is an order with its owner and products filled in. A reference that
// no longer resolves is left as the bare id.
type orderView struct {
	*models.Order
	User  any             `json:"user"`
	Items []orderItemView `json:"items"`
}

type orderItemView struct {
	Product  any     `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type userRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// reservation is stock taken from one product during checkout
type reservation struct {
	productID string
	quantity  int
}

// CreateOrder prices the requested items, reserves their stock and stores the order
func (oc *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		utils.RespondError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req checkoutRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		utils.RespondError(w, "Order has no items", http.StatusBadRequest)
		return
	}
	if err := req.ShippingAddress.Validate(); err != nil {
		utils.RespondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Merge repeated lines so stock is checked against the full quantity
	quantities := map[string]int{}
	var productIDs []string
	for _, item := range req.Items {
		if item.Product == "" || item.Quantity <= 0 {
			utils.RespondError(w, "Each item needs a product and a positive quantity", http.StatusBadRequest)
			return
		}
		if _, seen := quantities[item.Product]; !seen {
			productIDs = append(productIDs, item.Product)
		}
		quantities[item.Product] += item.Quantity
	}

	ctx := r.Context()
	items := make([]models.OrderItem, 0, len(productIDs))
	names := map[string]string{}
	for _, id := range productIDs {
		product, err := oc.Products.FindByID(ctx, id)
		if err != nil {
			respondStoreError(w, oc.Logger, err, fmt.Sprintf("Product with ID %s not found", id), "Failed to create order")
			return
		}
		if product.Stock < quantities[id] {
			utils.RespondError(w, fmt.Sprintf("Insufficient stock for product: %s", product.Name), http.StatusBadRequest)
			return
		}
		names[product.ID] = product.Name
		items = append(items, models.OrderItem{Product: product.ID, Quantity: quantities[id], Price: product.SalePrice()})
	}

	// The check above is advisory; the reservation decides who gets the stock
	reserved, err := oc.reserveStock(ctx, items)
	var short *stockError
	if errors.Is(err, storage.ErrInsufficient) && errors.As(err, &short) {
		utils.RespondError(w, fmt.Sprintf("Insufficient stock for product: %s", names[short.productID]), http.StatusBadRequest)
		return
	}
	if err != nil {
		respondStoreError(w, oc.Logger, err, "Product not found", "Failed to update product stock")
		return
	}

	order := models.Order{
		User:            claims.UserID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
	}
	order.Total = order.ItemsTotal()

	var payment *models.Payment
	if oc.Payments != nil && utils.IsCardPayment(order.PaymentMethod) {
		payment, err = oc.Payments.CreatePayment(ctx, order.Total, claims.UserID)
		if err != nil {
			oc.releaseStock(reserved)
			oc.Logger.Error("payment intent failed", "user", claims.UserID, "error", err)
			utils.RespondError(w, "Failed to start payment", http.StatusInternalServerError)
			return
		}
		order.PaymentIntentID = payment.IntentID
	}

	created, err := oc.Orders.Create(ctx, order)
	if err != nil {
		oc.releaseStock(reserved)
		respondStoreError(w, oc.Logger, err, "Order not found", "Failed to create order")
		return
	}
	if payment != nil {
		payment.OrderID = created.ID
	}
	if oc.Metrics != nil {
		oc.Metrics.OrdersCreatedTotal.Inc()
	}
	oc.Logger.Info("order created", "id", created.ID, "user", created.User, "total", created.Total)

	oc.notify(ctx, *created, func(user models.User, order models.Order) error {
		return oc.EmailService.SendOrderConfirmationEmail(user, order)
	})

	utils.RespondJSON(w, http.StatusCreated, orderResponse{Order: created, Payment: payment})
}

// stockError names the product a reservation failed on
type stockError struct {
	productID string
	err       error
}

func (e *stockError) Error() string { return e.productID + ": " + e.err.Error() }
func (e *stockError) Unwrap() error { return e.err }

// reserveStock takes stock for every line, undoing earlier lines when one fails.
// Each line is a single conditional decrement in the store.
func (oc *OrderController) reserveStock(ctx context.Context, items []models.OrderItem) ([]reservation, error) {
	var reserved []reservation
	for _, item := range items {
		if _, err := oc.Products.Increment(ctx, item.Product, "stock", -item.Quantity); err != nil {
			oc.releaseStock(reserved)
			return nil, &stockError{productID: item.Product, err: err}
		}
		reserved = append(reserved, reservation{productID: item.Product, quantity: item.Quantity})
	}
	return reserved, nil
}

// releaseStock puts reserved stock back. It runs detached from the request so a
// cancelled client does not leave stock taken.
func (oc *OrderController) releaseStock(reserved []reservation) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, res := range reserved {
		if _, err := oc.Products.Increment(ctx, res.productID, "stock", res.quantity); err != nil {
			oc.Logger.Error("failed to release stock", "product", res.productID, "quantity", res.quantity, "error", err)
		}
	}
}

// notify looks up the order's owner and sends mail in the background
func (oc *OrderController) notify(ctx context.Context, order models.Order, send func(models.User, models.Order) error) {
	if oc.EmailService == nil {
		return
	}
	user, err := oc.Users.FindByID(ctx, order.User)
	if err != nil {
		oc.Logger.Warn("order owner not found, skipping email", "order", order.ID, "error", err)
		return
	}
	owner := *user
	oc.EmailService.SendAsync(owner.Email, func() error {
		return send(owner, order)
	})
}

// GetOrders returns every order to admins and the caller's own orders otherwise
func (oc *OrderController) GetOrders(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		utils.RespondError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := storage.Query{}
	if !claims.IsAdmin {
		query["user"] = claims.UserID
	}
	orders, err := oc.Orders.Find(r.Context(), query)
	if err != nil {
		respondStoreError(w, oc.Logger, err, "Order not found", "Failed to fetch orders")
		return
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	p := oc.newPopulator()
	views := make([]orderView, 0, len(orders))
	for i := range orders {
		view, err := p.view(r.Context(), &orders[i])
		if err != nil {
			respondStoreError(w, oc.Logger, err, "Order not found", "Failed to fetch orders")
			return
		}
		views = append(views, view)
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

// GetOrderByID returns one order to its owner or an admin
func (oc *OrderController) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		utils.RespondError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	order, err := oc.Orders.FindByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, oc.Logger, err, "Order not found", "Failed to fetch order")
		return
	}
	if !claims.IsAdmin && order.User != claims.UserID {
		utils.RespondError(w, "Not authorized to view this order", http.StatusForbidden)
		return
	}
	view, err := oc.newPopulator().view(r.Context(), order)
	if err != nil {
		respondStoreError(w, oc.Logger, err, "Order not found", "Failed to fetch order")
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

// populator resolves order references, looking each id up once per request
type populator struct {
	oc       *OrderController
	users    map[string]any
	products map[string]any
}

func (oc *OrderController) newPopulator() *populator {
	return &populator{oc: oc, users: map[string]any{}, products: map[string]any{}}
}

// unresolved reports whether err means the referenced record is gone
func unresolved(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrForeignID)
}

func (p *populator) user(ctx context.Context, id string) (any, error) {
	if ref, ok := p.users[id]; ok {
		return ref, nil
	}
	var ref any = id
	user, err := p.oc.Users.FindByID(ctx, id)
	switch {
	case err == nil:
		ref = userRef{ID: user.ID, Name: user.Name, Email: user.Email}
	case !unresolved(err):
		return nil, err
	}
	p.users[id] = ref
	return ref, nil
}

func (p *populator) product(ctx context.Context, id string) (any, error) {
	if ref, ok := p.products[id]; ok {
		return ref, nil
	}
	var ref any = id
	product, err := p.oc.Products.FindByID(ctx, id)
	switch {
	case err == nil:
		ref = product
	case !unresolved(err):
		return nil, err
	}
	p.products[id] = ref
	return ref, nil
}

func (p *populator) view(ctx context.Context, order *models.Order) (orderView, error) {
	user, err := p.user(ctx, order.User)
	if err != nil {
		return orderView{}, err
	}
	items := make([]orderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		product, err := p.product(ctx, item.Product)
		if err != nil {
			return orderView{}, err
		}
		items = append(items, orderItemView{Product: product, Quantity: item.Quantity, Price: item.Price})
	}
	return orderView{Order: order, User: user, Items: items}, nil
}

// MarkOrderPaid sets isPaid and paidAt (Admin only)
func (oc *OrderController) MarkOrderPaid(w http.ResponseWriter, r *http.Request) {
	oc.updateStatus(w, r, storage.Patch{"isPaid": true, "paidAt": oc.now()}, "paid")
}

// MarkOrderDelivered sets isDelivered and deliveredAt (Admin only)
func (oc *OrderController) MarkOrderDelivered(w http.ResponseWriter, r *http.Request) {
	oc.updateStatus(w, r, storage.Patch{"isDelivered": true, "deliveredAt": oc.now()}, "delivered")
}

func (oc *OrderController) updateStatus(w http.ResponseWriter, r *http.Request, patch storage.Patch, status string) {
	order, err := oc.Orders.FindByIDAndUpdate(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		respondStoreError(w, oc.Logger, err, "Order not found", "Failed to update order")
		return
	}
	oc.Logger.Info("order status updated", "id", order.ID, "status", status)

	oc.notify(r.Context(), *order, func(user models.User, order models.Order) error {
		return oc.EmailService.SendOrderStatusEmail(user, order, status)
	})
	utils.RespondJSON(w, http.StatusOK, order)
}
