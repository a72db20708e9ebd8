package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ndquoc/pharmacart/internal/core/domain"
	"github.com/ndquoc/pharmacart/internal/core/service"
	"github.com/ndquoc/pharmacart/internal/port"
)

// HTTPHandler exposes the storefront REST surface. Identity is supplied
// opaquely by the caller via X-Customer-ID (authenticated) or X-Guest-ID
// (anonymous); credential validation happens upstream.
type HTTPHandler struct {
	catalog   port.CatalogRepository
	carts     *service.CartService
	discounts *service.DiscountService
	orders    *service.OrderService
}

func NewHTTPHandler(
	catalog port.CatalogRepository,
	carts *service.CartService,
	discounts *service.DiscountService,
	orders *service.OrderService,
) *HTTPHandler {
	return &HTTPHandler{catalog: catalog, carts: carts, discounts: discounts, orders: orders}
}

func (h *HTTPHandler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.GetProduct).Methods(http.MethodGet)

	api.HandleFunc("/cart", h.GetCart).Methods(http.MethodGet)
	api.HandleFunc("/cart", h.ClearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", h.AddCartItem).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{productID}", h.UpdateCartItem).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{productID}", h.RemoveCartItem).Methods(http.MethodDelete)
	api.HandleFunc("/cart/merge", h.MergeCart).Methods(http.MethodPost)

	api.HandleFunc("/discount", h.ApplyDiscount).Methods(http.MethodPost)
	api.HandleFunc("/discount", h.RemoveDiscount).Methods(http.MethodDelete)

	api.HandleFunc("/checkout", h.Checkout).Methods(http.MethodPost)
	api.HandleFunc("/orders", h.ListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/associate", h.AssociateOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/status", h.UpdateOrderStatus).Methods(http.MethodPatch)
	api.HandleFunc("/orders/{id}/payment", h.UpdatePaymentStatus).Methods(http.MethodPatch)

	return r
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type identity struct {
	customerID string
	guestID    string
}

func (id identity) owner() string {
	if id.customerID != "" {
		return id.customerID
	}
	return id.guestID
}

func readIdentity(r *http.Request) identity {
	return identity{
		customerID: r.Header.Get("X-Customer-ID"),
		guestID:    r.Header.Get("X-Guest-ID"),
	}
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: out})
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		writeError(w, domain.ErrProductNotFound)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toProductResponse(*p)})
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	id := readIdentity(r)
	cart, err := h.loadCart(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toCartResponse(cart)})
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *HTTPHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	id := readIdentity(r)
	if id.owner() == "" {
		writeBadRequest(w, "missing customer or guest identity")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	var err error
	if id.customerID != "" {
		err = h.carts.AddItem(r.Context(), id.customerID, req.ProductID, req.Quantity)
	} else {
		err = h.carts.AddGuestItem(r.Context(), id.guestID, req.ProductID, req.Quantity)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "item added"})
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *HTTPHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id := readIdentity(r)
	if id.owner() == "" {
		writeBadRequest(w, "missing customer or guest identity")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	productID := mux.Vars(r)["productID"]
	var err error
	if id.customerID != "" {
		err = h.carts.UpdateQuantity(r.Context(), id.customerID, productID, req.Quantity)
	} else {
		err = h.carts.UpdateGuestQuantity(r.Context(), id.guestID, productID, req.Quantity)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "quantity updated"})
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id := readIdentity(r)
	if id.owner() == "" {
		writeBadRequest(w, "missing customer or guest identity")
		return
	}

	productID := mux.Vars(r)["productID"]
	var err error
	if id.customerID != "" {
		err = h.carts.RemoveItem(r.Context(), id.customerID, productID)
	} else {
		err = h.carts.RemoveGuestItem(r.Context(), id.guestID, productID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "item removed"})
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	id := readIdentity(r)
	if id.owner() == "" {
		writeBadRequest(w, "missing customer or guest identity")
		return
	}

	var err error
	if id.customerID != "" {
		err = h.carts.Clear(r.Context(), id.customerID)
	} else {
		err = h.carts.ClearGuestCart(r.Context(), id.guestID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "cart cleared"})
}

// MergeCart folds the guest cart into the authenticated customer's cart.
// Called once right after login; requires both identity headers.
func (h *HTTPHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	id := readIdentity(r)
	if id.customerID == "" || id.guestID == "" {
		writeBadRequest(w, "merge requires both customer and guest identity")
		return
	}

	if err := h.carts.MergeGuestCart(r.Context(), id.guestID, id.customerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "cart merged"})
}

type applyDiscountRequest struct {
	Code string `json:"code"`
}

func (h *HTTPHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	id := readIdentity(r)
	if id.owner() == "" {
		writeBadRequest(w, "missing customer or guest identity")
		return
	}

	var req applyDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeBadRequest(w, "discount code is required")
		return
	}

	cart, err := h.loadCart(r, id)
	if err != nil {
		writeError(w, err)
		return
	}

	applied, err := h.discounts.Apply(r.Context(), id.owner(), req.Code, cart.Subtotal())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toAppliedCouponResponse(*applied)})
}

func (h *HTTPHandler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	id := readIdentity(r)
	if id.owner() == "" {
		writeBadRequest(w, "missing customer or guest identity")
		return
	}

	if err := h.discounts.Remove(r.Context(), id.owner()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "discount removed"})
}

type checkoutRequest struct {
	RequestID     string `json:"request_id"`
	FullName      string `json:"full_name"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	PaymentMethod string `json:"payment_method"`
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id := readIdentity(r)
	if id.owner() == "" {
		writeBadRequest(w, "missing customer or guest identity")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.RequestID == "" || req.FullName == "" || req.Phone == "" || req.Address == "" {
		writeBadRequest(w, "missing required fields")
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), service.CreateOrderInput{
		RequestID:  req.RequestID,
		CustomerID: id.customerID,
		GuestID:    id.guestID,
		Shipping: domain.ShippingInfo{
			FullName: req.FullName,
			Phone:    req.Phone,
			Address:  req.Address,
		},
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: toOrderResponse(*order)})
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id := readIdentity(r)
	if id.customerID == "" {
		writeBadRequest(w, "missing customer identity")
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), id.customerID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: out})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toOrderResponse(*order)})
}

type associateRequest struct {
	CustomerID string `json:"customer_id"`
}

func (h *HTTPHandler) AssociateOrder(w http.ResponseWriter, r *http.Request) {
	var req associateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CustomerID == "" {
		writeBadRequest(w, "customer_id is required")
		return
	}

	if err := h.orders.AssociateWithUser(r.Context(), mux.Vars(r)["id"], req.CustomerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "order associated"})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeBadRequest(w, "status is required")
		return
	}

	err := h.orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], domain.OrderStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "status updated"})
}

func (h *HTTPHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeBadRequest(w, "status is required")
		return
	}

	err := h.orders.UpdatePaymentStatus(r.Context(), mux.Vars(r)["id"], domain.PaymentStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "payment status updated"})
}

func (h *HTTPHandler) loadCart(r *http.Request, id identity) (*domain.Cart, error) {
	if id.customerID != "" {
		return h.carts.GetCart(r.Context(), id.customerID)
	}
	if id.guestID != "" {
		return h.carts.GetGuestCart(r.Context(), id.guestID)
	}
	return &domain.Cart{}, nil
}

func writeError(w http.ResponseWriter, err error) {
	var outOfStock *domain.OutOfStockError
	var notApplicable *domain.NotApplicableError

	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: err.Error()})
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCartItemNotFound),
		errors.Is(err, domain.ErrCodeNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, apiResponse{Success: false, Message: err.Error()})
	case errors.Is(err, domain.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: err.Error()})
	case errors.Is(err, domain.ErrAlreadyApplied),
		errors.Is(err, domain.ErrAlreadyAssociated),
		errors.Is(err, domain.ErrDuplicateRequest),
		errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, apiResponse{Success: false, Message: err.Error()})
	case errors.As(err, &outOfStock):
		writeJSON(w, http.StatusConflict, apiResponse{
			Success: false,
			Message: outOfStock.Error(),
			Data:    toOutOfStockResponse(outOfStock),
		})
	case errors.As(err, &notApplicable):
		writeJSON(w, http.StatusUnprocessableEntity, apiResponse{Success: false, Message: notApplicable.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Message: "internal error"})
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
