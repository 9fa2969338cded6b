package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ariefcatur/shop-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	userIDHeader      = "X-User-Id"
	idempotencyHeader = "Idempotency-Key"
	maxBodyBytes      = 1 << 20
)

// OrderService is the part of orders.Manager the handlers use.
type OrderService interface {
	Create(ctx context.Context, c orders.Candidate) (orders.CreateResult, error)
	Get(ctx context.Context, orderID string) (orders.Order, error)
	Status(ctx context.Context, orderID string) (orders.StatusPayload, error)
	Cancel(ctx context.Context, orderID, reason string) (orders.Order, error)
	UpdateStatus(ctx context.Context, orderID string, next orders.Status, extra orders.StatusExtra) (orders.Order, error)
	ListByUser(ctx context.Context, userID string) ([]orders.Order, error)
}

type OrdersHandler struct {
	Orders OrderService
	Logger *zap.Logger
}

type createOrderReq struct {
	ExternalID      string                 `json:"external_id"`
	UserID          string                 `json:"user_id"`
	Items           []orders.ItemInput     `json:"items"`
	ShippingAddress orders.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
	Tax             decimal.Decimal        `json:"tax"`
	ShippingCost    decimal.Decimal        `json:"shipping_cost"`
	Discount        decimal.Decimal        `json:"discount"`
}

type cancelOrderReq struct {
	Reason string `json:"reason"`
}

type updateStatusReq struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
	AdminNote      string `json:"admin_note"`
	PaymentStatus  string `json:"payment_status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Put("/orders/{id}/cancel", h.cancelOrder)
	r.Put("/orders/{id}/status", h.updateStatus)
	r.Get("/users/{id}/orders", h.listUserOrders)
}

func (h *OrdersHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid json body", nil)
		return false
	}
	return true
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if !decodeBody(w, r, &req) {
		return
	}

	// Authentication happens upstream; the gateway forwards the purchaser.
	userID := strings.TrimSpace(r.Header.Get(userIDHeader))
	if userID == "" {
		userID = req.UserID
	}
	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		externalID = strings.TrimSpace(r.Header.Get(idempotencyHeader))
	}

	res, err := h.Orders.Create(r.Context(), orders.Candidate{
		ExternalID:      externalID,
		UserID:          userID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Tax:             req.Tax,
		ShippingCost:    req.ShippingCost,
		Discount:        req.Discount,
	})
	if err != nil {
		writeDomainError(w, h.logger(), err)
		return
	}
	status := http.StatusCreated
	if !res.Created {
		status = http.StatusOK
	}
	writeJSON(w, status, res.Order)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Orders.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderReq
	if !decodeBody(w, r, &req) {
		return
	}
	o, err := h.Orders.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if !decodeBody(w, r, &req) {
		return
	}
	next, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, h.logger(), &orders.ValidationError{Field: "status", Reason: err.Error()})
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), next, orders.StatusExtra{
		TrackingNumber: req.TrackingNumber,
		AdminNote:      req.AdminNote,
		PaymentStatus:  orders.PaymentStatus(req.PaymentStatus),
	})
	if err != nil {
		writeDomainError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Orders.ListByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger(), err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}
