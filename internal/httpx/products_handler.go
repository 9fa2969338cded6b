package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/shop-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ProductService interface {
	CreateProduct(ctx context.Context, in orders.ProductInput) (orders.Product, error)
	GetProduct(ctx context.Context, productID string) (orders.Product, error)
	ListProducts(ctx context.Context) ([]orders.Product, error)
	Restock(ctx context.Context, productID string, delta int) (orders.Product, error)
}

type ProductsHandler struct {
	Products ProductService
	Logger   *zap.Logger
}

type restockReq struct {
	Delta int `json:"delta"`
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{id}", h.getProduct)
	r.Post("/products/{id}/restock", h.restock)
}

func (h *ProductsHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Products.ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, h.logger(), err)
		return
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in orders.ProductInput
	if !decodeBody(w, r, &in) {
		return
	}
	p, err := h.Products.CreateProduct(r.Context(), in)
	if err != nil {
		writeDomainError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) restock(w http.ResponseWriter, r *http.Request) {
	var req restockReq
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.Products.Restock(r.Context(), chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		writeDomainError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
