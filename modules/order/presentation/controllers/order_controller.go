package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/order-saga/modules/order/domain/aggregates/order"
	"github.com/iota-uz/order-saga/modules/order/services"
	"github.com/iota-uz/order-saga/pkg/application"
	"github.com/iota-uz/order-saga/pkg/saga"
)

type OrderController struct {
	service  *services.OrderService
	basePath string
}

func NewOrderController(service *services.OrderService) application.Controller {
	return &OrderController{service: service, basePath: "/api/order"}
}

func (c *OrderController) Key() string {
	return c.basePath
}

func (c *OrderController) Register(r *mux.Router) {
	s := r.PathPrefix(c.basePath).Subrouter()
	s.HandleFunc("", c.Create).Methods(http.MethodPost)
	s.HandleFunc("/{id}", c.Get).Methods(http.MethodGet)
}

type CreateOrderRequest struct {
	Products []saga.OrderProduct `json:"products"`
}

type OrderResponse struct {
	ID            string              `json:"id"`
	TransactionID string              `json:"transactionId"`
	Status        order.Status        `json:"status"`
	Products      []saga.OrderProduct `json:"products"`
	TotalAmount   string              `json:"totalAmount"`
	TotalItems    int                 `json:"totalItems"`
}

func toResponse(o order.Order) OrderResponse {
	return OrderResponse{
		ID:            o.ID,
		TransactionID: o.TransactionID,
		Status:        o.Status,
		Products:      o.Products,
		TotalAmount:   o.TotalAmount.StringFixed(2),
		TotalItems:    o.TotalItems,
	}
}

func (c *OrderController) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	o, err := c.service.CreateOrder(r.Context(), req.Products)
	if errors.Is(err, services.ErrInvalidOrder) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(o))
}

func (c *OrderController) Get(w http.ResponseWriter, r *http.Request) {
	o, err := c.service.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, order.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
