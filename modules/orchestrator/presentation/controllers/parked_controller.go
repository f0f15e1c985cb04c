package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/order-saga/modules/orchestrator/domain/entities/parked"
	"github.com/iota-uz/order-saga/modules/orchestrator/services"
	"github.com/iota-uz/order-saga/pkg/application"
	"github.com/iota-uz/order-saga/pkg/saga"
)

type ParkedController struct {
	service  *services.OrchestratorService
	basePath string
}

func NewParkedController(service *services.OrchestratorService) application.Controller {
	return &ParkedController{service: service, basePath: "/parked"}
}

func (c *ParkedController) Key() string {
	return c.basePath
}

func (c *ParkedController) Register(r *mux.Router) {
	s := r.PathPrefix(c.basePath).Subrouter()
	s.HandleFunc("", c.List).Methods(http.MethodGet)
	s.HandleFunc("/{id}/reprocess", c.Reprocess).Methods(http.MethodPost)
}

func (c *ParkedController) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	events, err := c.service.Parked(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		events = []parked.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (c *ParkedController) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	dest, err := c.service.Reprocess(r.Context(), id)
	switch {
	case errors.Is(err, parked.ErrParkedNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, saga.ErrNoRoute):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"destination": dest})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
