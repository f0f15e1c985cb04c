package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/order-saga/pkg/application"
	"github.com/iota-uz/order-saga/pkg/outbox"
)

// OutboxController is the operational view over every registered outbox.
type OutboxController struct {
	app application.Application
	now func() time.Time
}

func NewOutboxController(app application.Application) application.Controller {
	return &OutboxController{app: app, now: time.Now}
}

func (c *OutboxController) Key() string {
	return "/outbox"
}

func (c *OutboxController) Register(r *mux.Router) {
	s := r.PathPrefix("/outbox").Subrouter()
	s.HandleFunc("/stats", c.Stats).Methods(http.MethodGet)
	s.HandleFunc("/dead", c.Dead).Methods(http.MethodGet)
	s.HandleFunc("/{name}/records/{id}/requeue", c.Requeue).Methods(http.MethodPost)
}

type StatsResponse struct {
	Name  string       `json:"name"`
	Stats outbox.Stats `json:"stats"`
}

type DeadResponse struct {
	Name    string          `json:"name"`
	Records []outbox.Record `json:"records"`
}

func (c *OutboxController) Stats(w http.ResponseWriter, r *http.Request) {
	out := make([]StatsResponse, 0)
	for _, e := range c.app.Outboxes() {
		st, err := e.Outbox.Store().Stats(r.Context(), e.Relay.MaxRetry(), c.now())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, StatsResponse{Name: e.Outbox.Name(), Stats: st})
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *OutboxController) Dead(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	out := make([]DeadResponse, 0)
	for _, e := range c.app.Outboxes() {
		recs, err := e.Outbox.Store().ListDead(r.Context(), e.Relay.MaxRetry(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, DeadResponse{Name: e.Outbox.Name(), Records: recs})
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *OutboxController) Requeue(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	e, ok := c.app.Outbox(vars["name"])
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown outbox"))
		return
	}
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := e.Outbox.Store().Requeue(r.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, outbox.ErrRecordNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	e.Outbox.Notify()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
