// Package httpx exposes the webhook surface: WhatsApp inbound, payment
// callbacks and a couple of operational endpoints.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Homeboy20/kwetupizza-bot/internal/orders"
)

type Server struct {
	Webhook  *WebhookHandler
	Payments *PaymentHandler
	Repo     *orders.Repo
	Catalog  *orders.Catalog
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/webhook", s.Webhook.Verify)
	r.Post("/webhook", s.Webhook.Receive)

	r.Post("/payment-webhook", s.Payments.Callback)
	r.Get("/payment-verify", s.Payments.Verify)

	r.Get("/order-status/{orderID}", s.orderStatus)
	r.Post("/menu/refresh", s.menuRefresh)

	return r
}

func (s *Server) orderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orderID, err := parseID(chi.URLParam(r, "orderID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, err := s.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	if err != nil {
		log.Printf("order status %d: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	items, err := s.Repo.GetOrderItems(ctx, orderID)
	if err != nil {
		log.Printf("order items %d: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	type itemOut struct {
		Name       string `json:"name"`
		Quantity   int    `json:"quantity"`
		PriceCents int64  `json:"price_cents"`
	}
	out := struct {
		OrderID    int64         `json:"order_id"`
		Status     orders.Status `json:"status"`
		TotalCents int64         `json:"total_cents"`
		Currency   string        `json:"currency"`
		Items      []itemOut     `json:"items"`
	}{orderID, order.Status, order.TotalCents, order.Currency, nil}
	for _, it := range items {
		out.Items = append(out.Items, itemOut{it.Name, it.Quantity, it.PriceCents})
	}
	writeJSON(w, http.StatusOK, out)
}

// menuRefresh drops the cached menu rendering after a catalog change.
func (s *Server) menuRefresh(w http.ResponseWriter, r *http.Request) {
	s.Catalog.Invalidate(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
