package httpx

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/Homeboy20/kwetupizza-bot/internal/payment"
)

// PaymentService is the slice of the coordinator the webhook needs.
type PaymentService interface {
	HandleCallback(ctx context.Context, txRef, reportedStatus string) error
	VerifyPayment(ctx context.Context, txRef string) error
}

// PaymentHandler terminates the payment provider's webhook and the manual
// verification endpoint.
type PaymentHandler struct {
	WebhookSecret string
	Coordinator   PaymentService
}

type callbackPayload struct {
	Event string `json:"event"`
	Data  struct {
		TxRef  string `json:"tx_ref"`
		Status string `json:"status"`
	} `json:"data"`
}

// Callback handles charge.completed deliveries. The provider's verif-hash
// header authenticates the call; the reported status is only a hint, the
// coordinator re-verifies before settling. Duplicates are acknowledged so the
// provider stops retrying.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.WebhookSecret != "" {
		got := r.Header.Get("verif-hash")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.WebhookSecret)) != 1 {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var payload callbackPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Data.TxRef == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed payload"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	err = h.Coordinator.HandleCallback(ctx, payload.Data.TxRef, payload.Data.Status)
	switch {
	case errors.Is(err, payment.ErrDuplicateEvent):
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
	case errors.Is(err, payment.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown tx_ref"})
	case err != nil:
		log.Printf("payment callback %s: %v", payload.Data.TxRef, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Verify re-checks a charge with the provider on demand; the recovery path
// when a callback was lost.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	txRef := r.URL.Query().Get("tx_ref")
	if txRef == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tx_ref required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	err := h.Coordinator.VerifyPayment(ctx, txRef)
	switch {
	case errors.Is(err, payment.ErrDuplicateEvent):
		writeJSON(w, http.StatusOK, map[string]string{"status": "already settled"})
	case errors.Is(err, payment.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown tx_ref"})
	case err != nil:
		log.Printf("payment verify %s: %v", txRef, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
