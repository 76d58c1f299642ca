package httpx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Homeboy20/kwetupizza-bot/internal/engine"
	"github.com/Homeboy20/kwetupizza-bot/internal/redisx"
	"github.com/Homeboy20/kwetupizza-bot/internal/sched"
)

// WebhookHandler terminates the WhatsApp Cloud API webhook: the GET
// verification handshake and the POST message delivery.
type WebhookHandler struct {
	VerifyToken string
	AppSecret   string
	Engine      *engine.Engine
	Redis       *redis.Client
	Sched       *sched.Scheduler
}

// Verify answers the subscription handshake: echo the challenge in plain text
// when mode and token match, reject otherwise.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || token == "" || token != h.VerifyToken {
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, challenge)
}

// Cloud API delivery payload, reduced to the fields we act on.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
				Statuses []struct {
					ID          string `json:"id"`
					Status      string `json:"status"`
					RecipientID string `json:"recipient_id"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive struct {
		Type        string `json:"type"`
		ButtonReply struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
	} `json:"interactive"`
	Button struct {
		Text    string `json:"text"`
		Payload string `json:"payload"`
	} `json:"button"`
}

// Receive handles message deliveries. Customer messages are processed
// synchronously so replies feel immediate; delivery statuses are deferred off
// the request path. The platform retries on non-200, so once the signature
// checks out we always answer 200.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !h.validSignature(r.Header.Get("X-Hub-Signature-256"), body) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("webhook decode: %v", err)
		respondReceived(w)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				h.processMessage(r.Context(), m)
			}
			for _, st := range change.Value.Statuses {
				id, status := st.ID, st.Status
				h.Sched.After(0, func() {
					log.Printf("message %s status=%s", id, status)
				})
			}
		}
	}
	respondReceived(w)
}

// validSignature checks the X-Hub-Signature-256 HMAC over the raw body. An
// unset app secret disables the check (local development).
func (h *WebhookHandler) validSignature(header string, body []byte) bool {
	if h.AppSecret == "" {
		return true
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.AppSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(expected))
}

func (h *WebhookHandler) processMessage(ctx context.Context, m inboundMessage) {
	if m.From == "" || m.ID == "" {
		return
	}

	// The platform redelivers on slow responses; first claim wins.
	if h.Redis != nil {
		claimed, err := redisx.SetIfAbsent(ctx, h.Redis, fmt.Sprintf(redisx.KeyMessageDedup, m.ID), redisx.TTLMessageDedup)
		if err != nil {
			log.Printf("message dedup %s: %v", m.ID, err)
		} else if !claimed {
			return
		}
	}

	in := engine.Inbound{Phone: m.From, MessageID: m.ID}
	switch m.Type {
	case "text":
		in.Text = m.Text.Body
	case "interactive":
		in.ButtonID = m.Interactive.ButtonReply.ID
		in.Text = m.Interactive.ButtonReply.Title
	case "button":
		in.ButtonID = m.Button.Payload
		in.Text = m.Button.Text
	default:
		// Media and everything else gets a gentle nudge back to text.
		in.Text = ""
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := h.Engine.HandleMessage(ctx, in); err != nil {
		log.Printf("handle message %s from %s: %v", m.ID, m.From, err)
	}
}

func respondReceived(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Received")
}
