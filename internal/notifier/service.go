// Package notifier consumes order lifecycle events and alerts the admin team
// over WhatsApp, with SMS as the fallback channel.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/Homeboy20/kwetupizza-bot/internal/kafka"
	"github.com/Homeboy20/kwetupizza-bot/internal/orders"
	"github.com/Homeboy20/kwetupizza-bot/internal/redisx"
)

type Messenger interface {
	SendText(ctx context.Context, to, body string) error
}

type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

type Service struct {
	ServiceName   string
	AdminWhatsApp string
	AdminSMS      string
	WA            Messenger
	SMS           SMSSender
	Redis         *redis.Client
}

// Handle is the consumer callback. Returning nil commits the offset, so any
// event we cannot decode is logged and committed rather than replayed forever.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("notifier: bad envelope on %s: %v", m.Topic, err)
		return nil
	}

	claimed, err := redisx.SetIfAbsent(ctx, s.Redis,
		fmt.Sprintf(redisx.KeyEventDedup, s.ServiceName, env.EventID), redisx.TTLEventDedup)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	switch env.EventType {
	case orders.EventOrderCreated:
		return s.orderCreated(ctx, env.Payload)
	case orders.EventPaymentCompleted:
		return s.paymentCompleted(ctx, env.Payload)
	case orders.EventPaymentFailed:
		return s.paymentFailed(ctx, env.Payload)
	case orders.EventReviewReceived:
		return s.reviewReceived(ctx, env.Payload)
	}
	log.Printf("notifier: unknown event type %q", env.EventType)
	return nil
}

func (s *Service) orderCreated(ctx context.Context, payload json.RawMessage) error {
	p, err := kafka.UnwrapPayload[orders.OrderCreatedPayload](payload)
	if err != nil {
		return err
	}
	return s.alert(ctx, fmt.Sprintf(
		"🍕 New order #%d\nCustomer: %s\nDeliver to: %s\nTotal: %s %s\nPayment: %s",
		p.OrderID, p.CustomerPhone, p.DeliveryAddress,
		orders.FormatAmount(p.TotalCents), p.Currency, p.PaymentProvider))
}

func (s *Service) paymentCompleted(ctx context.Context, payload json.RawMessage) error {
	p, err := kafka.UnwrapPayload[orders.PaymentCompletedPayload](payload)
	if err != nil {
		return err
	}
	return s.alert(ctx, fmt.Sprintf(
		"✅ Payment completed for order #%d\n%s %s via %s\nRef: %s\nStart preparing!",
		p.OrderID, orders.FormatAmount(p.AmountCents), p.Currency, p.PaymentMethod, p.TxRef))
}

func (s *Service) paymentFailed(ctx context.Context, payload json.RawMessage) error {
	p, err := kafka.UnwrapPayload[orders.PaymentFailedPayload](payload)
	if err != nil {
		return err
	}
	return s.alert(ctx, fmt.Sprintf(
		"❌ Payment FAILED for order #%d\nRef: %s\nReason: %s\nThe customer may need a follow-up.",
		p.OrderID, p.TxRef, p.Reason))
}

func (s *Service) reviewReceived(ctx context.Context, payload json.RawMessage) error {
	p, err := kafka.UnwrapPayload[orders.ReviewReceivedPayload](payload)
	if err != nil {
		return err
	}
	if p.Rating <= 2 {
		msg := fmt.Sprintf("🚨 Low rating alert: order #%d rated %d/5", p.OrderID, p.Rating)
		if p.Comment != "" {
			msg += "\n💬 " + p.Comment
		}
		return s.alert(ctx, msg)
	}
	log.Printf("order %d rated %d/5", p.OrderID, p.Rating)
	return nil
}

// alert goes to WhatsApp first and falls back to SMS. Both failing is an error
// so the event is retried.
func (s *Service) alert(ctx context.Context, message string) error {
	if s.AdminWhatsApp != "" {
		err := s.WA.SendText(ctx, s.AdminWhatsApp, message)
		if err == nil {
			return nil
		}
		log.Printf("notifier whatsapp: %v", err)
	}
	if s.AdminSMS != "" && s.SMS != nil {
		if err := s.SMS.Send(ctx, s.AdminSMS, message); err != nil {
			return fmt.Errorf("admin alert undeliverable: %w", err)
		}
		return nil
	}
	log.Printf("notifier: no admin channel configured, dropping alert")
	return nil
}
