// Package payment coordinates order creation, charges, provider callbacks and
// the notifications that follow settlement.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/redis/go-redis/v9"

	"github.com/Homeboy20/kwetupizza-bot/internal/convo"
	"github.com/Homeboy20/kwetupizza-bot/internal/kafka"
	"github.com/Homeboy20/kwetupizza-bot/internal/orders"
	"github.com/Homeboy20/kwetupizza-bot/internal/redisx"
	"github.com/Homeboy20/kwetupizza-bot/internal/wa"
)

var (
	ErrIncompleteCheckout = errors.New("payment: checkout details incomplete")
	ErrDuplicateEvent     = errors.New("payment: event already processed")
	ErrOrderNotFound      = errors.New("payment: order not found")
)

const ProviderCash = "cash"

type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	SendButtons(ctx context.Context, to, body string, buttons []wa.Button) error
}

type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

type Publisher interface {
	PublishTo(topic string, key, value []byte, headers ...kafkago.Header)
}

// OrderStore is the slice of orders.Repo the coordinator touches.
type OrderStore interface {
	CustomerByPhone(ctx context.Context, phone string) (orders.Customer, error)
	CreateOrder(ctx context.Context, o orders.Order, items []orders.OrderItem) (int64, error)
	GetOrder(ctx context.Context, id int64) (orders.Order, error)
	GetOrderByTxRef(ctx context.Context, txRef string) (orders.Order, error)
	SetTxRef(ctx context.Context, orderID int64, txRef string) error
	UpdateStatus(ctx context.Context, orderID int64, status orders.Status) error
	SaveTransaction(ctx context.Context, t orders.Transaction) (bool, error)
	SaveReview(ctx context.Context, rev orders.Review) (bool, error)
}

type CheckoutInput struct {
	Phone           string
	Address         string
	DeliveryPhone   string
	Provider        string
	Lines           []convo.CartLine
	ServiceFeeCents int64
	PremiumCents    int64
}

// Coordinator owns the order and payment lifecycle. The conversation engine
// hands it a completed checkout; everything after that (charge, callback,
// settlement, notifications, review prompt) happens here.
type Coordinator struct {
	Repo  OrderStore
	Convo *convo.Store
	Flw   *FlutterwaveClient
	WA    Messenger
	SMS   SMSSender
	Bus   Publisher
	Redis *redis.Client

	ServiceName  string
	BusinessName string
	Currency     string

	ReviewsEnabled bool
	ReviewDelay    time.Duration
	// ScheduleReview runs fn after the review delay. Wired to the scheduler at
	// startup; nil disables review prompts.
	ScheduleReview func(delay time.Duration, fn func())
}

// CreateOrder validates the checkout and persists the order in pending state.
func (co *Coordinator) CreateOrder(ctx context.Context, in CheckoutInput) (int64, error) {
	if in.Phone == "" || strings.TrimSpace(in.Address) == "" || in.Provider == "" || len(in.Lines) == 0 {
		return 0, ErrIncompleteCheckout
	}

	var total int64
	items := make([]orders.OrderItem, 0, len(in.Lines))
	for _, l := range in.Lines {
		if l.ProductID == 0 || l.Quantity <= 0 {
			return 0, ErrIncompleteCheckout
		}
		total += l.TotalCents()
		items = append(items, orders.OrderItem{
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			PriceCents: l.PriceCents,
			Note:       l.Note,
		})
	}
	total += in.ServiceFeeCents + in.PremiumCents

	deliveryPhone := in.DeliveryPhone
	if deliveryPhone == "" {
		deliveryPhone = in.Phone
	}

	var name, email string
	if c, err := co.Repo.CustomerByPhone(ctx, in.Phone); err == nil {
		name, email = c.Name, c.Email
	}

	orderID, err := co.Repo.CreateOrder(ctx, orders.Order{
		CustomerName:    name,
		CustomerEmail:   email,
		CustomerPhone:   in.Phone,
		DeliveryAddress: in.Address,
		DeliveryPhone:   deliveryPhone,
		Status:          orders.StatusPending,
		TotalCents:      total,
		Currency:        co.Currency,
	}, items)
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}

	co.publish(orders.TopicOrderCreated, orders.EventOrderCreated, orderID, orders.OrderCreatedPayload{
		OrderID:         orderID,
		CustomerPhone:   in.Phone,
		DeliveryAddress: in.Address,
		TotalCents:      total,
		Currency:        co.Currency,
		PaymentProvider: in.Provider,
	})
	return orderID, nil
}

// TxRef builds the charge reference for an order.
func TxRef(orderID int64) string {
	return fmt.Sprintf("kwetu_%d_%d", orderID, time.Now().Unix())
}

// InitiatePayment starts collection for the order. Cash orders wait in
// pending until delivery with no provider involvement; mobile money stores
// the tx_ref first and then pushes the provider prompt, so the async callback
// can always find its order.
func (co *Coordinator) InitiatePayment(ctx context.Context, orderID int64, provider, payPhone string) error {
	order, err := co.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}

	if provider == ProviderCash {
		return nil
	}

	txRef := TxRef(orderID)
	if err := co.Repo.SetTxRef(ctx, orderID, txRef); err != nil {
		return fmt.Errorf("store tx_ref: %w", err)
	}
	order.TxRef = txRef

	err = co.Flw.ChargeMobileMoney(ctx, ChargeRequest{
		Reference:   txRef,
		AmountCents: order.TotalCents,
		Currency:    order.Currency,
		Provider:    provider,
		Phone:       payPhone,
		Email:       orEmpty(order.CustomerEmail, "customer@kwetupizza.com"),
		FullName:    orEmpty(order.CustomerName, "Customer"),
	})
	if err != nil {
		co.notify(ctx, order.CustomerPhone,
			fmt.Sprintf("❌ We could not start the payment for order #%d. Please try again or type 'reset' to start over.", orderID))
		return fmt.Errorf("initiate charge: %w", err)
	}

	_ = co.WA.SendText(ctx, order.CustomerPhone,
		fmt.Sprintf("📲 A payment prompt has been sent to %s. Enter your PIN to confirm the %s %s payment for order #%d.",
			payPhone, orders.FormatAmount(order.TotalCents), order.Currency, orderID))
	return nil
}

// HandleCallback processes a provider webhook for txRef. The reported status
// is advisory only; the charge is re-verified with the provider before any
// state change. Duplicate callbacks return ErrDuplicateEvent.
func (co *Coordinator) HandleCallback(ctx context.Context, txRef, reportedStatus string) error {
	if co.Redis == nil {
		_, err := co.verify(ctx, txRef)
		return err
	}

	key := fmt.Sprintf(redisx.KeyPaymentDedup, txRef)
	claimed, err := redisx.SetIfAbsent(ctx, co.Redis, key, redisx.TTLPaymentDedup)
	if err != nil {
		// Redis being down must not drop a payment; the transactions table
		// still dedups below.
		log.Printf("payment dedup check: %v", err)
	} else if !claimed {
		return ErrDuplicateEvent
	}

	settled, err := co.verify(ctx, txRef)

	// The claim only sticks once the charge settled. A transient verify
	// failure or a still-pending charge must leave the door open for the
	// provider's next callback.
	if claimed && !settled && !errors.Is(err, ErrDuplicateEvent) {
		if delErr := co.Redis.Del(ctx, key).Err(); delErr != nil {
			log.Printf("payment dedup release %s: %v", txRef, delErr)
		}
	}
	return err
}

// VerifyPayment confirms the charge state with the provider and settles the
// order accordingly. Safe to call repeatedly; only the first settlement wins.
func (co *Coordinator) VerifyPayment(ctx context.Context, txRef string) error {
	_, err := co.verify(ctx, txRef)
	return err
}

// verify reports whether the charge reached a final state and was settled.
func (co *Coordinator) verify(ctx context.Context, txRef string) (bool, error) {
	order, err := co.Repo.GetOrderByTxRef(ctx, txRef)
	if errors.Is(err, orders.ErrNotFound) {
		return false, ErrOrderNotFound
	}
	if err != nil {
		return false, err
	}

	result, err := co.Flw.VerifyByTxRef(ctx, txRef)
	if err != nil {
		return false, fmt.Errorf("verify %s: %w", txRef, err)
	}
	if result.Status == "pending" {
		return false, nil
	}
	if err := co.settle(ctx, order, result, result.PaymentType); err != nil {
		return false, err
	}
	return true, nil
}

// settle records the transaction exactly once, moves the order, and fans out
// notifications and events.
func (co *Coordinator) settle(ctx context.Context, order orders.Order, result VerifyResult, method string) error {
	status := "failed"
	if result.Successful() {
		status = "completed"
	}

	inserted, err := co.Repo.SaveTransaction(ctx, orders.Transaction{
		OrderID:         order.ID,
		TxRef:           result.TxRef,
		PaymentMethod:   method,
		PaymentStatus:   status,
		AmountCents:     result.AmountCents,
		Currency:        result.Currency,
		PaymentProvider: method,
	})
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	if !inserted {
		return ErrDuplicateEvent
	}

	if result.Successful() {
		return co.settleSuccess(ctx, order, result, method)
	}
	return co.settleFailure(ctx, order, result)
}

func (co *Coordinator) settleSuccess(ctx context.Context, order orders.Order, result VerifyResult, method string) error {
	if err := co.Repo.UpdateStatus(ctx, order.ID, orders.StatusProcessing); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	co.notify(ctx, order.CustomerPhone,
		fmt.Sprintf("✅ Payment received! Your order #%d is confirmed and being prepared. We'll keep you posted. Type 'track %d' anytime for updates.",
			order.ID, order.ID))

	co.publish(orders.TopicPaymentCompleted, orders.EventPaymentCompleted, order.ID, orders.PaymentCompletedPayload{
		OrderID:       order.ID,
		TxRef:         result.TxRef,
		AmountCents:   result.AmountCents,
		Currency:      result.Currency,
		PaymentMethod: method,
	})

	if co.ReviewsEnabled && co.ScheduleReview != nil {
		orderID, phone := order.ID, order.CustomerPhone
		co.ScheduleReview(co.ReviewDelay, func() {
			if err := co.RequestReview(context.Background(), orderID, phone); err != nil {
				log.Printf("review request order=%d: %v", orderID, err)
			}
		})
	}
	return nil
}

func (co *Coordinator) settleFailure(ctx context.Context, order orders.Order, result VerifyResult) error {
	if err := co.Repo.UpdateStatus(ctx, order.ID, orders.StatusFailed); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	co.notify(ctx, order.CustomerPhone,
		fmt.Sprintf("❌ Your payment for order #%d could not be completed. No money was taken. Reply with your payment number to retry, or type 'reset' to start over.", order.ID))

	reason := result.ProcessorResp
	if reason == "" {
		reason = result.Status
	}
	co.publish(orders.TopicPaymentFailed, orders.EventPaymentFailed, order.ID, orders.PaymentFailedPayload{
		OrderID: order.ID,
		TxRef:   result.TxRef,
		Reason:  reason,
	})
	return nil
}

// RequestReview sends the rating prompt once per order and parks the
// conversation in the review state.
func (co *Coordinator) RequestReview(ctx context.Context, orderID int64, phone string) error {
	claimed, err := redisx.SetIfAbsent(ctx, co.Redis, fmt.Sprintf(redisx.KeyReviewSent, orderID), redisx.TTLReviewSent)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	c, err := co.Convo.Get(ctx, phone)
	if err != nil {
		return err
	}
	c.Awaiting = convo.StateReview
	c.ReviewOrderID = orderID
	if err := co.Convo.Set(ctx, phone, c); err != nil {
		return err
	}

	return co.WA.SendButtons(ctx, phone,
		fmt.Sprintf("🌟 How was your order #%d from %s? Tap a rating or reply with a number from 1 to 5.", orderID, co.BusinessName),
		[]wa.Button{
			{ID: "rating_5", Title: "⭐⭐⭐ Great"},
			{ID: "rating_3", Title: "⭐⭐ Okay"},
			{ID: "rating_1", Title: "⭐ Poor"},
		})
}

// SubmitReview stores the review (first one per order wins) and publishes it
// for downstream alerting.
func (co *Coordinator) SubmitReview(ctx context.Context, orderID int64, phone string, rating int, comment string) (bool, error) {
	inserted, err := co.Repo.SaveReview(ctx, orders.Review{
		OrderID:     orderID,
		PhoneNumber: phone,
		Rating:      rating,
		Comment:     comment,
	})
	if err != nil || !inserted {
		return inserted, err
	}

	co.publish(orders.TopicReviewReceived, orders.EventReviewReceived, orderID, orders.ReviewReceivedPayload{
		OrderID: orderID,
		Rating:  rating,
		Comment: comment,
	})
	return true, nil
}

// notify sends via WhatsApp and falls back to SMS; payment outcomes must reach
// the customer on some channel.
func (co *Coordinator) notify(ctx context.Context, phone, message string) {
	err := co.WA.SendText(ctx, phone, message)
	if err == nil {
		return
	}
	log.Printf("whatsapp notify %s: %v", phone, err)
	if co.SMS == nil {
		return
	}
	if err := co.SMS.Send(ctx, phone, message); err != nil {
		log.Printf("sms notify %s: %v", phone, err)
	}
}

func (co *Coordinator) publish(topic, eventType string, orderID int64, payload any) {
	if co.Bus == nil {
		return
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      co.ServiceName,
		CorrelationID: fmt.Sprintf("%d", orderID),
		Payload:       kafka.MustMarshal(payload),
	}
	co.Bus.PublishTo(topic, orders.PartitionKey(orderID), kafka.MustMarshal(env),
		kafkago.Header{Key: "event_type", Value: []byte(eventType)})
}

func orEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
