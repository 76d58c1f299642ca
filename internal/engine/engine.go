// Package engine drives the WhatsApp ordering conversation: one inbound
// message in, the context's awaiting state decides the handler, and the
// handler replies and moves the state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/Homeboy20/kwetupizza-bot/internal/convo"
	"github.com/Homeboy20/kwetupizza-bot/internal/orders"
	"github.com/Homeboy20/kwetupizza-bot/internal/payment"
	"github.com/Homeboy20/kwetupizza-bot/internal/wa"
)

type ContextStore interface {
	Get(ctx context.Context, phone string) (convo.Context, error)
	Set(ctx context.Context, phone string, c convo.Context) error
	Reset(ctx context.Context, phone string) error
	Backup(ctx context.Context, phone string, c convo.Context) error
	RestoreBackup(ctx context.Context, phone string) (convo.Context, bool, error)
}

type Menu interface {
	MenuText(ctx context.Context) (string, error)
	Product(ctx context.Context, id int64) (orders.Product, error)
}

type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	SendButtons(ctx context.Context, to, body string, buttons []wa.Button) error
}

type Checkout interface {
	CreateOrder(ctx context.Context, in payment.CheckoutInput) (int64, error)
	InitiatePayment(ctx context.Context, orderID int64, provider, payPhone string) error
	SubmitReview(ctx context.Context, orderID int64, phone string, rating int, comment string) (bool, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, id int64) (orders.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]orders.OrderItem, error)
	ListAddresses(ctx context.Context, phone string, limit int) ([]orders.Address, error)
	SaveAddress(ctx context.Context, phone, address, deliveryPhone string) error
}

type PremiumOption struct {
	Key      string
	Label    string
	FeeCents int64
}

func DefaultPremiumOptions() []PremiumOption {
	return []PremiumOption{
		{Key: "express", Label: "🚀 Express delivery", FeeCents: 200000},
		{Key: "priority", Label: "👨‍🍳 Priority preparation", FeeCents: 100000},
		{Key: "gift", Label: "🎁 Gift wrapping", FeeCents: 150000},
	}
}

// Inbound is one customer message, already extracted from the webhook payload.
type Inbound struct {
	Phone     string
	Text      string
	ButtonID  string
	MessageID string
}

type Engine struct {
	Store    ContextStore
	Menu     Menu
	WA       Messenger
	Checkout Checkout
	Orders   OrderReader

	BusinessName  string
	Currency      string
	SupportNumber string
	PublicURL     string

	InactivityTimeout time.Duration
	ServiceFeeCents   int64
	ServiceFeeLabel   string
	Premium           []PremiumOption

	// Now is replaceable in tests; zero value means time.Now.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// HandleMessage processes one inbound message end to end. Errors returned here
// are infrastructure failures; conversational mistakes are answered in-band.
func (e *Engine) HandleMessage(ctx context.Context, in Inbound) error {
	c, err := e.Store.Get(ctx, in.Phone)
	if err != nil {
		return err
	}

	token := CanonicalInput(in.ButtonID, in.Text)
	lower := strings.ToLower(token)

	// Stale sessions reset before anything else; 'continue' is the one way
	// back in. The message that woke the stale session is still handled
	// below, against the fresh context.
	if c.Awaiting != convo.StateNone && e.now().Sub(c.LastActivity) > e.InactivityTimeout {
		if err := e.Store.Backup(ctx, in.Phone, c); err != nil {
			log.Printf("context backup %s: %v", in.Phone, err)
		}
		if err := e.Store.Reset(ctx, in.Phone); err != nil {
			return err
		}
		if lower == "continue" {
			return e.handleContinue(ctx, in.Phone)
		}
		if err := e.WA.SendText(ctx, in.Phone,
			"⏰ Your session timed out after a few minutes of inactivity. Type 'continue' to pick up where you left off."); err != nil {
			return err
		}
		fresh := convo.Default()
		fresh.Greeted = c.Greeted
		c = fresh
	}

	if handled, err := e.handleOverride(ctx, in.Phone, &c, lower); handled || err != nil {
		return err
	}

	switch c.Awaiting {
	case convo.StateNone:
		return e.greet(ctx, in.Phone, &c)
	case convo.StateMenuOrOrder:
		return e.handleMenuOrOrder(ctx, in.Phone, &c, lower)
	case convo.StateMenuSelection:
		return e.handleMenuSelection(ctx, in.Phone, &c, token)
	case convo.StateQuantity:
		return e.handleQuantity(ctx, in.Phone, &c, token)
	case convo.StateSpecialInstructions:
		return e.handleSpecialInstructions(ctx, in.Phone, &c, token)
	case convo.StateAddOrCheckout:
		return e.handleAddOrCheckout(ctx, in.Phone, &c, lower)
	case convo.StateAddressInput:
		return e.handleAddressInput(ctx, in.Phone, &c, token)
	case convo.StatePaymentProvider:
		return e.handlePaymentProvider(ctx, in.Phone, &c, token)
	case convo.StateUseWhatsAppNumber:
		return e.handleUseWhatsAppNumber(ctx, in.Phone, &c, lower)
	case convo.StatePaymentPhoneInput:
		return e.handlePaymentPhone(ctx, in.Phone, &c, token)
	case convo.StateReview:
		return e.handleReview(ctx, in.Phone, &c, token)
	case convo.StateReviewComment:
		return e.handleReviewComment(ctx, in.Phone, &c, token)
	case convo.StatePremiumOption:
		return e.handlePremiumOption(ctx, in.Phone, &c, lower)
	}

	// Unknown state from an old document; start over cleanly.
	return e.greet(ctx, in.Phone, &c)
}

// handleOverride catches the commands that work from any state.
func (e *Engine) handleOverride(ctx context.Context, phone string, c *convo.Context, lower string) (bool, error) {
	switch {
	case lower == "reset" || lower == "cancel":
		if err := e.Store.Reset(ctx, phone); err != nil {
			return true, err
		}
		fresh := convo.Default()
		fresh.Greeted = c.Greeted
		*c = fresh
		return true, e.greet(ctx, phone, c)

	case lower == "continue":
		return true, e.handleContinue(ctx, phone)

	case lower == "track" || strings.HasPrefix(lower, "track "):
		return true, e.handleTrack(ctx, phone, strings.TrimSpace(strings.TrimPrefix(lower, "track")))

	case lower == "help":
		return true, e.sendHelp(ctx, phone)

	case lower == "premium":
		return true, e.promptPremium(ctx, phone, c)

	case lower == "menu":
		return true, e.sendMenu(ctx, phone, c)
	}
	return false, nil
}

func (e *Engine) handleContinue(ctx context.Context, phone string) error {
	c, ok, err := e.Store.RestoreBackup(ctx, phone)
	if err != nil {
		return err
	}
	if !ok {
		if err := e.WA.SendText(ctx, phone, "There's no saved session to continue. Let's start fresh!"); err != nil {
			return err
		}
		fresh := convo.Default()
		return e.greet(ctx, phone, &fresh)
	}
	if err := e.WA.SendText(ctx, phone, "👍 Welcome back! Picking up right where you left off."); err != nil {
		return err
	}
	return e.reprompt(ctx, phone, &c)
}

// reprompt re-asks the question for the context's current state after a
// restore.
func (e *Engine) reprompt(ctx context.Context, phone string, c *convo.Context) error {
	switch c.Awaiting {
	case convo.StateMenuSelection:
		return e.sendMenu(ctx, phone, c)
	case convo.StateQuantity:
		return e.WA.SendText(ctx, phone, "How many would you like?")
	case convo.StateSpecialInstructions:
		return e.WA.SendText(ctx, phone, "Any special instructions? Type them, or 'no' to skip.")
	case convo.StateAddOrCheckout:
		return e.sendCartSummary(ctx, phone, c)
	case convo.StateAddressInput:
		return e.promptAddress(ctx, phone, c)
	case convo.StatePaymentProvider:
		return e.promptProvider(ctx, phone)
	case convo.StateUseWhatsAppNumber:
		return e.promptUseWhatsAppNumber(ctx, phone)
	case convo.StatePaymentPhoneInput:
		return e.WA.SendText(ctx, phone, "Please type the phone number to charge (e.g. 0712345678).")
	case convo.StateReview:
		return e.WA.SendText(ctx, phone, fmt.Sprintf("How was your order #%d? Rate it from 1 to 5.", c.ReviewOrderID))
	case convo.StateReviewComment:
		return e.WA.SendText(ctx, phone, "Tell us what went wrong, or type 'skip'.")
	case convo.StatePremiumOption:
		return e.promptPremium(ctx, phone, c)
	}
	return e.greet(ctx, phone, c)
}

func (e *Engine) sendHelp(ctx context.Context, phone string) error {
	return e.WA.SendText(ctx, phone, fmt.Sprintf(
		"ℹ️ *%s help*\n\n"+
			"• 'menu' - browse and order\n"+
			"• 'track <order number>' - check an order\n"+
			"• 'continue' - resume a timed-out session\n"+
			"• 'reset' - start over\n"+
			"• 'premium' - delivery extras\n\n"+
			"Need a human? Call us on %s.",
		e.BusinessName, e.SupportNumber))
}

func (e *Engine) handleTrack(ctx context.Context, phone, arg string) error {
	if arg == "" {
		return e.WA.SendText(ctx, phone, "Please include the order number, e.g. 'track 123'.")
	}
	orderID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || orderID <= 0 {
		return e.WA.SendText(ctx, phone, "That doesn't look like an order number. Try 'track 123'.")
	}

	order, err := e.Orders.GetOrder(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		return e.WA.SendText(ctx, phone, fmt.Sprintf("We couldn't find order #%d. Double-check the number?", orderID))
	}
	if err != nil {
		return err
	}
	if !PhoneMatches(order.CustomerPhone, phone) {
		return e.WA.SendText(ctx, phone, fmt.Sprintf("We couldn't find order #%d. Double-check the number?", orderID))
	}

	items, err := e.Orders.GetOrderItems(ctx, orderID)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *Order #%d* is %s\n\n", order.Status.Emoji(), order.ID, order.Status)
	for _, it := range items {
		fmt.Fprintf(&b, "• %dx %s\n", it.Quantity, it.Name)
	}
	fmt.Fprintf(&b, "\n📍 %s\n💵 %s %s", order.DeliveryAddress, orders.FormatAmount(order.TotalCents), order.Currency)
	if e.PublicURL != "" {
		fmt.Fprintf(&b, "\n🔗 %s/order-status/%d", strings.TrimRight(e.PublicURL, "/"), order.ID)
	}
	return e.WA.SendText(ctx, phone, b.String())
}
