package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Homeboy20/kwetupizza-bot/internal/convo"
	"github.com/Homeboy20/kwetupizza-bot/internal/orders"
	"github.com/Homeboy20/kwetupizza-bot/internal/payment"
	"github.com/Homeboy20/kwetupizza-bot/internal/wa"
)

const maxQuantity = 50

func (e *Engine) greet(ctx context.Context, phone string, c *convo.Context) error {
	hello := fmt.Sprintf("👋 Welcome to %s!", e.BusinessName)
	if c.Greeted {
		hello = fmt.Sprintf("👋 Welcome back to %s!", e.BusinessName)
	}
	c.Greeted = true
	c.Awaiting = convo.StateMenuOrOrder
	if err := e.Store.Set(ctx, phone, *c); err != nil {
		return err
	}
	return e.WA.SendButtons(ctx, phone, hello+"\nWhat would you like to do?",
		[]wa.Button{
			{ID: "menu_btn", Title: "🍕 See Menu"},
			{ID: "track_btn", Title: "📦 Track Order"},
			{ID: "help_btn", Title: "❓ Help"},
		})
}

func (e *Engine) sendMenu(ctx context.Context, phone string, c *convo.Context) error {
	text, err := e.Menu.MenuText(ctx)
	if err != nil {
		return err
	}
	c.Awaiting = convo.StateMenuSelection
	if err := e.Store.Set(ctx, phone, *c); err != nil {
		return err
	}
	return e.WA.SendText(ctx, phone, text)
}

func (e *Engine) handleMenuOrOrder(ctx context.Context, phone string, c *convo.Context, lower string) error {
	switch lower {
	case "1", "order", "menu":
		return e.sendMenu(ctx, phone, c)
	case "2", "track":
		return e.WA.SendText(ctx, phone, "Sure - type 'track' followed by your order number, e.g. 'track 123'.")
	default:
		return e.WA.SendButtons(ctx, phone, "Sorry, I didn't get that. Pick an option below.",
			[]wa.Button{
				{ID: "menu_btn", Title: "🍕 See Menu"},
				{ID: "track_btn", Title: "📦 Track Order"},
				{ID: "help_btn", Title: "❓ Help"},
			})
	}
}

func (e *Engine) handleMenuSelection(ctx context.Context, phone string, c *convo.Context, token string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
	if err != nil || id <= 0 {
		return e.WA.SendText(ctx, phone, "Please type just the number of the item you'd like, e.g. '1'.")
	}

	p, err := e.Menu.Product(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		return e.WA.SendText(ctx, phone, fmt.Sprintf("Item %d isn't on the menu. Pick a number from the list above.", id))
	}
	if err != nil {
		return err
	}

	c.SelectedProduct = p.ID
	c.Awaiting = convo.StateQuantity
	if err := e.Store.Set(ctx, phone, *c); err != nil {
		return err
	}
	return e.WA.SendText(ctx, phone,
		fmt.Sprintf("Great choice! *%s* - %s %s.\nHow many would you like?", p.Name, orders.FormatAmount(p.PriceCents), e.Currency))
}

func (e *Engine) handleQuantity(ctx context.Context, phone string, c *convo.Context, token string) error {
	qty, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil || qty < 1 || qty > maxQuantity {
		return e.WA.SendText(ctx, phone, fmt.Sprintf("Please reply with a quantity between 1 and %d.", maxQuantity))
	}

	p, err := e.Menu.Product(ctx, c.SelectedProduct)
	if err != nil {
		return err
	}

	c.AddLine(convo.CartLine{
		ProductID:  p.ID,
		Name:       p.Name,
		PriceCents: p.PriceCents,
		Quantity:   qty,
	})
	c.SelectedProduct = 0
	c.Awaiting = convo.StateSpecialInstructions
	if err := e.Store.Set(ctx, phone, *c); err != nil {
		return err
	}
	return e.WA.SendText(ctx, phone,
		fmt.Sprintf("Added %dx %s 🛒\nAny special instructions for it? Type them, or 'no' to skip.", qty, p.Name))
}

func (e *Engine) handleSpecialInstructions(ctx context.Context, phone string, c *convo.Context, token string) error {
	note := strings.TrimSpace(token)
	switch strings.ToLower(note) {
	case "no", "none", "skip", "n":
		note = ""
	}
	if note != "" && len(c.Cart) > 0 {
		c.Cart[len(c.Cart)-1].Note = note
	}
	return e.sendCartSummaryAndAsk(ctx, phone, c)
}

func (e *Engine) sendCartSummaryAndAsk(ctx context.Context, phone string, c *convo.Context) error {
	c.Awaiting = convo.StateAddOrCheckout
	if err := e.Store.Set(ctx, phone, *c); err != nil {
		return err
	}
	return e.sendCartSummary(ctx, phone, c)
}

func (e *Engine) sendCartSummary(ctx context.Context, phone string, c *convo.Context) error {
	var b strings.Builder
	b.WriteString("🛒 *Your order so far:*\n")
	for _, l := range c.Cart {
		fmt.Fprintf(&b, "• %dx %s - %s %s", l.Quantity, l.Name, orders.FormatAmount(l.TotalCents()), e.Currency)
		if l.Note != "" {
			fmt.Fprintf(&b, " (%s)", l.Note)
		}
		b.WriteString("\n")
	}
	total := c.CartTotalCents() + c.PremiumTotalCents()
	if e.ServiceFeeCents > 0 {
		fmt.Fprintf(&b, "• %s - %s %s\n", e.ServiceFeeLabel, orders.FormatAmount(e.ServiceFeeCents), e.Currency)
		total += e.ServiceFeeCents
	}
	for _, p := range c.Premium {
		fmt.Fprintf(&b, "• %s - %s %s\n", p.Label, orders.FormatAmount(p.FeeCents), e.Currency)
	}
	fmt.Fprintf(&b, "\n*Total: %s %s*", orders.FormatAmount(total), e.Currency)

	return e.WA.SendButtons(ctx, phone, b.String(),
		[]wa.Button{
			{ID: "add_more_btn", Title: "➕ Add More"},
			{ID: "checkout_btn", Title: "✅ Checkout"},
			{ID: "clear_btn", Title: "🗑️ Clear Cart"},
		})
}

func (e *Engine) handleAddOrCheckout(ctx context.Context, phone string, c *convo.Context, lower string) error {
	switch lower {
	case "add", "add more", "more":
		return e.sendMenu(ctx, phone, c)
	case "checkout", "done", "pay":
		if len(c.Cart) == 0 {
			return e.sendMenu(ctx, phone, c)
		}
		return e.promptAddressAndWait(ctx, phone, c)
	case "clear":
		c.Cart = nil
		c.Premium = nil
		if err := e.WA.SendText(ctx, phone, "Cart cleared. Let's start again!"); err != nil {
			return err
		}
		return e.sendMenu(ctx, phone, c)
	default:
		return e.sendCartSummary(ctx, phone, c)
	}
}

func (e *Engine) promptAddressAndWait(ctx context.Context, phone string, c *convo.Context) error {
	// Surface up to three saved addresses as one-tap buttons.
	if addrs, err := e.Orders.ListAddresses(ctx, phone, 3); err == nil && len(addrs) > 0 {
		c.SavedAddresses = c.SavedAddresses[:0]
		for _, a := range addrs {
			c.SavedAddresses = append(c.SavedAddresses, convo.SavedAddress{ID: a.ID, Address: a.Address})
		}
	}
	c.Awaiting = convo.StateAddressInput
	if err := e.Store.Set(ctx, phone, *c); err != nil {
		return err
	}
	return e.promptAddress(ctx, phone, c)
}

func (e *Engine) promptAddress(ctx context.Context, phone string, c *convo.Context) error {
	if len(c.SavedAddresses) == 0 {
		return e.WA.SendText(ctx, phone, "📍 Where should we deliver? Please type your delivery address.")
	}
	buttons := make([]wa.Button, 0, 3)
	for _, a := range c.SavedAddresses {
		title := a.Address
		if len(title) > 20 {
			title = title[:20]
		}
		buttons = append(buttons, wa.Button{ID: fmt.Sprintf("address_%d", a.ID), Title: title})
	}
	return e.WA.SendButtons(ctx, phone, "📍 Where should we deliver? Tap a saved address or type a new one.", buttons)
}

func (e *Engine) handleAddressInput(ctx context.Context, phone string, c *convo.Context, token string) error {
	address := strings.TrimSpace(token)

	if id, ok := strings.CutPrefix(token, "address_"); ok {
		addrID, err := strconv.ParseInt(id, 10, 64)
		if err == nil {
			for _, a := range c.SavedAddresses {
				if a.ID == addrID {
					address = a.Address
					break
				}
			}
		}
		if address == token {
			return e.promptAddress(ctx, phone, c)
		}
	} else {
		if len(address) < 5 {
			return e.WA.SendText(ctx, phone, "That address looks too short. Please type the full delivery address.")
		}
		if err := e.Orders.SaveAddress(ctx, phone, address, phone); err != nil {
			// Not fatal; the order still carries the address.
			return e.continueToProvider(ctx, phone, c, address)
		}
	}
	return e.continueToProvider(ctx, phone, c, address)
}

func (e *Engine) continueToProvider(ctx context.Context, phone string, c *convo.Context, address string) error {
	c.Address = address
	c.Awaiting = convo.StatePaymentProvider
	if err := e.Store.Set(ctx, phone, *c); err != nil {
		return err
	}
	return e.promptProvider(ctx, phone)
}

func (e *Engine) promptProvider(ctx context.Context, phone string) error {
	return e.WA.SendButtons(ctx, phone,
		"💳 How would you like to pay?\n1. M-Pesa\n2. Tigo Pesa\n3. Airtel Money\n4. Cash on delivery\n\nTap a button or reply with a number.",
		[]wa.Button{
			{ID: "mpesa_btn", Title: "M-Pesa"},
			{ID: "tigopesa_btn", Title: "Tigo Pesa"},
			{ID: "cash_btn", Title: "💵 Cash"},
		})
}

func (e *Engine) handlePaymentProvider(ctx context.Context, phone string, c *convo.Context, token string) error {
	provider, ok := providerFor(token)
	if !ok {
		return e.promptProvider(ctx, phone)
	}
	c.PaymentProvider = provider

	if provider == payment.ProviderCash {
		return e.placeOrder(ctx, phone, c)
	}

	c.Awaiting = convo.StateUseWhatsAppNumber
	if err := e.Store.Set(ctx, phone, *c); err != nil {
		return err
	}
	return e.promptUseWhatsAppNumber(ctx, phone)
}

func (e *Engine) promptUseWhatsAppNumber(ctx context.Context, phone string) error {
	return e.WA.SendButtons(ctx, phone,
		"Should we send the payment prompt to this WhatsApp number?",
		[]wa.Button{
			{ID: "yes_btn", Title: "✅ Yes"},
			{ID: "no_btn", Title: "📱 Use another"},
		})
}

func (e *Engine) handleUseWhatsAppNumber(ctx context.Context, phone string, c *convo.Context, lower string) error {
	switch lower {
	case "yes", "y", "yeah", "ndio":
		c.PaymentPhone = phone
		return e.placeOrder(ctx, phone, c)
	case "no", "n", "hapana":
		c.Awaiting = convo.StatePaymentPhoneInput
		if err := e.Store.Set(ctx, phone, *c); err != nil {
			return err
		}
		return e.WA.SendText(ctx, phone, "Please type the phone number to charge (e.g. 0712345678).")
	default:
		return e.promptUseWhatsAppNumber(ctx, phone)
	}
}

func (e *Engine) handlePaymentPhone(ctx context.Context, phone string, c *convo.Context, token string) error {
	if !ValidPayPhone(token) {
		return e.WA.SendText(ctx, phone, "That number doesn't look right. Please type it like 0712345678.")
	}
	c.PaymentPhone = NormalizePhone(token)
	return e.placeOrder(ctx, phone, c)
}

// placeOrder hands the completed checkout to the coordinator and resets the
// conversation. The payment outcome arrives asynchronously.
func (e *Engine) placeOrder(ctx context.Context, phone string, c *convo.Context) error {
	orderID, err := e.Checkout.CreateOrder(ctx, payment.CheckoutInput{
		Phone:           phone,
		Address:         c.Address,
		DeliveryPhone:   phone,
		Provider:        c.PaymentProvider,
		Lines:           c.Cart,
		ServiceFeeCents: e.ServiceFeeCents,
		PremiumCents:    c.PremiumTotalCents(),
	})
	if errors.Is(err, payment.ErrIncompleteCheckout) {
		if err := e.WA.SendText(ctx, phone, "Something went missing from your order. Let's start again - type 'menu'."); err != nil {
			return err
		}
		return e.Store.Reset(ctx, phone)
	}
	if err != nil {
		return err
	}

	total := c.CartTotalCents() + c.PremiumTotalCents() + e.ServiceFeeCents
	msg := fmt.Sprintf("🎉 Order #%d placed! Total: %s %s.", orderID, orders.FormatAmount(total), e.Currency)
	if c.PaymentProvider == payment.ProviderCash {
		msg += "\n💵 Pay cash on delivery. We'll start preparing right away!"
	}
	if err := e.WA.SendText(ctx, phone, msg); err != nil {
		return err
	}

	provider, payPhone := c.PaymentProvider, c.PaymentPhone

	fresh := convo.Default()
	fresh.Greeted = true
	*c = fresh
	if err := e.Store.Set(ctx, phone, *c); err != nil {
		return err
	}

	if err := e.Checkout.InitiatePayment(ctx, orderID, provider, payPhone); err != nil {
		// The customer was already told; surface for the logs.
		return fmt.Errorf("order %d: %w", orderID, err)
	}
	return nil
}
