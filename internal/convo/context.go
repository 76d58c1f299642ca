// Package convo holds the per-customer conversation state and its store. The
// context is persisted as a versioned JSON document on the customer row.
package convo

import (
	"encoding/json"
	"fmt"
	"time"
)

// State names the next input the conversation expects. The set is closed; the
// engine dispatches exhaustively over it.
type State string

const (
	StateNone                State = ""
	StateMenuOrOrder         State = "menu_or_order"
	StateMenuSelection       State = "menu_selection"
	StateQuantity            State = "quantity"
	StateSpecialInstructions State = "special_instructions"
	StateAddOrCheckout       State = "add_or_checkout"
	StateAddressInput        State = "address_input"
	StatePaymentProvider     State = "payment_provider"
	StateUseWhatsAppNumber   State = "use_whatsapp_number"
	StatePaymentPhoneInput   State = "payment_phone_input"
	StateReview              State = "review"
	StateReviewComment       State = "review_comment"
	StatePremiumOption       State = "premium_option"
)

var knownStates = map[State]bool{
	StateNone: true, StateMenuOrOrder: true, StateMenuSelection: true,
	StateQuantity: true, StateSpecialInstructions: true, StateAddOrCheckout: true,
	StateAddressInput: true, StatePaymentProvider: true, StateUseWhatsAppNumber: true,
	StatePaymentPhoneInput: true, StateReview: true, StateReviewComment: true,
	StatePremiumOption: true,
}

func (s State) Valid() bool { return knownStates[s] }

// SchemaVersion is bumped whenever the Context shape changes incompatibly;
// DecodeContext migrates older documents forward.
const SchemaVersion = 1

type CartLine struct {
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
	Note       string `json:"note,omitempty"`
}

func (l CartLine) TotalCents() int64 { return l.PriceCents * int64(l.Quantity) }

type PremiumSelection struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	FeeCents int64  `json:"fee_cents"`
}

type SavedAddress struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
}

type Context struct {
	SchemaVersion   int                `json:"schema_version"`
	Awaiting        State              `json:"awaiting"`
	Greeted         bool               `json:"greeted"`
	Cart            []CartLine         `json:"cart"`
	Address         string             `json:"address,omitempty"`
	PaymentProvider string             `json:"payment_provider,omitempty"`
	PaymentPhone    string             `json:"payment_phone,omitempty"`
	SelectedProduct int64              `json:"selected_product,omitempty"`
	ReviewOrderID   int64              `json:"review_order_id,omitempty"`
	ReviewRating    int                `json:"review_rating,omitempty"`
	TotalCents      int64              `json:"total_cents,omitempty"`
	ServiceFeeCents int64              `json:"service_fee_cents,omitempty"`
	Premium         []PremiumSelection `json:"premium_selections,omitempty"`
	SavedAddresses  []SavedAddress     `json:"saved_addresses,omitempty"`
	LastActivity    time.Time          `json:"last_activity"`
}

func Default() Context {
	return Context{
		SchemaVersion: SchemaVersion,
		LastActivity:  time.Now().UTC(),
	}
}

// AddLine appends the line, or bumps the quantity in place when the product is
// already in the cart.
func (c *Context) AddLine(line CartLine) {
	for i := range c.Cart {
		if c.Cart[i].ProductID == line.ProductID {
			c.Cart[i].Quantity += line.Quantity
			if line.Note != "" {
				c.Cart[i].Note = line.Note
			}
			return
		}
	}
	c.Cart = append(c.Cart, line)
}

// CartTotalCents is the sum of line totals, before service fee and premium
// options.
func (c *Context) CartTotalCents() int64 {
	var total int64
	for _, l := range c.Cart {
		total += l.TotalCents()
	}
	return total
}

func (c *Context) PremiumTotalCents() int64 {
	var total int64
	for _, p := range c.Premium {
		total += p.FeeCents
	}
	return total
}

func EncodeContext(c Context) ([]byte, error) {
	c.SchemaVersion = SchemaVersion
	return json.Marshal(c)
}

// DecodeContext parses a stored document, migrating older schema versions.
// Version 0 documents predate the versioned shape; the fields that parse are
// kept and the rest default.
func DecodeContext(b []byte) (Context, error) {
	if len(b) == 0 || string(b) == "{}" {
		return Default(), nil
	}
	var c Context
	if err := json.Unmarshal(b, &c); err != nil {
		return Context{}, fmt.Errorf("decode context: %w", err)
	}
	if c.SchemaVersion == 0 {
		c.SchemaVersion = SchemaVersion
	}
	if !c.Awaiting.Valid() {
		c.Awaiting = StateNone
	}
	if c.LastActivity.IsZero() {
		c.LastActivity = time.Now().UTC()
	}
	return c, nil
}
