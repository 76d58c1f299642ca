package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Homeboy20/kwetupizza-bot/internal/convo"
	"github.com/Homeboy20/kwetupizza-bot/internal/orders"
	"github.com/Homeboy20/kwetupizza-bot/internal/payment"
	"github.com/Homeboy20/kwetupizza-bot/internal/wa"
)

type fakeStore struct {
	contexts map[string]convo.Context
	backups  map[string]convo.Context
}

func newFakeStore() *fakeStore {
	return &fakeStore{contexts: map[string]convo.Context{}, backups: map[string]convo.Context{}}
}

func (s *fakeStore) Get(_ context.Context, phone string) (convo.Context, error) {
	if c, ok := s.contexts[phone]; ok {
		return c, nil
	}
	return convo.Default(), nil
}

func (s *fakeStore) Set(_ context.Context, phone string, c convo.Context) error {
	c.LastActivity = time.Now().UTC()
	s.contexts[phone] = c
	return nil
}

func (s *fakeStore) Reset(ctx context.Context, phone string) error {
	return s.Set(ctx, phone, convo.Default())
}

func (s *fakeStore) Backup(_ context.Context, phone string, c convo.Context) error {
	s.backups[phone] = c
	return nil
}

func (s *fakeStore) RestoreBackup(ctx context.Context, phone string) (convo.Context, bool, error) {
	c, ok := s.backups[phone]
	if !ok {
		return convo.Context{}, false, nil
	}
	return c, true, s.Set(ctx, phone, c)
}

type fakeMenu struct{ products map[int64]orders.Product }

func (m *fakeMenu) MenuText(context.Context) (string, error) { return "MENU", nil }

func (m *fakeMenu) Product(_ context.Context, id int64) (orders.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return orders.Product{}, orders.ErrNotFound
	}
	return p, nil
}

type fakeWA struct {
	texts   []string
	buttons [][]wa.Button
}

func (f *fakeWA) SendText(_ context.Context, _, body string) error {
	f.texts = append(f.texts, body)
	return nil
}

func (f *fakeWA) SendButtons(_ context.Context, _, body string, bs []wa.Button) error {
	f.texts = append(f.texts, body)
	f.buttons = append(f.buttons, bs)
	return nil
}

func (f *fakeWA) last() string {
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type initiated struct {
	orderID  int64
	provider string
	payPhone string
}

type submittedReview struct {
	orderID int64
	rating  int
	comment string
}

type fakeCheckout struct {
	nextOrderID int64
	created     []payment.CheckoutInput
	initiations []initiated
	reviews     []submittedReview
}

func (f *fakeCheckout) CreateOrder(_ context.Context, in payment.CheckoutInput) (int64, error) {
	if in.Phone == "" || in.Address == "" || in.Provider == "" || len(in.Lines) == 0 {
		return 0, payment.ErrIncompleteCheckout
	}
	f.created = append(f.created, in)
	f.nextOrderID++
	return f.nextOrderID, nil
}

func (f *fakeCheckout) InitiatePayment(_ context.Context, orderID int64, provider, payPhone string) error {
	f.initiations = append(f.initiations, initiated{orderID, provider, payPhone})
	return nil
}

func (f *fakeCheckout) SubmitReview(_ context.Context, orderID int64, _ string, rating int, comment string) (bool, error) {
	for _, r := range f.reviews {
		if r.orderID == orderID {
			return false, nil
		}
	}
	f.reviews = append(f.reviews, submittedReview{orderID, rating, comment})
	return true, nil
}

type fakeOrders struct {
	orders map[int64]orders.Order
	items  map[int64][]orders.OrderItem
	addrs  []orders.Address
}

func (f *fakeOrders) GetOrder(_ context.Context, id int64) (orders.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrders) GetOrderItems(_ context.Context, id int64) ([]orders.OrderItem, error) {
	return f.items[id], nil
}

func (f *fakeOrders) ListAddresses(_ context.Context, _ string, limit int) ([]orders.Address, error) {
	if len(f.addrs) > limit {
		return f.addrs[:limit], nil
	}
	return f.addrs, nil
}

func (f *fakeOrders) SaveAddress(_ context.Context, _, address, phone string) error {
	f.addrs = append(f.addrs, orders.Address{ID: int64(len(f.addrs) + 1), Address: address, PhoneNumber: phone})
	return nil
}

type fixture struct {
	eng      *Engine
	store    *fakeStore
	wa       *fakeWA
	checkout *fakeCheckout
	orders   *fakeOrders
}

func newFixture() *fixture {
	f := &fixture{
		store:    newFakeStore(),
		wa:       &fakeWA{},
		checkout: &fakeCheckout{},
		orders:   &fakeOrders{orders: map[int64]orders.Order{}, items: map[int64][]orders.OrderItem{}},
	}
	f.eng = &Engine{
		Store: f.store,
		Menu: &fakeMenu{products: map[int64]orders.Product{
			1: {ID: 1, Name: "Margherita", PriceCents: 1500000},
			2: {ID: 2, Name: "Cola", PriceCents: 200000},
		}},
		WA:                f.wa,
		Checkout:          f.checkout,
		Orders:            f.orders,
		BusinessName:      "KwetuPizza",
		Currency:          "TZS",
		SupportNumber:     "0712000000",
		PublicURL:         "https://bot.kwetupizza.com",
		InactivityTimeout: 3 * time.Minute,
		ServiceFeeCents:   50000,
		ServiceFeeLabel:   "Service Fee",
		Premium:           DefaultPremiumOptions(),
	}
	return f
}

func (f *fixture) say(t *testing.T, phone, text string) {
	t.Helper()
	require.NoError(t, f.eng.HandleMessage(context.Background(), Inbound{Phone: phone, Text: text, MessageID: "m"}))
}

func (f *fixture) tap(t *testing.T, phone, buttonID string) {
	t.Helper()
	require.NoError(t, f.eng.HandleMessage(context.Background(), Inbound{Phone: phone, ButtonID: buttonID, MessageID: "m"}))
}

func (f *fixture) state(phone string) convo.State {
	return f.store.contexts[phone].Awaiting
}

const phone = "255712345678"

func TestGreetingOnFirstContact(t *testing.T) {
	f := newFixture()
	f.say(t, phone, "hi")

	assert.Contains(t, f.wa.last(), "Welcome to KwetuPizza")
	assert.Equal(t, convo.StateMenuOrOrder, f.state(phone))
	require.Len(t, f.wa.buttons, 1)
	assert.Equal(t, "menu_btn", f.wa.buttons[0][0].ID)
}

func TestFullOrderingFlowMobileMoney(t *testing.T) {
	f := newFixture()

	f.say(t, phone, "hello")
	f.tap(t, phone, "menu_btn")
	assert.Equal(t, convo.StateMenuSelection, f.state(phone))
	assert.Equal(t, "MENU", f.wa.last())

	f.say(t, phone, "1")
	assert.Equal(t, convo.StateQuantity, f.state(phone))

	f.say(t, phone, "2")
	assert.Equal(t, convo.StateSpecialInstructions, f.state(phone))

	f.say(t, phone, "extra cheese")
	assert.Equal(t, convo.StateAddOrCheckout, f.state(phone))
	assert.Contains(t, f.wa.last(), "2x Margherita")
	assert.Contains(t, f.wa.last(), "extra cheese")
	assert.Contains(t, f.wa.last(), "Service Fee")

	f.tap(t, phone, "checkout_btn")
	assert.Equal(t, convo.StateAddressInput, f.state(phone))

	f.say(t, phone, "12 Uhuru Street, Dar es Salaam")
	assert.Equal(t, convo.StatePaymentProvider, f.state(phone))

	f.tap(t, phone, "mpesa_btn")
	assert.Equal(t, convo.StateUseWhatsAppNumber, f.state(phone))

	f.tap(t, phone, "yes_btn")

	require.Len(t, f.checkout.created, 1)
	in := f.checkout.created[0]
	assert.Equal(t, "mpesa", in.Provider)
	assert.Equal(t, "12 Uhuru Street, Dar es Salaam", in.Address)
	require.Len(t, in.Lines, 1)
	assert.Equal(t, 2, in.Lines[0].Quantity)
	assert.Equal(t, "extra cheese", in.Lines[0].Note)
	assert.Equal(t, int64(50000), in.ServiceFeeCents)

	require.Len(t, f.checkout.initiations, 1)
	assert.Equal(t, initiated{1, "mpesa", phone}, f.checkout.initiations[0])

	// The conversation resets once the order is in flight.
	assert.Equal(t, convo.StateNone, f.state(phone))
	assert.True(t, f.store.contexts[phone].Greeted)
	assert.Empty(t, f.store.contexts[phone].Cart)
}

func TestCashSkipsPaymentPhone(t *testing.T) {
	f := newFixture()
	c := convo.Default()
	c.Awaiting = convo.StatePaymentProvider
	c.Address = "Mikocheni B"
	c.Cart = []convo.CartLine{{ProductID: 2, Name: "Cola", PriceCents: 200000, Quantity: 1}}
	require.NoError(t, f.store.Set(context.Background(), phone, c))

	f.say(t, phone, "4")

	require.Len(t, f.checkout.initiations, 1)
	assert.Equal(t, "cash", f.checkout.initiations[0].provider)
	assert.Contains(t, f.wa.last(), "Order #1 placed")
	assert.Contains(t, f.wa.last(), "cash on delivery")
}

func TestAlternatePaymentNumber(t *testing.T) {
	f := newFixture()
	c := convo.Default()
	c.Awaiting = convo.StateUseWhatsAppNumber
	c.Address = "Mikocheni B"
	c.PaymentProvider = "tigopesa"
	c.Cart = []convo.CartLine{{ProductID: 2, Name: "Cola", PriceCents: 200000, Quantity: 1}}
	require.NoError(t, f.store.Set(context.Background(), phone, c))

	f.tap(t, phone, "no_btn")
	assert.Equal(t, convo.StatePaymentPhoneInput, f.state(phone))

	f.say(t, phone, "not a number")
	assert.Contains(t, f.wa.last(), "doesn't look right")
	assert.Equal(t, convo.StatePaymentPhoneInput, f.state(phone))

	f.say(t, phone, "0754 111 222")
	require.Len(t, f.checkout.initiations, 1)
	assert.Equal(t, "255754111222", f.checkout.initiations[0].payPhone)
}

func TestUnknownMenuItemRepeatsPrompt(t *testing.T) {
	f := newFixture()
	c := convo.Default()
	c.Awaiting = convo.StateMenuSelection
	require.NoError(t, f.store.Set(context.Background(), phone, c))

	f.say(t, phone, "99")
	assert.Contains(t, f.wa.last(), "isn't on the menu")
	assert.Equal(t, convo.StateMenuSelection, f.state(phone))

	f.say(t, phone, "pizza please")
	assert.Contains(t, f.wa.last(), "just the number")
}

func TestTimeoutThenContinueRestores(t *testing.T) {
	f := newFixture()
	c := convo.Default()
	c.Awaiting = convo.StateQuantity
	c.SelectedProduct = 1
	c.Cart = []convo.CartLine{{ProductID: 2, Name: "Cola", PriceCents: 200000, Quantity: 1}}
	f.store.contexts[phone] = withLastActivity(c, time.Now().Add(-10*time.Minute))

	f.say(t, phone, "3")
	require.GreaterOrEqual(t, len(f.wa.texts), 2)
	assert.Contains(t, f.wa.texts[len(f.wa.texts)-2], "timed out")
	assert.Contains(t, f.wa.last(), "What would you like to do")
	assert.Equal(t, convo.StateMenuOrOrder, f.state(phone))
	require.Contains(t, f.store.backups, phone)

	f.say(t, phone, "continue")
	assert.Equal(t, convo.StateQuantity, f.state(phone))
	assert.Contains(t, f.wa.last(), "How many")
	assert.Len(t, f.store.contexts[phone].Cart, 1, "cart survives the round trip")
}

func TestTimeoutReprocessesTriggeringMessage(t *testing.T) {
	f := newFixture()
	c := convo.Default()
	c.Awaiting = convo.StatePaymentProvider
	c.Address = "Mikocheni B"
	c.Cart = []convo.CartLine{{ProductID: 1, Name: "Margherita", PriceCents: 1500000, Quantity: 1}}
	f.store.contexts[phone] = withLastActivity(c, time.Now().Add(-4*time.Minute))

	f.say(t, phone, "hello")

	// The notice goes out first, then the message is handled as a fresh
	// conversation.
	require.GreaterOrEqual(t, len(f.wa.texts), 2)
	assert.Contains(t, f.wa.texts[len(f.wa.texts)-2], "timed out")
	assert.Contains(t, f.wa.last(), "Welcome")
	assert.Equal(t, convo.StateMenuOrOrder, f.state(phone))
}

func TestContinueTypedDirectlyAfterTimeout(t *testing.T) {
	f := newFixture()
	c := convo.Default()
	c.Awaiting = convo.StateAddressInput
	c.Cart = []convo.CartLine{{ProductID: 1, Name: "Margherita", PriceCents: 1500000, Quantity: 1}}
	f.store.contexts[phone] = withLastActivity(c, time.Now().Add(-10*time.Minute))

	f.say(t, phone, "continue")
	assert.Equal(t, convo.StateAddressInput, f.state(phone))
	assert.Contains(t, f.wa.last(), "deliver")
}

func TestContinueWithNothingSaved(t *testing.T) {
	f := newFixture()
	f.say(t, phone, "continue")
	assert.Contains(t, strings.Join(f.wa.texts, "\n"), "no saved session")
	assert.Equal(t, convo.StateMenuOrOrder, f.state(phone))
}

func TestResetFromAnyState(t *testing.T) {
	f := newFixture()
	c := convo.Default()
	c.Awaiting = convo.StatePaymentPhoneInput
	c.Cart = []convo.CartLine{{ProductID: 1, Name: "Margherita", PriceCents: 1500000, Quantity: 1}}
	require.NoError(t, f.store.Set(context.Background(), phone, c))

	f.say(t, phone, "reset")
	assert.Empty(t, f.store.contexts[phone].Cart)
	assert.Equal(t, convo.StateMenuOrOrder, f.state(phone))
}

func TestTrackRequiresOwnership(t *testing.T) {
	f := newFixture()
	f.orders.orders[7] = orders.Order{
		ID: 7, CustomerPhone: "255799999999", Status: orders.StatusProcessing,
		DeliveryAddress: "Somewhere", TotalCents: 1500000, Currency: "TZS",
	}

	f.say(t, phone, "track 7")
	assert.Contains(t, f.wa.last(), "couldn't find order #7")
}

func TestTrackMatchesTrailingDigits(t *testing.T) {
	f := newFixture()
	// Stored with a leading zero, asked from the 255 form of the same number.
	f.orders.orders[7] = orders.Order{
		ID: 7, CustomerPhone: "0712345678", Status: orders.StatusProcessing,
		DeliveryAddress: "Mikocheni B", TotalCents: 1500000, Currency: "TZS",
	}
	f.orders.items[7] = []orders.OrderItem{{Quantity: 1, Name: "Margherita"}}

	f.say(t, phone, "track 7")
	assert.Contains(t, f.wa.last(), "Order #7")
	assert.Contains(t, f.wa.last(), "1x Margherita")
	assert.Contains(t, f.wa.last(), "processing")
	assert.Contains(t, f.wa.last(), "https://bot.kwetupizza.com/order-status/7")
}

func TestTrackWithoutNumber(t *testing.T) {
	f := newFixture()
	f.say(t, phone, "track")
	assert.Contains(t, f.wa.last(), "order number")
}

func TestReviewHappyPath(t *testing.T) {
	f := newFixture()
	c := convo.Default()
	c.Awaiting = convo.StateReview
	c.ReviewOrderID = 9
	require.NoError(t, f.store.Set(context.Background(), phone, c))

	f.tap(t, phone, "rating_5")

	require.Len(t, f.checkout.reviews, 1)
	assert.Equal(t, submittedReview{9, 5, ""}, f.checkout.reviews[0])
	assert.Contains(t, f.wa.last(), "Five stars")
	assert.Equal(t, convo.StateNone, f.state(phone))
}

func TestReviewRatingBounds(t *testing.T) {
	f := newFixture()
	c := convo.Default()
	c.Awaiting = convo.StateReview
	c.ReviewOrderID = 9
	require.NoError(t, f.store.Set(context.Background(), phone, c))

	for _, bad := range []string{"0", "6", "ten", "-1"} {
		f.say(t, phone, bad)
		assert.Contains(t, f.wa.last(), "1 to 5", "input %q", bad)
		assert.Empty(t, f.checkout.reviews)
	}
}

func TestLowRatingAsksForComment(t *testing.T) {
	f := newFixture()
	c := convo.Default()
	c.Awaiting = convo.StateReview
	c.ReviewOrderID = 9
	require.NoError(t, f.store.Set(context.Background(), phone, c))

	f.say(t, phone, "2")
	assert.Equal(t, convo.StateReviewComment, f.state(phone))
	assert.Empty(t, f.checkout.reviews)

	f.say(t, phone, "pizza arrived cold")
	require.Len(t, f.checkout.reviews, 1)
	assert.Equal(t, submittedReview{9, 2, "pizza arrived cold"}, f.checkout.reviews[0])
}

func TestDuplicateReviewAcknowledged(t *testing.T) {
	f := newFixture()
	f.checkout.reviews = []submittedReview{{orderID: 9, rating: 4}}
	c := convo.Default()
	c.Awaiting = convo.StateReview
	c.ReviewOrderID = 9
	require.NoError(t, f.store.Set(context.Background(), phone, c))

	f.say(t, phone, "5")
	assert.Len(t, f.checkout.reviews, 1)
	assert.Contains(t, f.wa.last(), "already reviewed")
}

func TestPremiumRequiresItemsInCart(t *testing.T) {
	f := newFixture()
	f.say(t, phone, "hi")

	f.say(t, phone, "premium")
	assert.NotEqual(t, convo.StatePremiumOption, f.state(phone))
	assert.Equal(t, convo.StateMenuSelection, f.state(phone))
	assert.Contains(t, f.wa.texts[len(f.wa.texts)-2], "add items to your cart")
}

func TestPremiumOptions(t *testing.T) {
	f := newFixture()
	c := convo.Default()
	c.Cart = []convo.CartLine{{ProductID: 1, Name: "Margherita", PriceCents: 1500000, Quantity: 1}}
	c.Awaiting = convo.StateAddOrCheckout
	require.NoError(t, f.store.Set(context.Background(), phone, c))

	f.say(t, phone, "premium")
	assert.Equal(t, convo.StatePremiumOption, f.state(phone))

	f.say(t, phone, "1")
	require.Len(t, f.store.contexts[phone].Premium, 1)

	f.say(t, phone, "1")
	assert.Contains(t, f.wa.last(), "already on your order")
	assert.Len(t, f.store.contexts[phone].Premium, 1)

	f.say(t, phone, "done")
	assert.Equal(t, convo.StateAddOrCheckout, f.state(phone))
	assert.Contains(t, f.wa.last(), "Express delivery")
}

func TestSavedAddressButton(t *testing.T) {
	f := newFixture()
	f.orders.addrs = []orders.Address{{ID: 3, Address: "Mbezi Beach, plot 12"}}
	c := convo.Default()
	c.Cart = []convo.CartLine{{ProductID: 1, Name: "Margherita", PriceCents: 1500000, Quantity: 1}}
	c.Awaiting = convo.StateAddOrCheckout
	require.NoError(t, f.store.Set(context.Background(), phone, c))

	f.tap(t, phone, "checkout_btn")
	require.NotEmpty(t, f.wa.buttons)
	assert.Equal(t, "address_3", f.wa.buttons[len(f.wa.buttons)-1][0].ID)

	f.tap(t, phone, "address_3")
	assert.Equal(t, convo.StatePaymentProvider, f.state(phone))
	assert.Equal(t, "Mbezi Beach, plot 12", f.store.contexts[phone].Address)
}

func withLastActivity(c convo.Context, ts time.Time) convo.Context {
	c.LastActivity = ts
	return c
}

func TestHelpListsCommands(t *testing.T) {
	f := newFixture()
	f.say(t, phone, "help")
	assert.Contains(t, f.wa.last(), "track")
	assert.Contains(t, f.wa.last(), "0712000000")
}

func TestHandleMessageInfraErrorPropagates(t *testing.T) {
	f := newFixture()
	f.eng.Store = failingStore{}
	err := f.eng.HandleMessage(context.Background(), Inbound{Phone: phone, Text: "hi"})
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (convo.Context, error) {
	return convo.Context{}, fmt.Errorf("db down")
}
func (failingStore) Set(context.Context, string, convo.Context) error { return fmt.Errorf("db down") }
func (failingStore) Reset(context.Context, string) error              { return fmt.Errorf("db down") }
func (failingStore) Backup(context.Context, string, convo.Context) error {
	return fmt.Errorf("db down")
}
func (failingStore) RestoreBackup(context.Context, string) (convo.Context, bool, error) {
	return convo.Context{}, false, fmt.Errorf("db down")
}
