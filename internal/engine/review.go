package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Homeboy20/kwetupizza-bot/internal/convo"
	"github.com/Homeboy20/kwetupizza-bot/internal/orders"
)

func (e *Engine) handleReview(ctx context.Context, phone string, c *convo.Context, token string) error {
	rating, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil || rating < 1 || rating > 5 {
		return e.WA.SendText(ctx, phone, "Please rate your order with a number from 1 to 5.")
	}

	// Low ratings without a comment get one follow-up question.
	if rating <= 3 {
		c.ReviewRating = rating
		c.Awaiting = convo.StateReviewComment
		if err := e.Store.Set(ctx, phone, *c); err != nil {
			return err
		}
		return e.WA.SendText(ctx, phone, "We're sorry it wasn't perfect. 😔 Tell us what went wrong, or type 'skip'.")
	}

	return e.finishReview(ctx, phone, c, rating, "")
}

func (e *Engine) handleReviewComment(ctx context.Context, phone string, c *convo.Context, token string) error {
	comment := strings.TrimSpace(token)
	if strings.EqualFold(comment, "skip") {
		comment = ""
	}
	return e.finishReview(ctx, phone, c, c.ReviewRating, comment)
}

func (e *Engine) finishReview(ctx context.Context, phone string, c *convo.Context, rating int, comment string) error {
	orderID := c.ReviewOrderID

	inserted, err := e.Checkout.SubmitReview(ctx, orderID, phone, rating, comment)
	if err != nil {
		return err
	}

	fresh := convo.Default()
	fresh.Greeted = true
	*c = fresh
	if err := e.Store.Set(ctx, phone, *c); err != nil {
		return err
	}

	if !inserted {
		return e.WA.SendText(ctx, phone, fmt.Sprintf("You've already reviewed order #%d - thanks again!", orderID))
	}
	return e.WA.SendText(ctx, phone, reviewThanks(rating))
}

func reviewThanks(rating int) string {
	switch {
	case rating == 5:
		return "🌟 Five stars! Thank you so much - you've made our day!"
	case rating == 4:
		return "😊 Thanks for the great rating! We'll aim for five next time."
	case rating == 3:
		return "🙏 Thanks for the honest feedback. We'll do better."
	default:
		return "🙏 Thank you for telling us. The team will look into it right away."
	}
}

func (e *Engine) promptPremium(ctx context.Context, phone string, c *convo.Context) error {
	if len(e.Premium) == 0 {
		return e.WA.SendText(ctx, phone, "No premium extras are available right now.")
	}
	if len(c.Cart) == 0 {
		if err := e.WA.SendText(ctx, phone, "You need to add items to your cart before picking premium extras. Here's the menu:"); err != nil {
			return err
		}
		return e.sendMenu(ctx, phone, c)
	}

	c.Awaiting = convo.StatePremiumOption
	if err := e.Store.Set(ctx, phone, *c); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("✨ *Premium extras* - reply with a number to add one:\n")
	for i, p := range e.Premium {
		fmt.Fprintf(&b, "%d. %s - %s %s\n", i+1, p.Label, orders.FormatAmount(p.FeeCents), e.Currency)
	}
	b.WriteString("\nType 'done' when you're finished.")
	return e.WA.SendText(ctx, phone, b.String())
}

func (e *Engine) handlePremiumOption(ctx context.Context, phone string, c *convo.Context, lower string) error {
	if lower == "done" || lower == "no" || lower == "skip" {
		if len(c.Cart) > 0 {
			return e.sendCartSummaryAndAsk(ctx, phone, c)
		}
		return e.greet(ctx, phone, c)
	}

	idx, err := strconv.Atoi(lower)
	if err != nil || idx < 1 || idx > len(e.Premium) {
		return e.WA.SendText(ctx, phone, fmt.Sprintf("Reply with a number from 1 to %d, or 'done'.", len(e.Premium)))
	}
	opt := e.Premium[idx-1]

	for _, sel := range c.Premium {
		if sel.Key == opt.Key {
			return e.WA.SendText(ctx, phone, fmt.Sprintf("%s is already on your order. Type 'done' when you're finished.", opt.Label))
		}
	}
	c.Premium = append(c.Premium, convo.PremiumSelection{Key: opt.Key, Label: opt.Label, FeeCents: opt.FeeCents})
	if err := e.Store.Set(ctx, phone, *c); err != nil {
		return err
	}
	return e.WA.SendText(ctx, phone,
		fmt.Sprintf("Added %s ✅ Anything else? Type another number or 'done'.", opt.Label))
}
