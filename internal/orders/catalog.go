package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Homeboy20/kwetupizza-bot/internal/redisx"
)

// Catalog renders the customer-facing menu, caching the rendered text in Redis
// for an hour. Invalidate drops the cache when products change.
type Catalog struct {
	Repo     *Repo
	Redis    *redis.Client
	Currency string
}

var categoryHeaders = []struct {
	category string
	header   string
}{
	{"Pizza", "🍕 *Pizzas:*"},
	{"Drinks", "🥤 *Drinks:*"},
	{"Dessert", "🍰 *Desserts:*"},
}

func (c *Catalog) MenuText(ctx context.Context) (string, error) {
	if cached, err := c.Redis.Get(ctx, redisx.KeyMenuText).Result(); err == nil && cached != "" {
		return cached, nil
	}

	products, err := c.Repo.ListProducts(ctx)
	if err != nil {
		return "", err
	}

	byCategory := map[string][]Product{}
	for _, p := range products {
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}

	var b strings.Builder
	b.WriteString("Here's our menu. Please type the number of the item you'd like to order:\n")
	for _, ch := range categoryHeaders {
		ps := byCategory[ch.category]
		if len(ps) == 0 {
			continue
		}
		b.WriteString("\n" + ch.header + "\n")
		for _, p := range ps {
			fmt.Fprintf(&b, "%d. %s - %s %s\n", p.ID, p.Name, FormatAmount(p.PriceCents), c.Currency)
		}
	}

	text := b.String()
	_ = c.Redis.Set(ctx, redisx.KeyMenuText, text, redisx.TTLMenuCache).Err()
	return text, nil
}

func (c *Catalog) Product(ctx context.Context, id int64) (Product, error) {
	return c.Repo.GetProduct(ctx, id)
}

// Invalidate drops the cached menu rendering; called when the product catalog
// is mutated.
func (c *Catalog) Invalidate(ctx context.Context) {
	_ = c.Redis.Del(ctx, redisx.KeyMenuText).Err()
}
