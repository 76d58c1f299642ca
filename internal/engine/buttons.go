package engine

import "strings"

// Interactive reply ids map to the same tokens a customer could type, so every
// state handler deals in one vocabulary.
var buttonTokens = map[string]string{
	"mpesa_btn":        "mpesa",
	"tigopesa_btn":     "tigopesa",
	"airtelmoney_btn":  "airtel",
	"cash_btn":         "cash",
	"yes_btn":          "yes",
	"no_btn":           "no",
	"add_more_btn":     "add",
	"checkout_btn":     "checkout",
	"clear_btn":        "clear",
	"menu_btn":         "menu",
	"track_btn":        "track",
	"help_btn":         "help",
	"premium_more_btn": "premium",
}

// Payment provider aliases, including the numbered shortcuts from the prompt.
var providerAliases = map[string]string{
	"1":            "mpesa",
	"2":            "tigopesa",
	"3":            "airtel",
	"4":            "cash",
	"mpesa":        "mpesa",
	"m-pesa":       "mpesa",
	"tigopesa":     "tigopesa",
	"tigo":         "tigopesa",
	"tigo pesa":    "tigopesa",
	"airtel":       "airtel",
	"airtelmoney":  "airtel",
	"airtel money": "airtel",
	"cash":         "cash",
	"cod":          "cash",
}

// CanonicalInput folds a message into a single token: button ids resolve
// through the table, rating buttons become their number, and anything else
// (plain text, address_<id>) passes through trimmed.
func CanonicalInput(buttonID, text string) string {
	if buttonID == "" {
		return strings.TrimSpace(text)
	}
	if tok, ok := buttonTokens[buttonID]; ok {
		return tok
	}
	if n, ok := strings.CutPrefix(buttonID, "rating_"); ok {
		return n
	}
	return buttonID
}

func providerFor(token string) (string, bool) {
	p, ok := providerAliases[strings.ToLower(strings.TrimSpace(token))]
	return p, ok
}
