package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0712345678":    "255712345678",
		"+255712345678": "255712345678",
		"255712345678":  "255712345678",
		"712345678":     "255712345678",
		"0712 345 678":  "255712345678",
		"":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhone(in), "input %q", in)
	}
}

func TestPhoneMatches(t *testing.T) {
	assert.True(t, PhoneMatches("0712345678", "255712345678"))
	assert.True(t, PhoneMatches("+255712345678", "712345678"))
	assert.False(t, PhoneMatches("0712345678", "0712345679"))
	assert.False(t, PhoneMatches("", "0712345678"))
}

func TestValidPayPhone(t *testing.T) {
	assert.True(t, ValidPayPhone("0712345678"))
	assert.True(t, ValidPayPhone("255712345678"))
	assert.False(t, ValidPayPhone("hello"))
	assert.False(t, ValidPayPhone("12"))
}

func TestCanonicalInput(t *testing.T) {
	assert.Equal(t, "mpesa", CanonicalInput("mpesa_btn", "M-Pesa"))
	assert.Equal(t, "airtel", CanonicalInput("airtelmoney_btn", ""))
	assert.Equal(t, "checkout", CanonicalInput("checkout_btn", ""))
	assert.Equal(t, "4", CanonicalInput("rating_4", ""))
	assert.Equal(t, "address_12", CanonicalInput("address_12", ""))
	assert.Equal(t, "hello", CanonicalInput("", "  hello  "))
}

func TestProviderAliases(t *testing.T) {
	for in, want := range map[string]string{
		"1": "mpesa", "2": "tigopesa", "3": "airtel", "4": "cash",
		"Tigo": "tigopesa", "AIRTEL MONEY": "airtel", "cod": "cash", "M-Pesa": "mpesa",
	} {
		got, ok := providerFor(in)
		assert.True(t, ok, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}
	_, ok := providerFor("bitcoin")
	assert.False(t, ok)
}
