package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPhone(t *testing.T) {
	cases := map[string]string{
		"0712345678":      "255712345678",
		"255712345678":    "255712345678",
		"+255712345678":   "255712345678",
		"712345678":       "255712345678",
		"+255 712 345678": "255712345678",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalPhone(in), "input %q", in)
	}
}

func TestSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/sms/v1/text/single", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "user", user)
		require.Equal(t, "pass", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"successful":true,"messages":[{"status":{"groupId":1,"description":"PENDING"}}]}`)
	}))
	defer srv.Close()

	c := NewClient("user", "pass", "KwetuPizza")
	c.BaseURL = srv.URL

	require.NoError(t, c.Send(context.Background(), "0712345678", "Your order is on the way"))

	assert.Equal(t, "KwetuPizza", got["source_addr"])
	recipients := got["recipients"].([]any)
	require.Len(t, recipients, 1)
	assert.Equal(t, "255712345678", recipients[0].(map[string]any)["dest_addr"])
}

func TestSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"successful":false,"messages":[{"status":{"groupId":5,"description":"REJECTED_DESTINATION"}}]}`)
	}))
	defer srv.Close()

	c := NewClient("user", "pass", "KwetuPizza")
	c.BaseURL = srv.URL

	err := c.Send(context.Background(), "0712345678", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REJECTED_DESTINATION")
}

func TestSendRequiresCredentials(t *testing.T) {
	c := NewClient("", "", "KwetuPizza")
	assert.Error(t, c.Send(context.Background(), "0712345678", "hi"))
}
