package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Mobile money networks accepted by the Tanzania charge endpoint.
var providerNetworks = map[string]string{
	"mpesa":    "Mpesa",
	"tigopesa": "TigoPesa",
	"airtel":   "Airtel",
	"halopesa": "Halopesa",
}

type FlutterwaveClient struct {
	HTTP      *http.Client
	BaseURL   string // default https://api.flutterwave.com
	SecretKey string
}

func NewFlutterwaveClient(secretKey string) *FlutterwaveClient {
	return &FlutterwaveClient{
		HTTP:      &http.Client{Timeout: 60 * time.Second},
		BaseURL:   "https://api.flutterwave.com",
		SecretKey: secretKey,
	}
}

type ChargeRequest struct {
	Reference   string // tx_ref already stored on the order
	AmountCents int64
	Currency    string
	Provider    string
	Phone       string
	Email       string
	FullName    string
}

type VerifyResult struct {
	TxRef         string
	Status        string // successful, failed, pending
	AmountCents   int64
	Currency      string
	PaymentType   string
	FlwID         int64
	ProcessorResp string
}

func (r VerifyResult) Successful() bool { return r.Status == "successful" }

// ChargeMobileMoney pushes a payment prompt to the customer's phone. The
// tx_ref must already be stored on the order so the async callback can be
// correlated even if this call's response is lost.
func (c *FlutterwaveClient) ChargeMobileMoney(ctx context.Context, req ChargeRequest) error {
	if c.SecretKey == "" {
		return errors.New("flutterwave: missing secret key")
	}
	network, ok := providerNetworks[req.Provider]
	if !ok {
		return fmt.Errorf("flutterwave: unsupported provider %q", req.Provider)
	}

	body, err := json.Marshal(map[string]any{
		"tx_ref":       req.Reference,
		"amount":       float64(req.AmountCents) / 100,
		"currency":     req.Currency,
		"network":      network,
		"email":        req.Email,
		"phone_number": req.Phone,
		"fullname":     req.FullName,
	})
	if err != nil {
		return err
	}

	respBody, status, err := c.do(ctx, http.MethodPost, "/v3/charges?type=mobile_money_tanzania", body)
	if err != nil {
		return err
	}

	var out struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return fmt.Errorf("flutterwave: bad charge response: %w", err)
	}
	if status != http.StatusOK || out.Status != "success" {
		return fmt.Errorf("flutterwave: charge rejected (%d): %s", status, out.Message)
	}
	return nil
}

// VerifyByTxRef confirms the final state of a charge with the provider. Used
// both on callback (never trust the webhook payload's status alone) and on the
// manual verification path.
func (c *FlutterwaveClient) VerifyByTxRef(ctx context.Context, txRef string) (VerifyResult, error) {
	if c.SecretKey == "" {
		return VerifyResult{}, errors.New("flutterwave: missing secret key")
	}

	path := "/v3/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(txRef)
	respBody, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return VerifyResult{}, err
	}

	var out struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			ID            int64   `json:"id"`
			TxRef         string  `json:"tx_ref"`
			Status        string  `json:"status"`
			Amount        float64 `json:"amount"`
			Currency      string  `json:"currency"`
			PaymentType   string  `json:"payment_type"`
			ProcessorResp string  `json:"processor_response"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return VerifyResult{}, fmt.Errorf("flutterwave: bad verify response: %w", err)
	}
	if status != http.StatusOK || out.Status != "success" {
		return VerifyResult{}, fmt.Errorf("flutterwave: verify failed (%d): %s", status, out.Message)
	}

	return VerifyResult{
		TxRef:         out.Data.TxRef,
		Status:        out.Data.Status,
		AmountCents:   int64(out.Data.Amount*100 + 0.5),
		Currency:      out.Data.Currency,
		PaymentType:   out.Data.PaymentType,
		FlwID:         out.Data.ID,
		ProcessorResp: out.Data.ProcessorResp,
	}, nil
}

func (c *FlutterwaveClient) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}
