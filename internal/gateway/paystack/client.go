package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Client talks to the card/EFT gateway's REST API. Amounts go over the wire
// in subunits (cents).
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

type InitializeRequest struct {
	Email     string                 `json:"email"`
	Amount    int64                  `json:"amount"`
	Currency  string                 `json:"currency"`
	Reference string                 `json:"reference"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type InitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type VerifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at"`
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitializeTransaction opens a checkout session and returns the URL the
// employer completes payment on.
func (c *Client) InitializeTransaction(ctx context.Context, email string, amount decimal.Decimal, reference string, metadata map[string]interface{}) (*InitializeData, error) {
	req := InitializeRequest{
		Email:     email,
		Amount:    toSubunits(amount),
		Currency:  "ZAR",
		Reference: reference,
		Metadata:  metadata,
	}
	var data InitializeData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// VerifyTransaction asks the gateway for the settlement state of a reference.
// Callers still enforce the local expiry window regardless of what the
// gateway reports.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyData, error) {
	var data VerifyData
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("paystack: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paystack: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("paystack: decode response: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Status {
		return fmt.Errorf("paystack: %s %s: gateway returned %d: %s", method, path, resp.StatusCode, env.Message)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("paystack: decode data: %w", err)
		}
	}
	return nil
}

// toSubunits converts a rand amount to cents.
func toSubunits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

// FromSubunits converts cents back to a rand amount.
func FromSubunits(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}
