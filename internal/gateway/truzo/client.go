package truzo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Client talks to the escrow gateway's GraphQL API. The gateway holds the
// employer's money as a neutral third party; this service only mirrors its
// state transitions.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Party identifies one side of an escrow transaction.
type Party struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Transaction is the gateway's view of an escrow deal.
type Transaction struct {
	ID           string          `json:"id"`
	Reference    string          `json:"reference"`
	Value        decimal.Decimal `json:"value"`
	Status       string          `json:"status"`
	AllocationID string          `json:"allocationId"`
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

// CreateToken registers a party with the gateway and returns its token.
func (c *Client) CreateToken(ctx context.Context, party Party) (string, error) {
	const query = `mutation($input: PartyInput!) { createToken(input: $input) { token } }`
	var out struct {
		CreateToken struct {
			Token string `json:"token"`
		} `json:"createToken"`
	}
	err := c.do(ctx, query, map[string]interface{}{"input": party}, &out)
	if err != nil {
		return "", err
	}
	return out.CreateToken.Token, nil
}

// CreateTransaction opens an escrow deal between employer (buyer) and worker
// (seller), with the platform as fee agent.
func (c *Client) CreateTransaction(ctx context.Context, buyerToken, sellerToken string, feePercent, value decimal.Decimal, reference string) (*Transaction, error) {
	const query = `mutation($input: TransactionInput!) {
		createTransaction(input: $input) { id reference value status allocationId }
	}`
	input := map[string]interface{}{
		"buyer":     buyerToken,
		"seller":    sellerToken,
		"agentFee":  feePercent.String(),
		"value":     value.String(),
		"currency":  "ZAR",
		"reference": reference,
	}
	var out struct {
		CreateTransaction Transaction `json:"createTransaction"`
	}
	if err := c.do(ctx, query, map[string]interface{}{"input": input}, &out); err != nil {
		return nil, err
	}
	return &out.CreateTransaction, nil
}

// GetCheckoutLink returns the URL the buyer funds the transaction on.
func (c *Client) GetCheckoutLink(ctx context.Context, transactionID string) (string, error) {
	const query = `query($id: ID!) { transaction(id: $id) { checkoutLink } }`
	var out struct {
		Transaction struct {
			CheckoutLink string `json:"checkoutLink"`
		} `json:"transaction"`
	}
	if err := c.do(ctx, query, map[string]interface{}{"id": transactionID}, &out); err != nil {
		return "", err
	}
	return out.Transaction.CheckoutLink, nil
}

func (c *Client) StartDelivery(ctx context.Context, allocationID string) error {
	const query = `mutation($id: ID!) { startDelivery(allocationId: $id) { id } }`
	return c.do(ctx, query, map[string]interface{}{"id": allocationID}, nil)
}

func (c *Client) CompleteDelivery(ctx context.Context, allocationID string) error {
	const query = `mutation($id: ID!) { completeDelivery(allocationId: $id) { id } }`
	return c.do(ctx, query, map[string]interface{}{"id": allocationID}, nil)
}

func (c *Client) AcceptDelivery(ctx context.Context, allocationID string) error {
	const query = `mutation($id: ID!) { acceptDelivery(allocationId: $id) { id } }`
	return c.do(ctx, query, map[string]interface{}{"id": allocationID}, nil)
}

func (c *Client) CancelTransaction(ctx context.Context, transactionID, reason string) error {
	const query = `mutation($id: ID!, $reason: String!) { cancelTransaction(id: $id, reason: $reason) { id } }`
	return c.do(ctx, query, map[string]interface{}{"id": transactionID, "reason": reason}, nil)
}

func (c *Client) do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("truzo: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("truzo: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("truzo: request: %w", err)
	}
	defer resp.Body.Close()

	var gqlResp graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return fmt.Errorf("truzo: decode response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("truzo: gateway error: %s", gqlResp.Errors[0].Message)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("truzo: gateway returned %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(gqlResp.Data, out); err != nil {
			return fmt.Errorf("truzo: decode data: %w", err)
		}
	}
	return nil
}
