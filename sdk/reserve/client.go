package reserve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
)

// Client wraps the reserved HTTP API with typed helpers. Amounts travel as
// decimal strings on the wire and as *big.Int in Go; rates are expressed in
// the textual forms accepted by big.Rat (e.g. "5/100" or "0.05").
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// Option mutates the client configuration during construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New constructs a client pointed at the supplied base URL. The token is
// sent as a bearer credential on every request; pass an admin token to call
// the privileged endpoints.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	trimmedURL := strings.TrimSpace(baseURL)
	if trimmedURL == "" {
		return nil, fmt.Errorf("baseURL required")
	}
	parsed, err := url.Parse(trimmedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}
	trimmedToken := strings.TrimSpace(token)
	if trimmedToken == "" {
		return nil, fmt.Errorf("api token required")
	}
	client := &Client{
		baseURL:    parsed,
		token:      trimmedToken,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = http.DefaultClient
	}
	return client, nil
}

// BalanceSheet mirrors GET /v1/reserve/assets/{asset}.
type BalanceSheet struct {
	Asset         string `json:"asset"`
	Cash          string `json:"cash"`
	Debt          string `json:"debt"`
	Revenue       string `json:"revenue"`
	ReceiptSupply string `json:"receiptSupply"`
}

// FlashLoanReceipt mirrors the settlement summary returned by the flash-loan
// endpoint.
type FlashLoanReceipt struct {
	Fee       string `json:"fee"`
	Collected string `json:"collected"`
}

type amountPayload struct {
	Amount string `json:"amount"`
}

type pricePayload struct {
	Price string `json:"price"`
}

type flashFeePayload struct {
	FeeRateBps uint64 `json:"feeRateBps"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// RegisterAsset creates the zeroed ledger rows for a new asset.
func (c *Client) RegisterAsset(ctx context.Context, asset string) error {
	return c.do(ctx, http.MethodPost, c.assetPath(asset, ""), nil, nil)
}

// GetBalanceSheet fetches the asset's balance sheet.
func (c *Client) GetBalanceSheet(ctx context.Context, asset string) (*BalanceSheet, error) {
	var sheet BalanceSheet
	if err := c.do(ctx, http.MethodGet, c.assetPath(asset, ""), nil, &sheet); err != nil {
		return nil, err
	}
	return &sheet, nil
}

// GetPrice returns the receipt-token exchange price as a rational number.
func (c *Client) GetPrice(ctx context.Context, asset string) (*big.Rat, error) {
	var payload pricePayload
	if err := c.do(ctx, http.MethodGet, c.assetPath(asset, "price"), nil, &payload); err != nil {
		return nil, err
	}
	price, ok := new(big.Rat).SetString(payload.Price)
	if !ok {
		return nil, fmt.Errorf("malformed price %q", payload.Price)
	}
	return price, nil
}

// GetFlashFeeRate returns the configured flash-loan fee in basis points.
func (c *Client) GetFlashFeeRate(ctx context.Context, asset string) (uint64, error) {
	var payload flashFeePayload
	if err := c.do(ctx, http.MethodGet, c.assetPath(asset, "flash-fee"), nil, &payload); err != nil {
		return 0, err
	}
	return payload.FeeRateBps, nil
}

// GetBorrowFees returns the accumulated balance of the borrow-fee vault.
func (c *Client) GetBorrowFees(ctx context.Context, asset string) (*big.Int, error) {
	var payload amountPayload
	if err := c.do(ctx, http.MethodGet, c.assetPath(asset, "borrow-fees"), nil, &payload); err != nil {
		return nil, err
	}
	return parseAmount(payload.Amount)
}

// AccrueInterest grows the asset's debt by the growth rate, reserving the
// revenue factor share of the growth as protocol income.
func (c *Client) AccrueInterest(ctx context.Context, asset, growthRate, revenueFactor string) error {
	body := map[string]string{"growthRate": growthRate, "revenueFactor": revenueFactor}
	return c.do(ctx, http.MethodPost, c.assetPath(asset, "accrue"), body, nil)
}

// Mint deposits underlying funds and returns the receipt units created.
func (c *Client) Mint(ctx context.Context, asset string, amount *big.Int) (*big.Int, error) {
	return c.amountCall(ctx, asset, "mint", amount)
}

// Redeem burns receipt units and returns the underlying amount released.
func (c *Client) Redeem(ctx context.Context, asset string, receipts *big.Int) (*big.Int, error) {
	return c.amountCall(ctx, asset, "redeem", receipts)
}

// Borrow withdraws cash from the reserve, recognising it as debt.
func (c *Client) Borrow(ctx context.Context, asset string, amount *big.Int) (*big.Int, error) {
	return c.amountCall(ctx, asset, "borrow", amount)
}

// Repay returns borrowed funds; any amount beyond the outstanding debt is
// kept as protocol revenue.
func (c *Client) Repay(ctx context.Context, asset string, amount *big.Int) error {
	return c.do(ctx, http.MethodPost, c.assetPath(asset, "repay"), amountPayload{Amount: amount.String()}, nil)
}

// FlashLoan borrows and repays within one atomic request. The repayment must
// cover the principal plus the quoted fee or the whole operation unwinds.
func (c *Client) FlashLoan(ctx context.Context, asset string, amount, repayment *big.Int, discountNum, discountDen uint64) (*FlashLoanReceipt, error) {
	body := map[string]any{
		"amount":              amount.String(),
		"repayment":           repayment.String(),
		"discountNumerator":   discountNum,
		"discountDenominator": discountDen,
	}
	var receipt FlashLoanReceipt
	if err := c.do(ctx, http.MethodPost, c.assetPath(asset, "flash-loan"), body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// DepositBorrowFee adds an origination fee to the segregated fee vault.
func (c *Client) DepositBorrowFee(ctx context.Context, asset string, amount *big.Int) error {
	return c.do(ctx, http.MethodPost, c.assetPath(asset, "borrow-fees/deposit"), amountPayload{Amount: amount.String()}, nil)
}

// WithdrawBorrowFee removes funds from the fee vault. Requires an admin
// token.
func (c *Client) WithdrawBorrowFee(ctx context.Context, asset string, amount *big.Int) (*big.Int, error) {
	return c.amountCall(ctx, asset, "borrow-fees/withdraw", amount)
}

// SetFlashLoanFee configures the flash-loan fee rate. Requires an admin
// token.
func (c *Client) SetFlashLoanFee(ctx context.Context, asset string, bps uint64) error {
	body := flashFeePayload{FeeRateBps: bps}
	req, err := c.newRequest(ctx, http.MethodPut, c.assetPath(asset, "flash-fee"), body)
	if err != nil {
		return err
	}
	return c.send(req, nil)
}

func (c *Client) amountCall(ctx context.Context, asset, op string, amount *big.Int) (*big.Int, error) {
	var payload amountPayload
	if err := c.do(ctx, http.MethodPost, c.assetPath(asset, op), amountPayload{Amount: amount.String()}, &payload); err != nil {
		return nil, err
	}
	return parseAmount(payload.Amount)
}

func (c *Client) assetPath(asset, suffix string) string {
	path := "/v1/reserve/assets/" + url.PathEscape(strings.ToUpper(strings.TrimSpace(asset)))
	if suffix != "" {
		path += "/" + suffix
	}
	return path
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	if c == nil || c.baseURL == nil {
		return nil, fmt.Errorf("client not initialised")
	}
	target := c.baseURL.JoinPath(path)
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var remote errorPayload
		if err := json.Unmarshal(payload, &remote); err == nil && remote.Error != "" {
			return fmt.Errorf("reserved: %s (status %d)", remote.Error, resp.StatusCode)
		}
		return fmt.Errorf("reserved: unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", raw)
	}
	return amount, nil
}
