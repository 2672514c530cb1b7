// Package kaspi talks to the Kaspi.kz merchant order API and interprets its
// webhook callbacks.
package kaspi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crmbilling/internal/config"

	"go.uber.org/zap"
)

// ErrUnavailable wraps every failure to get a usable answer from Kaspi.
var ErrUnavailable = errors.New("kaspi gateway unavailable")

// APIError is a non-2xx answer from the order API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kaspi api returned %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return ErrUnavailable
}

type Amount struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type OrderRequest struct {
	OrderID   string
	Amount    int64
	ItemName  string
	ReturnURL string
	CancelURL string
}

type createOrderBody struct {
	MerchantID string `json:"merchantId"`
	OrderID    string `json:"orderId"`
	Amount     Amount `json:"amount"`
	Items      []Item `json:"items"`
	ReturnURL  string `json:"returnUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type Order struct {
	OrderID    string `json:"orderId"`
	PaymentURL string `json:"paymentUrl"`
	Status     string `json:"status"`
}

type OrderStatus struct {
	Status    Status
	RawStatus string
	PaymentID string
	Amount    int64
}

type Client struct {
	baseURL    string
	merchantID string
	apiKey     string
	currency   string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg config.KaspiConfig, currency string, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		merchantID: cfg.MerchantID,
		apiKey:     cfg.APIKey,
		currency:   currency,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) configured() error {
	if c.merchantID == "" || c.apiKey == "" {
		return fmt.Errorf("%w: merchant id and api key are not configured", ErrUnavailable)
	}
	return nil
}

// CreateOrder registers an order and returns the redirect URL for the payer.
// A response without orderId keeps req.OrderID.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}

	body := createOrderBody{
		MerchantID: c.merchantID,
		OrderID:    req.OrderID,
		Amount:     Amount{Value: req.Amount, Currency: c.currency},
		Items: []Item{{
			Name:     req.ItemName,
			Quantity: 1,
			Price:    req.Amount,
		}},
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal kaspi order: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, c.baseURL+"/orders", jsonBody)
	if err != nil {
		c.logger.Error("kaspi create order failed",
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		return nil, err
	}

	var raw struct {
		OrderID    string `json:"orderId"`
		PaymentURL string `json:"paymentUrl"`
		URL        string `json:"url"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse order response: %v", ErrUnavailable, err)
	}

	order := &Order{
		OrderID:    raw.OrderID,
		PaymentURL: raw.PaymentURL,
		Status:     raw.Status,
	}
	if order.OrderID == "" {
		order.OrderID = req.OrderID
	}
	if order.PaymentURL == "" {
		order.PaymentURL = raw.URL
	}
	if order.Status == "" {
		order.Status = "pending"
	}

	c.logger.Info("kaspi order created",
		zap.String("order_id", order.OrderID),
		zap.Int64("amount", req.Amount))
	return order, nil
}

// OrderStatus asks Kaspi for the current state of orderID.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}

	respBody, err := c.do(ctx, http.MethodGet, c.baseURL+"/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		c.logger.Error("kaspi order status failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		return nil, err
	}

	var raw struct {
		Status    string  `json:"status"`
		PaymentID string  `json:"paymentId"`
		Amount    *Amount `json:"amount"`
	}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse status response: %v", ErrUnavailable, err)
	}

	st := &OrderStatus{
		Status:    ParseStatus(raw.Status),
		RawStatus: raw.Status,
		PaymentID: raw.PaymentID,
	}
	if st.RawStatus == "" {
		st.RawStatus = "unknown"
	}
	if raw.Amount != nil {
		st.Amount = raw.Amount.Value
	}
	return st, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Merchant-Id", c.merchantID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
