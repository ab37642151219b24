package pesapal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"expo-tickets/internal/status"

	"github.com/shopspring/decimal"
)

type ClientConfig struct {
	BaseURL        string `json:"baseUrl" mapstructure:"base_url"`
	ConsumerKey    string `json:"consumerKey" mapstructure:"consumer_key"`
	ConsumerSecret string `json:"consumerSecret" mapstructure:"consumer_secret"`
	IPNID          string `json:"ipnId" mapstructure:"ipn_id"`
}

type Client struct {
	// baseURL is the base url of the Pesapal API.
	baseURL string

	// consumerKey identifies the merchant account.
	consumerKey string

	// consumerSecret authenticates the merchant account.
	consumerSecret string

	// ipnID is the registered instant-payment-notification endpoint id.
	ipnID string

	// accessToken is the bearer token for the Pesapal API.
	accessToken string

	// mu is used to lock access token.
	mu sync.Mutex

	// toggleTokenRefresher is used to notify token refresher to refresh token.
	toggleTokenRefresher chan struct{}

	// hc is the http client.
	hc *http.Client
}

func newClient(_ context.Context, c *ClientConfig) *Client {
	return &Client{
		baseURL:        c.BaseURL,
		consumerKey:    c.ConsumerKey,
		consumerSecret: c.ConsumerSecret,
		ipnID:          c.IPNID,

		// make a buffered channel to avoid blocking.
		toggleTokenRefresher: make(chan struct{}, 1),

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// notifyAccessTokenExpired loops for the lifetime of the client, renewing
// the bearer token before Pesapal's 5 minute expiry and on demand whenever
// a request comes back 401, with an exponential backOff strategy.
func (c *Client) notifyAccessTokenExpired(ctx context.Context) {
	ticker := time.NewTicker(4 * time.Minute)
	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return

		case <-ticker.C:

		case <-c.toggleTokenRefresher:
			log.Println("notifyAccessTokenExpired: toggleTokenRefresher => token refreshed")
		}

		// reconnect with exponential backOff strategy
		backOff := time.Second

	Retry:
		for {
			token, err := c.connect(ctx)
			switch err {
			case nil:
				c.setAccessToken(token)

				break Retry

			default:
				log.Printf("notifyAccessTokenExpired: %v", err)
				select {
				case <-ctx.Done():
					return

				case <-time.After(backOff):
					backOff *= 2
				}
			}
		}
	}
}

// setAccessToken set access token to client.
func (c *Client) setAccessToken(accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
}

// getAccessToken get access token from client.
func (c *Client) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// connect performs authentication against the Pesapal API and returns the
// bearer token.
func (c *Client) connect(ctx context.Context) (string, error) {
	body := fmt.Sprintf(`{"consumer_key":%q,"consumer_secret":%q}`, c.consumerKey, c.consumerSecret)
	bodyReader := bytes.NewReader([]byte(body))

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/api/Auth/RequestToken"), bodyReader)
	if err != nil {
		return "", fmt.Errorf("connectPesapal: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("connectPesapal: http.Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("connectPesapal: http.StatusCode: %d", resp.StatusCode)
	}

	var reply struct {
		Token      string `json:"token"`
		ExpiryDate string `json:"expiryDate"`
		Status     string `json:"status"`
		Message    string `json:"message"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", fmt.Errorf("connectPesapal: json.Decode: %v", err)
	}
	if reply.Token == "" {
		return "", fmt.Errorf("connectPesapal: reply.Status: %v, reply.Message: %v", reply.Status, reply.Message)
	}

	return fmt.Sprintf("Bearer %s", reply.Token), nil
}

// OrderForm carries everything Pesapal needs to open a hosted payment page.
type OrderForm struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Description string
	CallbackURL string
	BuyerName   string
	BuyerEmail  string
	BuyerPhone  string
}

// submitOrder registers the order with Pesapal and returns the tracking id
// and the hosted page the buyer must be redirected to.
func (c *Client) submitOrder(ctx context.Context, f *OrderForm) (string, string, error) {
	payload := map[string]any{
		"id":              f.Reference,
		"currency":        f.Currency,
		"amount":          f.Amount,
		"description":     f.Description,
		"callback_url":    f.CallbackURL,
		"notification_id": c.ipnID,
		"billing_address": map[string]any{
			"email_address": f.BuyerEmail,
			"phone_number":  f.BuyerPhone,
			"first_name":    f.BuyerName,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("submitOrder: json.Marshal: %v", err)
	}

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/api/Transactions/SubmitOrderRequest"), bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("submitOrder: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.getAccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("submitOrder: http.Do: %v", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return "", "", errors.New("submitOrder: resp.StatusCode: 401 => Unauthorized")
	}

	var reply struct {
		OrderTrackingID string `json:"order_tracking_id"`
		RedirectURL     string `json:"redirect_url"`
		Status          string `json:"status"`
		Error           *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", "", fmt.Errorf("submitOrder: json.Decode: %w", err)
	}
	if reply.Error != nil && reply.Error.Code != "" {
		return "", "", fmt.Errorf("submitOrder: reply.Error: %v: %v", reply.Error.Code, reply.Error.Message)
	}
	if reply.RedirectURL == "" {
		return "", "", fmt.Errorf("submitOrder: reply.Status: %v => no redirect url", reply.Status)
	}

	return reply.OrderTrackingID, reply.RedirectURL, nil
}

// transactionStatus queries the provider-side view of a transaction.
func (c *Client) transactionStatus(ctx context.Context, trackingID string) (*status.PaymentStatus, error) {
	_baseURL, _ := url.Parse(c.baseURL)
	endpoint := fmt.Sprintf("%s/api/Transactions/GetTransactionStatus?orderTrackingId=%s", _baseURL.String(), url.QueryEscape(trackingID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("transactionStatus: http.NewReq: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.getAccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transactionStatus: http.Do: %v", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return nil, errors.New("transactionStatus: resp.StatusCode: 401 => Unauthorized")
	}

	var reply payload
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("transactionStatus: json.Decode: %v", err)
	}
	if reply.Error != nil && reply.Error.Code != "" {
		return nil, fmt.Errorf("transactionStatus: reply.Error: %v: %v", reply.Error.Code, reply.Error.Message)
	}

	record := reply.ToDomain(trackingID)
	return record, nil
}
