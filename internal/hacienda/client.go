// Package hacienda wraps the Costa Rican tax-authority lookup API and the
// central-bank exchange rate API. Responses change rarely, so lookups are
// cached in Redis with a short TTL when a client is configured.
package hacienda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotFound is the distinct "contributor or exemption not found" case. A
// 404 from the API is an answer, not a failure.
var ErrNotFound = errors.New("hacienda: not found")

// TaxStatus is the registration status of a tax id.
type TaxStatus struct {
	Identification string `json:"identification"`
	Name           string `json:"name"`
	TaxStatus      string `json:"tax_status"`
	Regime         string `json:"regime"`
}

// Exemption is a tax-exemption authorization.
type Exemption struct {
	AuthNumber string  `json:"auth_number"`
	Percentage float64 `json:"percentage"`
	ExpiresAt  string  `json:"expires_at"`
}

// ExchangeRate is the CRC/USD reference rate.
type ExchangeRate struct {
	Date string  `json:"date"`
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
}

// Client performs the lookups.
type Client struct {
	baseURL         string
	exchangeRateURL string
	httpClient      *http.Client
	cache           *redis.Client
	cacheTTL        time.Duration
	logger          *zap.Logger
}

// NewClient creates a lookup client. cache may be nil, which disables caching.
func NewClient(baseURL, exchangeRateURL string, timeout, cacheTTL time.Duration, cache *redis.Client, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = 6 * time.Hour
	}
	return &Client{
		baseURL:         baseURL,
		exchangeRateURL: exchangeRateURL,
		httpClient:      &http.Client{Timeout: timeout},
		cache:           cache,
		cacheTTL:        cacheTTL,
		logger:          logger,
	}
}

func (c *Client) cached(ctx context.Context, key string, out interface{}, fetch func() error) error {
	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, key).Bytes(); err == nil {
			if json.Unmarshal(raw, out) == nil {
				return nil
			}
		}
	}

	if err := fetch(); err != nil {
		return err
	}

	if c.cache != nil {
		if raw, err := json.Marshal(out); err == nil {
			if err := c.cache.Set(ctx, key, raw, c.cacheTTL).Err(); err != nil && c.logger != nil {
				c.logger.Warn("hacienda cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("hacienda: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hacienda: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("hacienda: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// GetTaxStatus looks up a contributor by identification number.
func (c *Client) GetTaxStatus(ctx context.Context, identification string) (*TaxStatus, error) {
	var status TaxStatus
	key := "hacienda:status:" + identification
	err := c.cached(ctx, key, &status, func() error {
		return c.getJSON(ctx, c.baseURL+"/fe/ae?identificacion="+url.QueryEscape(identification), &status)
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// GetExemption looks up a tax-exemption authorization.
func (c *Client) GetExemption(ctx context.Context, authNumber string) (*Exemption, error) {
	var ex Exemption
	key := "hacienda:exemption:" + authNumber
	err := c.cached(ctx, key, &ex, func() error {
		return c.getJSON(ctx, c.baseURL+"/fe/ex?autorizacion="+url.QueryEscape(authNumber), &ex)
	})
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

// GetExchangeRate returns the reference CRC/USD rate for today.
func (c *Client) GetExchangeRate(ctx context.Context) (*ExchangeRate, error) {
	var rate ExchangeRate
	key := "hacienda:tc:" + time.Now().Format("2006-01-02")
	err := c.cached(ctx, key, &rate, func() error {
		return c.getJSON(ctx, c.exchangeRateURL, &rate)
	})
	if err != nil {
		return nil, err
	}
	return &rate, nil
}
