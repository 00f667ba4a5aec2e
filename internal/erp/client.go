// Package erp is the read-only client for the external ERP document source,
// the system of record for sales documents, customers and stock.
package erp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrDocumentNotFound distinguishes a missing document from a transport
// failure so the workflow can revert with a specific message.
var ErrDocumentNotFound = errors.New("erp: document not found")

// DocumentSource is the contract consumed by the dispatch workflow. The HTTP
// client below is the production implementation; tests substitute their own.
type DocumentSource interface {
	SearchDocuments(ctx context.Context, term string) ([]DocumentRef, error)
	GetInvoiceData(ctx context.Context, documentID string) (*Invoice, error)
}

// ProductCatalog is the read-only product lookup contract.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
}

// Client talks to the ERP REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an ERP client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("erp: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("erp: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrDocumentNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("erp: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("erp: decode response: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("erp: api error %d: %s", env.Code, env.Message)
	}
	return json.Unmarshal(env.Data, out)
}

// SearchDocuments finds dispatchable documents by free text.
func (c *Client) SearchDocuments(ctx context.Context, term string) ([]DocumentRef, error) {
	query := url.Values{}
	query.Set("q", term)

	var docs []DocumentRef
	if err := c.get(ctx, "/api/documents/search", query, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetInvoiceData loads the header and required line items of a document.
func (c *Client) GetInvoiceData(ctx context.Context, documentID string) (*Invoice, error) {
	var inv Invoice
	if err := c.get(ctx, "/api/documents/"+url.PathEscape(documentID), nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetProduct returns catalog data for a product id.
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var p Product
	if err := c.get(ctx, "/api/products/"+url.PathEscape(productID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
