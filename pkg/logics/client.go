package logics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jordanlanch/taxpipe/pkg/domain"
	"github.com/jordanlanch/taxpipe/pkg/models"
)

// Endpoint is one brand's case API host and credential.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

// Client is a thin read-only client for the Logics case-management API. Each
// brand domain runs its own tenant, so every call resolves a per-domain
// endpoint first.
type Client struct {
	endpoints map[models.Domain]Endpoint
	http      *http.Client
}

var _ domain.CaseDataProvider = (*Client)(nil)

// NewClient creates a case API client
func NewClient(endpoints map[models.Domain]Endpoint) *Client {
	return &Client{
		endpoints: endpoints,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchInvoices returns every invoice on the case, oldest first.
func (c *Client) FetchInvoices(ctx context.Context, dom models.Domain, caseNumber string) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	if err := c.get(ctx, dom, fmt.Sprintf("/api/cases/%s/invoices", caseNumber), &invoices); err != nil {
		return nil, domain.NewProviderFetchError("invoice", err)
	}
	return invoices, nil
}

// FetchBillingSummary returns the billing rollup for the case.
func (c *Client) FetchBillingSummary(ctx context.Context, dom models.Domain, caseNumber string) (*domain.BillingSummary, error) {
	var summary domain.BillingSummary
	if err := c.get(ctx, dom, fmt.Sprintf("/api/cases/%s/billing", caseNumber), &summary); err != nil {
		return nil, domain.NewProviderFetchError("billing", err)
	}
	return &summary, nil
}

// FetchActivities returns the case's activity history.
func (c *Client) FetchActivities(ctx context.Context, dom models.Domain, caseNumber string) ([]domain.Activity, error) {
	var activities []domain.Activity
	if err := c.get(ctx, dom, fmt.Sprintf("/api/cases/%s/activities", caseNumber), &activities); err != nil {
		return nil, domain.NewProviderFetchError("activity", err)
	}
	return activities, nil
}

func (c *Client) get(ctx context.Context, dom models.Domain, path string, out interface{}) error {
	ep, ok := c.endpoints[dom]
	if !ok || ep.BaseURL == "" {
		return fmt.Errorf("no endpoint configured for domain %s", dom)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("case API returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
