package logics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/taxpipe/pkg/domain"
	"github.com/jordanlanch/taxpipe/pkg/models"
)

func TestFetchInvoices(t *testing.T) {
	created := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	var gotAuth, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode([]domain.Invoice{
			{CreatedDate: created, Amount: 500},
			{CreatedDate: created.AddDate(0, 1, 0), Amount: 750},
		})
	}))
	defer srv.Close()

	c := NewClient(map[models.Domain]Endpoint{
		models.DomainTAG: {BaseURL: srv.URL, APIKey: "key-tag"},
	})

	invoices, err := c.FetchInvoices(context.Background(), models.DomainTAG, "C-100")
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, 500.0, invoices[0].Amount)
	assert.True(t, created.Equal(invoices[0].CreatedDate))
	assert.Equal(t, "Bearer key-tag", gotAuth)
	assert.Equal(t, "/api/cases/C-100/invoices", gotPath)
}

func TestFetchBillingSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cases/C-100/billing", r.URL.Path)
		json.NewEncoder(w).Encode(domain.BillingSummary{PastDue: 120, PaidAmount: 900, Balance: 300})
	}))
	defer srv.Close()

	c := NewClient(map[models.Domain]Endpoint{
		models.DomainWYNN: {BaseURL: srv.URL},
	})

	summary, err := c.FetchBillingSummary(context.Background(), models.DomainWYNN, "C-100")
	require.NoError(t, err)
	assert.Equal(t, 120.0, summary.PastDue)
	assert.Equal(t, 900.0, summary.PaidAmount)
}

func TestFetchActivities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cases/C-100/activities", r.URL.Path)
		json.NewEncoder(w).Encode([]domain.Activity{
			{CreatedDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), Subject: "Status changed"},
		})
	}))
	defer srv.Close()

	c := NewClient(map[models.Domain]Endpoint{
		models.DomainAMITY: {BaseURL: srv.URL},
	})

	activities, err := c.FetchActivities(context.Background(), models.DomainAMITY, "C-100")
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "Status changed", activities[0].Subject)
}

func TestClientErrors(t *testing.T) {
	t.Run("unconfigured domain", func(t *testing.T) {
		c := NewClient(map[models.Domain]Endpoint{})
		_, err := c.FetchInvoices(context.Background(), models.DomainTAG, "C-100")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no endpoint configured")
	})

	t.Run("non-200 response surfaces status and body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "case not found", http.StatusNotFound)
		}))
		defer srv.Close()

		c := NewClient(map[models.Domain]Endpoint{models.DomainTAG: {BaseURL: srv.URL}})
		_, err := c.FetchInvoices(context.Background(), models.DomainTAG, "C-100")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
		assert.Contains(t, err.Error(), "case not found")
		assert.True(t, domain.IsProviderFetch(err), "callers tell outages apart from our own bugs")
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}))
		defer srv.Close()

		c := NewClient(map[models.Domain]Endpoint{models.DomainTAG: {BaseURL: srv.URL}})
		_, err := c.FetchBillingSummary(context.Background(), models.DomainTAG, "C-100")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode")
	})

	t.Run("context cancellation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		c := NewClient(map[models.Domain]Endpoint{models.DomainTAG: {BaseURL: srv.URL}})
		_, err := c.FetchActivities(ctx, models.DomainTAG, "C-100")
		assert.Error(t, err)
	})
}
