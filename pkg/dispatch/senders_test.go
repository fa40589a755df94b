package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/taxpipe/pkg/models"
)

func providerEntry(address string) models.QueueEntry {
	return models.QueueEntry{
		Name:        "Dana Fox",
		CaseNumber:  "C-1",
		Domain:      models.DomainWYNN,
		StagePiece:  "Prac Text 1",
		ContactType: models.ContactText,
		Address:     address,
		Token:       "tok-abc",
	}
}

func TestTextProviderSenderPostsMessage(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewTextProviderSender(srv.URL, "key-123", "+15551230000",
		"https://book.example.com/schedule", DefaultTextTemplates())

	err := s.Send(context.Background(), providerEntry("+447911123456"))
	require.NoError(t, err)

	assert.Equal(t, "/text-messages.json", gotPath)
	assert.Equal(t, "Bearer key-123", gotAuth)
	assert.Equal(t, "+447911123456", gotBody["customer_phone_number"])
	assert.Equal(t, "+15551230000", gotBody["tracking_number"])
	assert.Contains(t, gotBody["content"], "Dana Fox")
	assert.Contains(t, gotBody["content"], "https://book.example.com/schedule/tok-abc")
}

func TestTextProviderSenderSurfacesProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid tracking number"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s := NewTextProviderSender(srv.URL, "key-123", "+15551230000",
		"https://book.example.com/schedule", DefaultTextTemplates())

	err := s.Send(context.Background(), providerEntry("+447911123456"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "invalid tracking number")
}

func TestTextProviderSenderRefusesLandlines(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	s := NewTextProviderSender(srv.URL, "key-123", "+15551230000",
		"https://book.example.com/schedule", DefaultTextTemplates())

	err := s.Send(context.Background(), providerEntry("+442079460958"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot receive texts")
	assert.Zero(t, calls, "landlines never reach the provider")
}

func TestTextProviderSenderRequiresTemplate(t *testing.T) {
	s := NewTextProviderSender("http://unused", "key-123", "+15551230000",
		"https://book.example.com/schedule", map[string]string{})

	err := s.Send(context.Background(), providerEntry("+447911123456"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no template")
}
