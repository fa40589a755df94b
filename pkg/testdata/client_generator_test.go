package testdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/taxpipe/pkg/models"
)

func TestGenerateClients(t *testing.T) {
	cfg := ClientGeneratorConfig{
		Count:       40,
		Domain:      models.DomainWYNN,
		SaleChance:  0.5,
		TokenChance: 0.5,
		Seed:        42,
	}
	clients := GenerateClients(cfg)
	require.Len(t, clients, 40)

	seen := map[string]bool{}
	for _, c := range clients {
		assert.False(t, seen[c.CaseNumber], "case numbers must be unique")
		seen[c.CaseNumber] = true

		assert.Equal(t, models.DomainWYNN, c.Domain)
		assert.Equal(t, models.StatusActive, c.Status)
		assert.NotEmpty(t, c.Name)
		assert.NotEmpty(t, c.Email)
		assert.False(t, c.CreateDate.IsZero())

		if c.IsSaleClient() {
			assert.Contains(t, saleStages, c.Stage)
		} else {
			assert.Contains(t, createDateStages, c.Stage)
			assert.Nil(t, c.SecondPaymentDate)
		}

		if c.Token != "" {
			assert.NotNil(t, c.TokenExpiresAt)
		}
	}
}

func TestGenerateClientsIsDeterministicPerSeed(t *testing.T) {
	cfg := DefaultClientGeneratorConfig()
	cfg.Count = 10
	cfg.Seed = 7

	a := GenerateClients(cfg)
	b := GenerateClients(cfg)

	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].CaseNumber, b[i].CaseNumber)
		assert.Equal(t, a[i].Name, b[i].Name)
		assert.Equal(t, a[i].Stage, b[i].Stage)
	}
}
