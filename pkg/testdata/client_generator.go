package testdata

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/jordanlanch/taxpipe/pkg/models"
)

// ClientGeneratorConfig configures client record generation parameters
type ClientGeneratorConfig struct {
	Count       int
	Domain      models.Domain
	SaleChance  float64 // 0.0-1.0 (probability of a sale-lifecycle client)
	TokenChance float64 // probability of carrying a live scheduling token
	Seed        int64
}

// DefaultClientGeneratorConfig returns sensible defaults for seeding a dev
// database.
func DefaultClientGeneratorConfig() ClientGeneratorConfig {
	return ClientGeneratorConfig{
		Count:       50,
		Domain:      models.DomainTAG,
		SaleChance:  0.4,
		TokenChance: 0.8,
		Seed:        time.Now().UnixNano(),
	}
}

var saleStages = []models.Stage{
	models.StagePrac, models.StagePOA, models.StageF433A, models.StageUpdate433A,
}

var createDateStages = []models.Stage{
	models.StageTaxOrganizer, models.StagePenaltyAbatement,
	models.StageTaxDeadline, models.StageYearReview, models.StageAdserv,
}

// GenerateClients produces realistic client records for tests and dev seeds.
func GenerateClients(cfg ClientGeneratorConfig) []*models.ClientRecord {
	faker := gofakeit.New(cfg.Seed)
	rng := rand.New(rand.NewSource(cfg.Seed))
	now := time.Now().UTC()

	clients := make([]*models.ClientRecord, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		c := &models.ClientRecord{
			CaseNumber: fmt.Sprintf("%d%05d", 10+rng.Intn(90), i),
			Domain:     cfg.Domain,
			Name:       faker.Name(),
			Email:      faker.Email(),
			Cell:       fmt.Sprintf("+1202555%04d", rng.Intn(10000)),
			CreateDate: now.AddDate(0, -rng.Intn(18), -rng.Intn(28)),
			Status:     models.StatusActive,
		}

		if rng.Float64() < cfg.SaleChance {
			saleDate := now.AddDate(0, 0, -rng.Intn(60))
			c.SaleDate = &saleDate
			c.Stage = saleStages[rng.Intn(len(saleStages))]
			if c.Stage == models.StageUpdate433A && rng.Float64() < 0.5 {
				second := saleDate.AddDate(0, 1, 0)
				c.SecondPaymentDate = &second
			}
		} else {
			c.Stage = createDateStages[rng.Intn(len(createDateStages))]
		}

		if rng.Float64() < cfg.TokenChance {
			expires := now.AddDate(0, 0, 7+rng.Intn(30))
			c.Token = faker.UUID()
			c.TokenExpiresAt = &expires
		}

		clients = append(clients, c)
	}
	return clients
}
