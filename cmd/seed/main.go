package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/optivista/lensadvisor/internal/adapters/database"
	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/optivista/lensadvisor/internal/infrastructure/clients/postgres"
	"github.com/optivista/lensadvisor/pkg/config"
)

func main() {
	var dryRun bool
	flag.BoolVar(&dryRun, "dry-run", false, "print the baseline corpus without writing")
	flag.Parse()

	corpus := baselineCorpus()

	if dryRun {
		for _, row := range corpus {
			log.Printf("%s: %d orders, %.2f success", row.Configuration.Key(), row.TotalOrdersAnalyzed, row.SuccessRate)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgClient.Close()

	outcomeRepo := database.NewOutcomeAdapter(pgClient)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	seeded := 0
	for _, row := range corpus {
		if err := outcomeRepo.Upsert(ctx, row); err != nil {
			log.Printf("Failed to seed %s: %v", row.Configuration.Key(), err)
			continue
		}
		seeded++
	}

	log.Printf("Seeded %d/%d corpus rows in %s", seeded, len(corpus), time.Since(start))
}

// baselineCorpus returns the starting historical-outcomes rows. Counts stand
// in for a lab's first year of aggregated order results; live RecordOutcome
// calls refine them from there.
func baselineCorpus() []*entities.HistoricalOutcome {
	wrap8 := 8.0

	return []*entities.HistoricalOutcome{
		{
			Configuration: entities.LensConfiguration{
				LensType: "progressive", LensMaterial: "1.67 high-index", Coating: "premium ar",
			},
			TotalOrdersAnalyzed: 1200, SuccessCount: 1104, NonAdaptCount: 60, RemakeCount: 36,
			SuccessRate: 0.92, NonAdaptRate: 0.05, RemakeRate: 0.03,
			ContextTags:       []string{"presbyopic", "screen_use", "high_power"},
			GoodForScenarios:  []string{"high_add_presbyopia", "early_presbyopia"},
			WorstForScenarios: []string{"high_astigmatism"},
			PatternInsights: map[string]entities.PatternInsight{
				"first_time_wearer": {
					Name: "first_time_wearer", Applicable: true, NonAdaptRate: 0.08,
					Description: "soft corridor design eases first-time adaptation",
				},
			},
		},
		{
			Configuration: entities.LensConfiguration{
				LensType: "progressive", LensMaterial: "polycarbonate", Coating: "anti-reflective",
			},
			TotalOrdersAnalyzed: 900, SuccessCount: 774, NonAdaptCount: 81, RemakeCount: 45,
			SuccessRate: 0.86, NonAdaptRate: 0.09, RemakeRate: 0.05,
			ContextTags:      []string{"presbyopic", "active"},
			GoodForScenarios: []string{"early_presbyopia"},
			PatternInsights: map[string]entities.PatternInsight{
				"high_add": {
					Name: "high_add", Applicable: true, NonAdaptRate: 0.14,
					Description: "adds above +2.25 narrow the intermediate zone in this design",
				},
			},
		},
		{
			Configuration: entities.LensConfiguration{
				LensType: "progressive", LensMaterial: "trivex", Coating: "photochromic",
			},
			TotalOrdersAnalyzed: 400, SuccessCount: 352, NonAdaptCount: 28, RemakeCount: 20,
			SuccessRate: 0.88, NonAdaptRate: 0.07, RemakeRate: 0.05,
			ContextTags:      []string{"presbyopic", "outdoor"},
			GoodForScenarios: []string{"early_presbyopia"},
		},
		{
			Configuration: entities.LensConfiguration{
				LensType: "single_vision", LensMaterial: "cr-39", Coating: "uncoated",
			},
			TotalOrdersAnalyzed: 2000, SuccessCount: 1880, NonAdaptCount: 40, RemakeCount: 80,
			SuccessRate: 0.94, NonAdaptRate: 0.02, RemakeRate: 0.04,
			ContextTags:       []string{},
			GoodForScenarios:  []string{"single_vision"},
			WorstForScenarios: []string{"high_power"},
		},
		{
			Configuration: entities.LensConfiguration{
				LensType: "single_vision", LensMaterial: "polycarbonate", Coating: "blue light filter",
			},
			TotalOrdersAnalyzed: 1500, SuccessCount: 1425, NonAdaptCount: 30, RemakeCount: 45,
			SuccessRate: 0.95, NonAdaptRate: 0.02, RemakeRate: 0.03,
			ContextTags:      []string{"screen_use"},
			GoodForScenarios: []string{"single_vision"},
		},
		{
			Configuration: entities.LensConfiguration{
				LensType: "single_vision", LensMaterial: "1.74 high-index", Coating: "premium ar",
			},
			TotalOrdersAnalyzed: 350, SuccessCount: 322, NonAdaptCount: 7, RemakeCount: 21,
			SuccessRate: 0.92, NonAdaptRate: 0.02, RemakeRate: 0.06,
			ContextTags:      []string{"high_power", "glare_sensitive"},
			GoodForScenarios: []string{"single_vision"},
			PatternInsights: map[string]entities.PatternInsight{
				"thin_edge": {
					Name: "thin_edge", Applicable: true, NonAdaptRate: 0.03,
					Description: "edge thickness acceptable beyond -8.00 sphere",
				},
			},
		},
		{
			Configuration: entities.LensConfiguration{
				LensType: "single_vision", LensMaterial: "polycarbonate", Coating: "photochromic",
				WrapAngle: &wrap8,
			},
			TotalOrdersAnalyzed: 250, SuccessCount: 215, NonAdaptCount: 20, RemakeCount: 15,
			SuccessRate: 0.86, NonAdaptRate: 0.08, RemakeRate: 0.06,
			ContextTags:       []string{"outdoor", "active"},
			GoodForScenarios:  []string{"single_vision"},
			WorstForScenarios: []string{"high_astigmatism"},
			PatternInsights: map[string]entities.PatternInsight{
				"wrap_frame": {
					Name: "wrap_frame", Applicable: true, NonAdaptRate: 0.12,
					Description: "wrap angles above 6 degrees need compensated powers",
				},
			},
		},
		{
			Configuration: entities.LensConfiguration{
				LensType: "bifocal", LensMaterial: "cr-39", Coating: "uncoated",
			},
			TotalOrdersAnalyzed: 600, SuccessCount: 540, NonAdaptCount: 24, RemakeCount: 36,
			SuccessRate: 0.90, NonAdaptRate: 0.04, RemakeRate: 0.06,
			ContextTags:       []string{"presbyopic"},
			GoodForScenarios:  []string{"high_add_presbyopia"},
			WorstForScenarios: []string{"screen_use"},
		},
		{
			Configuration: entities.LensConfiguration{
				LensType: "office", LensMaterial: "1.6 high-index", Coating: "blue light filter",
			},
			TotalOrdersAnalyzed: 300, SuccessCount: 279, NonAdaptCount: 9, RemakeCount: 12,
			SuccessRate: 0.93, NonAdaptRate: 0.03, RemakeRate: 0.04,
			ContextTags:       []string{"presbyopic", "screen_use"},
			GoodForScenarios:  []string{"early_presbyopia"},
			WorstForScenarios: []string{"outdoor"},
		},
		{
			Configuration: entities.LensConfiguration{
				LensType: "progressive", LensMaterial: "1.74 high-index", Coating: "premium ar",
			},
			TotalOrdersAnalyzed: 180, SuccessCount: 162, NonAdaptCount: 9, RemakeCount: 9,
			SuccessRate: 0.90, NonAdaptRate: 0.05, RemakeRate: 0.05,
			ContextTags:      []string{"presbyopic", "high_power", "glare_sensitive"},
			GoodForScenarios: []string{"high_add_presbyopia"},
		},
	}
}
