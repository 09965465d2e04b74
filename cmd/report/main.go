package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"prediction-engine/internal/config"
	"prediction-engine/internal/database"
	"prediction-engine/internal/logger"
	"prediction-engine/internal/models"
	"prediction-engine/internal/repository"
	"prediction-engine/internal/services"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

func main() {
	resolvedLimit := flag.Int("resolved", 20, "number of resolved markets to show")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if err := database.Connect(cfg.Database.Driver, cfg.GetDSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	store := repository.NewStore(database.GetDB())
	markets := services.NewMarketService(store, nil, nil, cfg.Market.DefaultLiquidity, 0, *resolvedLimit)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	predictions, err := markets.ListPredictions(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load markets")
	}

	render(os.Stdout, predictions)
}

func render(out io.Writer, p *models.PredictionsResponse) {
	fmt.Fprintf(out, "\nOpen markets: %d\n", len(p.Active))
	open := tablewriter.NewWriter(out)
	open.Header("ID", "Question", "Answer A", "Price A", "Answer B", "Price B", "Expires")
	for _, m := range p.Active {
		open.Append(
			fmt.Sprintf("%d", m.ID),
			truncate(m.Question, 48),
			m.AnswerA,
			fmt.Sprintf("%.2f%%", m.PriceA),
			m.AnswerB,
			fmt.Sprintf("%.2f%%", m.PriceB),
			m.ExpiresAt.UTC().Format(time.RFC3339),
		)
	}
	open.Render()

	fmt.Fprintf(out, "\nResolved markets: %d\n", len(p.Resolved))
	resolved := tablewriter.NewWriter(out)
	resolved.Header("ID", "Question", "Result", "Winners", "Paid", "Manual", "Resolved")
	for _, r := range p.Resolved {
		resolved.Append(
			fmt.Sprintf("%d", r.MarketID),
			truncate(r.Question, 48),
			r.Result,
			fmt.Sprintf("%d/%d", r.WinnerCount, r.TotalPositions),
			r.TotalPaid.StringFixed(2),
			fmt.Sprintf("%t", r.Manual),
			r.ResolvedAt.UTC().Format(time.RFC3339),
		)
	}
	resolved.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
