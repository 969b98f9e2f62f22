package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pd-triglav/contentd/config"
	"github.com/pd-triglav/contentd/internal/content"
	"github.com/pd-triglav/contentd/internal/feed"
	"github.com/pd-triglav/contentd/internal/provider"
	"github.com/pd-triglav/contentd/internal/store"
	"github.com/pd-triglav/contentd/internal/task"
)

// generateCMD runs generation for today's key, or for every day in a
// --from/--to range when pre-seeding content ahead of time. Also useful for
// smoke-testing provider credentials and feeds from a shell.
func generateCMD() *cobra.Command {
	var cfgPath string
	var fromStr, toStr string

	var generate = &cobra.Command{
		Use:   "generate <event_of_day|daily_digest>",
		Short: "Generate content for today or for a date range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentType := store.ContentType(args[0])
			if !contentType.Valid() {
				return fmt.Errorf("unknown content type: %s", args[0])
			}
			from, to, err := parseDateRange(fromStr, toStr)
			if err != nil {
				return err
			}

			cfg := config.LoadConfig(cfgPath)

			ctx := context.Background()
			st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return err
			}

			adapters := []provider.Adapter{
				provider.NewMoonshot(cfg.Providers.Moonshot),
				provider.NewDeepSeek(cfg.Providers.DeepSeek),
			}
			providers, err := provider.NewManager(adapters, cfg.Providers.Order)
			if err != nil {
				return err
			}

			var collectors []feed.Collector
			for _, rss := range cfg.Feeds.RSS {
				collectors = append(collectors, feed.NewRSS(rss))
			}
			if cfg.Feeds.NewsAPI.APIKey != "" {
				collectors = append(collectors, feed.NewNewsAPI(cfg.Feeds.NewsAPI, cfg.Feeds.Timeout))
			}
			if cfg.Feeds.Chronicle.BaseURL != "" {
				collectors = append(collectors, feed.NewChronicle(cfg.Feeds.Chronicle, cfg.Feeds.Timeout))
			}
			aggregator := feed.NewAggregator(collectors, cfg.Aggregation)

			registry := task.NewRegistry(cfg.Generation.TaskRetention)
			runner := task.NewRunner(cfg.Generation.Workers)
			runner.Start(ctx)
			defer runner.Stop()

			orch := content.NewOrchestrator(st, providers, aggregator, registry, runner, nil, cfg.Generation)

			poll := cfg.Generation.PollInterval
			if poll <= 0 {
				poll = 2 * time.Second
			}
			for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
				dateKey := content.DateKeyFor(contentType, d)
				res, err := orch.Regenerate(contentType, dateKey)
				if err != nil {
					return err
				}
				fmt.Printf("%s: task %s started\n", dateKey, res.Task.ID)
				if err := waitForTask(registry, task.Key{ContentType: string(contentType), DateKey: dateKey}, cfg.Generation.Window, poll); err != nil {
					return err
				}
			}
			return nil
		},
	}
	generate.Flags().StringVar(&fromStr, "from", "", "start date (YYYY-MM-DD) for range generation")
	generate.Flags().StringVar(&toStr, "to", "", "end date (YYYY-MM-DD) for range generation")
	generate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return generate
}

// parseDateRange turns the --from/--to flags into an inclusive day range.
// Both empty means a single run for today.
func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if (fromStr == "") != (toStr == "") {
		return time.Time{}, time.Time{}, fmt.Errorf("--from and --to must be given together")
	}
	if fromStr == "" {
		now := time.Now()
		return now, now, nil
	}
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad --from date: %w", err)
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad --to date: %w", err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to is before --from")
	}
	return from, to, nil
}

func waitForTask(registry *task.Registry, key task.Key, window, poll time.Duration) error {
	deadline := time.Now().Add(window + 30*time.Second)
	for time.Now().Before(deadline) {
		t, ok := registry.Lookup(key)
		if ok && (t.Status == task.StatusSucceeded || t.Status == task.StatusFailed) {
			if t.Error != "" {
				fmt.Printf("%s: task %s %s: %s\n", key.DateKey, t.ID, t.Status, t.Error)
			} else {
				fmt.Printf("%s: task %s %s (record %d)\n", key.DateKey, t.ID, t.Status, t.RecordID)
			}
			return nil
		}
		time.Sleep(poll)
	}
	return fmt.Errorf("task for %s did not finish before the deadline", key.DateKey)
}
