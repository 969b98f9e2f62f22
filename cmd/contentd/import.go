package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pd-triglav/contentd/config"
	srv "github.com/pd-triglav/contentd/internal/server"
	"github.com/pd-triglav/contentd/internal/store"
)

// importCMD loads curated records from a JSON file straight into Postgres.
// Existing curated rows for the same key are never overwritten.
func importCMD() *cobra.Command {
	var cfgPath string

	var importCmd = &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import curated content records from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var items []srv.ImportItem
			if err := json.Unmarshal(data, &items); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			if len(items) == 0 {
				return fmt.Errorf("%s holds no records", args[0])
			}
			records, err := srv.CuratedRecords(items)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return err
			}
			imported, skipped, err := st.ImportCurated(ctx, records)
			if err != nil {
				return err
			}
			fmt.Printf("imported %d records, skipped %d\n", imported, skipped)
			return nil
		},
	}
	importCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return importCmd
}
