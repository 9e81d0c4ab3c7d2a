package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/constructa/propostas/internal/freight"
	"github.com/constructa/propostas/internal/platform/db"
	"github.com/constructa/propostas/internal/shared"
)

type rateImporter interface {
	ImportRates(ctx context.Context, seed freight.Seed) (freight.ImportSummary, error)
}

func seedFreightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-freight <file.yaml>",
		Short: "Import vehicles and freight rates from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			pool, err := db.New(ctx, e.cfg.PGDSN)
			if err != nil {
				return err
			}
			defer pool.Close()
			return importFreight(ctx, f, freight.NewService(freight.NewRepository(pool), shared.NewAuditLogger(pool)), cmd.OutOrStdout())
		},
	}
}

func importFreight(ctx context.Context, r io.Reader, importer rateImporter, out io.Writer) error {
	seed, err := freight.ParseSeed(r)
	if err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	summary, err := importer.ImportRates(ctx, seed)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "vehicles: %d, rates created: %d, rates updated: %d\n",
		summary.Vehicles, summary.RatesCreated, summary.RatesUpdated)
	return nil
}
