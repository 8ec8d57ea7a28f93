package main

import (
	"context"
	"fmt"
	"time"

	"loan-assistant/internal/common/config"
	"loan-assistant/internal/common/crm"
	"loan-assistant/internal/common/database"
	"loan-assistant/internal/directory"
	"loan-assistant/internal/models"
	"loan-assistant/pkg/customerfile"

	"github.com/spf13/cobra"
)

type seedOptions struct {
	file       string
	target     string
	configPath string
}

func newSeedCmd() *cobra.Command {
	opts := &seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load customers from a JSON file into the configured directory",
		Long: "Validates a customer file and upserts every record into Postgres or the CRM. " +
			"Connection settings come from the service configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			customers, err := customerfile.Load(opts.file)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			upsert, closeFn, err := seedTarget(ctx, cfg, opts.target)
			if err != nil {
				return err
			}
			defer closeFn()

			for _, c := range customers {
				if err := upsert(ctx, c); err != nil {
					return fmt.Errorf("seed %s: %w", c.Phone, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d customers into %s\n", len(customers), opts.target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "data/customers.json", "customer file to load")
	cmd.Flags().StringVar(&opts.target, "target", config.BackendPostgres, "directory to seed: postgres or crm")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (defaults to configs/config.yaml)")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

type upsertFunc func(ctx context.Context, c models.Customer) error

func seedTarget(ctx context.Context, cfg *config.Config, target string) (upsertFunc, func(), error) {
	switch target {
	case config.BackendPostgres:
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		dir := directory.NewPostgresDirectory(pg.DB)
		if err := dir.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return dir.Upsert, func() { pg.Close() }, nil

	case config.BackendCRM:
		client := crm.NewClient(cfg.Directory.CRM.BaseURL, cfg.Directory.CRM.APIKey, config.GetDuration(cfg.Directory.CRM.Timeout))
		return func(ctx context.Context, c models.Customer) error {
			return client.UpsertCustomer(ctx, &c)
		}, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported seed target %q", target)
	}
}
