package cli

import (
	"context"

	"caseboard-service/internal/caseconfig"
	"caseboard-service/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewSeedCmd writes the default case config and registers its sessions.
func NewSeedCmd(configPath *string) *cobra.Command {
	var caseID string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Store the default case configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, caseID)
		},
	}
	cmd.Flags().StringVar(&caseID, "case", "default", "case id to seed")
	return cmd
}

func runSeed(ctx context.Context, configPath, caseID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	deps, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	saved, err := deps.setup.Save(ctx, caseconfig.Default(caseID))
	if err != nil {
		return err
	}
	log.Info().Str("case", saved.ID).Int("steps", len(saved.Steps)).Int("sessions", len(saved.Sessions)).Msg("case seeded")
	return nil
}
