package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"healthTrackerAPI/internal/config"
	"healthTrackerAPI/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Driver string
	Format string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command. Without a subcommand it serves
// HTTP.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "health-tracker",
		Short: "Health tracker achievements engine",
		Long:  "Evaluates tracked health activity against the achievement catalog and maintains points and levels.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver override (postgres|sqlite|memory)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewLevelCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))

	return cmd
}

// loadApp reads configuration, applies flag overrides and wires the engine.
func loadApp(cmd *cobra.Command, opts *RootOptions) (*App, error) {
	// godotenv never overrides variables that are already set, so the flag
	// wins over .env.
	if opts.Driver != "" {
		if err := os.Setenv("STORE_DRIVER", opts.Driver); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app, err := NewApp(cmd.Context(), cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return app, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
