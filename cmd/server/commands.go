package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/caro-api/internal/config"
	"github.com/phrazzld/caro-api/internal/platform/logger"
	"github.com/phrazzld/caro-api/internal/platform/sqlstore"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFlag         = "config"
	logLevelFlag       = "log-level"
	logFormatFlag      = "log-format"
	databaseDriverFlag = "database-driver"
	databaseURLFlag    = "database-url"
	portFlag           = "port"
	migrateFlag        = "migrate"
)

// flagKeys maps command-line flags to the configuration keys they override.
var flagKeys = map[string]string{
	logLevelFlag:       "server.log_level",
	logFormatFlag:      "server.log_format",
	databaseDriverFlag: "database.driver",
	databaseURLFlag:    "database.url",
	portFlag:           "server.port",
}

// newRootCommand builds the command tree. Every invocation gets its own
// viper instance, so commands never share configuration state.
func newRootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "caro-api",
		Short:         "Spaced repetition review scheduler with gamification and study analytics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String(configFlag, "", "path to a YAML config file (default ./config.yaml or /etc/caro/config.yaml)")
	flags.String(logLevelFlag, "", "log level: debug, info, warn, or error")
	flags.String(logFormatFlag, "", "log format: json or text")
	flags.String(databaseDriverFlag, "", "database driver: postgres or sqlite")
	flags.String(databaseURLFlag, "", "postgres connection URL or SQLite file path")

	root.AddCommand(newServeCommand(v), newMigrateCommand(v))
	return root
}

// bindFlags lets the flags set on the command line override configuration.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return
		}
		errs = append(errs, v.BindPFlag(key, f))
	})
	return errors.Join(errs...)
}

// loadRuntime reads the configuration for cmd and sets up the logger.
func loadRuntime(cmd *cobra.Command, v *viper.Viper) (*config.Config, *slog.Logger, error) {
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return nil, nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	if path, _ := cmd.Flags().GetString(configFlag); path != "" {
		v.SetConfigFile(path)
	}

	cfg, err := config.LoadFrom(v)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(logger.LoggerConfig{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
		Output: cmd.OutOrStdout(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the event subscribers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime(cmd, v)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, dialect, err := openDatabase(ctx, cfg.Database, log)
			if err != nil {
				return err
			}

			if migrate, _ := cmd.Flags().GetBool(migrateFlag); migrate {
				if err := sqlstore.NewMigrator(db, dialect, log).Up(ctx); err != nil {
					_ = db.Close()
					return err
				}
			}

			app, err := newApplication(ctx, cfg, log, db, dialect)
			if err != nil {
				_ = db.Close()
				return err
			}
			return app.Run(ctx)
		},
	}

	cmd.Flags().Int(portFlag, 0, "HTTP port (default 8080)")
	cmd.Flags().Bool(migrateFlag, false, "apply pending migrations before serving")
	return cmd
}

func newMigrateCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|reset|status|version]",
		Short:     "Run database schema migrations",
		Long:      "Applies or inspects the embedded schema migrations of the configured database. Defaults to up.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{sqlstore.MigrateUp, sqlstore.MigrateDown, sqlstore.MigrateReset, sqlstore.MigrateStatus, sqlstore.MigrateVersion},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := sqlstore.MigrateUp
			if len(args) == 1 {
				command = args[0]
			}

			cfg, log, err := loadRuntime(cmd, v)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, dialect, err := openDatabase(ctx, cfg.Database, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Error("failed to close database", slog.String("error", err.Error()))
				}
			}()

			migrator := sqlstore.NewMigrator(db, dialect, log)
			if err := migrator.Run(ctx, command); err != nil {
				return err
			}

			version, err := migrator.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
			return nil
		},
	}
}
