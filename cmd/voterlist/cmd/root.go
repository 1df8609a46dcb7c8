// Package cmd implements the voterlist command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/VotersList/internal/config"
	"github.com/JonMunkholm/VotersList/internal/core"
	"github.com/JonMunkholm/VotersList/internal/extract"
	"github.com/JonMunkholm/VotersList/internal/logging"
	"github.com/JonMunkholm/VotersList/internal/sink"
	"github.com/JonMunkholm/VotersList/internal/store"
)

const defaultEnvFile = ".env"

// app is the state shared by every subcommand once the root has loaded it.
type app struct {
	envFile   string
	logLevel  string
	logFormat string

	cfg *config.Config
}

// Execute runs the command line with os.Args.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		printError(root.ErrOrStderr(), err)
		return err
	}
	return nil
}

// printError writes err, followed by its user-facing hint when one is known.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if core.IsUserFacing(err) {
		fmt.Fprintf(w, "  %s\n", core.FormatUserError(err))
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "voterlist",
		Short: "Convert Maldivian voter register PDFs to CSV",
		Long: `voterlist extracts the voter table from register PDFs, validates every
row, decodes the transliterated Thaana columns and writes one CSV per
document plus an extraction report of the rows that could not be used.

Settings come from the environment (optionally a .env file); flags
override them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", defaultEnvFile, "environment file to load before reading settings")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json (overrides LOG_FORMAT)")

	root.AddCommand(
		newConvertCmd(a),
		newServeCmd(a),
		newMigrateCmd(a),
		newDecodeCmd(),
	)
	return root
}

// load reads the env file and the environment, then configures logging.
// Validation is left to each subcommand, after its flags are applied.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Overload(a.envFile); err != nil {
		explicit := cmd.Flags().Changed("env-file")
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	a.cfg = cfg

	logging.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

// validate checks the configuration after flag overrides.
func (a *app) validate() error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	slog.Debug("configuration loaded", "config", a.cfg.String())
	return nil
}

func (a *app) extractOptions() extract.Options {
	return extract.Options{
		SkipLeadingPages:  a.cfg.Extract.SkipLeadingPages,
		SkipTrailingPages: a.cfg.Extract.SkipTrailingPages,
		RowTolerance:      a.cfg.Extract.RowTolerance,
		MinRuleLength:     a.cfg.Extract.MinRuleLength,
	}
}

func (a *app) outputOptions() core.OutputOptions {
	return core.OutputOptions{
		BOM:         a.cfg.Output.BOM,
		Compression: a.cfg.Output.Compression,
	}
}

// openSink returns the configured artifact destination.
func (a *app) openSink(ctx context.Context) (sink.Sink, error) {
	if !strings.EqualFold(a.cfg.Storage.Backend, config.StorageS3) {
		return sink.NewLocal(a.cfg.Output.Dir)
	}
	s := a.cfg.Storage
	return sink.NewS3(ctx, sink.S3Config{
		Bucket:         s.S3Bucket,
		Prefix:         s.S3Prefix,
		Region:         s.S3Region,
		AccessKeyID:    s.S3AccessKeyID,
		SecretKey:      s.S3SecretKey,
		Endpoint:       s.S3Endpoint,
		ForcePathStyle: s.S3ForcePathStyle,
	})
}

// openStore connects and migrates when a database is configured.
// It returns nil without error when none is.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	db := a.cfg.Database
	if !db.HasDatabase() {
		return nil, nil
	}

	st, err := store.Connect(ctx, a.storeConfig())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx, db.MigrationsTable); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func (a *app) storeConfig() store.Config {
	db := a.cfg.Database
	return store.Config{
		URL:             db.URL,
		MaxConns:        int32(db.MaxConns),
		MinConns:        int32(db.MinConns),
		MaxConnIdleTime: db.MaxConnIdleTime,
		RetryAttempts:   db.RetryAttempts,
		RetryInterval:   db.RetryInterval,
		MigrationsTable: db.MigrationsTable,
	}
}
