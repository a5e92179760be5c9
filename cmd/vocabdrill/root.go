package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danieldreier/vocab-drill/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// flagKeys maps config keys to the persistent flags that override them
var flagKeys = map[string]string{
	"storage.path":   "db",
	"storage.driver": "driver",
	"log.level":      "log-level",
	"log.format":     "log-format",
}

// app holds the state shared by every subcommand of one invocation
type app struct {
	configFile string
	loader     *config.Loader

	cfg    config.Config
	logger *zap.Logger
	svc    *DrillService
}

func newRootCmd() *cobra.Command {
	a := &app{loader: config.NewLoader()}
	defaults := config.Default()

	rootCmd := &cobra.Command{
		Use:   "vocabdrill",
		Short: "Spaced repetition vocabulary drills",
		Long: `vocabdrill schedules vocabulary practice with SM-2 spacing.

Commands:
  serve     Run the MCP server on stdio
  schedule  Order words for a flashcard, test or review session
  answer    Record the answer to one word
  add       Add a word to a set
  list      List words with their learning state
  stats     Show progress statistics`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Config file (YAML, TOML or JSON)")
	flags.String("db", defaults.Storage.Path, "Path to the data file")
	flags.String("driver", defaults.Storage.Driver, "Storage driver (json or sqlite)")
	flags.String("log-level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "Log format (console or json)")

	rootCmd.AddCommand(
		newServeCmd(a),
		newScheduleCmd(a),
		newAnswerCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newStatsCmd(a),
	)
	return rootCmd
}

// run wraps a subcommand so that it sees a loaded service and the service
// is closed afterwards, whether the command failed or not.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.setup(cmd); err != nil {
			return err
		}
		defer func() {
			if cerr := a.close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := a.loader.BindFlags(cmd.Flags(), flagKeys); err != nil {
		return err
	}
	cfg, err := a.loader.Load(a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.logger = logger

	store, err := openStore(cfg.Storage, logger)
	if err != nil {
		logger.Error("Failed to open storage", zap.String("path", cfg.Storage.Path), zap.Error(err))
		return err
	}
	a.svc = NewDrillService(store, cfg, logger)
	logger.Debug("Service ready",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("path", cfg.Storage.Path),
	)
	return nil
}

func (a *app) close() error {
	var err error
	if a.svc != nil {
		err = a.svc.Close()
		a.svc = nil
	}
	if a.logger != nil {
		// stderr cannot always be synced
		_ = a.logger.Sync()
	}
	return err
}

// writeJSON prints v as indented JSON on the command's output
func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("error encoding output: %w", err)
	}
	return nil
}

// respond prints a response and turns an unsuccessful one into an error so
// the exit status reflects it.
func respond(cmd *cobra.Command, v interface{}, success bool, msg string) error {
	if err := writeJSON(cmd, v); err != nil {
		return err
	}
	if !success {
		return errors.New(msg)
	}
	return nil
}
