package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ragchat/internal/config"
	"ragchat/internal/logger"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfgPath  string
	logLevel string
	cfg      *config.AppConfig
	log      logger.Logger
	out      io.Writer
	closers  []io.Closer
}

func rootCmd() *cobra.Command {
	a := &app{out: os.Stdout}
	root := &cobra.Command{
		Use:           "ragchat",
		Short:         "Retrieval-augmented chat over scraped banking product pages",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.out = cmd.OutOrStdout()
			return a.load(cmd.Name() == "chat")
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/ragchat/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	root.AddCommand(
		scrapeCmd(a),
		indexCmd(a),
		askCmd(a),
		chatCmd(a),
		historyCmd(a),
	)
	return root
}

func (a *app) load(toFile bool) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}
	var (
		cfg  *config.AppConfig
		path string
		err  error
	)
	if a.cfgPath == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		path = a.cfgPath
		cfg, err = config.Load(a.cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	logCfg := &logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		Output:     os.Stderr,
		JSON:       cfg.Log.JSON,
		TimeFormat: "15:04:05",
	}
	if toFile && cfg.Log.File != "" {
		f, err := logger.OpenFile(cfg.Log.File)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, f)
		logCfg.Output = f
	}
	a.log = logger.NewLogger(logCfg)
	logger.SetDefault(a.log)
	a.log.Debug("configuration loaded", "path", path)
	return nil
}

func (a *app) close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
