// Command pdftrans translates PDF documents into Word documents.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dasmlab/pdftrans/pkg/config"
	"github.com/dasmlab/pdftrans/pkg/convert"
	"github.com/dasmlab/pdftrans/pkg/translate"
)

// Set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configPath  string
	envFile     string
	logLevel    string
	noColor     bool
	sourceLang  string
	targetLang  string
	engine      string
	tableEngine string
	converter   string
	concurrency int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errorf("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&rootOptions{})
}

func buildRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pdftrans",
		Short:         "Translate PDF documents into Word documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initUI(opts.noColor)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	f.StringVar(&opts.envFile, "env-file", ".env", "environment file to load if present")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	f.StringVarP(&opts.sourceLang, "source", "s", "", "source language (default from config, en)")
	f.StringVarP(&opts.targetLang, "target", "t", "", "target language (default from config, zh)")
	f.StringVar(&opts.engine, "engine", "", "paragraph provider: doubao, zhipu, openai, ollama, libretranslate")
	f.StringVar(&opts.tableEngine, "table-engine", "", "table provider (default: same as --engine)")
	f.StringVar(&opts.converter, "converter", "", "PDF converter: pdf2docx, libreoffice, command, builtin")
	f.IntVar(&opts.concurrency, "concurrency", 0, "in-flight provider calls per phase")

	cmd.AddCommand(newTranslateCmd(opts), newCheckCmd(opts), newVersionCmd())
	return cmd
}

// load builds the configuration: defaults, file, environment, then the
// flags that were set.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", o.envFile, err)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.SourceLang = o.sourceLang
	}
	if flags.Changed("target") {
		cfg.TargetLang = o.targetLang
	}
	if flags.Changed("engine") {
		e, err := translate.ParseEngineType(o.engine)
		if err != nil {
			return nil, err
		}
		cfg.Paragraph.Engine = e
	}
	if flags.Changed("table-engine") {
		e, err := translate.ParseEngineType(o.tableEngine)
		if err != nil {
			return nil, err
		}
		cfg.Table.Engine = e
	}
	if flags.Changed("converter") {
		e, err := convert.ParseEngine(o.converter)
		if err != nil {
			return nil, err
		}
		cfg.Converter.Engine = e
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency.Paragraphs, cfg.Concurrency.Tables = o.concurrency, o.concurrency
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	cfg.ResolveKeys(os.LookupEnv)
	return cfg, nil
}

// newLogger writes to stderr. Unless a level was chosen explicitly, the CLI
// logs warnings only so that log lines do not break the progress bars.
func (o *rootOptions) newLogger(cfg *config.Config, cmd *cobra.Command) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using warn")
		level = logrus.WarnLevel
	}
	_, fromEnv := os.LookupEnv(config.EnvLogLevel)
	if !cmd.Flags().Changed("log-level") && !fromEnv && level == logrus.InfoLevel {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)
	return logger
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pdftrans %s (%s)\n", version, commit)
		},
	}
}
