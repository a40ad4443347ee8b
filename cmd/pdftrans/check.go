package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dasmlab/pdftrans/pkg/service"
	"github.com/dasmlab/pdftrans/pkg/translate"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and API keys",
		Long: `Check validates the configuration and verifies that every keyed provider
has a plausible API key. With --probe it also sends a minimal request to
each provider.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}

			section("Providers")
			for _, p := range []struct {
				name string
				cfg  translate.Config
			}{
				{"paragraphs", cfg.ParagraphProvider()},
				{"tables", cfg.TableProvider()},
			} {
				if err := translate.CheckKey(p.cfg.Engine, p.cfg.APIKey); err != nil {
					errorf("%s: %v", p.name, err)
					continue
				}
				key := translate.MaskKey(p.cfg.APIKey)
				if key == "" {
					key = "(no key needed)"
				}
				successf("%s: %s %s", p.name, p.cfg.Engine, key)
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			successf("configuration valid (%s → %s, converter %s)", cfg.SourceLang, cfg.TargetLang, cfg.Converter.Engine)

			if !probe {
				return nil
			}
			runner, err := service.NewRunner(cfg, root.newLogger(cfg, cmd))
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := runner.CheckHealth(ctx); err != nil {
				return err
			}
			successf("providers reachable")
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "send a test request to each provider")
	return cmd
}
