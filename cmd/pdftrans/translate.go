package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dasmlab/pdftrans/pkg/service"
)

type translateOptions struct {
	output    string
	outputDir string
	preview   bool
	font      string
	fontSize  float64
	quiet     bool
}

func newTranslateCmd(root *rootOptions) *cobra.Command {
	opts := &translateOptions{}
	cmd := &cobra.Command{
		Use:   "translate <file.pdf>...",
		Short: "Convert PDFs to Word and translate their paragraphs and tables",
		Example: `  pdftrans translate report.pdf
  pdftrans translate -t de --engine openai --preview report.pdf
  pdftrans translate -o out/report.docx report.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "" && len(args) > 1 {
				return fmt.Errorf("--output needs exactly one input, got %d", len(args))
			}
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output-dir") {
				cfg.Output.Dir = opts.outputDir
			}
			if cmd.Flags().Changed("font") {
				cfg.Output.FontName = opts.font
			}
			if cmd.Flags().Changed("font-size") {
				cfg.Output.FontSize = opts.fontSize
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := root.newLogger(cfg, cmd)
			runner, err := service.NewRunner(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			failed := 0
			for _, in := range args {
				if err := translateOne(ctx, runner, in, opts); err != nil {
					errorf("%s: %v", in, err)
					failed++
					if ctx.Err() != nil {
						break
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "output .docx path (single input only)")
	f.StringVar(&opts.outputDir, "output-dir", "", "directory for output documents (default: next to the input)")
	f.BoolVar(&opts.preview, "preview", false, "print the first source paragraphs before translating")
	f.StringVar(&opts.font, "font", "", "default font of the output document")
	f.Float64Var(&opts.fontSize, "font-size", 0, "default font size in points")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "no progress output")
	return cmd
}

func translateOne(ctx context.Context, runner *service.Runner, in string, opts *translateOptions) error {
	ui := newProgressUI(opts.quiet)
	defer ui.stop()

	var preview func([]string)
	if opts.preview {
		preview = func(paragraphs []string) {
			ui.stage(service.StageTranslate)
			section("Preview: " + in)
			for _, p := range paragraphs {
				fmt.Fprintln(os.Stdout, p)
			}
			fmt.Fprintln(os.Stdout)
		}
	}

	res, err := runner.Run(ctx, service.Request{PDFPath: in, OutputPath: opts.output}, ui.hooks(preview))
	if err != nil {
		return err
	}
	ui.stop()

	successf("%s → %s", in, res.OutputPath)
	if res.Stats.Passthrough > 0 {
		warnf("%d of %d units kept their source text after provider failures",
			res.Stats.Passthrough, res.Stats.Paragraphs+res.Stats.Cells)
	}
	if !opts.quiet {
		fmt.Fprintf(os.Stdout, "  %d paragraphs, %d tables (%d cells), %d pages, %s\n",
			res.Stats.Paragraphs, res.Stats.Tables, res.Stats.Cells, res.Pages, res.Duration.Round(100*time.Millisecond))
	}
	return nil
}
