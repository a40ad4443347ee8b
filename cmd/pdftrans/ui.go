package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/dasmlab/pdftrans/pkg/pipeline"
	"github.com/dasmlab/pdftrans/pkg/service"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
	headColor    = color.New(color.FgCyan, color.Bold)
)

func initUI(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

func successf(format string, args ...any) {
	successColor.Fprint(os.Stdout, "✓ ")
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}

func errorf(format string, args ...any) {
	errorColor.Fprint(os.Stderr, "✗ ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func warnf(format string, args ...any) {
	warnColor.Fprintf(os.Stdout, "⚠ "+format+"\n", args...)
}

func section(title string) {
	headColor.Fprintf(os.Stdout, "\n%s\n", title)
}

// progressUI renders a run on stderr: a spinner while the PDF converts and
// one bar per translation phase.
type progressUI struct {
	quiet bool

	mu      sync.Mutex
	spin    *spinner.Spinner
	bar     *progressbar.ProgressBar
	phase   pipeline.Phase
	started time.Time
}

func newProgressUI(quiet bool) *progressUI {
	return &progressUI{quiet: quiet}
}

func (u *progressUI) hooks(preview func([]string)) service.Hooks {
	return service.Hooks{
		Stage:    u.stage,
		Preview:  preview,
		Progress: pipeline.ReporterFunc(u.report),
	}
}

func (u *progressUI) stage(s service.Stage) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.quiet {
		return
	}
	switch s {
	case service.StageConvert:
		u.started = time.Now()
		u.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		u.spin.Suffix = " Converting PDF to Word..."
		u.spin.Writer = os.Stderr
		u.spin.Start()
	case service.StageTranslate:
		if u.spin != nil {
			u.spin.Stop()
			u.spin = nil
			fmt.Fprintf(os.Stderr, "Converted in %s\n", time.Since(u.started).Round(100*time.Millisecond))
		}
	case service.StageSave:
		u.finishBar()
	}
}

func (u *progressUI) report(e pipeline.Event) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.quiet {
		return
	}
	if u.bar == nil || e.Phase != u.phase {
		u.finishBar()
		u.phase = e.Phase
		u.bar = newBar(e.Total, phaseLabel(e))
	}
	if e.Phase == pipeline.PhaseTables {
		u.bar.Describe(phaseLabel(e))
	}
	_ = u.bar.Set(e.Done)
}

func (u *progressUI) finishBar() {
	if u.bar != nil {
		_ = u.bar.Finish()
		u.bar = nil
	}
}

// stop clears any live spinner or bar, for error paths.
func (u *progressUI) stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.spin != nil {
		u.spin.Stop()
		u.spin = nil
	}
	u.finishBar()
}

func phaseLabel(e pipeline.Event) string {
	if e.Phase == pipeline.PhaseTables {
		return fmt.Sprintf("Tables %d/%d", e.TablesDone, e.TablesTotal)
	}
	return "Paragraphs"
}

func newBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("units"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}
