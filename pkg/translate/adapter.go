package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pdftrans/pkg/domain"
)

// DefaultCallTimeout bounds one unit's translation, retries included.
const DefaultCallTimeout = 60 * time.Second

// Outcome is the result of translating one unit. Text is always safe to
// write back: on any failure it is the original input.
type Outcome struct {
	Text string
	// Err describes why the unit fell back to its source text.
	Err error
	// Passthrough is set when Text is the original input after a failed or
	// unusable provider response.
	Passthrough bool
	// Skipped is set when the input was blank and no provider call was made.
	Skipped bool
	// Reason is the passthrough reason label.
	Reason string
}

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	SourceLang  string
	TargetLang  string
	CallTimeout time.Duration
}

// Adapter applies the fail-open policy around a Translator: provider errors,
// timeouts and empty or placeholder responses all yield the source text.
type Adapter struct {
	translator Translator
	sourceLang string
	targetLang string
	timeout    time.Duration
	metrics    *MetricsCollector
	logger     *logrus.Logger
}

// NewAdapter wraps t.
func NewAdapter(t Translator, opts AdapterOptions, logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	mapper := NewLanguageMapper()
	return &Adapter{
		translator: t,
		sourceLang: mapper.ToBackendCode(opts.SourceLang),
		targetLang: mapper.ToBackendCode(opts.TargetLang),
		timeout:    opts.CallTimeout,
		metrics:    NewMetricsCollector(t.Name()),
		logger:     logger,
	}
}

// Name returns the wrapped provider's name.
func (a *Adapter) Name() string {
	return a.translator.Name()
}

// Translate translates one unit of text. It never fails: the returned
// Outcome's Text is the translation or, on any problem, text itself.
func (a *Adapter) Translate(ctx context.Context, text string) Outcome {
	if text == "" {
		return Outcome{Skipped: true}
	}
	if strings.TrimSpace(text) == "" {
		return Outcome{Text: text, Skipped: true}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, err := a.translator.Translate(callCtx, text, a.sourceLang, a.targetLang)
	if err != nil {
		reason := ReasonError
		switch {
		case ctx.Err() != nil:
			reason = ReasonCanceled
		case errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil:
			reason = ReasonTimeout
		}
		return a.passthrough(text, reason, domain.ProviderError(fmt.Sprintf("%s translation failed", a.Name()), err))
	}

	cleaned := CleanResponse(out)
	if cleaned == "" {
		return a.passthrough(text, ReasonEmpty, domain.ProviderError(fmt.Sprintf("%s returned an empty response", a.Name()), nil))
	}
	if IsPlaceholder(cleaned, text) {
		return a.passthrough(text, ReasonPlaceholder, domain.ProviderError(fmt.Sprintf("%s returned a placeholder response", a.Name()), nil))
	}
	return Outcome{Text: cleaned}
}

func (a *Adapter) passthrough(text, reason string, err error) Outcome {
	a.metrics.RecordPassthrough(reason)
	entry := a.logger.WithFields(logrus.Fields{
		"provider":    a.Name(),
		"reason":      reason,
		"text_length": len(text),
	}).WithError(err)
	if reason == ReasonCanceled {
		entry.Debug("Translation canceled, keeping original text")
	} else {
		entry.Warn("Translation failed, keeping original text")
	}
	return Outcome{Text: text, Err: err, Passthrough: true, Reason: reason}
}
