package translate

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/pdftrans/pkg/domain"
)

type stubTranslator struct {
	fn    func(ctx context.Context, text, src, tgt string) (string, error)
	calls int32
}

func (s *stubTranslator) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.fn(ctx, text, src, tgt)
}

func (s *stubTranslator) CheckHealth(context.Context) error { return nil }

func (s *stubTranslator) Name() string { return "stub" }

func TestAdapterSkipsBlankInput(t *testing.T) {
	stub := &stubTranslator{fn: func(_ context.Context, text, _, _ string) (string, error) {
		return strings.ToUpper(text), nil
	}}
	a := NewAdapter(stub, AdapterOptions{SourceLang: "en", TargetLang: "zh"}, nil)

	out := a.Translate(context.Background(), "")
	assert.Equal(t, Outcome{Skipped: true}, out)

	out = a.Translate(context.Background(), " \n\t")
	assert.Equal(t, " \n\t", out.Text)
	assert.True(t, out.Skipped)

	assert.Equal(t, int32(0), atomic.LoadInt32(&stub.calls))
}

func TestAdapterPassesLanguagePair(t *testing.T) {
	stub := &stubTranslator{fn: func(_ context.Context, text, src, tgt string) (string, error) {
		return src + ">" + tgt + ":" + text, nil
	}}
	a := NewAdapter(stub, AdapterOptions{SourceLang: "en-US", TargetLang: "zh-CN"}, nil)

	out := a.Translate(context.Background(), "hi")
	assert.Equal(t, "en>zh:hi", out.Text)
	assert.False(t, out.Passthrough)
	assert.NoError(t, out.Err)
}

func TestAdapterPassthrough(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(ctx context.Context, text, src, tgt string) (string, error)
		reason string
	}{
		{
			name:   "provider error",
			fn:     func(context.Context, string, string, string) (string, error) { return "", errors.New("boom") },
			reason: ReasonError,
		},
		{
			name:   "empty response",
			fn:     func(context.Context, string, string, string) (string, error) { return "  \n", nil },
			reason: ReasonEmpty,
		},
		{
			name:   "only reasoning",
			fn:     func(context.Context, string, string, string) (string, error) { return "<think>hmm</think>", nil },
			reason: ReasonEmpty,
		},
		{
			name:   "placeholder",
			fn:     func(context.Context, string, string, string) (string, error) { return "请提供需要翻译的文本。", nil },
			reason: ReasonPlaceholder,
		},
		{
			name: "timeout",
			fn: func(ctx context.Context, _, _, _ string) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
			reason: ReasonTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, hook := test.NewNullLogger()
			a := NewAdapter(&stubTranslator{fn: tt.fn}, AdapterOptions{
				SourceLang:  "en",
				TargetLang:  "zh",
				CallTimeout: 20 * time.Millisecond,
			}, logger)

			out := a.Translate(context.Background(), "Original text")
			assert.Equal(t, "Original text", out.Text)
			assert.True(t, out.Passthrough)
			assert.Equal(t, tt.reason, out.Reason)
			require.Error(t, out.Err)
			assert.True(t, domain.IsType(out.Err, domain.ErrorTypeProvider))

			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
			assert.Equal(t, "stub", hook.LastEntry().Data["provider"])
		})
	}
}

func TestAdapterCanceledRun(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	a := NewAdapter(&stubTranslator{fn: func(ctx context.Context, _, _, _ string) (string, error) {
		return "", ctx.Err()
	}}, AdapterOptions{SourceLang: "en", TargetLang: "zh"}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := a.Translate(ctx, "abc")
	assert.Equal(t, "abc", out.Text)
	assert.Equal(t, ReasonCanceled, out.Reason)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}

func TestAdapterStripsReasoning(t *testing.T) {
	a := NewAdapter(&stubTranslator{fn: func(context.Context, string, string, string) (string, error) {
		return "<think>\nthe user wants Chinese\n</think>\n\n你好，世界\n", nil
	}}, AdapterOptions{SourceLang: "en", TargetLang: "zh"}, nil)

	out := a.Translate(context.Background(), "Hello, world")
	assert.Equal(t, "你好，世界", out.Text)
	assert.False(t, out.Passthrough)
}

func TestAdapterUnterminatedReasoningAfterCaseChangingRunes(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{reply: "ȺȺȺȺȺȺȺȺ<think>", want: "ȺȺȺȺȺȺȺȺ"},
		{reply: "İSTANBUL İZMİR<think>devam", want: "İSTANBUL İZMİR"},
	}
	for _, tt := range tests {
		a := NewAdapter(&stubTranslator{fn: func(context.Context, string, string, string) (string, error) {
			return tt.reply, nil
		}}, AdapterOptions{SourceLang: "en", TargetLang: "tr"}, nil)

		var out Outcome
		require.NotPanics(t, func() { out = a.Translate(context.Background(), "Istanbul Izmir") })
		assert.Equal(t, tt.want, out.Text)
		assert.False(t, out.Passthrough)
	}
}

func TestAdapterKeepsTranslatedPlaceholderPhrase(t *testing.T) {
	a := NewAdapter(&stubTranslator{fn: func(context.Context, string, string, string) (string, error) {
		return "Please provide the text to be translated", nil
	}}, AdapterOptions{SourceLang: "zh", TargetLang: "en"}, nil)

	out := a.Translate(context.Background(), "请提供需要翻译的文本")
	assert.Equal(t, "Please provide the text to be translated", out.Text)
	assert.False(t, out.Passthrough)
}
