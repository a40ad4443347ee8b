package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/pdftrans/pkg/convert"
	"github.com/dasmlab/pdftrans/pkg/translate"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "pdftrans dev")
}

func TestTranslateRequiresInput(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"translate"})
	assert.Error(t, cmd.Execute())

	cmd = newRootCmd()
	cmd.SetArgs([]string{"translate", "-o", "x.docx", "a.pdf", "b.pdf", "--env-file", "none"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one input")
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pdftrans.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("source_lang: de\ntarget_lang: fr\nconverter:\n  engine: libreoffice\n"), 0o644))

	t.Setenv("PDFTRANS_TARGET_LANG", "ja")
	t.Setenv("ZHIPU_API_KEY", "sk-zhipu-0123456789")

	opts := &rootOptions{}
	root := buildRootCmd(opts)
	var check *cobra.Command
	for _, c := range root.Commands() {
		if c.Name() == "check" {
			check = c
		}
	}
	require.NotNil(t, check)

	ran := false
	check.RunE = func(c *cobra.Command, args []string) error {
		ran = true
		cfg, err := opts.load(c)
		require.NoError(t, err)

		assert.Equal(t, "de", cfg.SourceLang, "file")
		assert.Equal(t, "ja", cfg.TargetLang, "environment beats file")
		assert.Equal(t, convert.EngineBuiltin, cfg.Converter.Engine, "flag beats file")
		assert.Equal(t, translate.EngineZhipu, cfg.Paragraph.Engine)
		assert.Equal(t, "sk-zhipu-0123456789", cfg.Paragraph.APIKey, "key follows the flag-selected engine")
		assert.Equal(t, 4, cfg.Concurrency.Tables)
		return nil
	}

	root.SetArgs([]string{"check",
		"--config", cfgPath,
		"--env-file", filepath.Join(dir, "missing.env"),
		"--engine", "glm",
		"--converter", "fitz",
		"--concurrency", "4",
	})
	require.NoError(t, root.Execute())
	assert.True(t, ran)
}
