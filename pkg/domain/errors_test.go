package domain

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorFormatting(t *testing.T) {
	err := ConversionError("pdf2docx failed", io.ErrUnexpectedEOF)
	assert.Equal(t, "[conversion] pdf2docx failed: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	bare := ValidationError("file must be a PDF", nil)
	assert.Equal(t, "[validation] file must be a PDF", bare.Error())
}

func TestIsTypeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", ExtractionError("no body", nil))

	assert.True(t, IsType(wrapped, ErrorTypeExtraction))
	assert.False(t, IsType(wrapped, ErrorTypeConversion))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeExtraction))
	assert.Equal(t, ErrorTypeExtraction, TypeOf(wrapped))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
}
