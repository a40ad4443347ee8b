package translate

import (
	"fmt"

	"github.com/dasmlab/pdftrans/pkg/domain"
)

// MaskKey hides all but the edges of an API key for logging.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// CheckKey validates that a keyed engine has a plausibly real API key. Keys
// are only checked for length; the provider decides whether they work.
func CheckKey(engine EngineType, key string) error {
	if !engine.NeedsKey() {
		return nil
	}
	if key == "" {
		return domain.ValidationError(fmt.Sprintf("%s API key is not set", engine), nil)
	}
	if len(key) < MinAPIKeyLength {
		return domain.ValidationError(fmt.Sprintf("%s API key is too short (%d characters)", engine, len(key)), nil)
	}
	return nil
}
