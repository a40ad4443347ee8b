package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibreTranslateClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/translate":
			var req translateRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "en", req.Source)
			assert.Equal(t, "de", req.Target)
			assert.Equal(t, "text", req.Format)
			if req.Q == "fail" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"bad"}`))
				return
			}
			_, _ = w.Write([]byte(`{"translatedText":"Hallo"}`))
		case "/languages":
			_, _ = w.Write([]byte(`[{"code":"en","name":"English"},{"code":"de","name":"German"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	c := NewLibreTranslateClient(srv.URL, "", logger)

	out, err := c.Translate(context.Background(), "Hello", "en", "de")
	require.NoError(t, err)
	assert.Equal(t, "Hallo", out)

	_, err = c.Translate(context.Background(), "fail", "en", "de")
	assert.ErrorContains(t, err, "unexpected status 400")

	langs, err := c.SupportedLanguages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "de"}, langs)
	assert.NoError(t, c.CheckHealth(context.Background()))
	assert.Equal(t, "libretranslate", c.Name())
}
