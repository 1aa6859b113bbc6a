package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bherrors "github.com/lepinkainen/bookhound/internal/errors"
	"github.com/lepinkainen/bookhound/internal/retry"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"title":"Dune"}`))
	}))
	t.Cleanup(srv.Close)

	var body struct {
		Title string `json:"title"`
	}
	header := http.Header{}
	header.Set("Authorization", "secret")

	require.NoError(t, GetJSON(context.Background(), srv.Client(), srv.URL, header, &body))
	assert.Equal(t, "Dune", body.Title)
}

func TestGetJSONStatusHandling(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			header: map[string]string{"Retry-After": "30"},
			check: func(t *testing.T, err error) {
				var rateErr *bherrors.RateLimitError
				require.ErrorAs(t, err, &rateErr)
				assert.Equal(t, 30*time.Second, rateErr.RetryAfter)
				assert.False(t, retry.IsPermanent(err))
			},
		},
		{
			name:   "unauthorized is permanent",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.True(t, retry.IsPermanent(err))
			},
		},
		{
			name:   "server error is retryable",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "status 502")
				assert.False(t, retry.IsPermanent(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(srv.Close)

			var body map[string]any
			err := GetJSON(context.Background(), srv.Client(), srv.URL, nil, &body)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGetJSONMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	t.Cleanup(srv.Close)

	var body map[string]any
	err := GetJSON(context.Background(), srv.Client(), srv.URL, nil, &body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
}
