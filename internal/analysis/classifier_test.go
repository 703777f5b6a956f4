package analysis

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-dapur/internal/resilience"
)

func TestHTTPClassifierPicksBestScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, []byte{0xff, 0xd8}, body)
		require.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"label":"hamburger","score":0.12},{"label":"sushi","score":0.81}]`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewHTTPClassifier(ClassifierConfig{URL: srv.URL, Timeout: time.Second, MaxAttempts: 1})
	require.NoError(t, err)
	pred, err := c.Classify(context.Background(), []byte{0xff, 0xd8})
	require.NoError(t, err)
	require.Equal(t, Prediction{Label: "sushi", Confidence: 0.81}, pred)
}

func TestHTTPClassifierWrapsFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c, err := NewHTTPClassifier(ClassifierConfig{
		URL:         srv.URL,
		MaxAttempts: 2,
		Breaker:     resilience.New(resilience.Settings{Target: "classifier-test", MinRequests: 10}),
	})
	require.NoError(t, err)
	_, err = c.Classify(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrClassifierUnavailable)
	require.EqualValues(t, 2, calls.Load())
}

func TestHTTPClassifierRejectsEmptyAndClientErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewHTTPClassifier(ClassifierConfig{URL: srv.URL})
	require.NoError(t, err)
	_, err = c.Classify(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrClassifierUnavailable)

	status.Store(http.StatusUnsupportedMediaType)
	_, err = c.Classify(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrClassifierUnavailable)

	_, err = NewHTTPClassifier(ClassifierConfig{})
	require.Error(t, err)
}
