package quality

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func serverWithSummary(summary string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"summary":"` + summary + `"}`))
	}))
}

func TestProbe_AcceptsLongSummary(t *testing.T) {
	srv := serverWithSummary(strings.Repeat("a", 500))
	defer srv.Close()

	p := New(srv.URL, 200, 2*time.Second)
	res := p.Probe(t.Context(), "https://example.com/a")
	require.True(t, res.Accepted)
	require.Empty(t, res.Reason)
}

func TestProbe_RejectsShortSummary(t *testing.T) {
	srv := serverWithSummary("Too short.")
	defer srv.Close()

	p := New(srv.URL, 200, 2*time.Second)
	res := p.Probe(t.Context(), "https://example.com/a")
	require.False(t, res.Accepted)
	require.False(t, res.Unavailable)
	require.Contains(t, res.Reason, "too short")
}

func TestProbe_AcceptsAtExactlyMinChars(t *testing.T) {
	srv := serverWithSummary(strings.Repeat("a", 200))
	defer srv.Close()

	p := New(srv.URL, 200, 2*time.Second)
	res := p.Probe(t.Context(), "https://example.com/a")
	require.True(t, res.Accepted)
}

func TestProbe_RejectsOneUnderMinChars(t *testing.T) {
	srv := serverWithSummary(strings.Repeat("a", 199))
	defer srv.Close()

	p := New(srv.URL, 200, 2*time.Second)
	res := p.Probe(t.Context(), "https://example.com/a")
	require.False(t, res.Accepted)
}

func TestProbe_RejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := New(srv.URL, 200, 2*time.Second)
	res := p.Probe(t.Context(), "https://example.com/a")
	require.False(t, res.Accepted)
	require.True(t, res.Unavailable)
	require.Contains(t, res.Reason, "502")
}

func TestProbe_RejectsWhenMisconfigured(t *testing.T) {
	p := New("", 200, 2*time.Second)
	res := p.Probe(t.Context(), "https://example.com/a")
	require.False(t, res.Accepted)
	require.True(t, res.Unavailable)
	require.Contains(t, res.Reason, "misconfigured")
}
