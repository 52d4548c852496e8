package recordstore

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slidecaster/slidecaster/internal/jobs"
)

// fakeStore is a minimal in-memory PocketBase-shaped admin API used to
// exercise the client's auth lifecycle without a real record store.
type fakeStore struct {
	validToken   string
	reauthCount  int
	unauthorizeN int // force this many calls to 401 before succeeding
	calls        int
	record       wireRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		validToken: "tok-1",
		record: wireRecord{
			ID:        "job1",
			URL:       "https://example.com/a",
			Status:    "pending",
			ExpiresAt: time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
			Created:   time.Now().UTC().Format(time.RFC3339),
			Updated:   time.Now().UTC().Format(time.RFC3339),
		},
	}
}

func (f *fakeStore) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/admins/auth-with-password" {
			f.reauthCount++
			f.validToken = "tok-" + time.Now().Format("150405.000000")
			json.NewEncoder(w).Encode(authResponse{Token: f.validToken})
			return
		}

		f.calls++
		auth := r.Header.Get("Authorization")
		if f.calls <= f.unauthorizeN || auth != "Bearer "+f.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(f.record)
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(f.record)
		case r.Method == http.MethodPatch:
			json.NewEncoder(w).Encode(f.record)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusOK)
		}
	}
}

func TestCreateJob_AuthenticatesLazily(t *testing.T) {
	fs := newFakeStore()
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	c := New(srv.URL, "admin@example.com", "secret")
	rec, err := c.CreateJob(t.Context(), "https://example.com/a", "10.0.0.1", time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, "job1", rec.ID)
	require.Equal(t, jobs.StatusPending, rec.Status)
	require.Equal(t, 1, fs.reauthCount)
}

func TestGetJob_ReauthenticatesOn401(t *testing.T) {
	fs := newFakeStore()
	fs.unauthorizeN = 1 // first authenticated call still gets a 401 (stale token)
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	c := New(srv.URL, "admin@example.com", "secret")
	rec, err := c.GetJob(t.Context(), "job1")
	require.NoError(t, err)
	require.Equal(t, "job1", rec.ID)
	require.GreaterOrEqual(t, fs.reauthCount, 1)
}

func TestGetJob_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/admins/auth-with-password" {
			json.NewEncoder(w).Encode(authResponse{Token: "tok"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no such record"))
	}))
	defer srv.Close()

	c := New(srv.URL, "admin@example.com", "secret")
	_, err := c.GetJob(t.Context(), "missing")
	require.Error(t, err)

	var rsErr *Error
	require.ErrorAs(t, err, &rsErr)
	require.Equal(t, KindNotFound, rsErr.Kind)
}

func TestEmptyDateNormalisesToAbsent(t *testing.T) {
	w := wireRecord{
		ID:        "job1",
		Status:    "completed",
		StartedAt: "",
		ExpiresAt: time.Now().UTC().Format(time.RFC3339),
		Created:   time.Now().UTC().Format(time.RFC3339),
		Updated:   time.Now().UTC().Format(time.RFC3339),
	}
	rec, err := w.toRecord()
	require.NoError(t, err)
	require.Nil(t, rec.StartedAt)
}
