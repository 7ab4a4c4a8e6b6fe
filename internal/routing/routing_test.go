package routing

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spigell/crewzy/internal/remote"

	"go.uber.org/zap"
)

type fakeMappls struct {
	distanceBody string
	status       int
	gzip         bool
	block        chan struct{}
	tokenCalls   int
	lastQuery    map[string]string
	lastAuth     string
}

func (f *fakeMappls) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" || r.Form.Get("client_id") != "id" || r.Form.Get("client_secret") != "secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		f.tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	})

	mux.HandleFunc("/distance", func(w http.ResponseWriter, r *http.Request) {
		if f.block != nil {
			<-f.block
		}
		f.lastAuth = r.Header.Get("Authorization")
		f.lastQuery = map[string]string{
			"start_ll": r.URL.Query().Get("start_ll"),
			"dest_ll":  r.URL.Query().Get("dest_ll"),
			"mode":     r.URL.Query().Get("mode"),
		}

		status := f.status
		if status == 0 {
			status = http.StatusOK
		}

		if f.gzip {
			w.Header().Set("Content-Encoding", "gzip")
			w.WriteHeader(status)
			gz := gzip.NewWriter(w)
			_, _ = gz.Write([]byte(f.distanceBody))
			_ = gz.Close()
			return
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(f.distanceBody))
	})

	return mux
}

func newTestClient(t *testing.T, fake *fakeMappls, timeout time.Duration) *Client {
	t.Helper()

	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     srv.URL + "/token",
		DistanceURL:  srv.URL + "/distance",
		Timeout:      timeout,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestDistance(t *testing.T) {
	fake := &fakeMappls{distanceBody: `{"responseCode":200,"results":{"distances":[[2500]],"durations":[[300]],"code":"Ok"}}`}
	c := newTestClient(t, fake, time.Second)

	km, err := c.Distance(context.Background(), "DKM001", "77.01,28.01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if km != 2.5 {
		t.Fatalf("expected 2.5 km, got %v", km)
	}
	if fake.lastAuth != "Bearer tok" {
		t.Fatalf("expected bearer token, got %q", fake.lastAuth)
	}
	if fake.lastQuery["start_ll"] != "DKM001" || fake.lastQuery["dest_ll"] != "77.01,28.01" || fake.lastQuery["mode"] != "driving" {
		t.Fatalf("unexpected query: %v", fake.lastQuery)
	}

	if _, err := c.Distance(context.Background(), "DKM001", "DKM002"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.tokenCalls != 1 {
		t.Fatalf("expected token to be reused, got %d exchanges", fake.tokenCalls)
	}
}

func TestDistanceGzip(t *testing.T) {
	fake := &fakeMappls{gzip: true, distanceBody: `{"results":{"distances":[[1000]]}}`}
	c := newTestClient(t, fake, time.Second)

	km, err := c.Distance(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if km != 1 {
		t.Fatalf("expected 1 km, got %v", km)
	}
}

func TestDistanceErrors(t *testing.T) {
	t.Run("bad status", func(t *testing.T) {
		c := newTestClient(t, &fakeMappls{status: http.StatusForbidden, distanceBody: `{}`}, time.Second)
		if _, err := c.Distance(context.Background(), "a", "b"); err == nil {
			t.Fatal("expected error for bad status")
		}
	})

	t.Run("empty matrix", func(t *testing.T) {
		c := newTestClient(t, &fakeMappls{distanceBody: `{"results":{"distances":[]}}`}, time.Second)
		if _, err := c.Distance(context.Background(), "a", "b"); !errors.Is(err, ErrNoRoute) {
			t.Fatalf("expected ErrNoRoute, got %v", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		c := newTestClient(t, &fakeMappls{distanceBody: `not json`}, time.Second)
		if _, err := c.Distance(context.Background(), "a", "b"); err == nil {
			t.Fatal("expected decode error")
		}
	})

	t.Run("missing endpoint", func(t *testing.T) {
		c := newTestClient(t, &fakeMappls{}, time.Second)
		if _, err := c.Distance(context.Background(), "", "b"); err == nil {
			t.Fatal("expected error for empty origin")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		fake := &fakeMappls{block: make(chan struct{}), distanceBody: `{"results":{"distances":[[1]]}}`}
		c := newTestClient(t, fake, 20*time.Millisecond)
		defer close(fake.block)

		if _, err := c.Distance(context.Background(), "a", "b"); !errors.Is(err, remote.ErrTimeout) {
			t.Fatalf("expected remote.ErrTimeout, got %v", err)
		}
	})
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(context.Background(), Options{ClientID: "id"}, nil); err == nil {
		t.Fatal("expected error without secret")
	}
}
