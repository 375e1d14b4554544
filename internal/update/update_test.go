package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{name: "1.0.0 < 1.0.1", a: "1.0.0", b: "1.0.1", want: -1},
		{name: "1.0.1 > 1.0.0", a: "1.0.1", b: "1.0.0", want: 1},
		{name: "1.0.0 == 1.0.0", a: "1.0.0", b: "1.0.0", want: 0},
		{name: "v prefix", a: "v1.0.0", b: "1.0.1", want: -1},
		{name: "both prefixed", a: "v1.2.0", b: "v1.2.0", want: 0},
		{name: "major", a: "2.0.0", b: "1.9.9", want: 1},
		{name: "dev is newest", a: "dev", b: "999.0.0", want: 1},
		{name: "release below dev", a: "1.0.0", b: "dev", want: -1},
		{name: "pre-release base only", a: "1.0.0-rc.1", b: "1.0.0", want: 0},
		{name: "numeric not lexical", a: "0.10.0", b: "0.9.0", want: 1},
		{name: "missing patch", a: "1.2", b: "1.2.1", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compareVersions(tt.a, tt.b); got != tt.want {
				t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCacheDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", xdg)

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if want := filepath.Join(xdg, "sqljson"); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func newTestChecker(t *testing.T, handler http.HandlerFunc) (*Checker, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Checker{
		URL:      srv.URL,
		CacheDir: t.TempDir(),
		Client:   srv.Client(),
		Current:  "0.3.0",
		now:      func() time.Time { return now },
	}, &calls
}

func TestCheck(t *testing.T) {
	c, calls := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "sqljson/0.3.0" {
			t.Errorf("User-Agent = %q", got)
		}
		_, _ = w.Write([]byte(`{"tag_name":"v0.4.1","html_url":"https://github.com/pthm/sqljson/releases/tag/v0.4.1"}`))
	})

	info, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if info.LatestVersion != "0.4.1" || !info.UpdateAvailable {
		t.Errorf("Check() = %+v, want 0.4.1 with update available", info)
	}

	// The second check is served from the cache.
	c.Current = "0.4.1"
	info, err = c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if *calls != 1 {
		t.Errorf("server called %d times, want 1", *calls)
	}
	if info.UpdateAvailable {
		t.Error("UpdateAvailable should be recomputed against the current version")
	}
}

func TestCheckExpiredCache(t *testing.T) {
	c, calls := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name":"v0.4.1"}`))
	})

	if _, err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	later := c.now().Add(25 * time.Hour)
	c.now = func() time.Time { return later }
	if _, err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if *calls != 2 {
		t.Errorf("server called %d times, want 2", *calls)
	}
}

func TestCheckHTTPError(t *testing.T) {
	c, _ := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	if _, err := c.Check(context.Background()); err == nil {
		t.Fatal("Check() should fail on a non-200 response")
	}
}
