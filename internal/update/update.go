// Package update checks GitHub for newer sqljson releases.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pthm/sqljson/internal/version"
)

const (
	latestReleaseURL = "https://api.github.com/repos/pthm/sqljson/releases/latest"
	cacheTTL         = 24 * time.Hour
	cacheFile        = "update-check.json"
)

// Info contains update check results
type Info struct {
	LatestVersion   string    `json:"latest_version"`
	CurrentVersion  string    `json:"current_version"`
	ReleaseURL      string    `json:"release_url,omitempty"`
	CheckedAt       time.Time `json:"checked_at"`
	UpdateAvailable bool      `json:"update_available"`
}

type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Checker looks up the latest release. The zero value is not usable; use
// NewChecker.
type Checker struct {
	URL      string
	CacheDir string // empty disables caching
	Client   *http.Client
	Current  string
	now      func() time.Time
}

// NewChecker returns a Checker for the running binary, caching results
// under the user cache directory.
func NewChecker() *Checker {
	dir, _ := cacheDir()
	return &Checker{
		URL:      latestReleaseURL,
		CacheDir: dir,
		Client:   &http.Client{Timeout: 5 * time.Second},
		Current:  version.Version,
		now:      time.Now,
	}
}

// CheckWithCache checks for updates using the default Checker.
func CheckWithCache(ctx context.Context) (*Info, error) {
	return NewChecker().Check(ctx)
}

// Check returns the cached result when it is younger than a day, and asks
// GitHub otherwise. Cache write failures are ignored.
func (c *Checker) Check(ctx context.Context) (*Info, error) {
	if info, err := c.loadCache(); err == nil && c.now().Sub(info.CheckedAt) < cacheTTL {
		info.CurrentVersion = c.Current
		info.UpdateAvailable = compareVersions(info.CurrentVersion, info.LatestVersion) < 0
		return info, nil
	}

	info, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	_ = c.saveCache(info)
	return info, nil
}

func (c *Checker) fetch(ctx context.Context) (*Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "sqljson/"+c.Current)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	return &Info{
		LatestVersion:   latest,
		CurrentVersion:  c.Current,
		ReleaseURL:      release.HTMLURL,
		CheckedAt:       c.now(),
		UpdateAvailable: compareVersions(c.Current, latest) < 0,
	}, nil
}

// cacheDir returns $XDG_CACHE_HOME/sqljson, or ~/.cache/sqljson.
func cacheDir() (string, error) {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		cacheHome = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheHome, "sqljson"), nil
}

func (c *Checker) loadCache() (*Info, error) {
	if c.CacheDir == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(filepath.Join(c.CacheDir, cacheFile))
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Checker) saveCache(info *Info) error {
	if c.CacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.CacheDir, cacheFile), data, 0o644)
}

// compareVersions compares two dotted versions, ignoring a leading "v" and
// any pre-release suffix. "dev" sorts after every release.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func compareVersions(a, b string) int {
	a = strings.TrimPrefix(a, "v")
	b = strings.TrimPrefix(b, "v")

	if a == "dev" {
		return 1
	}
	if b == "dev" {
		return -1
	}

	partsA := strings.Split(a, ".")
	partsB := strings.Split(b, ".")
	for i := range max(len(partsA), len(partsB)) {
		numA, numB := versionPart(partsA, i), versionPart(partsB, i)
		if numA < numB {
			return -1
		}
		if numA > numB {
			return 1
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, _ := strconv.Atoi(strings.Split(parts[i], "-")[0])
	return n
}
