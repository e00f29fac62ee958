// Package update looks up the latest lspcord release on GitHub.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"tools.zach/dev/lspcord/internal/paths"
)

// DefaultAPIURL is the GitHub REST API root.
const DefaultAPIURL = "https://api.github.com"

// maxResponseBytes caps the release document read from the API.
const maxResponseBytes = 1 << 20

// ErrNoRelease is returned when the repository has no published release.
var ErrNoRelease = errors.New("no published release")

// ///////////////////////////////////////////////
// Checker
// ///////////////////////////////////////////////

// Checker queries the releases API of one repository.
type Checker struct {
	APIURL string
	Repo   string
	Client *retryablehttp.Client
}

// NewChecker returns a Checker for the lspcord repository with a small retry
// budget.
func NewChecker() *Checker {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = 10 * time.Second
	c.Logger = nil
	return &Checker{APIURL: DefaultAPIURL, Repo: paths.ReleaseRepo, Client: c}
}

type release struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// Latest returns the tag of the latest release.
func (c *Checker) Latest(ctx context.Context) (string, error) {
	url := strings.TrimRight(c.APIURL, "/") + "/repos/" + c.Repo + "/releases/latest"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", paths.BinaryName)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", ErrNoRelease
	default:
		return "", fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&rel); err != nil {
		return "", fmt.Errorf("decode release: %w", err)
	}
	if rel.TagName == "" || rel.Draft {
		return "", ErrNoRelease
	}
	return rel.TagName, nil
}

// Newer returns the latest release tag when it is newer than current, or ""
// when current is up to date or not a release version.
func (c *Checker) Newer(ctx context.Context, current string) (string, error) {
	latest, err := c.Latest(ctx)
	if err != nil {
		return "", err
	}
	if semverLess(current, latest) {
		return latest, nil
	}
	return "", nil
}

// Run performs one check and logs the outcome. Failures are logged at debug
// level only.
func (c *Checker) Run(ctx context.Context, current string, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("update check panic", "error", r)
		}
	}()
	if parseSemver(current) == nil {
		log.Debug("skipping update check for development build", "version", current)
		return
	}
	latest, err := c.Newer(ctx, current)
	switch {
	case err != nil:
		log.Debug("update check failed", "error", err)
	case latest != "":
		log.Info("new version available", "current", current, "latest", latest)
	default:
		log.Debug("up to date", "version", current)
	}
}

// ///////////////////////////////////////////////
// Versions
// ///////////////////////////////////////////////

// semverLess reports a < b by major, minor and patch. A pre-release sorts
// before the same release. Either side failing to parse yields false.
func semverLess(a, b string) bool {
	va, vb := parseSemver(a), parseSemver(b)
	if va == nil || vb == nil {
		return false
	}
	for i := range 3 {
		if va[i] != vb[i] {
			return va[i] < vb[i]
		}
	}
	return hasPreRelease(a) && !hasPreRelease(b)
}

func hasPreRelease(s string) bool {
	return strings.Contains(strings.TrimPrefix(s, "v"), "-")
}

// parseSemver returns [major, minor, patch] for "1.2.3", "v1.2.3" or
// "1.2.3-rc.1+build", or nil.
func parseSemver(s string) []int {
	s = strings.TrimPrefix(s, "v")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return nil
	}
	out := make([]int, 3)
	for i, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return nil
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil
		}
		out[i] = n
	}
	return out
}
