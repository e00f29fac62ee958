package update

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
)

// ///////////////////////////////////////////////
// Test Helpers
// ///////////////////////////////////////////////

// testChecker points a Checker at a server answering the latest-release
// endpoint with status and body.
func testChecker(t *testing.T, status int, body string) (*Checker, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/repos/owner/repo/releases/latest" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github+json" {
			t.Errorf("Accept = %q", got)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c := NewChecker()
	c.APIURL = srv.URL + "/"
	c.Repo = "owner/repo"
	c.Client.RetryMax = 0
	return c, &hits
}

// ///////////////////////////////////////////////
// Versions
// ///////////////////////////////////////////////

func TestParseSemver(t *testing.T) {
	tests := []struct {
		input string
		want  []int
	}{
		{"1.2.3", []int{1, 2, 3}},
		{"v1.2.3", []int{1, 2, 3}},
		{"0.0.0-dev", []int{0, 0, 0}},
		{"1.0.0-beta+build123", []int{1, 0, 0}},
		{"10.20.30", []int{10, 20, 30}},
		{"1.2.3-rc.1", []int{1, 2, 3}},
		{"1.2.3+metadata", []int{1, 2, 3}},

		{"", nil},
		{"dev", nil},
		{"dev+abc1234", nil},
		{"1.2", nil},
		{"v", nil},
		{"1.2.x", nil},
		{"1..3", nil},
		{"1.2.3.4", nil},
		{"-1.2.3", nil},
	}
	for _, tt := range tests {
		if got := parseSemver(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseSemver(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSemverLess(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"equal", "1.2.3", "1.2.3", false},
		{"major", "0.9.9", "1.0.0", true},
		{"major greater", "2.0.0", "1.9.9", false},
		{"minor", "1.0.0", "1.1.0", true},
		{"patch", "1.0.0", "1.0.1", true},
		{"v prefix on one side", "0.1.0", "v0.2.0", true},
		{"pre-release before release", "0.1.0-dev", "0.1.0", true},
		{"release not before pre-release", "0.1.0", "0.1.0-dev", false},
		{"pre-releases unordered", "1.0.0-alpha", "1.0.0-beta", false},
		{"invalid a", "dev", "1.0.0", false},
		{"invalid b", "1.0.0", "latest", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := semverLess(tt.a, tt.b); got != tt.want {
				t.Errorf("semverLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Checker
// ///////////////////////////////////////////////

func TestLatest(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{"release", http.StatusOK, `{"tag_name":"v1.4.0","draft":false}`, "v1.4.0", nil},
		{"no releases", http.StatusNotFound, `{"message":"Not Found"}`, "", ErrNoRelease},
		{"draft", http.StatusOK, `{"tag_name":"v2.0.0","draft":true}`, "", ErrNoRelease},
		{"missing tag", http.StatusOK, `{}`, "", ErrNoRelease},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testChecker(t, tt.status, tt.body)
			got, err := c.Latest(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Latest = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLatest_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"forbidden", http.StatusForbidden, `{"message":"rate limited"}`},
		{"invalid json", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testChecker(t, tt.status, tt.body)
			if _, err := c.Latest(context.Background()); err == nil || errors.Is(err, ErrNoRelease) {
				t.Errorf("err = %v, want a request failure", err)
			}
		})
	}
}

func TestNewer(t *testing.T) {
	c, _ := testChecker(t, http.StatusOK, `{"tag_name":"v1.4.0"}`)
	tests := map[string]string{
		"1.3.9":       "v1.4.0",
		"v1.4.0-rc.1": "v1.4.0",
		"1.4.0":       "",
		"2.0.0":       "",
	}
	for current, want := range tests {
		got, err := c.Newer(context.Background(), current)
		if err != nil {
			t.Fatalf("Newer(%q): %v", current, err)
		}
		if got != want {
			t.Errorf("Newer(%q) = %q, want %q", current, got, want)
		}
	}
}

func TestRun_Logs(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		wantLog  string
		wantHits int32
	}{
		{"newer available", "1.0.0", "new version available", 1},
		{"dev build skipped", "dev+abc1234", "skipping update check", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, hits := testChecker(t, http.StatusOK, `{"tag_name":"v1.1.0"}`)
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			c.Run(context.Background(), tt.current, log)

			if !strings.Contains(buf.String(), tt.wantLog) {
				t.Errorf("log = %q, want %q", buf.String(), tt.wantLog)
			}
			if hits.Load() != tt.wantHits {
				t.Errorf("requests = %d, want %d", hits.Load(), tt.wantHits)
			}
		})
	}
}

func TestRun_CancelledContext(t *testing.T) {
	c, _ := testChecker(t, http.StatusOK, `{"tag_name":"v9.0.0"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	c.Run(ctx, "1.0.0", slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	if !strings.Contains(buf.String(), "update check failed") {
		t.Errorf("log = %q", buf.String())
	}
}
