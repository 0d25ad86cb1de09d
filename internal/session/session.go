// Package session owns one user-triggered capture from trigger to artifact:
// survey, tile capture, composite, delivery. Sessions are strictly
// sequential internally and never interleaved per target page.
package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"fullpage-capture/internal/capture"
	"fullpage-capture/internal/composite"
	"fullpage-capture/internal/host"
	"fullpage-capture/internal/storage"
	"fullpage-capture/internal/survey"
)

var (
	// ErrSessionActive rejects a trigger while another session is running
	// against the same page. Two drivers racing on one scroll position
	// capture tiles at the wrong offsets, so triggers are rejected rather
	// than queued.
	ErrSessionActive = errors.New("capture session already active for this page")

	// ErrDownloadFailed means the session produced a valid artifact but
	// delivery failed. Surfaced distinctly from capture failures so the
	// caller knows re-running the capture will not help.
	ErrDownloadFailed = errors.New("artifact delivery failed")
)

// Artifact is the single output of a successful session.
type Artifact struct {
	SourceURL  string          `json:"sourceURL"`
	Filename   string          `json:"filename"`
	Geometry   survey.Geometry `json:"geometry"`
	TileCount  int             `json:"tileCount"`
	Skipped    int             `json:"skippedTiles"`
	CapturedAt time.Time       `json:"capturedAt"`

	Data []byte `json:"-"`
}

type Runner struct {
	Host    host.Host
	Storage storage.Storage
	Config  capture.Config
	Logger  *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// Run executes one capture session against pageURL and returns the stitched
// artifact. It fails fast on survey, scroll, and capture errors and produces
// no partial artifact; tile decode failures during compositing are logged
// and skipped.
func (r *Runner) Run(ctx context.Context, pageURL string) (*Artifact, error) {
	return r.RunWithConfig(ctx, pageURL, r.Config)
}

// RunWithConfig is Run with per-session driver tunables, so a single trigger
// can adjust the overlap factor or settle delay without reconfiguring the
// runner.
func (r *Runner) RunWithConfig(ctx context.Context, pageURL string, config capture.Config) (*Artifact, error) {
	if err := r.acquire(pageURL); err != nil {
		return nil, err
	}
	defer r.release(pageURL)

	page, err := r.Host.Open(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", survey.ErrPageInaccessible, err)
	}
	defer page.Close()

	geometry, err := survey.Measure(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to survey %s: %w", pageURL, err)
	}

	driver, err := capture.NewDriver(page, config)
	if err != nil {
		return nil, err
	}

	tiles, err := driver.Run(ctx, geometry)
	if err != nil {
		return nil, fmt.Errorf("failed to capture %s: %w", pageURL, err)
	}

	result, err := composite.Composite(tiles, geometry.TotalWidth, geometry.TotalHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to composite %s: %w", pageURL, err)
	}

	for _, skipped := range result.Skipped {
		r.logger().Warn("skipped undecodable tile",
			"url", pageURL,
			"tile", skipped.Index,
			"placementY", skipped.PlacementY,
			"error", skipped.Err,
		)
	}

	now := time.Now()
	return &Artifact{
		SourceURL:  pageURL,
		Filename:   Filename(now),
		Geometry:   geometry,
		TileCount:  len(tiles),
		Skipped:    len(result.Skipped),
		CapturedAt: now,
		Data:       result.PNG,
	}, nil
}

// Store delivers the artifact to the configured storage backend and returns
// its storage URL.
func (r *Runner) Store(ctx context.Context, artifact *Artifact) (string, error) {
	url, err := r.Storage.Put(ctx, Key(artifact.SourceURL, artifact.Filename), artifact.Data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	return url, nil
}

func (r *Runner) acquire(pageURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		r.active = make(map[string]struct{})
	}
	if _, ok := r.active[pageURL]; ok {
		return fmt.Errorf("%w: %s", ErrSessionActive, pageURL)
	}
	r.active[pageURL] = struct{}{}
	return nil
}

func (r *Runner) release(pageURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, pageURL)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Filename names the artifact after its capture time, with ':' replaced so
// the name is safe on every filesystem.
func Filename(t time.Time) string {
	return "full-page-screenshot-" + strings.ReplaceAll(t.UTC().Format(time.RFC3339), ":", "-") + ".png"
}

// Key places artifacts under a stable per-page prefix.
func Key(pageURL string, filename string) string {
	h := sha256.New()
	h.Write([]byte(pageURL))
	return fmt.Sprintf("FullPage/capture/%x/%s", h.Sum(nil)[:8], filename)
}
