package session_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"fullpage-capture/internal/capture"
	"fullpage-capture/internal/host"
	"fullpage-capture/internal/session"
	"fullpage-capture/internal/storage"
)

type fakePage struct {
	geometry []byte
	tile     []byte
	entered  chan struct{}
	block    chan struct{}
}

func (p *fakePage) ScrollTo(ctx context.Context, y int) error {
	return nil
}

func (p *fakePage) CaptureVisible(ctx context.Context) ([]byte, error) {
	return p.tile, nil
}

func (p *fakePage) Evaluate(ctx context.Context, script string) ([]byte, error) {
	if p.entered != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
	}
	if p.block != nil {
		<-p.block
	}
	return p.geometry, nil
}

func (p *fakePage) Close() error {
	return nil
}

type fakeHost struct {
	page    host.Page
	openErr error
}

func (h *fakeHost) Open(ctx context.Context, url string) (host.Page, error) {
	if h.openErr != nil {
		return nil, h.openErr
	}
	return h.page, nil
}

type fakeStorage struct {
	mu     sync.Mutex
	puts   map[string][]byte
	putErr error
}

func (s *fakeStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.puts == nil {
		s.puts = make(map[string][]byte)
	}
	s.puts[key] = data
	return "fake://" + key, nil
}

func (s *fakeStorage) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.puts[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (s *fakeStorage) List(ctx context.Context, prefix string) ([]string, error) {
	return nil, nil
}

var _ storage.Storage = (*fakeStorage)(nil)

func encodeTile(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		t.Fatalf("failed to encode tile: %v", err)
	}
	return buffer.Bytes()
}

func newTestRunner(t *testing.T, page host.Page) *session.Runner {
	t.Helper()
	return &session.Runner{
		Host:    &fakeHost{page: page},
		Storage: &fakeStorage{},
		Config: capture.Config{
			OverlapFactor: 0.9,
			Settle:        0,
		},
	}
}

func TestRunnerRun(t *testing.T) {
	geometry := []byte(`{"totalWidth":100,"totalHeight":250,"viewportWidth":100,"viewportHeight":100,"originalScrollY":0}`)

	t.Run("ProducesArtifact", func(t *testing.T) {
		t.Parallel()

		runner := newTestRunner(t, &fakePage{
			geometry: geometry,
			tile:     encodeTile(t, 100, 100),
		})

		artifact, err := runner.Run(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if artifact.SourceURL != "https://example.com/" {
			t.Errorf("unexpected source URL: %s", artifact.SourceURL)
		}
		// Offsets for 250/100 at 0.9 are 0, 90, 150.
		if artifact.TileCount != 3 {
			t.Errorf("expected 3 tiles, got %d", artifact.TileCount)
		}
		if artifact.Skipped != 0 {
			t.Errorf("expected no skipped tiles, got %d", artifact.Skipped)
		}
		if len(artifact.Data) == 0 {
			t.Error("expected PNG data")
		}

		img, err := png.Decode(bytes.NewReader(artifact.Data))
		if err != nil {
			t.Fatalf("artifact is not a PNG: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 250 {
			t.Errorf("artifact is %dx%d, want 100x250", b.Dx(), b.Dy())
		}
	})

	t.Run("RejectsConcurrentSessionForSamePage", func(t *testing.T) {
		t.Parallel()

		entered := make(chan struct{}, 1)
		block := make(chan struct{})
		runner := newTestRunner(t, &fakePage{
			geometry: geometry,
			tile:     encodeTile(t, 100, 100),
			entered:  entered,
			block:    block,
		})

		first := make(chan error, 1)
		go func() {
			_, err := runner.Run(context.Background(), "https://example.com/")
			first <- err
		}()

		// Wait until the first session is inside the page before triggering
		// the second one.
		select {
		case <-entered:
		case <-time.After(5 * time.Second):
			t.Fatal("first session never reached the page")
		}

		if _, err := runner.Run(context.Background(), "https://example.com/"); !errors.Is(err, session.ErrSessionActive) {
			t.Fatalf("expected ErrSessionActive, got %v", err)
		}

		close(block)
		if err := <-first; err != nil {
			t.Fatalf("first session failed: %v", err)
		}

		// The lock is released once the first session finishes.
		if _, err := runner.Run(context.Background(), "https://example.com/"); err != nil {
			t.Fatalf("session after release failed: %v", err)
		}
	})

	t.Run("WrapsOpenFailureAsPageInaccessible", func(t *testing.T) {
		t.Parallel()

		runner := &session.Runner{
			Host:    &fakeHost{openErr: errors.New("connection refused")},
			Storage: &fakeStorage{},
			Config:  capture.DefaultConfig(),
		}

		_, err := runner.Run(context.Background(), "https://example.com/")
		if err == nil || !strings.Contains(err.Error(), "page inaccessible") {
			t.Errorf("expected page inaccessible error, got %v", err)
		}
	})
}

func TestRunnerStore(t *testing.T) {
	t.Run("PutsUnderPerPageKey", func(t *testing.T) {
		t.Parallel()

		s := &fakeStorage{}
		runner := &session.Runner{Storage: s}

		artifact := &session.Artifact{
			SourceURL: "https://example.com/",
			Filename:  "full-page-screenshot-2026-08-23T10-00-00Z.png",
			Data:      []byte("png bytes"),
		}
		url, err := runner.Store(context.Background(), artifact)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(url, "fake://FullPage/capture/") {
			t.Errorf("unexpected storage URL: %s", url)
		}
		if !strings.HasSuffix(url, "/"+artifact.Filename) {
			t.Errorf("storage URL does not end with the filename: %s", url)
		}
	})

	t.Run("WrapsDeliveryFailure", func(t *testing.T) {
		t.Parallel()

		runner := &session.Runner{
			Storage: &fakeStorage{putErr: errors.New("bucket gone")},
		}

		_, err := runner.Store(context.Background(), &session.Artifact{
			SourceURL: "https://example.com/",
			Filename:  "full-page-screenshot-2026-08-23T10-00-00Z.png",
		})
		if !errors.Is(err, session.ErrDownloadFailed) {
			t.Errorf("expected ErrDownloadFailed, got %v", err)
		}
	})
}

func TestFilename(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 8, 23, 10, 30, 45, 0, time.UTC)
	got := session.Filename(at)
	want := "full-page-screenshot-2026-08-23T10-30-45Z.png"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if strings.ContainsRune(got, ':') {
		t.Errorf("filename contains ':': %s", got)
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	a := session.Key("https://example.com/", "a.png")
	b := session.Key("https://example.com/", "b.png")
	c := session.Key("https://other.example/", "a.png")

	prefix := func(key string) string {
		return key[:strings.LastIndex(key, "/")]
	}
	if prefix(a) != prefix(b) {
		t.Errorf("same page produced different prefixes: %s vs %s", a, b)
	}
	if prefix(a) == prefix(c) {
		t.Errorf("different pages produced the same prefix: %s", a)
	}
	if !strings.HasPrefix(a, "FullPage/capture/") {
		t.Errorf("unexpected key: %s", a)
	}
}
