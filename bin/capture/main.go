package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"fullpage-capture/internal/capture"
	"fullpage-capture/internal/host"
	"fullpage-capture/internal/session"
	"fullpage-capture/internal/storage"

	"golang.org/x/sync/errgroup"
)

type CaptureResult struct {
	ArtifactPath string `json:"artifactPath"`
	ManifestPath string `json:"manifestPath"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	TileCount    int    `json:"tileCount"`
	SkippedTiles int    `json:"skippedTiles"`
}

type headers []string

func (h *headers) String() string {
	return strings.Join(*h, ", ")
}

func (h *headers) Set(value string) error {
	*h = append(*h, value)
	return nil
}

func envOrDefaultValue[T any](key string, defaultValue T) T {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case string:
		return any(value).(T)
	case int:
		if intValue, err := strconv.Atoi(value); err == nil {
			return any(intValue).(T)
		}
	case int64:
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return any(intValue).(T)
		}
	case uint:
		if uintValue, err := strconv.ParseUint(value, 10, 0); err == nil {
			return any(uint(uintValue)).(T)
		}
	case uint64:
		if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return any(uintValue).(T)
		}
	case float64:
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return any(floatValue).(T)
		}
	case bool:
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return any(boolValue).(T)
		}
	case time.Duration:
		if durationValue, err := time.ParseDuration(value); err == nil {
			return any(durationValue).(T)
		}
	}

	return defaultValue
}

func main() {
	var directory string
	var hostBackend string
	var overlapFactor float64
	var settle time.Duration
	var viewportWidth int
	var viewportHeight int
	var userAgent string
	var chromeDevtoolsProtocolURL string
	var headers headers
	flag.StringVar(&directory, "directory", envOrDefaultValue("DIRECTORY", "/tmp"), "Output directory")
	flag.StringVar(&hostBackend, "host-backend", envOrDefaultValue("HOST_BACKEND", "playwright"), "Browser backend (playwright or rod)")
	flag.Float64Var(&overlapFactor, "overlap-factor", envOrDefaultValue("OVERLAP_FACTOR", 0.9), "Fraction of the viewport height advanced per scroll step, in (0, 1]")
	flag.DurationVar(&settle, "settle", envOrDefaultValue("SETTLE", 300*time.Millisecond), "Render settle delay between scroll and capture")
	flag.IntVar(&viewportWidth, "viewport-width", envOrDefaultValue("VIEWPORT_WIDTH", 1920), "Viewport width in pixels")
	flag.IntVar(&viewportHeight, "viewport-height", envOrDefaultValue("VIEWPORT_HEIGHT", 1080), "Viewport height in pixels")
	flag.StringVar(&userAgent, "user-agent", envOrDefaultValue("USER_AGENT", ""), "User-Agent string to use for requests")
	flag.StringVar(&chromeDevtoolsProtocolURL, "chrome-devtools-protocol-url", envOrDefaultValue("CHROME_DEVTOOLS_PROTOCOL_URL", ""), "Connect to existing browser via Chrome DevTools Protocol URL (e.g., http://localhost:9222)")
	flag.Var(&headers, "H", "Add HTTP header (can be used multiple times, e.g., -H 'Accept: text/html' -H 'Authorization: Bearer token')")

	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		log.Fatalf("url not specified")
	}
	url := args[0]

	ctx := context.Background()

	s, err := storage.NewFileStorage(ctx, storage.FileConfig{
		Directory: directory,
	})
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	hostConfig := host.DefaultConfig()
	if viewportWidth > 0 {
		hostConfig.ViewportWidth = viewportWidth
	}
	if viewportHeight > 0 {
		hostConfig.ViewportHeight = viewportHeight
	}
	if userAgent != "" {
		hostConfig.UserAgent = userAgent
	}
	if chromeDevtoolsProtocolURL != "" {
		hostConfig.ChromeDevtoolsProtocolURL = chromeDevtoolsProtocolURL
	}
	if display := os.Getenv("DISPLAY"); display != "" {
		hostConfig.Headless = false
	}
	if len(headers) > 0 {
		hostConfig.Headers = make(map[string]string)
		for _, header := range headers {
			parts := strings.SplitN(header, ":", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])
				hostConfig.Headers[key] = value
			}
		}
	}

	var h host.Host
	switch hostBackend {
	case "playwright":
		h, err = host.NewPlaywrightHost(ctx, hostConfig)
	case "rod":
		h, err = host.NewRodHost(ctx, hostConfig)
	default:
		log.Fatalf("unknown host backend: %s", hostBackend)
	}
	if err != nil {
		log.Fatalf("Failed to create host backend: %v", err)
	}

	captureConfig := capture.DefaultConfig()
	if overlapFactor > 0 {
		captureConfig.OverlapFactor = overlapFactor
	}
	if settle > 0 {
		captureConfig.Settle = settle
	}

	runner := &session.Runner{
		Host:    h,
		Storage: s,
		Config:  captureConfig,
	}

	artifact, err := runner.Run(ctx, url)
	if err != nil {
		log.Fatalf("Failed to capture full page: %v", err)
	}

	manifest, err := json.Marshal(artifact)
	if err != nil {
		log.Fatalf("Failed to marshal manifest: %v", err)
	}

	var artifactPath string
	var manifestPath string

	{
		eg, ctx := errgroup.WithContext(ctx)

		eg.Go(func() error {
			path, err := runner.Store(ctx, artifact)
			if err != nil {
				return err
			}
			artifactPath = path
			return nil
		})

		eg.Go(func() error {
			manifestKey := strings.TrimSuffix(session.Key(url, artifact.Filename), ".png") + ".json"
			path, err := s.Put(ctx, manifestKey, manifest)
			if err != nil {
				return err
			}
			manifestPath = path
			return nil
		})

		if err := eg.Wait(); err != nil {
			log.Fatalf("Failed to upload: %v", err)
		}
	}

	if err := json.NewEncoder(os.Stdout).Encode(CaptureResult{
		ArtifactPath: artifactPath,
		ManifestPath: manifestPath,
		Width:        artifact.Geometry.TotalWidth,
		Height:       artifact.Geometry.TotalHeight,
		TileCount:    artifact.TileCount,
		SkippedTiles: artifact.Skipped,
	}); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}

	fmt.Fprintf(os.Stderr, "captured %s as %s\n", url, artifact.Filename)
}
