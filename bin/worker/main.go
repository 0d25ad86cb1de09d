package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"fullpage-capture/internal/capture"
	"fullpage-capture/internal/host"
	"fullpage-capture/internal/retry"
	"fullpage-capture/internal/session"
	"fullpage-capture/internal/storage"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

type WorkerOutput struct {
	SourceURL    string `json:"sourceURL"`
	ArtifactURL  string `json:"artifactURL"`
	ManifestURL  string `json:"manifestURL"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	TileCount    int    `json:"tileCount"`
	SkippedTiles int    `json:"skippedTiles"`
	CapturedAt   string `json:"capturedAt"`
}

type Worker struct {
	Runner  *session.Runner
	Storage storage.Storage
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
	var hostBackend string
	var chromeDevtoolsProtocolURL string
	var storageBackend string
	var overlapFactor float64
	var settle time.Duration
	var callbackURL string
	var retryOn string
	flag.StringVar(&hostBackend, "host-backend", envOrDefaultValue("HOST_BACKEND", "playwright"), "Browser backend (playwright or rod)")
	flag.StringVar(&chromeDevtoolsProtocolURL, "chrome-devtools-protocol-url", envOrDefaultValue("CHROME_DEVTOOLS_PROTOCOL_URL", ""), "Connect to existing browser via Chrome DevTools Protocol URL (e.g., http://localhost:9222)")
	flag.StringVar(&storageBackend, "storage-backend", envOrDefaultValue("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.Float64Var(&overlapFactor, "overlap-factor", envOrDefaultValue("OVERLAP_FACTOR", 0.9), "Fraction of the viewport height advanced per scroll step, in (0, 1]")
	flag.DurationVar(&settle, "settle", envOrDefaultValue("SETTLE", 300*time.Millisecond), "Render settle delay between scroll and capture")
	flag.StringVar(&callbackURL, "callback-url", envOrDefaultValue("CALLBACK_URL", ""), "Callback URL to send results to")
	flag.StringVar(&retryOn, "retry-on", envOrDefaultValue("RETRY_ON", "gateway-error,connect-failure"), "Callback retry policy (comma-separated: 5xx, gateway-error, connect-failure, or status codes)")

	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		os.Exit(1)
	}

	url := args[0]

	ctx := context.Background()

	hostConfig := host.DefaultConfig()
	if chromeDevtoolsProtocolURL != "" {
		hostConfig.ChromeDevtoolsProtocolURL = chromeDevtoolsProtocolURL
	}

	var h host.Host
	var err error
	switch hostBackend {
	case "playwright":
		if chromeDevtoolsProtocolURL == "" {
			if err := playwright.Install(&playwright.RunOptions{
				Browsers: []string{"chromium"},
			}); err != nil {
				log.Fatalf("failed to install playwright browsers: %v", err)
			}
		}
		h, err = host.NewPlaywrightHost(ctx, hostConfig)
	case "rod":
		h, err = host.NewRodHost(ctx, hostConfig)
	default:
		log.Fatalf("unknown host backend: %s", hostBackend)
	}
	if err != nil {
		log.Fatalf("failed to initialize host: %v", err)
	}

	var s storage.Storage
	switch storageBackend {
	case "file":
		s, err = storage.NewFileStorage(ctx, storage.FileConfig{
			Directory: envOrDefaultValue("DIRECTORY", "/tmp"),
		})
		if err != nil {
			log.Fatalf("failed to create file storage backend: %v", err)
		}
	case "s3":
		s, err = storage.NewS3Storage(ctx, storage.S3Config{
			Bucket: os.Getenv("S3_BUCKET"),
		})
		if err != nil {
			log.Fatalf("failed to create S3 storage backend: %v", err)
		}
	}

	captureConfig := capture.DefaultConfig()
	if overlapFactor > 0 {
		captureConfig.OverlapFactor = overlapFactor
	}
	if settle > 0 {
		captureConfig.Settle = settle
	}

	worker := &Worker{
		Runner: &session.Runner{
			Host:    h,
			Storage: s,
			Config:  captureConfig,
		},
		Storage: s,
	}

	result, err := worker.processCapture(ctx, url)
	if err != nil {
		log.Fatalf("failed to process capture: %v", err)
	}

	j, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal result: %v", err)
	}

	if callbackURL == "" {
		fmt.Println(string(j))
	} else {
		on, err := retry.NewRetryOnFromString(retryOn)
		if err != nil {
			log.Fatalf("failed to parse retry policy: %v", err)
		}
		if err := callback(ctx, callbackURL, j, on); err != nil {
			log.Fatalf("failed to send callback: %v", err)
		}
	}
}

func (w *Worker) processCapture(ctx context.Context, url string) (*WorkerOutput, error) {
	// Step 1: Capture and stitch the full page
	artifact, err := w.Runner.Run(ctx, url)
	if err != nil {
		return nil, xerrors.Errorf("failed to capture full page: %w", err)
	}

	manifest, err := json.Marshal(artifact)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal manifest: %w", err)
	}

	// Step 2: Upload artifact and manifest in parallel
	output := &WorkerOutput{
		SourceURL:    url,
		Width:        artifact.Geometry.TotalWidth,
		Height:       artifact.Geometry.TotalHeight,
		TileCount:    artifact.TileCount,
		SkippedTiles: artifact.Skipped,
		CapturedAt:   artifact.CapturedAt.UTC().Format(time.RFC3339),
	}
	{
		eg, ctx := errgroup.WithContext(ctx)

		eg.Go(func() error {
			artifactURL, err := w.Runner.Store(ctx, artifact)
			if err != nil {
				return xerrors.Errorf("failed to upload artifact: %w", err)
			}
			output.ArtifactURL = artifactURL
			return nil
		})

		eg.Go(func() error {
			manifestKey := strings.TrimSuffix(session.Key(url, artifact.Filename), ".png") + ".json"
			manifestURL, err := w.Storage.Put(ctx, manifestKey, manifest)
			if err != nil {
				return xerrors.Errorf("failed to upload manifest: %w", err)
			}
			output.ManifestURL = manifestURL
			return nil
		})

		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	return output, nil
}

func callback(ctx context.Context, callbackURL string, data []byte, on *retry.On) error {
	request, err := http.NewRequestWithContext(ctx, "PATCH", callbackURL, bytes.NewReader(data))
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 1 * time.Second, // retry.Transport does not have perTryTimeout
		Transport: &retry.Transport{
			Base:          http.DefaultTransport,
			RetryStrategy: retry.NewExponentialBackOff(10*time.Millisecond, 1*time.Second, 3, nil),
			RetryOn:       on,
		},
	}

	response, err := client.Do(request)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer response.Body.Close()

	return nil
}
