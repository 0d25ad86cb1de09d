package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"fullpage-capture/internal/capture"
	"fullpage-capture/internal/host"
	"fullpage-capture/internal/runnable"
	"fullpage-capture/internal/session"
	"fullpage-capture/internal/storage"

	"github.com/joho/godotenv"
)

type scheduleFlags []runnable.Schedule

func (s *scheduleFlags) String() string {
	var specs []string
	for _, schedule := range *s {
		specs = append(specs, schedule.Spec+"|"+schedule.URL)
	}
	return strings.Join(specs, ", ")
}

func (s *scheduleFlags) Set(value string) error {
	parts := strings.SplitN(value, "|", 2)
	if len(parts) != 2 {
		return strconv.ErrSyntax
	}
	*s = append(*s, runnable.Schedule{
		Spec: strings.TrimSpace(parts[0]),
		URL:  strings.TrimSpace(parts[1]),
	})
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
	_ = godotenv.Load()

	var hostBackend string
	var storageBackend string
	var directory string
	var overlapFactor float64
	var settle time.Duration
	var viewportWidth int
	var viewportHeight int
	var userAgent string
	var chromeDevtoolsProtocolURL string
	var debug bool
	var schedules scheduleFlags
	flag.StringVar(&hostBackend, "host-backend", envOrDefaultValue("HOST_BACKEND", "playwright"), "Browser backend (playwright or rod)")
	flag.StringVar(&storageBackend, "storage-backend", envOrDefaultValue("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&directory, "directory", envOrDefaultValue("DIRECTORY", "/tmp"), "Output directory for the file storage backend")
	flag.Float64Var(&overlapFactor, "overlap-factor", envOrDefaultValue("OVERLAP_FACTOR", 0.9), "Fraction of the viewport height advanced per scroll step, in (0, 1]")
	flag.DurationVar(&settle, "settle", envOrDefaultValue("SETTLE", 300*time.Millisecond), "Render settle delay between scroll and capture")
	flag.IntVar(&viewportWidth, "viewport-width", envOrDefaultValue("VIEWPORT_WIDTH", 1920), "Viewport width in pixels")
	flag.IntVar(&viewportHeight, "viewport-height", envOrDefaultValue("VIEWPORT_HEIGHT", 1080), "Viewport height in pixels")
	flag.StringVar(&userAgent, "user-agent", envOrDefaultValue("USER_AGENT", ""), "User-Agent string to use for requests")
	flag.StringVar(&chromeDevtoolsProtocolURL, "chrome-devtools-protocol-url", envOrDefaultValue("CHROME_DEVTOOLS_PROTOCOL_URL", ""), "Connect to existing browser via Chrome DevTools Protocol URL (e.g., http://localhost:9222)")
	flag.BoolVar(&debug, "debug", envOrDefaultValue("DEBUG", false), "Enable text logging and pprof endpoints")
	flag.Var(&schedules, "schedule", "Recurring capture as '<cron spec>|<url>' (can be used multiple times)")

	flag.Parse()

	runnable.Debug = debug

	ctx := context.Background()

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

	var h host.Host
	var err error
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

	var s storage.Storage
	switch storageBackend {
	case "file":
		s, err = storage.NewFileStorage(ctx, storage.FileConfig{
			Directory: directory,
		})
	case "s3":
		s, err = storage.NewS3Storage(ctx, storage.S3Config{
			Bucket: os.Getenv("S3_BUCKET"),
		})
	default:
		log.Fatalf("unknown storage backend: %s", storageBackend)
	}
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
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

	if err := runnable.NewServer(runner, s, schedules).Start(ctx); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
