package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"fullpage-capture/internal/capture"
	"fullpage-capture/internal/session"
	"fullpage-capture/internal/survey"
)

type CaptureRequest struct {
	URL string `json:"url"`

	// Optional per-request overrides for the driver tunables.
	OverlapFactor      *float64 `json:"overlapFactor,omitempty"`
	SettleMilliseconds *int     `json:"settleMilliseconds,omitempty"`
}

type CaptureResponse struct {
	ArtifactURL  string    `json:"artifactUrl"`
	Filename     string    `json:"filename"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	TileCount    int       `json:"tileCount"`
	SkippedTiles int       `json:"skippedTiles"`
	CapturedAt   time.Time `json:"capturedAt"`
}

func CreateCapture(runner *session.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request CaptureRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %s", err), http.StatusBadRequest)
			return
		}
		if request.URL == "" {
			http.Error(w, "url is required", http.StatusBadRequest)
			return
		}

		config := runner.Config
		if request.OverlapFactor != nil {
			config.OverlapFactor = *request.OverlapFactor
		}
		if request.SettleMilliseconds != nil {
			config.Settle = time.Duration(*request.SettleMilliseconds) * time.Millisecond
		}

		artifact, err := runner.RunWithConfig(r.Context(), request.URL, config)
		if err != nil {
			slog.Error(fmt.Sprintf("failed to capture %s: %s", request.URL, err))
			http.Error(w, err.Error(), captureStatusCode(err))
			return
		}

		artifactURL, err := runner.Store(r.Context(), artifact)
		if err != nil {
			slog.Error(fmt.Sprintf("failed to store artifact for %s: %s", request.URL, err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		b, err := json.Marshal(CaptureResponse{
			ArtifactURL:  artifactURL,
			Filename:     artifact.Filename,
			Width:        artifact.Geometry.TotalWidth,
			Height:       artifact.Geometry.TotalHeight,
			TileCount:    artifact.TileCount,
			SkippedTiles: artifact.Skipped,
			CapturedAt:   artifact.CapturedAt,
		})
		if err != nil {
			slog.Error(fmt.Sprintf("failed to marshal json: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(b)
	}
}

// captureStatusCode distinguishes the failure kinds so callers can tell a
// concurrent-trigger rejection from a page failure from a bad request.
func captureStatusCode(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, survey.ErrPageInaccessible),
		errors.Is(err, capture.ErrScrollFailed),
		errors.Is(err, capture.ErrCaptureFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
