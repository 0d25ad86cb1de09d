package routes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"fullpage-capture/internal/storage"
)

type ArtifactsResponse struct {
	Artifacts []string `json:"artifacts"`
}

// ArtifactPrefix is where capture sessions store their output, see
// session.Key.
const ArtifactPrefix = "FullPage/capture"

func ListArtifacts(storageClient storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		urls, err := storageClient.List(r.Context(), ArtifactPrefix)
		if err != nil {
			slog.Error(fmt.Sprintf("failed to list artifacts: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		b, err := json.Marshal(ArtifactsResponse{
			Artifacts: urls,
		})
		if err != nil {
			slog.Error(fmt.Sprintf("failed to marshal json: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}
