package routes

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"fullpage-capture/internal/storage"
)

type ArtifactContentResponse struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

func GetArtifact(storageClient storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := r.URL.Query().Get("src")
		if source == "" {
			http.Error(w, "src is required", http.StatusBadRequest)
			return
		}

		data, err := storageClient.Get(r.Context(), source)
		if err != nil {
			slog.Error(fmt.Sprintf("failed to get artifact %s: %s", source, err))
			http.NotFound(w, r)
			return
		}

		b, err := json.Marshal(ArtifactContentResponse{
			Source:  source,
			Content: base64.StdEncoding.EncodeToString(data),
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
