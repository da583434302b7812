package handler

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"studentsystem/internal/service"
)

type ProgressHandler struct {
	importService *service.ImportService
}

func NewProgressHandler(importService *service.ImportService) *ProgressHandler {
	return &ProgressHandler{importService: importService}
}

// GetFileProgress returns the import progress for a specific file.
func (h *ProgressHandler) GetFileProgress(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("fileName")
	if fileName == "" {
		http.Error(w, "fileName parameter is required", http.StatusBadRequest)
		return
	}

	progress := h.importService.GetFileProgress(filepath.Base(fileName))
	if progress == nil {
		http.Error(w, "file not found or not being processed", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// GetAllProgress returns the import progress for every known file.
func (h *ProgressHandler) GetAllProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.importService.GetAllFileProgress())
}

// StreamProgress streams progress updates to the client as Server-Sent
// Events until the client disconnects.
func (h *ProgressHandler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	progressChan := make(chan *service.ProgressInfo, 16)
	h.importService.RegisterProgressListener(progressChan)
	defer h.importService.UnregisterProgressListener(progressChan)

	for {
		select {
		case progress := <-progressChan:
			data, err := json.Marshal(progress)
			if err != nil {
				log.WithError(err).Error("error marshaling progress")
				continue
			}
			if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
