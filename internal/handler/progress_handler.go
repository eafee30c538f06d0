package handler

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"

	"roster/internal/logging"
	"roster/internal/service"
)

type ProgressHandler struct {
	importService ImportService
	logger        *zap.Logger
}

func NewProgressHandler(importService ImportService, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{importService: importService, logger: logging.OrNop(logger)}
}

// GetFileProgress returns the progress for a specific file
func (h *ProgressHandler) GetFileProgress(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("fileName")
	if fileName == "" {
		writeError(w, http.StatusBadRequest, "fileName parameter is required")
		return
	}

	progress := h.importService.GetFileProgress(filepath.Base(fileName))
	if progress == nil {
		writeError(w, http.StatusNotFound, "File not found or not being processed")
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// GetAllProgress returns the progress for all files being processed
func (h *ProgressHandler) GetAllProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.importService.GetAllFileProgress())
}

// SSEProgress streams progress updates to the client using Server-Sent Events
func (h *ProgressHandler) SSEProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	progressChan := make(chan *service.ProgressInfo, 8)
	h.importService.RegisterProgressListener(progressChan)
	defer h.importService.UnregisterProgressListener(progressChan)

	for {
		select {
		case progress := <-progressChan:
			data, err := json.Marshal(progress)
			if err != nil {
				h.logger.Warn("Error marshaling progress", zap.Error(err))
				continue
			}
			if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				h.logger.Debug("Error writing SSE data", zap.Error(err))
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			h.logger.Debug("Client disconnected")
			return
		}
	}
}
