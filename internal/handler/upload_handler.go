package handler

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"roster/internal/logging"
	"roster/internal/service"
)

type ImportService interface {
	ProcessFileAsync(fileName, filePath string)
	GetFileProgress(fileName string) *service.ProgressInfo
	GetAllFileProgress() []*service.ProgressInfo
	RegisterProgressListener(ch chan *service.ProgressInfo)
	UnregisterProgressListener(ch chan *service.ProgressInfo)
}

type UploadHandler struct {
	importService ImportService
	uploadDir     string
	logger        *zap.Logger
}

func NewUploadHandler(importService ImportService, uploadDir string, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{importService: importService, uploadDir: uploadDir, logger: logging.OrNop(logger)}
}

// UploadJSON saves every file of the multipart "files" field and queues it
// for import. Progress is reported under the file's base name.
func (h *UploadHandler) UploadJSON(w http.ResponseWriter, r *http.Request) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		h.logger.Error("Failed to create uploads directory", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create uploads directory")
		return
	}

	err := r.ParseMultipartForm(maxImportBytes)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large or bad request")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	fileNames := make([]string, 0, len(files))
	for _, header := range files {
		name := filepath.Base(header.Filename)
		if name == "." || name == string(filepath.Separator) {
			continue
		}

		file, err := header.Open()
		if err != nil {
			h.logger.Warn("Error opening file", zap.String("file", name), zap.Error(err))
			continue
		}

		// Same-named uploads may overlap, so each one gets its own file.
		outFile, err := os.CreateTemp(h.uploadDir, "*-"+name)
		if err != nil {
			h.logger.Warn("Error saving the file", zap.String("file", name), zap.Error(err))
			file.Close()
			continue
		}

		savePath := outFile.Name()
		_, err = io.Copy(outFile, file)
		file.Close()
		outFile.Close()
		if err != nil {
			h.logger.Warn("Error writing file", zap.String("file", name), zap.Error(err))
			continue
		}

		fileNames = append(fileNames, name)
		h.importService.ProcessFileAsync(name, savePath)
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Files uploaded successfully and processing started",
		"files":   fileNames,
	})
}
