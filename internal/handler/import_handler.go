package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"studentsystem/internal/service"
)

type ImportHandler struct {
	importService *service.ImportService
	uploadDir     string
}

func NewImportHandler(importService *service.ImportService, uploadDir string) *ImportHandler {
	return &ImportHandler{importService: importService, uploadDir: uploadDir}
}

// UploadCSV accepts one or more CSV files in a multipart form and
// imports them asynchronously. Saved files get a uuid prefix so two
// uploads with the same name cannot clobber each other; progress is
// tracked under the saved name.
func (h *ImportHandler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		http.Error(w, "failed to create upload directory", http.StatusInternalServerError)
		return
	}

	err := r.ParseMultipartForm(100 << 20) // 100MB
	if errors.Is(err, multipart.ErrMessageTooLarge) {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		http.Error(w, "malformed multipart request", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}

	fileNames := make([]string, 0, len(files))
	for _, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			log.WithError(err).Error("error opening uploaded file")
			continue
		}

		savedName := uuid.NewString() + "_" + filepath.Base(fileHeader.Filename)
		savePath := filepath.Join(h.uploadDir, savedName)
		outFile, err := os.Create(savePath)
		if err != nil {
			log.WithError(err).Error("error saving uploaded file")
			file.Close()
			continue
		}

		_, err = io.Copy(outFile, file)
		file.Close()
		outFile.Close()
		if err != nil {
			log.WithError(err).Error("error writing uploaded file")
			continue
		}

		fileNames = append(fileNames, savedName)
		go func(filePath string) {
			if err := h.importService.ProcessCSV(filePath); err != nil {
				log.WithError(err).WithField("file", filePath).Error("error processing file")
			}
		}(savePath)
	}

	response := map[string]interface{}{
		"message": "files uploaded, import started",
		"files":   fileNames,
	}
	writeJSON(w, http.StatusAccepted, response)
}
