package controllers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"go-storefront/utils"
)

// MaxUploadSize caps the multipart body of an upload
const MaxUploadSize = 10 << 20

// UploadController stores product images
type UploadController struct {
	Blobs  utils.BlobStore
	Logger *slog.Logger
	now    func() time.Time
}

// NewUploadController creates a new UploadController
func NewUploadController(blobs utils.BlobStore, logger *slog.Logger) *UploadController {
	return &UploadController{Blobs: blobs, Logger: loggerOrDefault(logger), now: time.Now}
}

// Upload saves the multipart "file" field and returns where it can be fetched (Admin only)
func (uc *UploadController) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		utils.RespondError(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, "No file received", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, "Error uploading file", http.StatusInternalServerError)
		return
	}

	fileName := utils.GenerateUniqueFileName(handler.Filename, uc.now())
	filePath, err := uc.Blobs.Save(r.Context(), data, fileName)
	if err != nil {
		uc.Logger.Error("error saving upload", "file", fileName, "error", err)
		utils.RespondError(w, "Error saving file to storage", http.StatusInternalServerError)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"filePath": filePath,
	})
}

// MethodNotAllowed answers non-POST requests on the upload route
func (uc *UploadController) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	utils.RespondError(w, "Method not allowed", http.StatusMethodNotAllowed)
}
