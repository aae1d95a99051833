package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/farmassist/internal/multimodal"
)

type CropHandler struct {
	vision   *multimodal.VisionService
	maxBytes int64
}

func NewCropHandler(vision *multimodal.VisionService, maxBytes int64) *CropHandler {
	return &CropHandler{vision: vision, maxBytes: maxBytes}
}

// Analyze identifies the crop in the uploaded image and any disease on it.
func (h *CropHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, uploadTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "No image file part")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image file part")
		return
	}
	defer file.Close()

	description := r.FormValue("description")
	slog.Info("crop analysis requested", "filename", header.Filename, "size", header.Size)

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}

	result, err := h.vision.AnalyzeCrop(r.Context(), data, description)
	var upErr *multimodal.UpstreamError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"response": result.Response})
	case errors.Is(err, multimodal.ErrImageTooLarge):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &upErr):
		slog.Error("vision upstream failed", "status", upErr.StatusCode, "body", upErr.Body)
		writeError(w, http.StatusInternalServerError, upErr.Error())
	default:
		slog.Error("crop analysis failed", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
	}
}
