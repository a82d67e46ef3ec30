package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
)

// imageField is the multipart form field carrying the upload.
const imageField = "image"

// multipartMemory is how much of a multipart body is kept in memory.
const multipartMemory = 1 << 20

// UploadImage accepts a multipart image and sends it as a user message
// encoded as a data URL.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	limit := h.session.MaxImageBytes()

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(w, http.StatusRequestEntityTooLarge, "image exceeds "+humanize.IBytes(uint64(limit)))
			return
		}
		h.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile(imageField)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "image field is required")
		return
	}
	defer file.Close()

	// Oversized files are rejected by the session without reading them.
	var data []byte
	if header.Size <= limit {
		data, err = io.ReadAll(io.LimitReader(file, limit+1))
		if err != nil {
			h.Error(w, http.StatusBadRequest, "failed to read image")
			return
		}
		if len(data) == 0 {
			h.Error(w, http.StatusBadRequest, "image is empty")
			return
		}
		contentType := http.DetectContentType(data)
		if !strings.HasPrefix(contentType, "image/") {
			h.Error(w, http.StatusUnsupportedMediaType, "file is not an image")
			return
		}
		data = []byte("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data))
	}

	msg, err := h.session.UploadImage(r.Context(), string(data), header.Size)
	warning, handled := h.commandError(w, err)
	if handled {
		return
	}

	h.JSON(w, http.StatusCreated, MessageResponse{Message: msg, Warning: warning})
}
