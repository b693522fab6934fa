package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ironsheep/photo-edit-mcp/internal/imaging"
	"github.com/ironsheep/photo-edit-mcp/internal/studio"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

func (h *Handler) HandlePrompts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{"prompts": studio.ExamplePrompts})
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	session := h.newSession()
	h.store.Set(id, session)

	slog.Info("Session created", "session_id", id, "sessions", h.store.Len())
	w.Header().Set("Location", "/api/sessions/"+id)
	h.writeJSONStatus(w, http.StatusCreated, map[string]any{
		"id":    id,
		"state": session.Snapshot(),
	})
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, session.Snapshot())
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.getSessionOrError(w, r); !ok {
		return
	}
	h.store.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.writeError(w, "Failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.writeError(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	uploads := make([]imaging.Upload, 0, len(headers))
	for _, fh := range headers {
		u, err := h.readPart(fh)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		uploads = append(uploads, u)
	}

	if err := session.Upload(r.Context(), uploads); err != nil {
		h.writeError(w, session.LastError(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, session.Snapshot())
}

func (h *Handler) readPart(fh *multipart.FileHeader) (imaging.Upload, error) {
	name := fh.Filename
	f, err := fh.Open()
	if err != nil {
		return imaging.Upload{}, fmt.Errorf("failed to read %q: %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return imaging.Upload{}, fmt.Errorf("failed to read %q: %w", name, err)
	}
	if int64(len(data)) > h.maxUpload {
		return imaging.Upload{}, fmt.Errorf("file %q too large (max %d bytes)", name, h.maxUpload)
	}
	return imaging.Upload{Name: name, MimeType: fh.Header.Get("Content-Type"), Data: data}, nil
}

type selectRequest struct {
	Index int `json:"index"`
}

func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := session.Select(req.Index); err != nil {
		h.writeStudioError(w, err)
		return
	}
	h.writeJSON(w, session.Snapshot())
}

type adjustmentRequest struct {
	Brightness *float64 `json:"brightness"`
	Contrast   *float64 `json:"contrast"`
}

func (h *Handler) HandleSetAdjustments(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var req adjustmentRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	adj := session.Adjustment()
	if req.Brightness != nil {
		adj.Brightness = *req.Brightness
	}
	if req.Contrast != nil {
		adj.Contrast = *req.Contrast
	}
	if err := session.SetAdjustment(adj); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, session.Snapshot())
}

func (h *Handler) HandleResetAdjustments(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	session.ResetAdjustment()
	h.writeJSON(w, session.Snapshot())
}

type consistencyRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) HandleSetConsistency(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var req consistencyRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	session.SetMaintainConsistency(req.Enabled)
	h.writeJSON(w, session.Snapshot())
}

type editRequest struct {
	Prompt              string `json:"prompt"`
	MaintainConsistency *bool  `json:"maintain_consistency"`
}

func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var req editRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.MaintainConsistency != nil {
		session.SetMaintainConsistency(*req.MaintainConsistency)
	}

	if _, err := session.Generate(context.WithoutCancel(r.Context()), req.Prompt); err != nil {
		h.writeStudioError(w, err)
		return
	}
	h.writeJSON(w, session.Snapshot())
}

func (h *Handler) HandleRemoveBackground(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if _, err := session.RemoveBackground(context.WithoutCancel(r.Context())); err != nil {
		h.writeStudioError(w, err)
		return
	}
	h.writeJSON(w, session.Snapshot())
}

func (h *Handler) HandleClearError(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	session.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

// imageTarget parses the {index}/{variant} path segments.
func (h *Handler) imageTarget(w http.ResponseWriter, r *http.Request) (int, studio.Variant, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		h.writeError(w, "Invalid image index", http.StatusBadRequest)
		return 0, "", false
	}
	v, err := studio.ParseVariant(chi.URLParam(r, "variant"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return 0, "", false
	}
	return index, v, true
}

func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	index, v, ok := h.imageTarget(w, r)
	if !ok {
		return
	}

	d, err := session.Download(index, v)
	if err != nil {
		h.writeStudioError(w, err)
		return
	}
	h.writeFile(w, d)
}

type cropRequest struct {
	DisplayWidth     float64       `json:"display_width"`
	DisplayHeight    float64       `json:"display_height"`
	Aspect           string        `json:"aspect"`
	Selection        *imaging.Rect `json:"selection"`
	DevicePixelRatio float64       `json:"device_pixel_ratio"`
}

func (h *Handler) HandleCrop(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	index, v, ok := h.imageTarget(w, r)
	if !ok {
		return
	}
	var req cropRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	aspect, err := imaging.ParseAspect(req.Aspect)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, err := session.Crop(studio.CropRequest{
		Index:            index,
		Variant:          v,
		Display:          imaging.Size{Width: req.DisplayWidth, Height: req.DisplayHeight},
		Aspect:           aspect,
		Selection:        req.Selection,
		DevicePixelRatio: req.DevicePixelRatio,
	})
	if errors.Is(err, imaging.ErrEmptySelection) {
		// Nothing to export; the action is inert.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.writeStudioError(w, err)
		return
	}
	h.writeFile(w, d)
}

func (h *Handler) writeFile(w http.ResponseWriter, d *studio.Download) {
	w.Header().Set("Content-Type", d.Bitmap.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Bitmap.Data)))
	if _, err := w.Write(d.Bitmap.Data); err != nil {
		slog.Error("Unable to write download", "name", d.Name, "err", err)
	}
}
