package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"AssignmentPilot/internal/domain"
	"AssignmentPilot/internal/storage"
)

// Handler serves stored pipeline results to the frontend. It reads the
// same files the batch writes; no transformation layer in between.
type Handler struct {
	store            *storage.Store
	defaultRecipient string
	logger           *slog.Logger
}

// NewHandler wires the store into the retrieval surface.
func NewHandler(store *storage.Store, defaultRecipient string, logger *slog.Logger) *Handler {
	return &Handler{store: store, defaultRecipient: defaultRecipient, logger: logger}
}

// Routes builds the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Route("/api", func(api chi.Router) {
		api.Route("/assignments", func(r chi.Router) {
			r.Get("/", h.ListAssignments)
			r.Get("/{id}/ai-response", h.GetAIResponse)
			r.Get("/{id}/download", h.DownloadAttachment)
			r.Put("/{id}/status", h.UpdateStatus)
		})
		api.Get("/notifications", h.ListNotifications)
		api.Get("/courses", h.ListCourses)
		api.Get("/settings", h.GetSettings)
		api.Put("/settings", h.UpdateSettings)
	})

	return r
}

// ListAssignments returns every stored record with its course name resolved.
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.store.LoadAssignments()
	if err != nil {
		h.logger.Error("cannot list assignments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list assignments")
		return
	}

	courses := h.store.LoadCourses()
	for i := range assignments {
		if assignments[i].CourseName == "" {
			assignments[i].CourseName = courses[assignments[i].CourseID]
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

// GetAIResponse returns the generated artifact content for one assignment.
func (h *Handler) GetAIResponse(w http.ResponseWriter, r *http.Request) {
	a, ok := h.findAssignment(w, r)
	if !ok {
		return
	}
	if a.ResponseFile == "" {
		writeError(w, http.StatusNotFound, "no generated response for this assignment")
		return
	}

	content, err := h.store.ReadArtifact(filepath.Base(a.ResponseFile))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "generated response file not found")
			return
		}
		h.logger.Error("cannot read artifact", "id", a.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read generated response")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

// DownloadAttachment streams the locally materialized attachment.
func (h *Handler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	a, ok := h.findAssignment(w, r)
	if !ok {
		return
	}
	if a.LocalAttachmentPath == "" {
		writeError(w, http.StatusNotFound, "assignment has no attachment")
		return
	}
	if _, err := os.Stat(a.LocalAttachmentPath); err != nil {
		writeError(w, http.StatusNotFound, "attachment file not found")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(a.LocalAttachmentPath))
	http.ServeFile(w, r, a.LocalAttachmentPath)
}

// UpdateStatus flips an assignment between pending and completed.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := domain.Status(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be pending or completed")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.UpdateStatus(id, status); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "assignment not found")
			return
		}
		h.logger.Error("cannot update status", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

// ListNotifications returns the audit log, oldest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	entries := h.store.LoadNotifications()
	if entries == nil {
		entries = []domain.NotificationEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": entries})
}

// ListCourses returns the courseId -> name index.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.LoadCourses())
}

// GetSettings returns the mutable settings record.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.LoadSettings(h.defaultRecipient))
}

// UpdateSettings rewrites the settings record.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if settings.ReceiverEmail == "" {
		writeError(w, http.StatusBadRequest, "receiverEmail is required")
		return
	}

	if err := h.store.SaveSettings(settings); err != nil {
		h.logger.Error("cannot save settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) findAssignment(w http.ResponseWriter, r *http.Request) (domain.Assignment, bool) {
	id := chi.URLParam(r, "id")
	a, err := h.store.FindAssignment(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "assignment not found")
		} else {
			h.logger.Error("cannot load assignment", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load assignment")
		}
		return domain.Assignment{}, false
	}
	return a, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
