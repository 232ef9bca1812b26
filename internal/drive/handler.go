package drive

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

type Handler struct {
	source        Source
	ingestService *IngestService
}

func NewHandler(source Source, ingestService *IngestService) *Handler {
	return &Handler{
		source:        source,
		ingestService: ingestService,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods(http.MethodGet)
	router.HandleFunc("/api/drive/ingest", h.IngestFile).Methods(http.MethodPost)
	router.HandleFunc("/api/drive/ingest/folder", h.IngestFolder).Methods(http.MethodPost)
}

func (h *Handler) resolveFolder(r *http.Request) (string, error) {
	query := r.URL.Query()
	if path := query.Get("path"); path != "" {
		return h.source.FindFolderByPath(r.Context(), path)
	}
	return query.Get("folderId"), nil
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.resolveFolder(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	files, err := h.source.ListFiles(r.Context(), folderID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if files == nil {
		files = []*File{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) IngestFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		http.Error(w, "fileId parameter is required", http.StatusBadRequest)
		return
	}

	res, err := h.ingestService.IngestFile(r.Context(), fileID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrValidation) {
			status = http.StatusBadRequest
		}
		http.Error(w, "ingestion failed: "+err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) IngestFolder(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.resolveFolder(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	results, err := h.ingestService.IngestFolder(r.Context(), folderID)
	if err != nil {
		http.Error(w, "ingestion failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
