// Package scil bridges HTTP traffic with the application services that
// implement ingest (C2/C3), the finding store (C4) and the aggregator/
// exporter (C5), mirroring the thin-handler style of
// internal/adapters/http/health.
package scil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sasp-edomex/scil-auditoria/internal/application/aggregate"
	"github.com/sasp-edomex/scil-auditoria/internal/application/ingest"
	"github.com/sasp-edomex/scil-auditoria/internal/core/apperr"
	"github.com/sasp-edomex/scil-auditoria/internal/core/finding"
	"github.com/sasp-edomex/scil-auditoria/internal/core/user"
	httperrors "github.com/sasp-edomex/scil-auditoria/internal/infrastructure/http"
)

const maxUploadBytes = 64 << 20 // 64 MiB per multipart request

// Handler bridges HTTP traffic with the ingest and aggregate services.
type Handler struct {
	Ingest    *ingest.Service
	Aggregate aggregate.Service
	Findings  finding.Repository
	Directory *user.Directory
	Log       *slog.Logger
}

// NewHandler builds a Handler. dir may be nil when auth is disabled, in
// which case every caller is treated as full-access.
func NewHandler(ingestSvc *ingest.Service, aggregateSvc aggregate.Service, findings finding.Repository, dir *user.Directory, log *slog.Logger) *Handler {
	return &Handler{Ingest: ingestSvc, Aggregate: aggregateSvc, Findings: findings, Directory: dir, Log: log}
}

// Mount registers the five SCIL operations on r. Callers apply the JWT
// middleware around the whole group.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/ingest", h.PostIngest)
	r.Get("/entidades", h.GetEntidades)
	r.Get("/rfc/{rfc}", h.GetRFC)
	r.Put("/solventacion", h.PutSolventacion)
	r.Get("/export", h.GetExport)
}

// PostIngest implements ingest(files): accepts a multipart/form-data
// upload of one or more XLSX workbooks under the "files" field.
func (h *Handler) PostIngest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Error de Carga", []string{"No se pudo leer el archivo enviado"}, h.Log)
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploaded := r.MultipartForm.File["files"]
	if len(uploaded) == 0 {
		httperrors.WriteError(w, http.StatusBadRequest, "Error de Carga", []string{"No se recibió ningún archivo"}, h.Log)
		return
	}

	files := make([]ingest.File, 0, len(uploaded))
	for _, fh := range uploaded {
		f, err := fh.Open()
		if err != nil {
			httperrors.WriteError(w, http.StatusBadRequest, "Error de Carga", []string{"No se pudo abrir " + fh.Filename}, h.Log)
			return
		}
		defer f.Close()
		files = append(files, ingest.File{Name: fh.Filename, Body: f})
	}

	correlationID := r.Header.Get("X-Correlation-Id")
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	result, err := h.Ingest.Ingest(r.Context(), correlationID, files)
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetEntidades implements grouped_by_entity for the authenticated user.
func (h *Handler) GetEntidades(w http.ResponseWriter, r *http.Request) {
	tokens := userTokens(h.Directory, r)
	views, err := h.Aggregate.GroupedByEntity(r.Context(), tokens)
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GetRFC implements get_by_rfc for one RFC, path parameter {rfc}.
func (h *Handler) GetRFC(w http.ResponseWriter, r *http.Request) {
	rfc := chi.URLParam(r, "rfc")
	if rfc == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Error de Solicitud", []string{"RFC requerido"}, h.Log)
		return
	}

	record, err := h.Findings.GetByRFC(r.Context(), rfc)
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	if record == nil {
		httperrors.WriteError(w, http.StatusNotFound, "No Encontrado", []string{"No hay antecedentes para el RFC " + rfc}, h.Log)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// solventacionRequest is the PUT /solventacion payload.
type solventacionRequest struct {
	RFC        string `json:"rfc"`
	Ente       string `json:"ente"`
	Estado     string `json:"estado"`
	Comentario string `json:"comentario"`
}

// PutSolventacion implements update_solventacion.
func (h *Handler) PutSolventacion(w http.ResponseWriter, r *http.Request) {
	var req solventacionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Error de Solicitud", []string{"Cuerpo JSON inválido"}, h.Log)
		return
	}
	if req.RFC == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Error de Solicitud", []string{"rfc requerido"}, h.Log)
		return
	}

	affected, err := h.Findings.UpdateSolventacion(r.Context(), req.RFC, req.Estado, req.Comentario, req.Ente)
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"affected": affected})
}

// GetExport implements export_rows(filter?): flatten_export, optionally
// narrowed by a case-insensitive substring match on RFC or Nombre. The
// presentation layer is responsible for any further CSV/XLSX rendering.
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Aggregate.FlattenExport(r.Context())
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}

	if filter := strings.TrimSpace(r.URL.Query().Get("filter")); filter != "" {
		rows = filterExportRows(rows, filter)
	}

	writeJSON(w, http.StatusOK, rows)
}

func filterExportRows(rows []aggregate.ExportRow, filter string) []aggregate.ExportRow {
	needle := strings.ToUpper(filter)
	out := make([]aggregate.ExportRow, 0, len(rows))
	for _, row := range rows {
		if strings.Contains(strings.ToUpper(row.RFC), needle) || strings.Contains(strings.ToUpper(row.Nombre), needle) {
			out = append(out, row)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAppError maps an apperr.Kind to an HTTP status, per spec.md's
// error taxonomy.
func writeAppError(w http.ResponseWriter, log *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	var ae *apperr.Error
	message := "Error Interno"
	if errors.As(err, &ae) {
		message = ae.Message
	}

	status := http.StatusInternalServerError
	switch kind {
	case apperr.InputShape, apperr.CatalogMiss:
		status = http.StatusBadRequest
	case apperr.Auth:
		status = http.StatusForbidden
	case apperr.Store:
		status = http.StatusBadGateway
	case apperr.Internal:
		status = http.StatusInternalServerError
	}

	httperrors.WriteError(w, status, message, []string{err.Error()}, log)
}
