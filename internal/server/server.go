package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/qinyiguo/DMS2.0/internal/config"
	"github.com/qinyiguo/DMS2.0/internal/pipeline"
	"github.com/qinyiguo/DMS2.0/internal/storage"
)

const maxUploadBytes = 32 << 20

type Server struct {
	db  *storage.DB
	imp *pipeline.ImportService
}

func New(db *storage.DB, cfg config.Config) (*Server, error) {
	imp, err := pipeline.NewImportService(db, cfg)
	if err != nil {
		return nil, err
	}
	return &Server{db: db, imp: imp}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/v1/imports", s.handleImport)

	return r
}

func (s *Server) ListenAndServe(addr string) error {
	fmt.Printf("http server listening on %s\n", addr)
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		writeError(w, http.StatusInternalServerError, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleImport accepts one spreadsheet as multipart form field "file" and
// returns the batch summary. Row-level problems are reported in the summary
// counters, not as an HTTP error; only a missing file or a sheet without data
// rows fails the request.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing form file: file")
		return
	}
	defer file.Close()

	blob, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read upload")
		return
	}

	summary, err := s.imp.ImportFile(header.Filename, blob)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
