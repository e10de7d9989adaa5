// Package api provides the HTTP front over the dispatcher.
//
// It exposes the chat endpoint, form submission, retailer autocomplete,
// and generated-document downloads. Session and auth plumbing stay
// external; handlers trust the caller-supplied session id and role.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/RetailPipe/RetailPipe/internal/bot"
	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/RetailPipe/RetailPipe/internal/util"
)

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// DocDir is where generated documents are served from.
	DocDir string
}

// Option configures API server construction.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithDocDir sets the generated-document directory.
func WithDocDir(dir string) Option {
	return func(o *Opts) { o.DocDir = dir }
}

// Server is the HTTP front over the dispatcher.
type Server struct {
	dispatcher *bot.Dispatcher
	addr       string
	docDir     string
}

// NewServer creates an API server over the given dispatcher.
func NewServer(d *bot.Dispatcher, options ...Option) *Server {
	opts := Opts{Addr: ":8080", DocDir: "generated"}
	for _, opt := range options {
		opt(&opts)
	}
	return &Server{dispatcher: d, addr: opts.Addr, docDir: opts.DocDir}
}

// Run registers the handlers and serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/autocomplete_retailer", s.autocompleteHandler)
	mux.HandleFunc("/download/", s.downloadHandler)

	srv := &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err.Error())
			return err
		}
		slog.Info("API server stopped")
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// chatRequest is the POST /chat payload. A form submission carries
// form_id and form_data; anything else is free text.
type chatRequest struct {
	SessionID string            `json:"session_id"`
	Message   string            `json:"message"`
	FormID    string            `json:"form_id,omitempty"`
	FormData  map[string]string `json:"form_data,omitempty"`
	Role      string            `json:"role,omitempty"`
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = util.NewSessionID()
	}
	role := models.Role(req.Role)
	if role != models.RoleAdmin {
		role = models.RoleUser
	}

	var reply models.Reply
	if req.FormID != "" {
		reply = s.dispatcher.HandleFormSubmission(r.Context(), req.SessionID,
			models.FormSubmission{FormID: req.FormID, Data: req.FormData}, role)
	} else {
		reply = s.dispatcher.ProcessInput(r.Context(), req.SessionID, req.Message, role)
	}

	slog.Debug("Server.chatHandler: replied", "sessionID", req.SessionID, "kind", reply.Kind)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"session_id": req.SessionID,
		"reply":      reply,
	}))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}

func (s *Server) autocompleteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.dispatcher.AutocompleteRetailers(q, limit)))
}

// downloadHandler serves generated documents by bare file name. Path
// traversal is rejected by resolving against the document directory.
func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := filepath.Base(r.URL.Path)
	if name == "." || name == "/" || name == "download" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing file name"))
		return
	}
	http.ServeFile(w, r, filepath.Join(s.docDir, name))
}
