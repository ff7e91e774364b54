package bridge

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/llm-inline/llmi/pkg/logger"
	"github.com/pkg/errors"
)

// maxRequestBytes bounds a single bridge request body
const maxRequestBytes = 16 << 20

// Routes served by the bridge transport
const (
	PathFile    = "/v1/file"
	PathLLM     = "/v1/llm"
	PathVersion = "/v1/version"
)

// FileRequest is the body of a POST to PathFile
type FileRequest struct {
	Path string `json:"path"`
}

// VersionResponse is the body returned from PathVersion
type VersionResponse struct {
	APIVersion string `json:"api_version"`
}

// Server exposes a Bridge over loopback HTTP to out-of-process handlers.
// Every request must carry the per-execution bearer token.
type Server struct {
	bridge   Bridge
	token    string
	router   *mux.Router
	listener net.Listener
	server   *http.Server
	done     chan struct{}
}

// Serve starts a bridge server on a random loopback port
func Serve(ctx context.Context, b Bridge) (*Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Wrap(err, "failed to listen on loopback")
	}

	s := &Server{
		bridge:   b,
		token:    uuid.NewString(),
		router:   mux.NewRouter(),
		listener: listener,
		done:     make(chan struct{}),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		defer close(s.done)
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("bridge server error")
		}
	}()

	logger.G(ctx).WithField("url", s.URL()).Debug("bridge server started")
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc(PathFile, s.handleFile).Methods(http.MethodPost)
	s.router.HandleFunc(PathLLM, s.handleLLM).Methods(http.MethodPost)
	s.router.HandleFunc(PathVersion, s.handleVersion).Methods(http.MethodGet)

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.authMiddleware)
}

// URL returns the base URL of the server
func (s *Server) URL() string {
	return "http://" + s.listener.Addr().String()
}

// Token returns the bearer token clients must present
func (s *Server) Token() string {
	return s.token
}

// Close stops the server, waiting briefly for in-flight requests
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	<-s.done
	if err != nil {
		return errors.Wrap(err, "failed to shut down bridge server")
	}
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rw.statusCode,
			"duration": time.Since(start),
		}).Debug("bridge request")
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			writeJSON(r.Context(), w, http.StatusUnauthorized, &Error{Code: CodeInvalidRequest, Message: "missing or invalid bridge token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	var req FileRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(r.Context(), w, http.StatusBadRequest, FileContent{Error: err})
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, s.bridge.GetFileContent(r.Context(), req.Path))
}

func (s *Server) handleLLM(w http.ResponseWriter, r *http.Request) {
	var req LLMRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(r.Context(), w, http.StatusBadRequest, LLMResponse{Error: err})
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, s.bridge.CallLLM(r.Context(), req))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, VersionResponse{APIVersion: APIVersion})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) *Error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &Error{Code: CodeTooLarge, Message: "request body too large"}
		}
		return &Error{Code: CodeInvalidRequest, Message: "invalid JSON body: " + err.Error()}
	}
	return nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(ctx).WithError(err).Error("failed to encode bridge response")
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
