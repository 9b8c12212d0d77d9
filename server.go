package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"byd-rag/rag"

	"go.uber.org/zap"
)

type Server struct {
	ingester        *rag.Ingester
	querier         *rag.Querier
	logger          *zap.Logger
	defaultDocument string
	requestTimeout  time.Duration
}

func NewServer(ingester *rag.Ingester, querier *rag.Querier, logger *zap.Logger, defaultDocument string, requestTimeout time.Duration) *Server {
	return &Server{
		ingester:        ingester,
		querier:         querier,
		logger:          logger,
		defaultDocument: defaultDocument,
		requestTimeout:  requestTimeout,
	}
}

// Routes returns the service handler with logging, recovery and timeouts.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("POST /embed", s.embedHandler)
	mux.HandleFunc("POST /query", s.queryHandler)
	return s.recoverer(s.logRequests(s.withTimeout(mux)))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

type embedRequest struct {
	Document string `json:"document"`
}

type chunkFailure struct {
	Index   int    `json:"index"`
	ChunkID string `json:"chunk_id"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

type embedResponse struct {
	Message  string         `json:"message"`
	Document string         `json:"document,omitempty"`
	Chunks   int            `json:"chunks"`
	Inserted int            `json:"inserted"`
	Failed   int            `json:"failed,omitempty"`
	Failures []chunkFailure `json:"failures,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// POST /embed  (optional body: { "document": "bydprojects.pdf" })
func (s *Server) embedHandler(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	if req.Document == "" {
		req.Document = s.defaultDocument
	}

	report, err := s.ingester.Ingest(r.Context(), req.Document)
	if err != nil {
		s.logger.Error("embed failed", zap.String("document", req.Document), zap.Error(err))
		resp := embedResponse{Message: "Error occurred", Document: req.Document, Error: err.Error()}
		if report != nil {
			resp.Chunks, resp.Inserted, resp.Failed = report.Chunks, report.Inserted, report.Failed
			for _, o := range report.Failures() {
				resp.Failures = append(resp.Failures, chunkFailure{
					Index:   o.Index,
					ChunkID: o.ChunkID,
					Kind:    rag.KindOf(o.Err).String(),
					Error:   o.Err.Error(),
				})
			}
		}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	writeJSON(w, http.StatusOK, embedResponse{
		Message:  "Successfully Embedded",
		Document: report.Document,
		Chunks:   report.Chunks,
		Inserted: report.Inserted,
	})
}

type queryRequest struct {
	Query *string `json:"query"`
}

// POST /query  { "query": "your question" }
func (s *Server) queryHandler(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == nil || strings.TrimSpace(*req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "query is required"})
		return
	}

	answer, err := s.querier.Answer(r.Context(), *req.Query)
	if err != nil {
		status := http.StatusInternalServerError
		if rag.KindOf(err) == rag.KindInvalid {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"message": "Error occurred " + err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, answer.Text)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	if s.requestTimeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("panic in handler", zap.Any("panic", v), zap.String("path", r.URL.Path), zap.Stack("stack"))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Error occurred"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
