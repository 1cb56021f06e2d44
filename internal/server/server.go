package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/finsightlab/finsight/internal/models"
)

// ComparisonService is the slice of the compare service the API needs.
type ComparisonService interface {
	Snapshot(ctx context.Context, symbol string) (*models.StockSnapshot, error)
	Candles(ctx context.Context, symbol string) (*models.CandleSeries, error)
	News(ctx context.Context, symbol string, enrich bool) ([]*models.NewsArticle, error)
	Compare(ctx context.Context, symbolA, symbolB string) (*models.Comparison, error)
	Chat(ctx context.Context, id int64, question string) (*models.Comparison, string, error)
	Get(id int64) (*models.Comparison, error)
	Recent(limit int) ([]*models.Comparison, error)
}

// Server exposes the comparison service over HTTP.
type Server struct {
	svc  ComparisonService
	addr string
	http *http.Server
}

func New(svc ComparisonService, addr string) *Server {
	s := &Server{svc: svc, addr: addr}
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // LLM calls are slow
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware, corsMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/stocks/{symbol}", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/stocks/{symbol}/candles", s.handleCandles).Methods(http.MethodGet)
	api.HandleFunc("/stocks/{symbol}/news", s.handleNews).Methods(http.MethodGet)
	api.HandleFunc("/compare", s.handleCompare).Methods(http.MethodPost)
	api.HandleFunc("/compare/recent", s.handleRecent).Methods(http.MethodGet)
	api.HandleFunc("/compare/{id:[0-9]+}", s.handleGetComparison).Methods(http.MethodGet)
	api.HandleFunc("/compare/{id:[0-9]+}/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/chat", s.handleChatCurrent).Methods(http.MethodPost)

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("http server listening on %s", s.addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Printf("shutting down http server")
	return s.http.Shutdown(shutdownCtx)
}

// response is the JSON envelope all endpoints use.
type response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response{Code: status, Msg: msg, Data: data}); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, "Ok", data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, err.Error(), nil)
}

const requestIDHeader = "X-Request-ID"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
