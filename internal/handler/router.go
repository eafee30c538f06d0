package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter wires every route. allowedOrigins feeds the CORS policy.
func NewRouter(students *StudentHandler, uploads *UploadHandler, progress *ProgressHandler, allowedOrigins []string, logger *zap.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(logger))

	r.HandleFunc("/health", healthHandler).Methods("GET")

	r.HandleFunc("/students", students.ListStudents).Methods("GET")
	r.HandleFunc("/students", students.CreateStudent).Methods("POST")
	r.HandleFunc("/students", students.ClearStudents).Methods("DELETE")
	r.HandleFunc("/students/{id}", students.GetStudent).Methods("GET")
	r.HandleFunc("/students/{id}", students.UpdateStudent).Methods("PUT")
	r.HandleFunc("/students/{id}", students.DeleteStudent).Methods("DELETE")
	r.HandleFunc("/export", students.ExportStudents).Methods("GET")
	r.HandleFunc("/import", students.ImportStudents).Methods("POST")

	r.HandleFunc("/upload", uploads.UploadJSON).Methods("POST")
	r.HandleFunc("/progress", progress.GetAllProgress).Methods("GET")
	r.HandleFunc("/progress/file", progress.GetFileProgress).Methods("GET")
	r.HandleFunc("/progress/stream", progress.SSEProgress).Methods("GET")

	return handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "roster",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			logger.Info("Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", time.Since(start)))
		})
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

// Flush keeps server-sent events working through the logging wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
