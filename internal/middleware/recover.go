package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/Strob0t/clickbridge/internal/logger"
)

// Recover converts a panic in next into a JSON 500 carrying the panic message.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.Error("panic in handler",
				"path", r.URL.Path,
				"panic", fmt.Sprint(rec),
				logger.RequestAttr(r.Context()),
				"stack", string(debug.Stack()),
			)
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Internal server error: %v", rec))
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
