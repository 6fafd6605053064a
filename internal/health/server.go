package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Checker holds the checks reported by /healthz. Nil fields are skipped.
type Checker struct {
	JournalPing func(ctx context.Context) error
	RPCPing     func(ctx context.Context) error
	Watermark   func() uint64
	State       func() string
}

// Handler builds the /healthz mux.
func Handler(checker Checker) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := map[string]any{"status": "ok"}
		code := http.StatusOK

		if checker.JournalPing != nil {
			if err := checker.JournalPing(ctx); err != nil {
				status["journal"] = "fail"
				code = http.StatusServiceUnavailable
			} else {
				status["journal"] = "ok"
			}
		}
		if checker.RPCPing != nil {
			if err := checker.RPCPing(ctx); err != nil {
				status["rpc"] = "fail"
				code = http.StatusServiceUnavailable
			} else {
				status["rpc"] = "ok"
			}
		}
		if checker.Watermark != nil {
			status["watermark"] = checker.Watermark()
		}
		if checker.State != nil {
			status["state"] = checker.State()
		}
		if code != http.StatusOK {
			status["status"] = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}

// Serve starts a minimal /healthz handler.
func Serve(addr string, checker Checker) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(checker),
		ReadHeaderTimeout: 3 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

// Shutdown gracefully shuts down the health server.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
