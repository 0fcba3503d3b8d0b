package handler

import (
	"net/http"
	"strings"

	"github.com/rs/cors"

	logx "github.com/stockwise-ai/server/pkg/logger"
)

// NewRouter wires the routes. Order: CORS -> Recovery -> Routes.
func NewRouter(h *ChatHandler, corsOrigins string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("POST /api/chat", h.Chat)
	mux.HandleFunc("GET /api/sessions/{id}", h.Status)
	mux.HandleFunc("POST /api/sessions/{id}/reset", h.Reset)
	mux.HandleFunc("GET /api/inventory", h.Inventory)

	var handler http.Handler = mux
	handler = recovery(handler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: splitOrigins(corsOrigins),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept"},
	})
	return corsHandler.Handler(handler)
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logx.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("panic recovered")
				respondError(w, http.StatusInternalServerError, "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
