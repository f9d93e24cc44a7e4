package routes

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/RamiroMoyano/whatsapp-bot/bot"
	"github.com/RamiroMoyano/whatsapp-bot/controllers"
	"github.com/RamiroMoyano/whatsapp-bot/middleware"
)

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func InitRouter(dispatcher *bot.Dispatcher) *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint for Docker health checks (root level)
	r.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"service":   "whatsapp-bot",
		})
	})).Methods(http.MethodGet)

	// CORS for the dashboard - origins from CORS_ALLOWED_ORIGINS (comma-separated)
	origins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	if originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS"); originsEnv != "" {
		for _, p := range strings.Split(originsEnv, ",") {
			if o := strings.TrimSpace(p); o != "" {
				origins = append(origins, o)
			}
		}
	}
	r.Use(func(next http.Handler) http.Handler {
		return handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With", "X-Request-ID"}),
			handlers.AllowCredentials(),
		)(next)
	})

	api := r.PathPrefix("/v1").Subrouter()

	// Catch-all OPTIONS handler for CORS preflight
	api.PathPrefix("/").HandlerFunc(optionsHandler).Methods(http.MethodOptions)

	// Carrier webhooks arrive one per customer message; 600/h per IP is far
	// above any legitimate volume. Gateway egress IPs can be whitelisted via env.
	var whitelist []string
	if v := os.Getenv("WEBHOOK_IP_WHITELIST"); v != "" {
		whitelist = strings.Split(v, ",")
	}
	webhookLimiter := middleware.NewWebhookLimiter(600, time.Hour, whitelist)

	api.Handle("/whatsapp", webhookLimiter.Middleware(controllers.WhatsAppWebhook(dispatcher))).Methods(http.MethodPost)

	api.Handle("/health", http.HandlerFunc(controllers.Health)).Methods(http.MethodGet)

	SetAdminRoutes(api)

	return r
}
