package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RamiroMoyano/whatsapp-bot/ai"
	"github.com/RamiroMoyano/whatsapp-bot/bot"
	"github.com/RamiroMoyano/whatsapp-bot/database"
	"github.com/RamiroMoyano/whatsapp-bot/logger"
	"github.com/RamiroMoyano/whatsapp-bot/middleware"
	"github.com/RamiroMoyano/whatsapp-bot/models"
	"github.com/RamiroMoyano/whatsapp-bot/notify"
	"github.com/RamiroMoyano/whatsapp-bot/routes"
)

func main() {
	// Load .env if present (do not overwrite already-set environment variables).
	if envMap, err := godotenv.Read(); err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	logger.Init()
	defer logger.Sync()
	log := logger.L().Sugar()

	requiredEnvVars := []string{"DB_HOST", "DB_USER", "DB_PASS", "DB_NAME", "JWT_SECRET"}
	for _, envVar := range requiredEnvVars {
		if os.Getenv(envVar) == "" {
			log.Fatalf("Required environment variable %s is not set", envVar)
		}
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	// Auto-migrate only in development to avoid accidental production schema changes
	if strings.ToLower(os.Getenv("ENV")) == "development" {
		log.Info("Running in development mode - performing auto-migration")
		if err := database.RunMigrations(db,
			&models.Admin{},
			&models.Company{},
			&models.CustomerCompany{},
			models.SessionModel(),
			&models.Order{},
			&models.Setting{},
			&models.AIMessage{},
		); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		if err := seedDefaultCompanies(db); err != nil {
			log.Fatalf("failed to seed companies: %v", err)
		}
		log.Info("Auto-migration completed successfully")
	} else {
		log.Info("Running in production mode - skipping auto-migration")
	}

	dispatcher := bot.New(db, ai.NewFromEnv(), notify.NewTelegramFromEnv(), bot.ConfigFromEnv())

	router := routes.InitRouter(dispatcher)

	// Wrap router with global middleware in recommended order
	// Logging -> Security headers / CORS -> Request ID -> Max Body -> Timeout -> Recovery
	handler := middleware.RequestLogMiddleware(
		middleware.SecurityHeadersMiddleware(
			middleware.RequestIDMiddleware(
				middleware.MaxBodyMiddleware(
					middleware.TimeoutMiddleware(
						middleware.RecoveryMiddleware(router),
					),
				),
			),
		),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

// seedDefaultCompanies inserts the two starter tenants on first boot. Existing
// rows are left untouched.
func seedDefaultCompanies(db *gorm.DB) error {
	companies := []models.Company{
		{
			ID:          "babystepsbots",
			Name:        "Babystepsbots",
			Prompt:      "Sos el asistente comercial de Babystepsbots. Español Argentina, claro, directo, vendedor.",
			CatalogJSON: `[{"id":1,"name":"Bot WhatsApp","price":120},{"id":2,"name":"Bot Instagram","price":100},{"id":3,"name":"Bot Unificado","price":200}]`,
			RulesJSON:   `{"tone":"comercial","allowHuman":true}`,
		},
		{
			ID:          "veterinaria_sm",
			Name:        "Veterinaria San Miguel",
			Prompt:      "Sos asistente de una veterinaria. Empático, calmado, priorizás urgencias.",
			CatalogJSON: `[{"id":1,"name":"Consulta","price":5000},{"id":2,"name":"Vacunación","price":8000}]`,
			RulesJSON:   `{"tone":"empatico","emergencyKeywords":["urgente","accidente"],"allowHuman":true}`,
		},
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&companies).Error
}
