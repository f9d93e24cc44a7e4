package routes

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/RamiroMoyano/whatsapp-bot/controllers/admins"
	"github.com/RamiroMoyano/whatsapp-bot/middleware"
)

func SetAdminRoutes(api *mux.Router) {
	// Rate limiter for admin login: 5 attempts per IP per minute
	adminLoginLimiter := middleware.NewIPRateLimiter(5, time.Minute)

	// Public admin routes
	api.Handle("/admin/login", adminLoginLimiter.Middleware(http.HandlerFunc(admins.Login))).Methods(http.MethodPost)

	// Protected admin routes
	adminRouter := api.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middleware.AdminAuthMiddleware)

	adminRouter.Handle("/logout", http.HandlerFunc(admins.Logout)).Methods(http.MethodPost)

	// Company management
	adminRouter.Handle("/companies", http.HandlerFunc(admins.ListCompanies)).Methods(http.MethodGet)
	adminRouter.Handle("/companies", http.HandlerFunc(admins.CreateCompany)).Methods(http.MethodPost)
	adminRouter.Handle("/companies/{id}", http.HandlerFunc(admins.GetCompany)).Methods(http.MethodGet)
	adminRouter.Handle("/companies/{id}", http.HandlerFunc(admins.UpdateCompany)).Methods(http.MethodPut)
	adminRouter.Handle("/companies/{id}", http.HandlerFunc(admins.DeleteCompany)).Methods(http.MethodDelete)

	// Customer-company assignments
	adminRouter.Handle("/assignments", http.HandlerFunc(admins.ListAssignments)).Methods(http.MethodGet)
	adminRouter.Handle("/assignments", http.HandlerFunc(admins.CreateAssignment)).Methods(http.MethodPost)
	adminRouter.Handle("/assignments/{from}", http.HandlerFunc(admins.DeleteAssignment)).Methods(http.MethodDelete)

	// Orders
	adminRouter.Handle("/orders", http.HandlerFunc(admins.ListOrders)).Methods(http.MethodGet)
	adminRouter.Handle("/orders/export", http.HandlerFunc(admins.ExportOrders)).Methods(http.MethodGet)
	adminRouter.Handle("/orders/{id}", http.HandlerFunc(admins.GetOrder)).Methods(http.MethodGet)
	adminRouter.Handle("/orders/{id}/status", http.HandlerFunc(admins.UpdateOrderStatus)).Methods(http.MethodPut)

	// Sessions
	adminRouter.Handle("/sessions/{from}/auto", http.HandlerFunc(admins.ForceAuto)).Methods(http.MethodPut)
}
