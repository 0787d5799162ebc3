package routes

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vinotracker/handlers"
	"vinotracker/metrics"
	"vinotracker/middleware"
	"vinotracker/store"
)

// Deps carries everything the route tree needs. main builds one and hands it
// over; nothing here reaches for globals.
type Deps struct {
	Store    *store.Store
	Auth     *middleware.Auth
	Log      *slog.Logger
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

// Register sets up the full route tree.
func Register(d Deps) http.Handler {
	auth := handlers.NewAuthHandler(d.Store, d.Auth, d.Log)
	users := handlers.NewUserHandler(d.Store, d.Log)
	clients := handlers.NewClientHandler(d.Store, d.Log)
	visits := handlers.NewVisitHandler(d.Store, d.Log, d.Metrics)
	orders := handlers.NewOrderHandler(d.Store, d.Log, d.Metrics)
	products := handlers.NewProductHandler(d.Store, d.Log)
	reports := handlers.NewReportHandler(d.Store, d.Log)
	uploads := handlers.NewBulkUploadHandler(d.Store, d.Log)

	r := mux.NewRouter()

	// Public routes (no authentication).
	r.HandleFunc("/login", auth.Login).Methods("POST")
	r.HandleFunc("/token", auth.CurrentUser).Methods("GET")
	r.HandleFunc("/healthz", handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})).Methods("GET")

	// Authenticated API.
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.SecurityHeaders)
	api.Use(d.Auth.Middleware)

	api.HandleFunc("/profile", auth.Profile).Methods("GET")

	// Clients.
	api.HandleFunc("/clients", clients.List).Methods("GET")
	api.HandleFunc("/clients", clients.Create).Methods("POST")
	api.HandleFunc("/clients/ranked", clients.Ranked).Methods("GET")
	api.HandleFunc("/clients/{id}", clients.Get).Methods("GET")
	api.HandleFunc("/clients/{id}", clients.Update).Methods("PUT")
	api.HandleFunc("/clients/{id}", clients.Delete).Methods("DELETE")
	api.HandleFunc("/clients/{id}/visits", visits.History).Methods("GET")

	// Visits.
	api.HandleFunc("/visits/start", visits.Start).Methods("POST")
	api.HandleFunc("/visits/open", visits.Open).Methods("GET")
	api.HandleFunc("/visits/{id}/notes", visits.SaveNotes).Methods("PUT")
	api.HandleFunc("/visits/{id}/draft", visits.SaveDraft).Methods("PUT")
	api.HandleFunc("/visits/{id}/photos", visits.AddPhotos).Methods("PUT")
	api.HandleFunc("/visits/{id}/end", visits.End).Methods("POST")

	// Orders.
	api.HandleFunc("/orders", orders.Place).Methods("POST")
	api.HandleFunc("/orders", orders.List).Methods("GET")
	api.HandleFunc("/orders/{id}", orders.Get).Methods("GET")
	api.HandleFunc("/orders/{id}/pdf", orders.PDF).Methods("GET")

	// Products (catalog is readable by every rep).
	api.HandleFunc("/products", products.List).Methods("GET")
	api.HandleFunc("/products/{id}", products.Get).Methods("GET")

	// Admin routes.
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)

	admin.HandleFunc("/users/invite", users.Invite).Methods("POST")
	admin.HandleFunc("/users", users.List).Methods("GET")

	admin.HandleFunc("/products", products.Create).Methods("POST")
	admin.HandleFunc("/products/{id}", products.Update).Methods("PUT")
	admin.HandleFunc("/products/{id}", products.Delete).Methods("DELETE")

	admin.HandleFunc("/bulk-upload", uploads.Upload).Methods("POST")

	admin.HandleFunc("/reports/summary", reports.Summary).Methods("GET")
	admin.HandleFunc("/reports/visits/export", reports.ExportVisits).Methods("GET")
	admin.HandleFunc("/reports/orders/export", reports.ExportOrders).Methods("GET")

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
