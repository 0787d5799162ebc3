package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"vinotracker/config"
	"vinotracker/logging"
	"vinotracker/metrics"
	"vinotracker/middleware"
	"vinotracker/routes"
	"vinotracker/store"
)

var (
	Version   = "dev"
	BuildTime = ""
)

func main() {

	versionFlag := flag.Bool("version", false, "Print version info and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Version:   %s\n", Version)
		fmt.Printf("BuildTime: %s\n", BuildTime)
		os.Exit(0)
	}

	log := logging.New(os.Getenv("LOG_LEVEL"))
	cfg := config.Load(log)
	if cfg.LogLevel != os.Getenv("LOG_LEVEL") {
		log = logging.New(cfg.LogLevel)
	}
	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	db, err := config.Connect(cfg)
	if err != nil {
		log.Error("could not connect to database", "error", err)
		os.Exit(1)
	}
	if err := config.Migrations(db); err != nil {
		log.Error("could not run migrations", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry, "vinotracker")

	st := store.New(db, log, m)
	if err := config.SeedAdmin(context.Background(), st, cfg, log); err != nil {
		log.Warn("seeding encountered issues", "error", err)
	}

	handler := routes.Register(routes.Deps{
		Store:    st,
		Auth:     middleware.NewAuth(cfg.JWTSecret),
		Log:      log,
		Metrics:  m,
		Registry: registry,
	})

	log.Info("server starting", "port", cfg.Port, "version", Version)
	if err := http.ListenAndServe(":"+cfg.Port, enableCORS(handler)); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
