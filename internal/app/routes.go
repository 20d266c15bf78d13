package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/RkayG/Cxperia-sub002/internal/handlers"
	"github.com/RkayG/Cxperia-sub002/internal/middleware"
	"github.com/RkayG/Cxperia-sub002/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes for the application
func (app *App) SetupRoutes(router *mux.Router, h *handlers.Handlers) error {
	general, err := app.Registry.GetOrCreate(ratelimit.PresetGeneral, nil)
	if err != nil {
		return err
	}
	strict, err := app.Registry.GetOrCreate(ratelimit.PresetStrict, nil)
	if err != nil {
		return err
	}

	router.Use(middleware.RequestID, middleware.Logging(app.Logger))

	// Health check and metrics are never rate limited
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	if app.Metrics != nil {
		router.Handle("/metrics", app.Metrics.Handler()).Methods("GET")
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Use(ratelimit.Middleware(general))

	// Feedback checks its own limiter inline after the general one
	api.HandleFunc("/feedback", h.SubmitFeedback).Methods("POST")
	api.Handle("/ratelimit/stats", ratelimit.Middleware(strict)(http.HandlerFunc(h.GetRateLimitStats))).Methods("GET")

	return nil
}
