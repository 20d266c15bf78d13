package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/RkayG/Cxperia-sub002/internal/handlers"
	"github.com/RkayG/Cxperia-sub002/internal/server"
)

// Handler builds the router with every route wired to the app's registry.
func (app *App) Handler() (http.Handler, error) {
	h := handlers.New(app.Registry, nil, app.Logger)

	router := mux.NewRouter()
	if err := app.SetupRoutes(router, h); err != nil {
		return nil, err
	}
	return router, nil
}

// RunServer creates the HTTP server; the caller starts it.
func (app *App) RunServer() (*server.Server, error) {
	handler, err := app.Handler()
	if err != nil {
		return nil, err
	}
	return server.New(handler, app.Config.Port, app.Config.TLSCertFile, app.Config.TLSKeyFile), nil
}
