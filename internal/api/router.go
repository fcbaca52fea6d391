package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/devices", app.DevicesHandler)
		r.Get("/history", app.HistoryHandler)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", app.SessionHandler)
			r.Get("/stream", app.SessionStreamHandler)
			r.Post("/device", app.SelectDeviceHandler)
			r.Post("/video", app.UploadVideoHandler)
			r.Post("/start", app.StartAnalysisHandler)
			r.Post("/reset", app.ResetHandler)
			r.Get("/export", app.ExportHandler)
		})
	})

	return r
}
