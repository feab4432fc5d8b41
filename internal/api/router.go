package api

import (
	"cone-tracker-service/internal/api/handlers"
	"cone-tracker-service/internal/ports"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Presentation settings for the router.
type RouterOptions struct {
	FinishTime string
	// Directory served under /static/. Empty disables static files.
	StaticDir string
	Location  *time.Location
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(cones ports.ConeRepository, mailing ports.MailingListRepository, opts RouterOptions) http.Handler {
	r := mux.NewRouter()

	coneHandler := &handlers.ConeHandler{
		Repo:       cones,
		FinishTime: opts.FinishTime,
		Location:   opts.Location,
	}
	mailingHandler := &handlers.MailingListHandler{Repo: mailing}

	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)
	r.HandleFunc("/_health", handlers.Health).Methods(http.MethodGet)

	r.HandleFunc("/", coneHandler.Index).Methods(http.MethodGet)
	r.HandleFunc("/cones", coneHandler.List).Methods(http.MethodGet)
	r.HandleFunc("/api/cones", coneHandler.Summaries).Methods(http.MethodGet)
	r.HandleFunc("/cones/{id:[0-9]+}", coneHandler.Show).Methods(http.MethodGet)
	r.HandleFunc("/cones/{id:[0-9]+}/update", coneHandler.Update).Methods(http.MethodPost)
	r.HandleFunc("/subscribe", mailingHandler.Subscribe).Methods(http.MethodPost)

	if opts.StaticDir != "" {
		r.PathPrefix("/static/").Handler(
			http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))),
		).Methods(http.MethodGet)
	}

	return requestIDMiddleware(loggingMiddleware(r))
}
