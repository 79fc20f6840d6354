package lister

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gaspardpetit/urlpusher/internal/agent"
	"github.com/gaspardpetit/urlpusher/internal/conn"
	"github.com/gaspardpetit/urlpusher/internal/directory"
	"github.com/gaspardpetit/urlpusher/internal/loop"
	"github.com/gaspardpetit/urlpusher/internal/status"
	"github.com/gaspardpetit/urlpusher/internal/wire"
)

// Service is what the API needs from the lister.
type Service interface {
	Entries() []wire.DisplayEntry
	Lookup(id string) (wire.DisplayEntry, bool)
	Create(ctx context.Context) error
	Update(ctx context.Context, e wire.DisplayEntry) error
	Delete(ctx context.Context, id string) error
	Refresh(ctx context.Context) error
}

// APIOptions configures the editing API.
type APIOptions struct {
	Board       *status.Board
	CORSOrigins []string
}

// StartAPI serves the editing API on addr until ctx is done.
func StartAPI(ctx context.Context, addr string, svc Service, opts APIOptions) (string, error) {
	return agent.ServeUntilContext(ctx, addr, NewAPI(svc, opts))
}

// NewAPI builds the editing router. Mutations answer 202 because the
// controller applies them asynchronously; the result shows up in the next
// list.
func NewAPI(svc Service, opts APIOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}
	if b := opts.Board; b != nil {
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, http.StatusOK, b.Status()) })
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, http.StatusOK, b.Version()) })
	}
	r.Route("/entries", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Entries())
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			accepted(w, svc.Create(r.Context()))
		})
		r.Post("/refresh", func(w http.ResponseWriter, r *http.Request) {
			accepted(w, svc.Refresh(r.Context()))
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			e, ok := svc.Lookup(chi.URLParam(r, "id"))
			if !ok {
				http.Error(w, "entry not found", http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, e)
		})
		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var e wire.DisplayEntry
			if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
				http.Error(w, "invalid entry", http.StatusBadRequest)
				return
			}
			e.ID = chi.URLParam(r, "id")
			accepted(w, svc.Update(r.Context(), e))
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			accepted(w, svc.Delete(r.Context(), chi.URLParam(r, "id")))
		})
	})
	return r
}

func accepted(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, directory.ErrNoID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, conn.ErrNotOpen), errors.Is(err, conn.ErrSendQueueFull), errors.Is(err, loop.ErrStopped):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
