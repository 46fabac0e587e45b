package router

import (
	"net/http"
	"time"

	"CrudAPI/internal/config"
	"CrudAPI/internal/logger"
	"CrudAPI/internal/resource"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// New mounts the generated endpoints of every model under prefix.
func New(h *resource.Handler, prefix string, cors config.CORSConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(withLogging, withCORS(cors.AllowOrigin, cors.AllowCredentials))
	r.NotFound(resource.NotFound)
	r.MethodNotAllowed(resource.MethodNotAllowed)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mountModels := func(api chi.Router) {
		reg := h.Registry()
		for _, name := range reg.Names() {
			m := reg.Models[name]
			api.Route("/"+m.Collection, func(c chi.Router) {
				c.Get("/", h.List(m))
				c.Post("/", h.Create(m))
				c.Get("/{"+resource.ParamID+"}", h.Get(m))
				c.Put("/{"+resource.ParamID+"}", h.Update(m))
				c.Delete("/{"+resource.ParamID+"}", h.Delete(m))

				sub := "/{" + resource.ParamID + "}/{" + resource.ParamSub + "}"
				c.Get(sub, h.Related(m))
				c.Post(sub, h.CreateRelated(m))

				item := sub + "/{" + resource.ParamChildID + "}"
				for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
					c.Method(method, item, h.RelatedItem(m))
				}
			})
		}
	}
	if prefix == "" {
		mountModels(r)
	} else {
		r.Route(prefix, mountModels)
	}
	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(logger.WithRequest(r.Context(), id))

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		fields := map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      sw.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		log := logger.FromContext(r.Context())
		switch {
		case sw.status >= 500:
			log.Error("response", fields)
		case sw.status >= 400:
			log.Warn("response", fields)
		default:
			log.Info("response", fields)
		}
	})
}
