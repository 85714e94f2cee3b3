// Package api serves the marketplace over HTTP as JSON.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/marketplace"
)

type Options struct {
	Logger *zap.Logger
	// Network answers requests without a network parameter.
	Network chain.Network
	// Timeout bounds each request, including gateway and RPC calls.
	Timeout time.Duration
	// Store enables POST apply with a presigned transaction. Without it the
	// API only prepares calldata.
	Store *chain.RPCStore
}

type handler struct {
	svc     *marketplace.Service
	log     *zap.Logger
	network chain.Network
	store   *chain.RPCStore
}

// NewRouter mounts the API under /api.
//
//	GET  /healthz
//	GET  /api/templates?category=&q=&tag=&network=
//	GET  /api/templates/{id}
//	GET  /api/templates/{id}/preview
//	GET  /api/templates/{id}/apply?profile=
//	POST /api/templates/{id}/apply
//	GET  /api/categories
//	GET  /api/tags
//	GET  /api/search/{address}
//	GET  /api/profiles/{address}
//	GET  /api/profiles/{address}/grid
//	POST /api/pointers/encode
//	POST /api/pointers/decode
func NewRouter(svc *marketplace.Service, opts Options) http.Handler {
	h := &handler{svc: svc, log: opts.Logger, network: opts.Network, store: opts.Store}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.network.Name == "" {
		h.network = chain.Mainnet
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(withRequestLogging(h.log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(opts.Timeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/templates", h.listTemplates)
		r.Get("/templates/{id}", h.getTemplate)
		r.Get("/templates/{id}/preview", h.previewTemplate)
		r.Get("/templates/{id}/apply", h.planApply)
		r.Get("/categories", h.listCategories)
		r.Get("/tags", h.listTags)
		r.Get("/search/{address}", h.searchProfile)
		r.Get("/profiles/{address}", h.getProfile)
		r.Get("/profiles/{address}/grid", h.getProfileGrid)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.AllowContentType("application/json"))
			r.Post("/templates/{id}/apply", h.submitApply)
			r.Post("/pointers/encode", h.encodePointer)
			r.Post("/pointers/decode", h.decodePointer)
		})
	})
	return r
}
