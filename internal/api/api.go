// Package api exposes the model services over HTTP.
//
//	@title			tensorgrid API
//	@version		1.0
//	@description	Compile canvas graphs into models, configure and run training.
//	@BasePath		/api/v1
package api

import (
	"context"
	"net/http"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/service"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/specialistvlad/tensorgrid/internal/api/docs"
)

// BasePath prefixes every service route.
const BasePath = "/api/v1"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 10 << 20

// Options configures the handler returned by NewHandler.
type Options struct {
	// AllowedOrigin is sent as Access-Control-Allow-Origin.
	AllowedOrigin string
	// Progress serves the socket.io endpoint under /socket.io/ when set.
	Progress http.Handler
}

// Server holds the HTTP handlers.
type Server struct {
	ctx context.Context
	svc *service.Service
}

// NewHandler returns the full HTTP surface. ctx carries the logger used for
// request logs.
func NewHandler(ctx context.Context, svc *service.Service, opts Options) http.Handler {
	s := &Server{ctx: ctx, svc: svc}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+BasePath+"/model/validate", s.validateModel)
	mux.HandleFunc("POST "+BasePath+"/model/save", s.saveModel)
	mux.HandleFunc("PATCH "+BasePath+"/model/training-config", s.updateTrainingConfig)
	mux.HandleFunc("POST "+BasePath+"/model/run", s.runModel)
	mux.HandleFunc("GET "+BasePath+"/model/model-list", s.listModels)
	mux.HandleFunc("GET "+BasePath+"/model/{name}/graph", s.modelGraph)
	mux.HandleFunc("DELETE "+BasePath+"/model/{id}", s.deleteModel)
	mux.HandleFunc("GET "+BasePath+"/layers", s.layers)
	mux.HandleFunc("POST "+BasePath+"/data/files", s.registerDataFile)
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	if opts.Progress != nil {
		mux.Handle("/socket.io/", opts.Progress)
	}

	ctxlog.FromContext(ctx).Debug("API: Routes registered.", "base_path", BasePath, "progress", opts.Progress != nil)
	return Cors(opts.AllowedOrigin, s.logRequests(s.recoverPanics(mux)))
}
