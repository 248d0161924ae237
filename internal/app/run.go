package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/specialistvlad/tensorgrid/internal/api"
	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/progress"
	"github.com/specialistvlad/tensorgrid/internal/service"
	"github.com/specialistvlad/tensorgrid/internal/store"
	"github.com/specialistvlad/tensorgrid/internal/training"
)

// shutdownTimeout bounds the graceful shutdown of servers and runs.
const shutdownTimeout = 10 * time.Second

// Serve opens the store, starts the HTTP and health servers and blocks
// until ctx is done. ready, when set, receives the bound API address.
func (a *App) Serve(ctx context.Context, ready chan<- net.Addr) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger
	logger.Debug("App.Serve method started.")

	st, err := store.Open(ctx, store.Options{
		DSN:         a.config.DatabasePath,
		ArtifactDir: a.config.ArtifactDir,
		DataDir:     a.config.DataDir,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	broadcaster := progress.NewBroadcaster(ctx, a.config.AllowedOrigin)
	defer broadcaster.Close()

	locks := training.NewLocks()
	pool := training.NewPool(ctx, training.NewOrchestrator(st, a.registry, st), locks, training.PoolOptions{
		Workers: a.config.WorkerCount,
		Sink:    broadcaster,
		Stream: progress.StreamOptions{
			QueueSize:   a.config.ProgressQueue,
			SendTimeout: a.config.ProgressTimeout,
		},
	})
	svc := service.New(service.Options{Store: st, Registry: a.registry, Pool: pool, Locks: locks})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.healthHandler)
	mux.Handle("/", api.NewHandler(ctx, svc, api.Options{
		AllowedOrigin: a.config.AllowedOrigin,
		Progress:      broadcaster.Handler(),
	}))

	ln, err := net.Listen("tcp", a.config.ListenAddr)
	if err != nil {
		pool.Shutdown(ctx)
		return fmt.Errorf("failed to listen on %s: %w", a.config.ListenAddr, err)
	}
	a.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("🚀 API server starting", "address", ln.Addr().String(), "base_path", api.BasePath)
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	health := a.healthCheckServer(ctx)
	if ready != nil {
		ready <- ln.Addr()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested.")
	case err := <-serveErr:
		if err != nil {
			logger.Error("API server failed unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	errs := []error{
		a.httpServer.Shutdown(shutdownCtx),
		closeServer(shutdownCtx, health),
		pool.Shutdown(shutdownCtx),
	}
	logger.Info("🏁 Server stopped.")
	return errors.Join(errs...)
}
