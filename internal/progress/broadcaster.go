package progress

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
)

const (
	// Namespace is the socket.io namespace the canvas listens on.
	Namespace = "/dl-result"
	// ResultEvent is the event name progress messages are emitted under.
	ResultEvent = "result :::"
)

// Broadcaster is a Sink that emits every event to all clients connected to
// the progress namespace of a socket.io server.
type Broadcaster struct {
	server  *socket.Server
	opts    *socket.ServerOptions
	emit    func(ev string, args ...any) error
	clients atomic.Int64
}

// NewBroadcaster creates the socket.io server. allowedOrigin is passed to
// the CORS settings; empty means any origin.
func NewBroadcaster(ctx context.Context, allowedOrigin string) *Broadcaster {
	logger := ctxlog.FromContext(ctx).With("namespace", Namespace)
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}

	opts := socket.DefaultServerOptions()
	opts.SetCors(&types.Cors{Origin: allowedOrigin})

	b := &Broadcaster{server: socket.NewServer(nil, opts), opts: opts}
	ns := b.server.Of(Namespace, nil)
	b.emit = ns.Emit

	ns.On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		n := b.clients.Add(1)
		logger.Info("Progress: Client connected.", "sid", client.Id(), "clients", n)
		client.On("disconnect", func(reason ...any) {
			n := b.clients.Add(-1)
			logger.Info("Progress: Client disconnected.", "sid", client.Id(), "clients", n, "reason", fmt.Sprint(reason...))
		})
	})
	return b
}

// Handler serves the socket.io endpoint; mount it at /socket.io/.
func (b *Broadcaster) Handler() http.Handler {
	return b.server.ServeHandler(b.opts)
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int64 { return b.clients.Load() }

func (b *Broadcaster) Active() bool { return b.clients.Load() > 0 }

// Deliver emits ev. The payload keeps the field names older canvases read:
// the numeric code travels as "test".
func (b *Broadcaster) Deliver(_ context.Context, ev Event) error {
	payload := map[string]any{
		"message": ev.Message,
		"test":    ev.Code,
		"stage":   string(ev.Stage),
		"run_id":  ev.RunID,
	}
	if err := b.emit(ResultEvent, payload); err != nil {
		return fmt.Errorf("emitting %q: %w", ResultEvent, err)
	}
	return nil
}

// Close disconnects every client and shuts the server down.
func (b *Broadcaster) Close() {
	b.server.Close(nil)
}
