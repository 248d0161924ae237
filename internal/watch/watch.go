// Package watch follows the progress stream of a running server from the
// command line.
package watch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/progress"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultConnectTimeout bounds the initial connection.
const DefaultConnectTimeout = 10 * time.Second

// ErrRunFailed is returned when the watched run ends with an error event.
var ErrRunFailed = errors.New("run failed")

// Options configures Watch.
type Options struct {
	// URL of the server, e.g. http://localhost:8080. A path selects a
	// socket.io endpoint other than /socket.io/.
	URL string
	// RunID limits output to one run. Empty prints every run.
	RunID string
	// UntilDone returns after the first finish or error event.
	UntilDone          bool
	ConnectTimeout     time.Duration
	InsecureSkipVerify bool
}

// Watch prints every progress message to out until ctx is done or, with
// UntilDone, until a run ends.
func Watch(ctx context.Context, out io.Writer, opts Options) error {
	logger := ctxlog.FromContext(ctx).With("url", opts.URL, "namespace", progress.Namespace)
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	parsed, err := url.Parse(opts.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid server URL %q", opts.URL)
	}

	sopts := socket.DefaultOptions()
	if parsed.Path != "" && parsed.Path != "/" {
		sopts.SetPath(parsed.Path)
	}
	if opts.InsecureSkipVerify {
		logger.Warn("Watch: Skipping TLS certificate verification.")
		sopts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sopts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host), sopts)
	client := manager.Socket(progress.Namespace, sopts)
	defer client.Disconnect()

	var connected atomic.Bool
	connectErr := make(chan error, 1)
	ended := make(chan progress.Event, 1)

	client.On(types.EventName("connect"), func(...any) {
		connected.Store(true)
		logger.Info("Watch: Connected.", "sid", client.Id())
	})
	client.On(types.EventName("connect_error"), func(errs ...any) {
		var err error = errors.New("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connectErr <- err:
		default:
		}
	})
	client.On(types.EventName(progress.ResultEvent), func(data ...any) {
		if len(data) == 0 {
			return
		}
		ev, ok := decode(data[0])
		if !ok || (opts.RunID != "" && ev.RunID != opts.RunID) {
			return
		}
		fmt.Fprintln(out, format(ev))
		if ev.Stage == progress.StageFinish || ev.Stage == progress.StageError {
			select {
			case ended <- ev:
			default:
			}
		}
	})
	client.Connect()

	connectTimer := time.NewTimer(opts.ConnectTimeout)
	defer connectTimer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-connectErr:
			if !connected.Load() {
				return fmt.Errorf("connecting to %s: %w", opts.URL, err)
			}
			logger.Warn("Watch: Connection error.", "error", err)
		case <-connectTimer.C:
			if !connected.Load() {
				return fmt.Errorf("timed out after %s waiting for connection to %s", opts.ConnectTimeout, opts.URL)
			}
		case ev := <-ended:
			if !opts.UntilDone {
				continue
			}
			if ev.Stage == progress.StageError {
				return fmt.Errorf("%w: %s", ErrRunFailed, ev.Message)
			}
			return nil
		}
	}
}

// decode reads the payload the broadcaster emits.
func decode(v any) (progress.Event, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return progress.Event{}, false
	}
	var ev progress.Event
	ev.Message, _ = m["message"].(string)
	ev.RunID, _ = m["run_id"].(string)
	ev.Stage = progress.Stage(fmt.Sprint(m["stage"]))
	if code, ok := m["test"].(float64); ok {
		ev.Code = int(code)
	}
	return ev, ev.Message != ""
}

func format(ev progress.Event) string {
	if ev.RunID == "" {
		return ev.Message
	}
	id := ev.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("[%s] %s", id, ev.Message)
}
