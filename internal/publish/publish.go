// Package publish streams observed graph values to a socket.io server.
package publish

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultEvent is the event name used when Options.Event is empty.
const DefaultEvent = "tick"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher closed")

// Payload is the body of one published event.
type Payload struct {
	RunID  string         `json:"run_id"`
	Tick   uint64         `json:"tick"`
	Values map[string]any `json:"values"`
}

// Emitter is the transport a Publisher writes to.
type Emitter interface {
	Emit(event string, args ...any) error
	Close() error
}

// Options configures Dial.
type Options struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// Publisher emits one event per Publish call. It is safe for concurrent use.
type Publisher struct {
	mu      sync.Mutex
	emitter Emitter
	event   string
	logger  *slog.Logger
	closed  bool
}

// New wraps an existing emitter.
func New(e Emitter, event string, logger *slog.Logger) *Publisher {
	if event == "" {
		event = DefaultEvent
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{emitter: e, event: event, logger: logger}
}

// Dial connects to a socket.io server and returns a Publisher over it. It
// blocks until the connection is established, fails, or ctx ends.
func Dial(ctx context.Context, opts Options) (*Publisher, error) {
	logger := ctxlog.FromContext(ctx).With("component", "publish", "url", opts.URL)

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	switch parsedURL.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme %q", parsedURL.Scheme)
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	sopts := socket.DefaultOptions()
	sopts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sopts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sopts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sopts)
	io := manager.Socket(opts.Namespace, sopts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected.", "sid", io.Id())
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = errors.New("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})

	logger.Debug("Connecting.")
	io.Connect()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("waiting for socket.io connection: %w", ctx.Err())
	case <-timer.C:
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
	return New(&socketEmitter{io: io}, opts.Event, logger), nil
}

// Publish emits p under the publisher's event.
func (p *Publisher) Publish(ctx context.Context, payload Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.emitter.Emit(p.event, payload); err != nil {
		return fmt.Errorf("emitting %q for tick %d: %w", p.event, payload.Tick, err)
	}
	p.logger.Debug("Published.", "event", p.event, "tick", payload.Tick, "values", len(payload.Values))
	return nil
}

// Close disconnects the transport. Calling Close twice is a no-op.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.emitter.Close()
}

type socketEmitter struct {
	io *socket.Socket
}

func (s *socketEmitter) Emit(event string, args ...any) error {
	s.io.Emit(event, args...)
	return nil
}

func (s *socketEmitter) Close() error {
	s.io.Disconnect()
	return nil
}
