package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Conn is one open transport connection to the analysis backend.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens channel connections. Production code uses the websocket
// dialer; tests substitute a fake.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Handler receives one decoded channel event.
type Handler func(Event)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 2 * time.Second
)

// ErrAlreadyConnected is returned when Connect is called for a different
// analysis id while a channel is active.
var ErrAlreadyConnected = errors.New("channel: already connected for another analysis")

type Config struct {
	BaseURL     string // e.g. ws://localhost:8000
	Dialer      Dialer
	Clock       clock.Clock
	Logger      *zap.Logger
	MaxAttempts int
	BaseDelay   time.Duration
}

type subscription struct {
	id int
	fn Handler
}

// Adapter manages one logical channel connection per analysis run. It
// delivers typed events to registered listeners in arrival order and owns
// the bounded reconnect policy: on transport closure it retries up to
// MaxAttempts times with a delay growing linearly with the attempt count,
// then surfaces a terminal error event instead of retrying forever.
type Adapter struct {
	baseURL     string
	dialer      Dialer
	clock       clock.Clock
	log         *zap.Logger
	maxAttempts int
	baseDelay   time.Duration

	mu         sync.Mutex
	handlers   map[EventType][]subscription
	nextSubID  int
	conn       Conn
	analysisID string
	running    bool
	connected  bool
	done       chan struct{}
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.Dialer == nil {
		cfg.Dialer = WebsocketDialer{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	return &Adapter{
		baseURL:     cfg.BaseURL,
		dialer:      cfg.Dialer,
		clock:       cfg.Clock,
		log:         cfg.Logger.Named("channel"),
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		handlers:    make(map[EventType][]subscription),
	}
}

// On registers a listener for one event type and returns a token for Off.
// Listeners for the same event are invoked in registration order.
func (a *Adapter) On(t EventType, h Handler) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextSubID++
	a.handlers[t] = append(a.handlers[t], subscription{id: a.nextSubID, fn: h})
	return a.nextSubID
}

// Off removes a listener previously registered with On.
func (a *Adapter) Off(t EventType, id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	subs := a.handlers[t]
	for i, s := range subs {
		if s.id == id {
			a.handlers[t] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Connect opens the channel for an analysis run. Idempotent per id:
// calling Connect again for the same id while the channel manager is
// running is a no-op. Dial failures feed the reconnect budget; the call
// itself returns immediately.
func (a *Adapter) Connect(ctx context.Context, analysisID string) error {
	a.mu.Lock()
	if a.running {
		defer a.mu.Unlock()
		if a.analysisID == analysisID {
			return nil
		}
		return ErrAlreadyConnected
	}
	a.running = true
	a.connected = false
	a.analysisID = analysisID
	a.done = make(chan struct{})
	done := a.done
	a.mu.Unlock()

	go a.run(ctx, analysisID, done)
	return nil
}

// Disconnect closes the channel explicitly: it suppresses further
// reconnect attempts and clears all registered listeners, so no event is
// delivered after it returns, even for in-flight messages.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	if a.done != nil {
		close(a.done)
		a.done = nil
	}
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.running = false
	a.connected = false
	a.analysisID = ""
	a.handlers = make(map[EventType][]subscription)
	a.mu.Unlock()
}

// Connected reports whether a transport connection is currently open.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *Adapter) url(analysisID string) string {
	return fmt.Sprintf("%s/ws/analysis/%s", a.baseURL, analysisID)
}

func (a *Adapter) run(ctx context.Context, analysisID string, done chan struct{}) {
	attempt := 0
	for {
		if isClosed(done) {
			return
		}

		conn, err := a.dialer.Dial(ctx, a.url(analysisID))
		if err != nil {
			attempt++
			a.log.Warn("channel dial failed",
				zap.String("analysis_id", analysisID),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", a.maxAttempts),
				zap.Error(err))
			if attempt >= a.maxAttempts {
				a.terminalError(done, analysisID)
				return
			}
			if !a.wait(done, a.baseDelay*time.Duration(attempt)) {
				return
			}
			continue
		}

		a.mu.Lock()
		if isClosed(done) {
			a.mu.Unlock()
			conn.Close()
			return
		}
		a.conn = conn
		a.connected = true
		a.mu.Unlock()

		a.log.Info("channel connected", zap.String("analysis_id", analysisID))
		attempt = 0

		a.readLoop(conn, done)

		a.mu.Lock()
		a.connected = false
		a.conn = nil
		a.mu.Unlock()

		if isClosed(done) {
			return
		}
		// Transport-level closure; fall through to the retry loop.
		a.log.Warn("channel closed by transport", zap.String("analysis_id", analysisID))
	}
}

func (a *Adapter) readLoop(conn Conn, done chan struct{}) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil || !knownEventTypes[event.Type] {
			// Malformed payloads are dropped; delivery continues for
			// subsequent valid events.
			a.log.Warn("dropping malformed channel payload",
				zap.ByteString("payload", truncate(data, 256)),
				zap.Error(err))
			continue
		}

		a.dispatch(done, event)
	}
}

// dispatch delivers one event to every listener registered for its type,
// in registration order. Nothing is delivered once done is closed.
func (a *Adapter) dispatch(done chan struct{}, event Event) {
	a.mu.Lock()
	if isClosed(done) {
		a.mu.Unlock()
		return
	}
	subs := make([]subscription, len(a.handlers[event.Type]))
	copy(subs, a.handlers[event.Type])
	a.mu.Unlock()

	for _, s := range subs {
		s.fn(event)
	}
}

func (a *Adapter) terminalError(done chan struct{}, analysisID string) {
	a.log.Error("channel reconnect attempts exhausted",
		zap.String("analysis_id", analysisID),
		zap.Int("max_attempts", a.maxAttempts))

	payload, _ := json.Marshal(ErrorPayload{
		Message: "analysis channel lost: reconnect attempts exhausted",
	})
	a.dispatch(done, Event{Type: EventError, Data: payload})

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// wait blocks for the retry delay. Returns false when the adapter was
// disconnected while waiting.
func (a *Adapter) wait(done chan struct{}, delay time.Duration) bool {
	timer := a.clock.Timer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-done:
		return false
	}
}

func isClosed(done chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
