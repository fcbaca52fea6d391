package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/inhaletech/inhalyzer/internal/session"
)

// SnapshotHub fans session snapshots out to SSE clients. It subscribes to
// the machine once; clients attach and detach freely.
type SnapshotHub struct {
	mu      sync.Mutex
	nextID  int
	clients map[int]chan session.Snapshot
}

func NewSnapshotHub(machine *session.Machine) *SnapshotHub {
	hub := &SnapshotHub{clients: make(map[int]chan session.Snapshot)}
	machine.Subscribe(hub.broadcast)
	return hub
}

func (h *SnapshotHub) broadcast(snap session.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- snap:
		default:
			// Slow client; it will catch up on the next snapshot.
		}
	}
}

func (h *SnapshotHub) attach() (int, chan session.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan session.Snapshot, 16)
	h.clients[h.nextID] = ch
	return h.nextID, ch
}

func (h *SnapshotHub) detach(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// SessionStreamHandler streams session snapshots as server-sent events so
// the browser can re-render without polling.
func (app *App) SessionStreamHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	id, updates := app.Hub.attach()
	defer app.Hub.detach(id)

	writeSnapshot := func(snap session.Snapshot) {
		data, err := json.Marshal(snap)
		if err != nil {
			app.Log.Warn("failed to marshal snapshot", zap.Error(err))
			return
		}
		fmt.Fprintf(w, "event: session\ndata: %s\n\n", data)
		flusher.Flush()
	}

	writeSnapshot(app.Machine.Snapshot())

	clientGone := r.Context().Done()
	for {
		select {
		case snap := <-updates:
			writeSnapshot(snap)
		case <-clientGone:
			return
		}
	}
}
