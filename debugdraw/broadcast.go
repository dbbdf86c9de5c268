package debugdraw

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/akmonengine/quill/logging"
	"github.com/gorilla/websocket"
)

const writeWait = time.Second

type viewer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (v *viewer) write(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return v.conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcaster is a Sink streaming every batch as one JSON text frame to the websocket viewers
// connected through ServeHTTP
type Broadcaster struct {
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	viewers map[*viewer]struct{}
}

func NewBroadcaster(log *logging.Logger) *Broadcaster {
	return &Broadcaster{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		viewers: make(map[*viewer]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the viewer until it disconnects. Messages from the
// viewer are read and ignored.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warnf("debugdraw: upgrade failed: %v", err)
		return
	}

	v := &viewer{conn: conn}
	b.mu.Lock()
	b.viewers[v] = struct{}{}
	b.mu.Unlock()
	b.log.Infof("debugdraw: viewer %s connected", r.RemoteAddr)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	b.drop(v)
}

func (b *Broadcaster) drop(v *viewer) {
	b.mu.Lock()
	_, present := b.viewers[v]
	delete(b.viewers, v)
	b.mu.Unlock()

	if present {
		v.conn.Close()
	}
}

func (b *Broadcaster) Viewers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.viewers)
}

func (b *Broadcaster) Receive(batch Batch) {
	b.mu.Lock()
	viewers := make([]*viewer, 0, len(b.viewers))
	for v := range b.viewers {
		viewers = append(viewers, v)
	}
	b.mu.Unlock()

	if len(viewers) == 0 {
		return
	}

	data, err := json.Marshal(batch)
	if err != nil {
		b.log.Errorf("debugdraw: failed to marshal batch %d: %v", batch.Frame, err)
		return
	}

	for _, v := range viewers {
		if err := v.write(data); err != nil {
			b.log.Warnf("debugdraw: dropping viewer: %v", err)
			b.drop(v)
		}
	}
}

// Close disconnects every viewer
func (b *Broadcaster) Close() {
	b.mu.Lock()
	viewers := b.viewers
	b.viewers = make(map[*viewer]struct{})
	b.mu.Unlock()

	for v := range viewers {
		v.mu.Lock()
		v.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		v.mu.Unlock()
		v.conn.Close()
	}
}
