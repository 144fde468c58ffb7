// Package ws carries wire frames and control lines between the coordinator
// and playback nodes over one websocket per node.
//
// Binary messages hold transport/wire frames, text messages hold control
// lines. Nodes connect to /nodes/{nodeID}.
package ws

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cwbudde/algo-reflect/control"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Errors returned by the hub.
var (
	ErrNodeNotConnected = errors.New("ws: node not connected")
	ErrHubClosed        = errors.New("ws: hub closed")
)

// NodePath is the route nodes dial.
const NodePath = "/nodes/{nodeID}"

const writeWait = 5 * time.Second

// peer is one node connection. Writes are serialized by mu.
type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) write(messageType int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.conn.WriteMessage(messageType, data)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger. The default is slog.Default().
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCommandHandler receives control lines sent by nodes.
func WithCommandHandler(fn func(node int, cmd control.Command)) HubOption {
	return func(h *Hub) {
		h.onCommand = fn
	}
}

// WithConnectHandler is called after a node connects.
func WithConnectHandler(fn func(node int)) HubOption {
	return func(h *Hub) {
		h.onConnect = fn
	}
}

// Hub accepts node connections and addresses them by node id. A node that
// reconnects replaces its previous connection.
type Hub struct {
	upgrader  websocket.Upgrader
	logger    *slog.Logger
	onCommand func(int, control.Command)
	onConnect func(int)

	mu     sync.RWMutex
	peers  map[int]*peer
	closed bool
}

// NewHub returns a hub with no connected nodes.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		logger: slog.Default(),
		peers:  make(map[int]*peer),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the node endpoint on r.
func (h *Hub) Routes(r chi.Router) {
	r.Get(NodePath, h.serveNode)
}

// Handler returns a router serving only the node endpoint.
func (h *Hub) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	h.Routes(r)
	return r
}

func (h *Hub) serveNode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "nodeID"))
	if err != nil {
		http.Error(w, "invalid node id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "node", id, "err", err)
		return
	}
	p := &peer{conn: conn}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	old := h.peers[id]
	h.peers[id] = p
	h.mu.Unlock()

	if old != nil {
		old.conn.Close()
	}
	h.logger.Info("node connected", "node", id, "remote", r.RemoteAddr)
	if h.onConnect != nil {
		h.onConnect(id)
	}

	h.readLoop(id, p)
}

func (h *Hub) readLoop(id int, p *peer) {
	defer func() {
		h.mu.Lock()
		if h.peers[id] == p {
			delete(h.peers, id)
		}
		h.mu.Unlock()
		p.conn.Close()
		h.logger.Info("node disconnected", "node", id)
	}()

	for {
		typ, msg, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		cmd, err := control.Parse(string(msg))
		if err != nil {
			h.logger.Warn("bad control line from node", "node", id, "err", err)
			continue
		}
		if h.onCommand != nil {
			h.onCommand(id, cmd)
		}
	}
}

func (h *Hub) peer(node int) (*peer, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	p, ok := h.peers[node]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotConnected, node)
	}
	return p, nil
}

// SendBinary sends one wire frame to a node.
func (h *Hub) SendBinary(node int, data []byte) error {
	p, err := h.peer(node)
	if err != nil {
		return err
	}
	return p.write(websocket.BinaryMessage, data)
}

// SendCommand sends one control line to a node.
func (h *Hub) SendCommand(node int, cmd control.Command) error {
	p, err := h.peer(node)
	if err != nil {
		return err
	}
	return p.write(websocket.TextMessage, []byte(control.Format(cmd)))
}

// Disconnect closes the connection of one node.
func (h *Hub) Disconnect(node int) error {
	h.mu.Lock()
	p, ok := h.peers[node]
	delete(h.peers, node)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotConnected, node)
	}
	return p.conn.Close()
}

// Connected returns the connected node ids in ascending order.
func (h *Hub) Connected() []int {
	h.mu.RLock()
	ids := make([]int, 0, len(h.peers))
	for id := range h.peers {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Ints(ids)
	return ids
}

// Close disconnects every node and refuses new connections.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	peers := h.peers
	h.peers = make(map[int]*peer)
	h.mu.Unlock()

	var errs []error
	for _, p := range peers {
		p.mu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		p.mu.Unlock()
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
