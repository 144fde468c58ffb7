package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-reflect/config"
	"github.com/cwbudde/algo-reflect/control"
	"github.com/cwbudde/algo-reflect/coordinator"
	"github.com/cwbudde/algo-reflect/rendezvous"
	"github.com/cwbudde/algo-reflect/transport/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxCommandBody = 1 << 20

// server ties the websocket hub, the coordinator and the operator HTTP
// endpoint together.
type server struct {
	logger *slog.Logger
	hub    *ws.Hub
	coord  *coordinator.Coordinator
	cmds   chan control.Command
	cfg    atomic.Pointer[config.Config]

	// settings holds the latest master gain and source selection, replayed
	// to nodes when they connect together with the render parameters.
	mu       sync.Mutex
	settings map[string]control.Command
}

func newServer(cfg *config.Config, clock rendezvous.SyncClock, logger *slog.Logger) (*server, error) {
	s := &server{
		logger:   logger,
		cmds:     make(chan control.Command, 64),
		settings: make(map[string]control.Command),
	}
	s.cfg.Store(cfg)
	s.hub = ws.NewHub(
		ws.WithHubLogger(logger),
		ws.WithConnectHandler(s.welcome),
		ws.WithCommandHandler(func(node int, cmd control.Command) {
			logger.Debug("command from node", "node", node, "command", control.Format(cmd))
			s.enqueue(context.Background(), cmd)
		}),
	)

	rm, err := cfg.RoomConfig()
	if err != nil {
		return nil, err
	}
	s.coord, err = coordinator.New(rm, cfg.Params(), s.hub, clock,
		coordinator.WithLogger(logger),
		coordinator.WithLookahead(cfg.Server.Lookahead),
		coordinator.WithQueue(cfg.Server.Queue),
		coordinator.WithEmissionHook(func(e coordinator.Emission, err error) {
			if err != nil {
				logger.Warn("emission incomplete", "id", e.ID, "err", err)
				return
			}
			logger.Info("emission", "id", e.ID, "images", e.Images, "taps", e.Taps, "rendezvous", e.Rendezvous)
		}),
	)
	if err != nil {
		return nil, err
	}

	// No node is connected yet; node-level settings reach them in welcome.
	for _, cmd := range cfg.Commands() {
		s.remember(cmd)
		if err := s.coord.Apply(cmd); err != nil && !errors.Is(err, ws.ErrNodeNotConnected) {
			return nil, fmt.Errorf("apply %s: %w", control.Format(cmd), err)
		}
	}
	return s, nil
}

func (s *server) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	s.hub.Routes(r)
	r.Post("/commands", s.postCommands)
	r.Get("/nodes", s.getNodes)
	return r
}

// serve runs the coordinator until ctx is done.
func (s *server) serve(ctx context.Context) error {
	err := s.coord.Serve(ctx, s.cmds)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *server) enqueue(ctx context.Context, cmd control.Command) bool {
	s.remember(cmd)
	select {
	case s.cmds <- cmd:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *server) remember(cmd control.Command) {
	switch cmd.(type) {
	case control.SetMasterGain, control.SelectSource:
		s.mu.Lock()
		s.settings[cmd.Key()] = cmd
		s.mu.Unlock()
	}
}

// welcome brings a freshly connected node up to date.
func (s *server) welcome(node int) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.settings))
	for k := range s.settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	p := s.coord.RenderParams()
	cmds := []control.Command{
		control.SetPercentage{Value: p.Percentage},
		control.SetLoop{Enabled: p.Loop},
		control.SetAccelerationSlope{Value: p.AccelerationSlope},
		control.SetTimeBound{Value: p.TimeBound},
	}
	for _, k := range keys {
		cmds = append(cmds, s.settings[k])
	}
	s.mu.Unlock()

	if _, ok := s.coord.NodePosition(node); !ok {
		s.logger.Warn("connected node has no position", "node", node)
	}
	for _, cmd := range cmds {
		if err := s.hub.SendCommand(node, cmd); err != nil {
			s.logger.Warn("welcome failed", "node", node, "err", err)
			return
		}
	}
}

// reload feeds the difference between the current and next config to the
// coordinator.
func (s *server) reload(ctx context.Context, next *config.Config) {
	old := s.cfg.Swap(next)
	if old.Server != next.Server {
		s.logger.Warn("server settings change on restart only")
	}
	for _, cmd := range config.Diff(old, next) {
		if !s.enqueue(ctx, cmd) {
			return
		}
	}
}

// postCommands accepts control lines, one per line. The whole body is
// rejected if any line does not parse.
func (s *server) postCommands(w http.ResponseWriter, r *http.Request) {
	var cmds []control.Command
	sc := bufio.NewScanner(http.MaxBytesReader(w, r.Body, maxCommandBody))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, err := control.Parse(line)
		if err != nil {
			http.Error(w, fmt.Sprintf("line %d: %v", n, err), http.StatusBadRequest)
			return
		}
		cmds = append(cmds, cmd)
	}
	if err := sc.Err(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, cmd := range cmds {
		if !s.enqueue(r.Context(), cmd) {
			http.Error(w, "request cancelled", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, "%d commands queued\n", len(cmds))
}

// getNodes lists configured nodes with their position and connection state.
func (s *server) getNodes(w http.ResponseWriter, _ *http.Request) {
	connected := make(map[int]bool)
	for _, id := range s.hub.Connected() {
		connected[id] = true
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, id := range s.coord.Nodes() {
		p, _ := s.coord.NodePosition(id)
		fmt.Fprintf(w, "%d %g %g %t\n", id, p.X, p.Y, connected[id])
	}
}
