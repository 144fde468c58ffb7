// Package config loads the installation file: room, propagation and render
// settings, node positions, source paths and the server and node process
// settings.
//
// The file is TOML:
//
//	[room]
//	top_left = [0, 0]
//	bottom_right = [5, 5]
//	absorption = [0.15, 0.15, 0.15, 0.15] # left, up, right, down
//
//	[propagation]
//	speed = 10
//	gain = 0.85
//	rx_min_gain = 0.001
//
//	[[nodes]]
//	id = 0
//	position = [5, 5]
//
//	[[paths]]
//	id = 0
//	points = [[0, 0, 0], [1, 5, 5]] # time, x, y
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/algo-reflect/acoustics/propagation"
	"github.com/cwbudde/algo-reflect/acoustics/room"
	"github.com/cwbudde/algo-reflect/dsp/conv"
	"github.com/cwbudde/algo-reflect/dsp/core"
	"github.com/cwbudde/algo-reflect/rendezvous"
	toml "github.com/pelletier/go-toml/v2"
)

// Errors returned by validation.
var (
	ErrUnknownKey    = errors.New("config: unknown key")
	ErrDuplicateNode = errors.New("config: duplicate node id")
	ErrDuplicatePath = errors.New("config: duplicate path id")
	ErrNonFinite     = errors.New("config: value must be finite")
	ErrServer        = errors.New("config: invalid server settings")
	ErrNode          = errors.New("config: invalid node settings")
)

// Config is the whole installation file.
type Config struct {
	Room        Room        `toml:"room"`
	Propagation Propagation `toml:"propagation"`
	Render      Render      `toml:"render"`
	Server      Server      `toml:"server"`
	Node        Node        `toml:"node"`
	Nodes       []NodeEntry `toml:"nodes"`
	Paths       []Path      `toml:"paths"`
}

// Room mirrors room.Room.
type Room struct {
	TopLeft          [2]float64 `toml:"top_left"`
	BottomRight      [2]float64 `toml:"bottom_right"`
	Absorption       [4]float64 `toml:"absorption"`
	ScatterAmplitude float64    `toml:"scatter_amplitude"`
	ScatterAngle     float64    `toml:"scatter_angle"`
}

// Propagation mirrors propagation.Params.
type Propagation struct {
	Speed     float64 `toml:"speed"`
	Gain      float64 `toml:"gain"`
	RxMinGain float64 `toml:"rx_min_gain"`
}

// Render mirrors conv.RenderParams plus the node output level and the
// initially selected source.
type Render struct {
	Percentage        float64 `toml:"percentage"`
	Loop              bool    `toml:"loop"`
	AccelerationSlope float64 `toml:"acceleration_slope"`
	TimeBound         float64 `toml:"time_bound"`
	MasterGain        float64 `toml:"master_gain"`
	Source            string  `toml:"source"`
}

// Server holds the coordinator process settings.
type Server struct {
	Listen    string  `toml:"listen"`
	Lookahead float64 `toml:"lookahead"`
	Queue     int     `toml:"queue"`
}

// Node holds the playback process settings.
type Node struct {
	ID         int     `toml:"id"`
	Server     string  `toml:"server"`
	Assets     string  `toml:"assets"`
	SampleRate float64 `toml:"sample_rate"`
	CacheSize  int     `toml:"cache_size"`

	// MaxDuration bounds rendered responses in seconds; 0 keeps the
	// renderer default.
	MaxDuration float64 `toml:"max_duration"`
}

// NodeEntry places one receiver in the room.
type NodeEntry struct {
	ID       int        `toml:"id"`
	Position [2]float64 `toml:"position"`
}

// Path is a moving source: waypoints as [time, x, y].
type Path struct {
	ID     int          `toml:"id"`
	Points [][3]float64 `toml:"points"`
}

// Default returns the settings used for keys missing from a file.
func Default() Config {
	p := propagation.DefaultParams()
	r := conv.DefaultRenderParams()
	return Config{
		Room: Room{BottomRight: [2]float64{5, 5}},
		Propagation: Propagation{
			Speed:     p.Speed,
			Gain:      p.Gain,
			RxMinGain: p.RxMinGain,
		},
		Render: Render{
			Percentage:        r.Percentage,
			Loop:              r.Loop,
			AccelerationSlope: r.AccelerationSlope,
			TimeBound:         r.TimeBound,
			MasterGain:        1,
		},
		Server: Server{Listen: ":8080", Lookahead: rendezvous.DefaultLookahead, Queue: 16},
		Node:   Node{Server: "ws://localhost:8080", Assets: "assets", SampleRate: 48000},
	}
}

// Parse decodes and validates a file. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w:\n%s", ErrUnknownKey, strict.String())
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal encodes c as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate checks every section with the same rules the runtime applies.
func (c *Config) Validate() error {
	if _, err := c.RoomConfig(); err != nil {
		return err
	}
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if err := c.RenderParams().Validate(); err != nil {
		return err
	}
	if !core.Finite(c.Render.MasterGain) || c.Render.MasterGain < 0 {
		return fmt.Errorf("%w: master_gain %g", conv.ErrNonFiniteParam, c.Render.MasterGain)
	}
	if !core.Finite(c.Server.Lookahead) || c.Server.Lookahead < 0 || c.Server.Queue < 0 {
		return fmt.Errorf("%w: lookahead %g queue %d", ErrServer, c.Server.Lookahead, c.Server.Queue)
	}
	if !(c.Node.SampleRate > 0) || !core.Finite(c.Node.SampleRate, c.Node.MaxDuration) || c.Node.CacheSize < 0 || c.Node.MaxDuration < 0 {
		return fmt.Errorf("%w: sample_rate %g cache_size %d max_duration %g",
			ErrNode, c.Node.SampleRate, c.Node.CacheSize, c.Node.MaxDuration)
	}

	seen := make(map[int]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if seen[n.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateNode, n.ID)
		}
		seen[n.ID] = true
		if !core.Finite(n.Position[:]...) {
			return fmt.Errorf("%w: node %d position", ErrNonFinite, n.ID)
		}
	}
	clear(seen)
	for _, p := range c.Paths {
		if seen[p.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicatePath, p.ID)
		}
		seen[p.ID] = true
		for _, pt := range p.Points {
			if !core.Finite(pt[:]...) {
				return fmt.Errorf("%w: path %d point", ErrNonFinite, p.ID)
			}
		}
	}
	return nil
}

// RoomConfig returns the validated room.
func (c *Config) RoomConfig() (room.Room, error) {
	r := room.Room{
		TopLeft:          room.V(c.Room.TopLeft[0], c.Room.TopLeft[1]),
		BottomRight:      room.V(c.Room.BottomRight[0], c.Room.BottomRight[1]),
		Absorption:       c.Room.Absorption,
		ScatterAmplitude: c.Room.ScatterAmplitude,
		ScatterAngle:     c.Room.ScatterAngle,
	}
	if err := r.Validate(); err != nil {
		return room.Room{}, err
	}
	return r, nil
}

// Params returns the propagation parameters.
func (c *Config) Params() propagation.Params {
	return propagation.Params{
		Speed:     c.Propagation.Speed,
		Gain:      c.Propagation.Gain,
		RxMinGain: c.Propagation.RxMinGain,
	}
}

// RenderParams returns the render parameters.
func (c *Config) RenderParams() conv.RenderParams {
	return conv.RenderParams{
		Percentage:        c.Render.Percentage,
		Loop:              c.Render.Loop,
		AccelerationSlope: c.Render.AccelerationSlope,
		TimeBound:         c.Render.TimeBound,
	}
}

// Positions returns node positions by id.
func (c *Config) Positions() map[int]room.Vec2 {
	m := make(map[int]room.Vec2, len(c.Nodes))
	for _, n := range c.Nodes {
		m[n.ID] = room.V(n.Position[0], n.Position[1])
	}
	return m
}

// Waypoints returns the waypoints of path id, nil if it is not configured.
func (c *Config) Waypoints(id int) []propagation.Waypoint {
	for _, p := range c.Paths {
		if p.ID != id {
			continue
		}
		wps := make([]propagation.Waypoint, len(p.Points))
		for i, pt := range p.Points {
			wps[i] = propagation.Waypoint{Time: pt[0], Position: room.V(pt[1], pt[2])}
		}
		return wps
	}
	return nil
}
