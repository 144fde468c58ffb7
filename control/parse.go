package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-reflect/acoustics/room"
	"github.com/cwbudde/algo-reflect/dsp/core"
)

// Errors returned by Parse.
var (
	ErrEmpty      = errors.New("control: empty command")
	ErrUnknownKey = errors.New("control: unknown key")
	ErrArgs       = errors.New("control: bad arguments")
)

type spec struct {
	n     int
	build func(a *argList) Command
}

var specs = map[string]spec{
	SetTopLeft{}.Key(): {2, func(a *argList) Command {
		return SetTopLeft{X: a.float(0), Y: a.float(1)}
	}},
	SetBottomRight{}.Key(): {2, func(a *argList) Command {
		return SetBottomRight{X: a.float(0), Y: a.float(1)}
	}},
	SetAbsorption{}.Key(): {2, func(a *argList) Command {
		return SetAbsorption{Wall: a.wall(0), Value: a.float(1)}
	}},
	SetScatterAmplitude{}.Key(): {1, func(a *argList) Command {
		return SetScatterAmplitude{Value: a.float(0)}
	}},
	SetScatterAngle{}.Key(): {1, func(a *argList) Command {
		return SetScatterAngle{Radians: a.float(0)}
	}},
	SetSpeed{}.Key(): {1, func(a *argList) Command {
		return SetSpeed{Value: a.float(0)}
	}},
	SetGain{}.Key(): {1, func(a *argList) Command {
		return SetGain{Value: a.float(0)}
	}},
	SetRxMinGain{}.Key(): {1, func(a *argList) Command {
		return SetRxMinGain{Value: a.float(0)}
	}},
	SetNodePosition{}.Key(): {3, func(a *argList) Command {
		return SetNodePosition{Node: a.int(0), X: a.float(1), Y: a.float(2)}
	}},
	ClearPath{}.Key(): {1, func(a *argList) Command {
		return ClearPath{Path: a.int(0)}
	}},
	AddPathPoint{}.Key(): {4, func(a *argList) Command {
		return AddPathPoint{Path: a.int(0), Time: a.float(1), X: a.float(2), Y: a.float(3)}
	}},
	SetPercentage{}.Key(): {1, func(a *argList) Command {
		return SetPercentage{Value: a.float(0)}
	}},
	SetLoop{}.Key(): {1, func(a *argList) Command {
		return SetLoop{Enabled: a.bool(0)}
	}},
	SetAccelerationSlope{}.Key(): {1, func(a *argList) Command {
		return SetAccelerationSlope{Value: a.float(0)}
	}},
	SetTimeBound{}.Key(): {1, func(a *argList) Command {
		return SetTimeBound{Value: a.float(0)}
	}},
	SetMasterGain{}.Key(): {1, func(a *argList) Command {
		return SetMasterGain{Value: a.float(0)}
	}},
	SelectSource{}.Key(): {1, func(a *argList) Command {
		return SelectSource{Name: a.args[0]}
	}},
	EmitAtPos{}.Key(): {2, func(a *argList) Command {
		return EmitAtPos{X: a.float(0), Y: a.float(1)}
	}},
	StartPath{}.Key(): {1, func(a *argList) Command {
		return StartPath{Path: a.int(0)}
	}},
	Trigger{}.Key(): {2, func(a *argList) Command {
		return Trigger{ID: a.int(0), Rendezvous: a.float(1)}
	}},
	Reset{}.Key(): {0, func(*argList) Command {
		return Reset{}
	}},
}

// Parse decodes one control line. Numeric arguments must be finite.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrEmpty
	}
	key, args := fields[0], fields[1:]

	s, ok := specs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if len(args) != s.n {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArgs, key, s.n, len(args))
	}

	a := &argList{key: key, args: args}
	cmd := s.build(a)
	if a.err != nil {
		return nil, a.err
	}
	return cmd, nil
}

// Format renders cmd as a control line that Parse accepts.
func Format(cmd Command) string {
	args := cmd.args()
	if len(args) == 0 {
		return cmd.Key()
	}
	return cmd.Key() + " " + strings.Join(args, " ")
}

// argList converts positional arguments, keeping the first failure.
type argList struct {
	key  string
	args []string
	err  error
}

func (a *argList) fail(i int, what string) {
	if a.err == nil {
		a.err = fmt.Errorf("%w: %s argument %d %q is not %s", ErrArgs, a.key, i+1, a.args[i], what)
	}
}

func (a *argList) float(i int) float64 {
	v, err := strconv.ParseFloat(a.args[i], 64)
	if err != nil || !core.Finite(v) {
		a.fail(i, "a finite number")
		return 0
	}
	return v
}

func (a *argList) int(i int) int {
	v, err := strconv.Atoi(a.args[i])
	if err != nil {
		a.fail(i, "an integer")
		return 0
	}
	return v
}

func (a *argList) bool(i int) bool {
	switch a.args[i] {
	case "1", "true", "on":
		return true
	case "0", "false", "off":
		return false
	}
	a.fail(i, "a boolean")
	return false
}

func (a *argList) wall(i int) room.Wall {
	w, err := room.ParseWall(a.args[i])
	if err != nil {
		a.fail(i, "a wall")
		return room.NoWall
	}
	return w
}
