package main

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/faiface/beep/wav"
)

const install = `
[room]
top_left = [0, 0]
bottom_right = [5, 5]
absorption = [0.15, 0.15, 0.15, 0.15]

[propagation]
speed = 10
gain = 0.85
rx_min_gain = 0.3

[[nodes]]
id = 0
position = [5, 5]

[[nodes]]
id = 4
position = [100, 100]

[[paths]]
id = 0
points = [[0, 0, 0], [1, 5, 5]]
`

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "install.toml")
	if err := os.WriteFile(path, []byte(install), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunEmitter(t *testing.T) {
	var out bytes.Buffer
	o := options{configPath: writeConfig(t), x: 2.5, y: 2.5, path: -1, images: true}
	if err := run(&out, o, quiet); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	for _, want := range []string{"Order", "images: 5", "Node", "EDT"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	// Node 4 is far outside the room and hears nothing.
	if !strings.Contains(text, "4     0") {
		t.Fatalf("silent node row missing:\n%s", text)
	}
}

func TestRunPath(t *testing.T) {
	var out bytes.Buffer
	o := options{configPath: writeConfig(t), x: math.NaN(), y: math.NaN(), path: 0}
	if err := run(&out, o, quiet); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "images: 2  taps: 2") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}

	o.path = 9
	if err := run(io.Discard, o, quiet); err == nil {
		t.Fatal("unknown path accepted")
	}
}

func TestRunWritesWAV(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "node0.wav")
	o := options{configPath: writeConfig(t), x: math.NaN(), y: math.NaN(), path: -1, wavPath: dst}
	if err := run(io.Discard, o, quiet); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	s, format, err := wav.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if format.SampleRate != 48000 || s.Len() == 0 {
		t.Fatalf("format = %+v, len = %d", format, s.Len())
	}

	o.wavNode = 7
	if err := run(io.Discard, o, quiet); err == nil {
		t.Fatal("unknown node accepted")
	}
}
