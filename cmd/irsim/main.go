// Command irsim runs the reflection simulation offline and prints the
// source images, the per-node impulse responses and their room-acoustic
// metrics.
//
// Usage:
//
//	irsim [flags]
//
// Examples:
//
//	irsim -config install.toml -x 1 -y 2
//	irsim -config install.toml -path 0
//	irsim -config install.toml -images -wav node0.wav -node 0
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/cwbudde/algo-reflect/acoustics/irbuild"
	"github.com/cwbudde/algo-reflect/acoustics/propagation"
	"github.com/cwbudde/algo-reflect/acoustics/room"
	"github.com/cwbudde/algo-reflect/config"
	"github.com/cwbudde/algo-reflect/dsp/core"
	"github.com/cwbudde/algo-reflect/measure/ir"
	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

type options struct {
	configPath string
	x, y       float64
	path       int
	images     bool
	wavPath    string
	wavNode    int
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "installation file (TOML); built-in defaults when empty")
	flag.Float64Var(&o.x, "x", math.NaN(), "emitter x (default: room centre)")
	flag.Float64Var(&o.y, "y", math.NaN(), "emitter y (default: room centre)")
	flag.IntVar(&o.path, "path", -1, "simulate this configured path instead of an emitter")
	flag.BoolVar(&o.images, "images", false, "print every source image")
	flag.StringVar(&o.wavPath, "wav", "", "write the dense response of -node to this WAV file")
	flag.IntVar(&o.wavNode, "node", 0, "node whose response -wav writes")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: irsim [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Simulates one emission and prints images, taps and metrics per node.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := run(os.Stdout, o, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, o options, logger *slog.Logger) error {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	rm, err := cfg.RoomConfig()
	if err != nil {
		return err
	}
	p := cfg.Params()

	var images []propagation.SourceImage
	if o.path >= 0 {
		wps := cfg.Waypoints(o.path)
		if len(wps) == 0 {
			return fmt.Errorf("path %d not configured", o.path)
		}
		images = propagation.PathImages(wps)
	} else {
		centre := rm.TopLeft.Add(rm.BottomRight).Scale(0.5)
		if math.IsNaN(o.x) {
			o.x = centre.X
		}
		if math.IsNaN(o.y) {
			o.y = centre.Y
		}
		images, err = propagation.NewSimulator(propagation.WithLogger(logger)).Reflect(room.V(o.x, o.y), rm, p)
		if err != nil {
			return err
		}
	}

	positions := cfg.Positions()
	ids := make([]int, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	receivers := make([]room.Vec2, len(ids))
	for i, id := range ids {
		receivers[i] = positions[id]
	}

	res := irbuild.Build(images, receivers, p)

	if o.images {
		if err := printImages(w, images); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "images: %d  taps: %d  minTime: %.4fs\n\n", len(images), res.Taps(), res.MinTime)
	if err := printMetrics(w, ids, res, cfg.Node.SampleRate); err != nil {
		return err
	}

	if o.wavPath != "" {
		i := sort.SearchInts(ids, o.wavNode)
		if i == len(ids) || ids[i] != o.wavNode {
			return fmt.Errorf("node %d not configured", o.wavNode)
		}
		return writeWAV(o.wavPath, res.IRs[i].Shift(res.MinTime), cfg.Node.SampleRate)
	}
	return nil
}

func printImages(w io.Writer, images []propagation.SourceImage) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tOrder\tWall\tAmplitude\tTime [s]\tX\tY\tParent\n")
	fmt.Fprintf(tw, "-\t-----\t----\t---------\t--------\t-\t-\t------\n")
	for i, img := range images {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.5f\t%.4f\t%.3f\t%.3f\t%d\n",
			i, img.Order, img.Wall, img.Amplitude, img.Time, img.Position.X, img.Position.Y, img.Parent)
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}

func printMetrics(w io.Writer, ids []int, res irbuild.Result, sampleRate float64) error {
	a := ir.NewAnalyzer(sampleRate)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Node\tTaps\tFirst [s]\tPeak [dB]\tEnergy\tTs [ms]\tD50\tC50 [dB]\tC80 [dB]\tEDT [s]\n")
	fmt.Fprintf(tw, "----\t----\t---------\t---------\t------\t-------\t---\t--------\t--------\t-------\n")
	for i, id := range ids {
		m, err := a.Analyze(res.IRs[i])
		if errors.Is(err, ir.ErrEmptyIR) {
			fmt.Fprintf(tw, "%d\t0\t-\t-\t-\t-\t-\t-\t-\t-\n", id)
			continue
		}
		if err != nil {
			return fmt.Errorf("node %d: %w", id, err)
		}
		fmt.Fprintf(tw, "%d\t%d\t%.4f\t%.2f\t%.4f\t%.1f\t%.3f\t%.2f\t%.2f\t%.3f\n",
			id, m.Taps, m.FirstArrival, core.LinearToDB(m.PeakGain), m.Energy, m.CenterTime*1000, m.D50, m.C50, m.C80, m.EDT)
	}
	return tw.Flush()
}

func writeWAV(path string, r ir.ImpulseResponse, sampleRate float64) error {
	kernel, err := r.Render(sampleRate)
	if err != nil {
		return err
	}
	if peak := r.MaxGain(); peak > 1 {
		for i := range kernel {
			kernel[i] /= peak
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pos := 0
	s := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= len(kernel) {
			return 0, false
		}
		n := min(len(samples), len(kernel)-pos)
		for i := range n {
			samples[i][0] = kernel[pos+i]
			samples[i][1] = kernel[pos+i]
		}
		pos += n
		return n, true
	})
	format := beep.Format{SampleRate: beep.SampleRate(int(sampleRate)), NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, s, format); err != nil {
		return err
	}
	return f.Close()
}
