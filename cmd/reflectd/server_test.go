package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/algo-reflect/audio/asset"
	"github.com/cwbudde/algo-reflect/config"
	"github.com/cwbudde/algo-reflect/dsp/buffer"
	"github.com/cwbudde/algo-reflect/internal/testutil"
	"github.com/cwbudde/algo-reflect/node"
	"github.com/cwbudde/algo-reflect/rendezvous"
	"github.com/cwbudde/algo-reflect/transport/ws"
)

const install = `
[room]
bottom_right = [5, 5]

[propagation]
speed = 10
gain = 0.85
rx_min_gain = 0.3

[render]
percentage = 0.5
source = "click"

[server]
lookahead = 0.5

[[nodes]]
id = 1
position = [2.5, 2.5]
`

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type rig struct {
	clock *testutil.ManualClock
	srv   *server
	http  *httptest.Server
	node  *node.Node
}

func newRig(t *testing.T) *rig {
	t.Helper()
	cfg, err := config.Parse(strings.NewReader(install))
	if err != nil {
		t.Fatal(err)
	}
	clock := testutil.NewManualClock(100)
	s, err := newServer(cfg, clock, quiet)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.handler())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		s.serve(ctx)
		close(served)
	}()

	assets := asset.NewRegistry(1000)
	if err := assets.Add("click", buffer.FromSlice([]float64{1, 0.5}, 1000)); err != nil {
		t.Fatal(err)
	}
	n := node.New(1, clock, assets,
		node.WithLogger(quiet),
		node.WithAfterFunc(func(d time.Duration, fn func()) rendezvous.Timer { return clock.AfterFunc(d, fn) }),
	)
	client, err := ws.Dial(ctx, ws.NodeURL(ts.URL, 1), quiet)
	if err != nil {
		t.Fatal(err)
	}
	go client.Run(ctx, n)

	t.Cleanup(func() {
		cancel()
		<-served
		client.Close()
		s.hub.Close()
		ts.Close()
	})
	return &rig{clock: clock, srv: s, http: ts, node: n}
}

func (r *rig) post(t *testing.T, body string) int {
	t.Helper()
	resp, err := http.Post(r.http.URL+"/commands", "text/plain", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestNodeReceivesSettingsOnConnect(t *testing.T) {
	r := newRig(t)
	eventually(t, "render settings", func() bool { return r.node.Params().Percentage == 0.5 })
}

func TestEmissionReachesNode(t *testing.T) {
	r := newRig(t)
	eventually(t, "source selection", func() bool { return r.node.Source() == "click" })

	if code := r.post(t, "# operator\nemitAtPos 2.5 2.5\n"); code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", code)
	}
	eventually(t, "scheduled emission", func() bool {
		events := r.node.Events()
		return len(events) == 1 && events[0].Key == "-1" && events[0].State == rendezvous.Scheduled
	})

	if _, ok := r.node.IR(-1); ok {
		t.Fatal("emitter response kept after its trigger")
	}
	if rdv := r.node.Events()[0].Rendezvous; rdv != 100.5 {
		t.Fatalf("rendezvous = %v, want 100.5", rdv)
	}

	r.clock.Advance(0.5)
	if got := r.node.Events()[0].State; got != rendezvous.Playing {
		t.Fatalf("state = %v, want playing", got)
	}
	if r.node.Mixer().Active() != 1 {
		t.Fatalf("Active() = %d, want 1", r.node.Mixer().Active())
	}
}

func TestPostCommandsRejectsBadLine(t *testing.T) {
	r := newRig(t)
	if code := r.post(t, "render.loop 1\nroom.colour 3\n"); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if r.srv.coord.RenderParams().Loop {
		t.Fatal("partially applied body")
	}
}

func TestGetNodes(t *testing.T) {
	r := newRig(t)
	eventually(t, "connection", func() bool { return len(r.srv.hub.Connected()) == 1 })

	resp, err := http.Get(r.http.URL + "/nodes")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "1 2.5 2.5 true\n" {
		t.Fatalf("body = %q", body)
	}
}

func TestReloadAppliesDiff(t *testing.T) {
	r := newRig(t)
	next, err := config.Parse(strings.NewReader(strings.Replace(install, "speed = 10", "speed = 20", 1)))
	if err != nil {
		t.Fatal(err)
	}
	r.srv.reload(context.Background(), next)
	eventually(t, "new speed", func() bool { return r.srv.coord.Params().Speed == 20 })
}
