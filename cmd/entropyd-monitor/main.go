// Command entropyd-monitor is a GUI status viewer for entropyd. It polls
// a control socket once a second and renders per-source FIPS/QA health.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"entropyd/cmd/entropyd-monitor/internal/poller"
	"entropyd/cmd/entropyd-monitor/internal/ui"
)

var (
	socketAddr = flag.String("socket", defaultSocket(), "control socket address (unix path or tcp:host:port)")
	authToken  = flag.String("token", os.Getenv("ENTROPYD_TOKEN"), "bearer token for a TCP control socket")
	interval   = flag.Duration("interval", time.Second, "poll interval")
)

func defaultSocket() string {
	if a := os.Getenv("ENTROPYD_SOCKET"); a != "" {
		return a
	}
	return "/run/entropyd/control.sock"
}

func main() {
	flag.Parse()

	go func() {
		w := new(app.Window)
		w.Option(app.Title("entropyd monitor"))
		w.Option(app.Size(unit.Dp(860), unit.Dp(560)))

		if err := loop(w); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func loop(w *app.Window) error {
	t := ui.NewTheme(material.NewTheme())
	dashboard := ui.NewDashboard(t)

	p := poller.New(*socketAddr, *authToken)
	defer p.Close()

	snapshots := make(chan poller.Snapshot, 1)
	stop := make(chan struct{})
	go poller.Run(p, *interval, snapshots, stop)
	defer close(stop)

	var ops op.Ops
	for {
		select {
		case snap := <-snapshots:
			dashboard.SetSnapshot(snap)
			w.Invalidate()
		default:
		}

		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			dashboard.Layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}
