package main

import (
	"context"
	"errors"
	"flag"
	"net/http"

	"github.com/golang/glog"

	"github.com/robotalks/msgbox/pkg/env"
	"github.com/robotalks/msgbox/pkg/link/websocket"
	"github.com/robotalks/msgbox/pkg/run"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()

	conf := env.Default()
	stream := conf.MustOpenLink()
	tunnel := websocket.NewTunnel(stream)
	srv := &http.Server{Addr: conf.TunnelAddr, Handler: tunnel.Handler()}
	glog.Infof("tunnel %s on %s", conf.LinkURL, conf.TunnelAddr)

	g := run.NewGroup().HandleSignals()
	g.Go(
		run.WithName(tunnel.Name(), run.Func(func(ctx context.Context) error {
			return run.WithContextCloser(ctx, stream, func() error {
				return tunnel.Run(ctx)
			})
		})),
		run.WithName("http", run.Func(func(ctx context.Context) error {
			err := run.WithContextCloser(ctx, srv, srv.ListenAndServe)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})),
	)
	if err := g.Wait(); err != nil {
		glog.Exit(err)
	}
}
