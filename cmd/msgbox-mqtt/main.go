package main

import (
	"context"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/msgbox/pkg/bridge/mqtt"
	"github.com/robotalks/msgbox/pkg/env"
	"github.com/robotalks/msgbox/pkg/link"
	"github.com/robotalks/msgbox/pkg/run"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()

	conf := env.Default()
	addr, err := conf.LocalAddress()
	if err != nil {
		glog.Exit(err)
	}
	q, err := mqtt.NewQueueFromURL(conf.MQTTURL)
	if err != nil {
		glog.Exit(err)
	}
	stream := conf.MustOpenLink()
	bridge := mqtt.New(q, link.New(stream, conf.NewBox()), addr)
	glog.Infof("bridging %s as %02x to %s", conf.LinkURL, addr, conf.MQTTURL)

	g := run.NewGroup().HandleSignals()
	g.Go(run.WithName(bridge.Name(), run.Func(func(ctx context.Context) error {
		return run.WithContextCloser(ctx, stream, func() error {
			return bridge.Run(ctx)
		})
	})))
	if err := g.Wait(); err != nil {
		glog.Exit(err)
	}
}
