package main

import (
	"context"
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/msgbox/pkg/env"
	"github.com/robotalks/msgbox/pkg/frame"
	"github.com/robotalks/msgbox/pkg/link"
	"github.com/robotalks/msgbox/pkg/run"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	conf := env.Default()
	stream := conf.MustOpenLink()
	l := link.New(stream, conf.NewBox())
	l.Handler = link.HandleMessageFunc(func(_ context.Context, msg frame.Message) {
		log.Printf("%s %q", msg.String(), msg.Payload())
	})

	g := run.NewGroup().HandleSignals()
	g.Go(run.WithName("link", run.Func(func(ctx context.Context) error {
		return run.WithContextCloser(ctx, stream, func() error {
			return l.Run(ctx)
		})
	})))
	if err := g.Wait(); err != nil {
		glog.Exit(err)
	}
	st := l.Box.Stats()
	log.Printf("frames %d framing-errors %d checksum-errors %d overruns %d",
		st.Frames, st.FramingErrors, st.ChecksumErrors, st.Overruns)
}
