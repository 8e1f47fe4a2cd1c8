package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ernie/range-dashboard/internal/config"
	"github.com/ernie/range-dashboard/internal/mirror"
	"github.com/ernie/range-dashboard/internal/syncclient"
)

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	g := addGlobalFlags(fs)
	live := fs.Bool("live", false, "read a snapshot over the real-time channel instead of the REST queries")
	wait := fs.Duration("wait", 5*time.Second, "how long --live waits for the snapshot")
	fs.Parse(args)

	cfg := g.load()
	ctx, cancel := commandContext()
	defer cancel()

	var v view
	var err error
	if *live {
		v, err = liveStatus(ctx, cfg, *wait)
	} else {
		v, err = queryStatus(ctx, cfg)
	}
	if err != nil {
		fatalf("%v", err)
	}
	renderDashboard(os.Stdout, v, 0, 0)
}

// queryStatus assembles a view from the read-only REST queries. There is
// no game query, so the game is reported as unknown.
func queryStatus(ctx context.Context, cfg *config.Config) (view, error) {
	client := newCommandClient(cfg)
	var v view
	v.Status = "queried over REST"

	// The four queries are independent
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		v.State.Targets, err = client.ListTargets(ctx)
		return err
	})
	eg.Go(func() (err error) {
		v.State.Players, err = client.ListPlayers(ctx)
		return err
	})
	eg.Go(func() (err error) {
		v.State.ScoresTargets, err = client.TargetScores(ctx)
		return err
	})
	eg.Go(func() (err error) {
		v.State.ScoresPlayers, err = client.PlayerScores(ctx)
		return err
	})
	return v, eg.Wait()
}

// liveStatus connects, waits for the first snapshot and disconnects
func liveStatus(ctx context.Context, cfg *config.Config, wait time.Duration) (view, error) {
	got := make(chan mirror.Update, 1)
	client, err := syncclient.New(ctx, syncclient.Options{
		Origin:      cfg.Range.URL,
		WSPath:      cfg.Range.WSPath,
		ReadLimit:   cfg.Client.ReadLimit,
		ReadTimeout: cfg.Client.ReadTimeout,
		Logger:      log.New(io.Discard, "", 0),
		OnChange: func(u mirror.Update) {
			if u.Change.Has(mirror.ChangeAll) {
				select {
				case got <- u:
				default:
				}
			}
		},
	})
	if err != nil {
		return view{}, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	go client.Run(ctx)

	select {
	case u := <-got:
		return view{Status: client.Status(), State: u.State, Feed: client.Feed()}, nil
	case <-ctx.Done():
		return view{}, fmt.Errorf("no snapshot from %s within %v: %w", client.URL(), wait, ctx.Err())
	}
}
