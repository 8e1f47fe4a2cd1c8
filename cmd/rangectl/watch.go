package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/ernie/range-dashboard/internal/bus"
	"github.com/ernie/range-dashboard/internal/config"
	"github.com/ernie/range-dashboard/internal/domain"
	"github.com/ernie/range-dashboard/internal/metrics"
	"github.com/ernie/range-dashboard/internal/mirror"
	"github.com/ernie/range-dashboard/internal/storage"
	"github.com/ernie/range-dashboard/internal/syncclient"
)

const pruneInterval = time.Hour

// cmdWatch follows the range until interrupted
func cmdWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	g := addGlobalFlags(fs)
	journalPath := fs.String("journal", "", "record connections and frames to this SQLite file")
	natsURL := fs.String("nats", "", "republish mirror updates to this NATS server")
	embedNATS := fs.Bool("embed-nats", false, "run an embedded NATS server for republishing")
	metricsAddr := fs.String("metrics", "", "serve Prometheus metrics on this address")
	plain := fs.Bool("plain", false, "print one line per update instead of redrawing")
	feedLines := fs.Int("feed-lines", 10, "feed lines shown when redrawing")
	fs.Parse(args)

	cfg := g.load()
	if *journalPath != "" {
		cfg.Journal.Path = *journalPath
	}
	if *natsURL != "" {
		cfg.NATS.URL = *natsURL
	}
	if *embedNATS {
		cfg.NATS.Embedded = true
	}
	if *metricsAddr != "" {
		cfg.Metrics.ListenAddr = *metricsAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runWatch(ctx, cfg, watchOptions{
		plain:     *plain || !term.IsTerminal(int(os.Stdout.Fd())),
		feedLines: *feedLines,
	}); err != nil {
		log.Fatalf("Watch failed: %v", err)
	}
	log.Println("Shutdown complete")
}

type watchOptions struct {
	plain     bool
	feedLines int
}

func runWatch(ctx context.Context, cfg *config.Config, opts watchOptions) error {
	var observers []syncclient.Observer
	var hooks []func(mirror.Update)
	var statusHooks []func(domain.Status)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(metrics.WithRegistry(registry))
	observers = append(observers, collector)

	// Journal
	var store *storage.Store
	if cfg.Journal.Path != "" {
		var err error
		store, err = storage.New(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer store.Close()
		log.Printf("Journal recording to %s", cfg.Journal.Path)
	}

	// NATS
	if cfg.NATS.URL == "" && cfg.NATS.Embedded {
		embedded, err := bus.RunEmbedded("127.0.0.1", cfg.NATS.Port)
		if err != nil {
			return err
		}
		defer embedded.Shutdown()
		cfg.NATS.URL = embedded.ClientURL()
		log.Printf("Embedded NATS server listening on %s", cfg.NATS.URL)
	}
	if cfg.NATS.URL != "" {
		pub, err := bus.Connect(cfg.NATS.URL, cfg.NATS.Prefix, nil)
		if err != nil {
			return err
		}
		defer pub.Close()
		hooks = append(hooks, pub.OnUpdate)
		statusHooks = append(statusHooks, pub.PublishStatus)
		log.Printf("Publishing updates to %s under %s.>", cfg.NATS.URL, cfg.NATS.Prefix)
	}

	clientID := uuid.New()
	if store != nil {
		observers = append(observers, storage.NewJournal(store, clientID.String(), nil))
	}

	redraw := make(chan struct{}, 1)
	notify := func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	}

	var client *syncclient.Client
	var err error
	client, err = syncclient.New(ctx, syncclient.Options{
		Origin:         cfg.Range.URL,
		WSPath:         cfg.Range.WSPath,
		ReconnectDelay: cfg.Client.ReconnectDelay,
		FeedSize:       cfg.Client.FeedSize,
		ReadLimit:      cfg.Client.ReadLimit,
		ReadTimeout:    cfg.Client.ReadTimeout,
		CommandTimeout: cfg.Client.CommandTimeout,
		ID:             clientID,
		Observers:      observers,
		OnStatus: func(s domain.Status) {
			for _, fn := range statusHooks {
				fn(s)
			}
			if opts.plain {
				log.Printf("Status: %s", s)
			}
			notify()
		},
		OnChange: func(u mirror.Update) {
			collector.ObserveUpdate(u, len(client.Feed()))
			for _, fn := range hooks {
				fn(u)
			}
			if opts.plain {
				printUpdate(u)
			}
			notify()
		},
	})
	if err != nil {
		return err
	}
	defer client.Close()
	log.Printf("Client %s watching %s", clientID, client.URL())

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		err := client.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		server := &http.Server{
			Addr:         cfg.Metrics.ListenAddr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		eg.Go(func() error {
			log.Printf("Metrics available at http://%s/metrics", cfg.Metrics.ListenAddr)
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if store != nil && cfg.Journal.Retention > 0 {
		eg.Go(func() error {
			ticker := time.NewTicker(pruneInterval)
			defer ticker.Stop()
			for {
				n, err := store.Prune(ctx, time.Now().Add(-cfg.Journal.Retention))
				if err != nil && ctx.Err() == nil {
					log.Printf("Journal prune failed: %v", err)
				} else if n > 0 {
					log.Printf("Pruned %d journal rows", n)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}

	if !opts.plain {
		eg.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-redraw:
					redrawDashboard(client, opts.feedLines)
				}
			}
		})
	}

	return eg.Wait()
}

// printUpdate logs one line per update for non-terminal output
func printUpdate(u mirror.Update) {
	if u.Entry != nil {
		fmt.Println(feedLine(*u.Entry))
		return
	}
	fmt.Printf("%s update %d: %s\n", time.Now().Format(feedTimeLayout), u.Version, u.Change)
}

// redrawDashboard clears the terminal and draws the current view
func redrawDashboard(client *syncclient.Client, feedLines int) {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width = 0
	}
	fmt.Print("\033[H\033[2J")
	renderDashboard(os.Stdout, view{
		Status: client.Status(),
		State:  client.State(),
		Feed:   client.Feed(),
	}, width, feedLines)
}
