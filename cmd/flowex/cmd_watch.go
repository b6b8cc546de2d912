package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowex/flowex-go/internal/cache"
	"github.com/flowex/flowex-go/internal/debughttp"
	"github.com/flowex/flowex-go/internal/realtime"
	"github.com/flowex/flowex-go/internal/state"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [symbols...]",
		Short: "Stream market data for the given symbols",
		Long: `Connects the push channel, subscribes the given symbols, and streams
updates into the local state store until interrupted. Reconnects with
backoff and replays subscriptions after every connect.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatch,
	}
	cmd.Flags().Bool("print-ticks", false, "Log each ticker update")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ticks := cache.NewTicksAuto(a.cfg.Storage.RedisAddr)
	a.store.Subscribe(ticks.Listener())

	printTicks, _ := cmd.Flags().GetBool("print-ticks")
	if printTicks {
		a.store.Subscribe(tickLogger(args))
	}

	dialer := realtime.NewWSDialer(realtime.WSDialerConfig{
		HandshakeTimeout: time.Duration(a.cfg.Realtime.HandshakeTimeoutMS) * time.Millisecond,
		ReadTimeout:      time.Duration(a.cfg.Realtime.ReadTimeoutMS) * time.Millisecond,
		PingInterval:     time.Duration(a.cfg.Realtime.PingIntervalMS) * time.Millisecond,
	})
	channel := realtime.NewChannel(realtime.Options{
		URL:        a.cfg.Realtime.URL,
		Dialer:     dialer,
		Tokens:     a.manager,
		Dispatcher: a.store,
		Metrics:    a.metrics,
		Backoff: realtime.BackoffConfig{
			Base:   a.cfg.BackoffBase(),
			Max:    a.cfg.BackoffMax(),
			Jitter: a.cfg.Realtime.BackoffMS.Jitter,
		},
	})
	defer channel.Close()
	channel.Attach(a.manager)

	for _, symbol := range args {
		channel.Subscribe(symbol)
	}
	channel.Connect()

	var debug *debughttp.Server
	if a.cfg.Debug.ListenAddr != "" {
		debug = debughttp.New(debughttp.Options{
			Addr:    a.cfg.Debug.ListenAddr,
			Metrics: a.metrics,
			Manager: a.manager,
			Channel: channel,
			Ticks:   ticks,
		})
		debug.Start()
	}

	log.Info().Strs("symbols", args).Msg("Watching market data, Ctrl-C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-ctx.Done():
	}

	if debug != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = debug.Stop(shutdownCtx)
	}
	return nil
}

// tickLogger logs price changes for the watched symbols.
func tickLogger(symbols []string) state.Listener {
	watched := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		watched[s] = true
	}
	lastPrice := make(map[string]string)
	return func(s state.AppState) {
		for sym, tick := range s.MarketData.Tickers {
			if !watched[sym] || tick.Price == lastPrice[sym] {
				continue
			}
			lastPrice[sym] = tick.Price
			log.Info().
				Str("symbol", sym).
				Str("price", tick.Price).
				Str("change", tick.ChangePercent).
				Msg("Tick")
		}
	}
}
