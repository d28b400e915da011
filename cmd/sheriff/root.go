package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/freitascorp/sheriff/pkg/bus"
	"github.com/freitascorp/sheriff/pkg/bus/inproc"
	"github.com/freitascorp/sheriff/pkg/config"
	"github.com/freitascorp/sheriff/pkg/grammar"
	"github.com/freitascorp/sheriff/pkg/history"
	"github.com/freitascorp/sheriff/pkg/model"
	"github.com/freitascorp/sheriff/pkg/publisher"
	"github.com/freitascorp/sheriff/pkg/reconcile"
	"github.com/freitascorp/sheriff/pkg/script"
	"github.com/freitascorp/sheriff/pkg/sheriff"
	"github.com/freitascorp/sheriff/pkg/summarize"
	"github.com/freitascorp/sheriff/pkg/tui"
)

const (
	infoChannel       = "PMD_INFO"
	ordersChannel     = "PMD_ORDERS"
	sheriffCmdChannel = "PMD_SHERIFF_CMD"
)

var (
	flagLoneRanger   bool
	flagDashboard    bool
	flagObserver     bool
	flagDaemonConfig string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sheriff [config_file] [script_name]",
		Short: "sheriff is the process control-plane described in spec.md",
		Long: `sheriff reconciles a fleet of deputy processes against a desired-state
Model, publishes orders over a pub/sub bus, and can load a config_file's
commands/scripts and run one named script to completion.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MaximumNArgs(2)(cmd, args); err != nil {
				return &usageError{err: err}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSheriff,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.Flags().BoolVarP(&flagLoneRanger, "lone-ranger", "l", false, "spawn a single embedded local deputy instead of dialing a real one")
	root.Flags().BoolVar(&flagDashboard, "dashboard", false, "run the read-only status dashboard instead of the interactive console")
	root.Flags().BoolVar(&flagObserver, "observer", false, "start in observer mode")
	root.Flags().StringVar(&flagDaemonConfig, "daemon-config", "", "path to the daemon bootstrap YAML (bus address, notify/summarize/history backends)")

	return root
}

func runSheriff(cmd *cobra.Command, args []string) error {
	var configFile, scriptName string
	if len(args) > 0 {
		configFile = args[0]
	}
	if len(args) > 1 {
		scriptName = args[1]
	}

	daemonCfg, err := config.Load(flagDaemonConfig)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, closeBus, err := buildBus(daemonCfg, logger)
	if err != nil {
		return err
	}
	defer closeBus()

	name := sheriff.Name(sheriff.Hostname(), os.Getpid(), sheriff.StartUTimeNow())

	reconcileFactory := func(m *model.Model, mode reconcile.ModeSource, sb reconcile.SplitBrainHandler) *reconcile.Engine {
		return reconcile.New(m, mode, sb, name, logger, func() int64 { return time.Now().UnixMicro() })
	}
	publisherFactory := func(m *model.Model, mode publisher.ModeSource) *publisher.Publisher {
		period := time.Duration(daemonCfg.OrdersPeriodMS) * time.Millisecond
		return publisher.New(m, b, mode, name, period, logger)
	}

	s := sheriff.New(name, flagObserver, logger, reconcileFactory, publisherFactory)

	historyStore, err := buildHistoryStore(daemonCfg.History)
	if err != nil {
		return err
	}
	defer historyStore.Close()

	notifyHub := buildNotifyHub(daemonCfg, logger)
	defer notifyHub.Close()

	summarizeBatcher := summarize.NewBatcher(buildSummarizer(daemonCfg.Summarize), notifyHub,
		time.Duration(daemonCfg.Summarize.DebounceSecs)*time.Second, logger)

	s.Model.Subscribe(history.NewRecorder(historyStore, nil, func() string { return uuid.NewString() }))
	s.Model.Subscribe(notifyHub)
	s.Model.Subscribe(summarizeBatcher)

	if err := subscribeBus(ctx, b, s, logger); err != nil {
		return err
	}

	startHAMonitor(ctx, daemonCfg.Bus, name, s, logger)
	startMaintenanceLoop(ctx, daemonCfg, s.Model, logger)

	var loneDeputy *loneRangerDeputy
	if flagLoneRanger {
		loneDeputy, err = startLoneRanger(ctx, b, logger)
		if err != nil {
			return fmt.Errorf("lone-ranger: %w", err)
		}
		defer loneDeputy.Stop()
	}

	go s.Run(ctx)

	if configFile != "" {
		deputyName := name
		if loneDeputy != nil {
			deputyName = loneDeputy.Name
		}
		if err := loadConfigFile(s.Model, configFile, deputyName); err != nil {
			return err
		}
	}

	if scriptName != "" {
		return runNamedScript(ctx, s, scriptName)
	}

	if flagDashboard {
		sub := tui.NewSubscriber()
		s.Model.Subscribe(sub)
		return tui.Run(s.Model, sub.Events)
	}

	return runConsole(ctx, s, b, name, logger)
}

func buildBus(cfg config.DaemonConfig, logger *slog.Logger) (bus.Bus, func(), error) {
	if cfg.Bus.ListenAddr == "" {
		b := inproc.New()
		return b, func() { b.Close() }, nil
	}

	wsBus := bus.NewWSBus(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := wsBus.ListenAndServe(ctx, cfg.Bus.ListenAddr); err != nil {
			logger.Error("bus: listener stopped", "error", err)
		}
	}()
	return wsBus, func() { cancel(); wsBus.Close() }, nil
}

// subscribeBus wires the Reconciliation Engine to the info/orders
// channels, the way a real deputy connection would — spec §4.4's
// OnInfo/OnOrders are invoked per inbound message by whatever owns the
// bus subscription, which here is cmd/sheriff itself.
func subscribeBus(ctx context.Context, b bus.Bus, s *sheriff.Sheriff, logger *slog.Logger) error {
	infoCh, err := b.Subscribe(ctx, infoChannel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", infoChannel, err)
	}
	ordersCh, err := b.Subscribe(ctx, ordersChannel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ordersChannel, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-infoCh:
				if !ok {
					return
				}
				s.Reconcile.OnInfo(payload)
			}
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-ordersCh:
				if !ok {
					return
				}
				s.Reconcile.OnOrders(payload)
			}
		}
	}()
	return nil
}

func loadConfigFile(m *model.Model, path, deputyName string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := grammar.Parse(string(data))
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := grammar.LoadIntoModel(cfg, m, deputyName); err != nil {
		return fmt.Errorf("load config into model: %w", err)
	}
	return nil
}

// startHAMonitor wires spec §4.6's diagnostic-only HA side channel: it
// never feeds back into arbitration (that's decided purely by comparing
// sheriff_name on orders, per reconcile.Engine), it just gives an
// operator visibility into which peer currently believes it's active.
func startHAMonitor(ctx context.Context, cfg config.BusConfig, name string, s *sheriff.Sheriff, logger *slog.Logger) {
	if len(cfg.HAPeers) == 0 && cfg.HAStatusAddr == "" {
		return
	}

	monitor := bus.NewHAMonitor(name, func() string {
		if s.IsObserver() {
			return "observer"
		}
		return "active"
	}, func() int { return len(s.Model.AllDeputies()) }, 10*time.Second, logger)

	if len(cfg.HAPeers) > 0 {
		go monitor.Run(ctx, cfg.HAPeers)
	}

	if cfg.HAStatusAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/sheriff/ha/status", monitor.ServeHTTP)
		srv := &http.Server{Addr: cfg.HAStatusAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("ha: status server stopped", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
	}
}

// startMaintenanceLoop sleeps until each MaintenanceCron tick and purges
// deputies left with no live commands. No cron expression, no loop.
func startMaintenanceLoop(ctx context.Context, cfg config.DaemonConfig, m *model.Model, logger *slog.Logger) {
	if cfg.MaintenanceCron == "" {
		return
	}
	go func() {
		for {
			next, err := cfg.NextMaintenanceTick(time.Now())
			if err != nil {
				logger.Warn("maintenance: cron schedule unusable", "error", err)
				return
			}
			t := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
				m.PurgeUselessDeputies()
			}
		}
	}()
}

func runNamedScript(ctx context.Context, s *sheriff.Sheriff, name string) error {
	sc, ok := s.Model.FindScript(name)
	if !ok {
		return fmt.Errorf("no such script %q", name)
	}
	eng := script.New(s.Model, s.Reconcile, s.Publish, nil)
	if err := eng.Preflight(sc); err != nil {
		return err
	}
	return eng.Run(ctx, sc)
}
