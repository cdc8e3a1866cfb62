package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/example/table-sniper/internal/api"
	"github.com/example/table-sniper/internal/browser"
	"github.com/example/table-sniper/internal/config"
	"github.com/example/table-sniper/internal/metrics"
	"github.com/example/table-sniper/internal/site"
	"github.com/example/table-sniper/internal/store"
	"github.com/example/table-sniper/internal/timer"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduling daemon + control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
			slog.SetDefault(log)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			st, err := store.Open(ctx, cfg.StoreDSN)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Ping(ctx); err != nil {
				return fmt.Errorf("store ping: %w", err)
			}

			bridge, err := browser.Connect(ctx, cfg.DevToolsURL)
			if err != nil {
				return fmt.Errorf("browser connect: %w", err)
			}
			defer bridge.Close()

			profiles, err := site.LoadProfiles(cfg.SelectorsFile)
			if err != nil {
				return err
			}
			driver := site.NewDriver(bridge, profiles, log)

			reg := prometheus.NewRegistry()
			met := metrics.New(reg)

			alarm := timer.NewClockAlarm()
			sched := timer.New(st, alarm, driver, log, met)
			alarm.SetHandler(sched.HandleFire)

			if err := sched.Recover(ctx); err != nil {
				return fmt.Errorf("recover persisted timer: %w", err)
			}

			var auth *api.Auth
			if cfg.AuthEnabled() {
				auth = api.NewAuth(cfg.SessionHashKey, cfg.SessionBlockKey, cfg.OperatorPasswordBcrypt)
			}

			srv := api.NewServer(sched, st, bridge, auth, reg, log)
			sched.Notify = srv.Notify()

			return srv.Start(ctx, cfg.ListenAddr)
		},
	}
}
