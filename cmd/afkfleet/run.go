package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/EgorLis/afkfleet/internal/keepalive"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Log in every bot and serve slash commands until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			a, err := wireApp(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx)
		},
	}
}

func (a *app) run(ctx context.Context) error {
	if len(a.agents) == 0 {
		a.log.Warn("no agents configured, set BOT{n}_TOKEN and CLIENT_ID_{n}")
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Keepalive.Enabled {
		srv := keepalive.New(a.cfg.Keepalive.Addr, a.status, a.log)
		g.Go(func() error { return srv.Run(gctx) })
	}

	// падение одного бота на логине остальных не трогает
	for _, agent := range a.agents {
		g.Go(func() error {
			if err := agent.Start(); err != nil {
				a.log.Error("agent failed to start", "bot", agent.Name(), "err", err)
			}
			return nil
		})
	}

	a.log.Info("running… press Ctrl+C to stop", "agents", len(a.agents))
	<-gctx.Done()

	for _, agent := range a.agents {
		agent.Stop()
	}
	a.log.Info("all agents stopped")
	err := g.Wait()
	a.close()
	return err
}
