package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/EgorLis/afkfleet/internal/discord"
)

// registerParallel — сколько ботов заливают команды одновременно.
const registerParallel = 4

func newRegisterCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Deploy slash commands for every bot into the guild and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			a, err := wireApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(registerParallel)
			failed := make([]error, len(a.agents))
			for i, agent := range a.agents {
				g.Go(func() error {
					if err := agent.RegisterCommands(ctx); err != nil {
						failed[i] = fmt.Errorf("%s: %s", agent.Name(), discord.DescribeTransportError(err))
						return nil
					}
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "[%s] Commands registered.\n", agent.Name())
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			n := 0
			for _, err := range failed {
				if err != nil {
					n++
					log.Error("command deployment error", "err", err)
				}
			}
			if n > 0 {
				return fmt.Errorf("command deployment failed for %d of %d bots", n, len(a.agents))
			}
			return nil
		},
	}
}
