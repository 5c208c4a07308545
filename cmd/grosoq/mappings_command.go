package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMappingsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mappings",
		Short: "Show which team each player belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			m, err := c.Mappings(cmd.Context())
			if err != nil {
				return err
			}
			self, err := c.SelfPlayer(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"mappings": m, "selfPlayer": self})
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, renderMappings(m, self, ctx.colorize(w)))
			return nil
		},
	}
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show server statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, stats)
			}

			w := cmd.OutOrStdout()
			colorize := ctx.colorize(w)
			state := paint("idle", ansiGreen, colorize)
			if stats.Busy {
				state = paint("busy", ansiYellow, colorize)
			}
			if !stats.Started {
				state = paint("stopped", ansiRed, colorize)
			}
			rows := [][]string{
				{"State", state},
				{"Teams", fmt.Sprint(stats.Teams)},
				{"Mapped players", fmt.Sprint(stats.MappedPlayers)},
				{"Self player", orNone(stats.SelfPlayer)},
				{"Pinned team", orNone(stats.PinnedTeam)},
				{"Ledger mode", orNone(stats.LedgerMode.String())},
				{"Analyses", fmt.Sprint(stats.Analyses)},
				{"Cached results", fmt.Sprint(stats.CachedResults)},
				{"Last analysis", orNone(stats.LastAnalysisID)},
			}
			fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows, nil, nil, false))
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
