package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/eito54/grosoq/internal/domain/model"
)

func newScoresCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scores",
		Short: "Show the team ranking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			standings, err := c.Scores(cmd.Context())
			if err != nil {
				return err
			}
			return printStandings(ctx, cmd, standings)
		},
	}
}

func newEditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <team> <score>",
		Short: "Set the score of a team, adding it when missing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid score %q: %w", args[1], err)
			}
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			standings, err := c.SetScore(cmd.Context(), args[0], score)
			if err != nil {
				return err
			}
			return printStandings(ctx, cmd, standings)
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <team>",
		Short: "Remove a team from the ranking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			standings, err := c.DeleteTeam(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printStandings(ctx, cmd, standings)
		},
	}
}

func newPinCommand(ctx *commandContext) *cobra.Command {
	var clearPin bool

	cmd := &cobra.Command{
		Use:   "pin [team]",
		Short: "Mark a team as yours, or show the pinned team",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if len(args) == 0 && !clearPin {
				team, err := c.CurrentTeam(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]string{"team": team})
				}
				if team == "" {
					team = "(none)"
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Pinned team:", team)
				return nil
			}

			team := ""
			if len(args) == 1 {
				team = args[0]
			}
			standings, err := c.Pin(cmd.Context(), team)
			if err != nil {
				return err
			}
			return printStandings(ctx, cmd, standings)
		},
	}
	cmd.Flags().BoolVar(&clearPin, "clear", false, "Remove the pinned team")
	return cmd
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var scores, mappings bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the scores and/or the player mappings",
		Long:  "Without flags both the scores and the player mappings are cleared.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !scores && !mappings {
				scores, mappings = true, true
			}
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			colorize := ctx.colorize(w)
			if mappings {
				if err := c.ResetMappings(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(w, paint("Player mappings cleared.", ansiGreen, colorize))
			}
			if scores {
				if err := c.ResetScores(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(w, paint("Scores cleared.", ansiGreen, colorize))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&scores, "scores", false, "Clear the score ledger")
	cmd.Flags().BoolVar(&mappings, "mappings", false, "Clear the player mappings and the remembered self player")
	return cmd
}

func printStandings(ctx *commandContext, cmd *cobra.Command, standings []model.Standing) error {
	if ctx.jsonOutput() {
		if standings == nil {
			standings = []model.Standing{}
		}
		return writeJSON(cmd, standings)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, renderStandings(standings, ctx.colorize(w)))
	return nil
}
