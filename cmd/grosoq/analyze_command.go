package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eito54/grosoq/internal/domain/model"
)

var errAnalysisFailed = errors.New("analysis failed")

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var total bool

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Read a result screenshot and update the scores",
		Long: "Upload a race result (or, with --total, an overall standings) screenshot.\n" +
			"A --total pass clears the player mappings first and rebuilds them from the screen.\n" +
			"Use - to read the image from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := readImageArg(cmd, args[0])
			if err != nil {
				return err
			}
			mode := model.ModeRace
			if total {
				mode = model.ModeTotal
			}

			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out, err := c.Analyze(cmd.Context(), image, mode)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
			}
			if !out.Success {
				return fmt.Errorf("%w (%s): %s", errAnalysisFailed, out.Code, out.Error)
			}
			if ctx.jsonOutput() {
				return nil
			}

			w := cmd.OutOrStdout()
			colorize := ctx.colorize(w)
			a := out.Analysis
			status := fmt.Sprintf("Analysis %s (%s)", a.ID, a.Mode)
			if a.Cached {
				status += paint(" cached", ansiYellow, colorize)
			}
			fmt.Fprintln(w, status)
			fmt.Fprintln(w, renderResults(a.Results, colorize))
			fmt.Fprintln(w, renderStandings(a.Ledger, colorize))
			return nil
		},
	}
	cmd.Flags().BoolVar(&total, "total", false, "Treat the screenshot as an overall standings screen")
	return cmd
}

func readImageArg(cmd *cobra.Command, path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if strings.TrimSpace(path) == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("read image: %s is empty", path)
	}
	return data, nil
}
