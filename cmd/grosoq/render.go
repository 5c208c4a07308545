package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/eito54/grosoq/internal/domain/model"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func paint(s, color string, colorize bool) string {
	if !colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderStandings(standings []model.Standing, colorize bool) string {
	if len(standings) == 0 {
		return "No teams yet."
	}
	rows := make([][]string, 0, len(standings))
	highlight := make(map[int]bool)
	for i, s := range standings {
		added := ""
		if s.AddedScore > 0 {
			added = "+" + strconv.Itoa(s.AddedScore)
		}
		marker := ""
		if s.IsCurrentPlayer {
			marker = "*"
			highlight[i] = true
		}
		rows = append(rows, []string{strconv.Itoa(s.Rank), s.Name, strconv.Itoa(s.Score), added, marker})
	}
	return renderTable(
		[]string{"#", "Team", "Score", "Added", "You"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
		highlight,
		colorize,
	)
}

func renderResults(results []model.RawPlayerResult, colorize bool) string {
	rows := make([][]string, 0, len(results))
	highlight := make(map[int]bool)
	for i, r := range results {
		rows = append(rows, []string{optInt(r.Rank), r.Name, r.Team, optInt(r.Score), optInt(r.TotalScore)})
		if r.IsCurrentPlayer {
			highlight[i] = true
		}
	}
	return renderTable(
		[]string{"Pos", "Player", "Team", "Score", "Total"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
		highlight,
		colorize,
	)
}

func renderMappings(m model.PlayerMapping, self *model.SelfPlayerRecord, colorize bool) string {
	if len(m) == 0 {
		return "No players mapped yet."
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	highlight := make(map[int]bool)
	for i, name := range names {
		rows = append(rows, []string{name, m[name]})
		if self != nil && self.Name == name {
			highlight[i] = true
		}
	}
	out := renderTable([]string{"Player", "Team"}, rows, nil, highlight, colorize)
	if self != nil {
		out += fmt.Sprintf("\nYou: %s (seen %s)", self.Name, self.Timestamp.Local().Format("2006-01-02 15:04:05"))
	}
	return out
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
