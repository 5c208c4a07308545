package ocr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eito54/grosoq/internal/domain/model"
)

const systemPrompt = `You read result screens of a 12-player kart racing game.
Answer with a single JSON object and nothing else:
{"isResultScreen": true|false, "results": [{"rank": 1, "name": "...", "team": "...", "score": 0, "totalScore": 0, "isCurrentPlayer": false}]}
Rules:
- List at most 12 rows, top to bottom.
- "name" is the player name exactly as displayed, including any team tag characters.
- "isCurrentPlayer" is true only for the row highlighted in yellow.
- Omit fields you cannot read.
- If the image is not a race result screen, answer {"isResultScreen": false, "results": []}.`

// buildPrompt returns the user instruction for mode. Known players are
// listed so the model keeps spelling them the same way.
func buildPrompt(mode model.Mode, mapping model.PlayerMapping) string {
	var b strings.Builder
	switch mode {
	case model.ModeTotal:
		b.WriteString("This screen shows the overall standings. For each row read the cumulative total ")
		b.WriteString("shown next to the name into \"totalScore\" and leave \"score\" out.\n")
	default:
		b.WriteString("This screen shows the result of one race. For each row read the finishing ")
		b.WriteString("position into \"rank\" and the points or score column into \"score\".\n")
	}

	if len(mapping) > 0 {
		names := make([]string, 0, len(mapping))
		for name := range mapping {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("Players seen earlier in this session (name -> team):\n")
		for _, name := range names {
			fmt.Fprintf(&b, "- %s -> %s\n", name, mapping[name])
		}
		b.WriteString("Use these spellings when a name on screen clearly matches one of them.\n")
	}
	return b.String()
}
