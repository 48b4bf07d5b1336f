package cmd

import (
	"os"

	"github.com/andresmejia3/moodlens/internal/display"
	"github.com/andresmejia3/moodlens/internal/emotion"
	"github.com/andresmejia3/moodlens/internal/monitor"
	"github.com/andresmejia3/moodlens/internal/utils"
	"github.com/spf13/cobra"
)

var (
	suggestSeed uint64
	suggestJSON bool
)

var suggestCmd = &cobra.Command{
	Use:       "suggest <emotion>",
	Short:     "Print suggestions for an emotion without using the camera",
	Args:      cobra.ExactArgs(1),
	ValidArgs: labelNames(),
	Run: func(cmd *cobra.Command, args []string) {
		label, err := emotion.ParseLabel(args[0])
		if err != nil {
			utils.Die("Invalid emotion", err, nil)
		}
		cat, _, err := loadCatalog(cmd.Context())
		if err != nil {
			utils.Die("Failed to load suggestion catalog", err, nil)
		}

		var sink monitor.SuggestionSink = display.NewTerminal(os.Stdout)
		if suggestJSON {
			sink = display.NewJSONLines(os.Stdout)
		}
		sink.ShowSuggestions(newEngine(cat, suggestSeed).Suggest(label))
	},
}

func labelNames() []string {
	out := make([]string, len(emotion.Labels))
	for i, l := range emotion.Labels {
		out[i] = string(l)
	}
	return out
}

func init() {
	suggestCmd.Flags().Uint64Var(&suggestSeed, "seed", 0, "Seed for suggestion sampling (0 picks a random seed)")
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "Emit a JSON line instead of the terminal view")
	rootCmd.AddCommand(suggestCmd)
}
