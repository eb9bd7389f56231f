package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"voice-ordering-service/internal/service/intent"
)

var (
	resolveConfidence float64
	resolveJSON       bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <transcript>",
	Short: "Resolve a transcript to menu items",
	Long: `Resolve a transcript to menu items and quantities, exactly as a
final transcript would be resolved in an ordering session.

Examples:
  voiceorder resolve "I want two chocolate corn"
  voiceorder resolve --json --confidence 0.7 "one cheesy corn and a lemonade"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		cat, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		r := intent.NewResolver(cat, intent.Options{MaxQuantity: cfg.Ordering.MaxQuantity})
		intents, conf := r.Resolve(strings.Join(args, " "), resolveConfidence)
		return printIntents(cmd.OutOrStdout(), intents, conf, resolveJSON)
	},
}

func init() {
	resolveCmd.Flags().Float64Var(&resolveConfidence, "confidence", 1.0, "acoustic confidence of the transcript")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "print JSON")
}

type resolvedItem struct {
	ItemID          string  `json:"itemId"`
	Name            string  `json:"name"`
	Quantity        int     `json:"quantity"`
	MatchConfidence float64 `json:"matchConfidence"`
}

func printIntents(out io.Writer, intents []intent.Intent, conf float64, asJSON bool) error {
	if asJSON {
		items := make([]resolvedItem, 0, len(intents))
		for _, in := range intents {
			items = append(items, resolvedItem{in.Item.ID, in.Item.Name, in.Quantity, in.MatchConfidence})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"intents": items, "confidence": conf})
	}

	if len(intents) == 0 {
		fmt.Fprintln(out, "no menu item recognized")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tNAME\tQTY\tCONFIDENCE")
	for _, in := range intents {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\n", in.Item.ID, in.Item.Name, in.Quantity, in.MatchConfidence)
	}
	return w.Flush()
}
