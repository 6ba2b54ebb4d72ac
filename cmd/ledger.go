package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ocrarchive/internal/ledger"
	"ocrarchive/internal/logger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the extraction ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded submissions",
	Long: `Print every row of the ledger in the order it was recorded.

Works with the sheets and firestore ledgers (LEDGER_BACKEND).`,
	Example: `  ocrarchive ledger list
  ocrarchive ledger list --json`,
	Args: cobra.NoArgs,
	RunE: runLedgerList,
}

type ledgerRowOutput struct {
	ReferenceNumber string     `json:"reference_number"`
	Rating          int        `json:"rating"`
	ErrorNotes      string     `json:"errors"`
	RecordedAt      *time.Time `json:"recorded_at,omitempty"`
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerListCmd)

	ledgerListCmd.Flags().Bool("json", false, "Output as JSON")
	ledgerListCmd.Flags().Int("timeout", 60, "Timeout in seconds")
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ledger")

	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	var clients closers
	defer clients.closeAll(log)

	l, err := newLedger(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}
	clients.add(l)

	lister, ok := l.(ledger.Lister)
	if !ok {
		return fmt.Errorf("ledger backend %q cannot be listed", cfg.LedgerBackend)
	}

	rows, err := lister.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list ledger: %w", err)
	}
	log.Debug().Int("rows", len(rows)).Msg("Ledger listed")

	if jsonOutput {
		out := make([]ledgerRowOutput, 0, len(rows))
		for _, row := range rows {
			r := ledgerRowOutput{
				ReferenceNumber: row.ReferenceNumber,
				Rating:          row.Rating,
				ErrorNotes:      row.ErrorNotes,
			}
			if !row.RecordedAt.IsZero() {
				t := row.RecordedAt
				r.RecordedAt = &t
			}
			out = append(out, r)
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REFERENCE\tRATING\tERRORS")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%d\t%s\n", row.ReferenceNumber, row.Rating, row.ErrorNotes)
	}
	return w.Flush()
}
