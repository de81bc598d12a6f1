package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/quotation/backend/internal/infrastructure/event"
	"github.com/spf13/cobra"
)

func newJournalCmd(_ *rootOptions) *cobra.Command {
	var (
		session   string
		eventType string
	)
	cmd := &cobra.Command{
		Use:   "journal <file>",
		Short: "Show the events recorded in a session journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			events, err := event.ReadJournal(f, event.NewQuotationCodec())
			if err != nil {
				return err
			}

			rows := [][]string{}
			for _, e := range events {
				if session != "" && e.AggregateID().String() != session {
					continue
				}
				if eventType != "" && e.EventType() != eventType {
					continue
				}
				detail, err := json.Marshal(e)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					e.OccurredAt().Format(time.RFC3339),
					e.EventType(),
					e.AggregateID().String(),
					string(detail),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, table.New().
				Border(lipgloss.NormalBorder()).
				Headers("Time", "Event", "Session", "Detail").
				Rows(rows...).
				StyleFunc(func(row, _ int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					return cellStyle
				}).
				Render())
			fmt.Fprintf(out, "%d event(s)\n", len(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "only show events of this session id")
	cmd.Flags().StringVar(&eventType, "type", "", "only show events of this type")
	return cmd
}
