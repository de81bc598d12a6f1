package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	app "github.com/quotation/backend/internal/application/quotation"
	"github.com/quotation/backend/internal/domain/estimation"
	"github.com/quotation/backend/internal/domain/layout"
	"github.com/quotation/backend/internal/infrastructure/document"
	"github.com/spf13/cobra"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle      = lipgloss.NewStyle().Padding(0, 1)
	continuedStyle = cellStyle.Italic(true).Foreground(lipgloss.Color("8"))
	totalStyle     = cellStyle.Bold(true)
)

func newLayoutCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "layout <file>",
		Short: "Print the page layout of a quotation document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			log := root.logger()
			defer func() { _ = log.Sync() }()

			q, err := document.Load(args[0])
			if err != nil {
				return err
			}
			pipeline, err := newPipeline(cfg, nil, nil, log)
			if err != nil {
				return err
			}
			paginated, err := pipeline.Paginate(cmd.Context(), q)
			if err != nil {
				return err
			}
			printLayout(cmd.OutOrStdout(), paginated)
			return nil
		},
	}
}

func printLayout(w io.Writer, p *app.Paginated) {
	for _, page := range p.Pages {
		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Page %d of %d  (%d/%d rows)", page.Number, len(p.Pages), page.Used, page.Capacity)))
		fmt.Fprintln(w, pageTable(page, p.Estimate).Render())
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Grand total: %s\n", p.Estimate.Money(p.Estimate.GrandTotal))
}

func pageTable(page layout.Page, res *estimation.Result) *table.Table {
	rows := make([][]string, 0, len(page.Rows))
	for _, r := range page.Rows {
		rows = append(rows, rowCells(r, res))
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("No.", "Kind", "Description", "Height", "Amount").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			switch page.Rows[row].Kind {
			case layout.RowContinuation:
				return continuedStyle
			case layout.RowSubtotal, layout.RowGrandTotal:
				return totalStyle
			}
			return cellStyle
		})
}

func rowCells(r layout.Row, res *estimation.Result) []string {
	height := strconv.Itoa(r.Height)
	switch r.Kind {
	case layout.RowCategoryHeader:
		return []string{r.Number, "category", r.CategoryName, height, ""}
	case layout.RowContinuation:
		return []string{r.Number, "continued", r.CategoryName + " (cont.)", height, ""}
	case layout.RowTask:
		desc := strings.Join(r.Task.NameLines, "\n")
		if desc == "" {
			desc = r.Task.Name
		}
		if len(r.Task.NoteLines) > 0 {
			desc += "\n" + strings.Join(r.Task.NoteLines, "\n")
		}
		return []string{r.Number, "task", desc, height, res.Money(r.Task.LineTotal).StringFixed()}
	case layout.RowSubtotal:
		return []string{r.Number, "subtotal", r.CategoryName, height, res.Money(r.Subtotal).StringFixed()}
	case layout.RowGrandTotal:
		return []string{"", "total", "Grand total", height, res.Money(r.Summary.GrandTotal).StringFixed()}
	}
	return []string{r.Number, r.Kind.String(), "", height, ""}
}
