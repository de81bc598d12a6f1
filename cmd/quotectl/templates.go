package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/quotation/backend/internal/infrastructure/document"
	"github.com/spf13/cobra"
)

func newTemplatesCmd(root *rootOptions) *cobra.Command {
	var export string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the starter templates",
		Long: `List the starter quotations new sessions can be created from.
With --export KEY the template is written to stdout as YAML, ready to be
edited and rendered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			store, err := document.NewTemplateStore(document.TemplateStoreConfig{ExternalDir: cfg.Renderer.StarterDir})
			if err != nil {
				return err
			}

			if export != "" {
				tmpl, err := store.GetByKey(export)
				if err != nil {
					return err
				}
				return document.Encode(cmd.OutOrStdout(), tmpl.Document, document.FormatYAML)
			}

			rows := [][]string{}
			for _, t := range store.GetAll() {
				rows = append(rows, []string{t.Key, t.Name, strconv.Itoa(t.Categories), strconv.Itoa(t.Tasks), t.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), table.New().
				Border(lipgloss.RoundedBorder()).
				Headers("Key", "Name", "Categories", "Tasks", "Description").
				Rows(rows...).
				StyleFunc(func(row, _ int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					return cellStyle
				}).
				Render())
			return nil
		},
	}
	cmd.Flags().StringVar(&export, "export", "", "write the template with this key as YAML")
	return cmd
}
