package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"seiassist/lib/procstore"
	"seiassist/lib/scrapers/sei"
	"seiassist/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	listMaxPages *int
	listLimit    *int
	listUnseen   *bool
	listCategory *string
	listAssignee *[]string
	listType     *[]string
	listMarker   *[]string
	listEnrich   *bool
	listDb       *string
	listXlsx     *string
)

func init() {
	listMaxPages = listCmd.Flags().Int("max-pages", 0, "Maximum listing pages to fetch per category (0 means all).")
	listLimit = listCmd.Flags().Int("limit", 0, "Maximum processes to keep after filtering (0 means all).")
	listUnseen = listCmd.Flags().Bool("unseen", false, "Keep only processes not yet viewed.")
	listCategory = listCmd.Flags().String("category", "", "Keep only one category (recebidos or gerados).")
	listAssignee = listCmd.Flags().StringSlice("assignee", nil, "Keep processes assigned to any of these names or logins.")
	listType = listCmd.Flags().StringSlice("type", nil, "Keep processes whose type or title contains any of these terms.")
	listMarker = listCmd.Flags().StringSlice("marker", nil, "Keep processes carrying any of these markers.")
	listEnrich = listCmd.Flags().Bool("enrich", false, "Visit each process and collect its document tree.")
	listDb = listCmd.Flags().String("db", "", "Store the collected processes in this sqlite database.")
	listXlsx = listCmd.Flags().String("xlsx", "", "Export the collected processes to this spreadsheet.")
	rootCmd.AddCommand(listCmd)
}

func buildFilters() sei.FilterOptions {
	filters := sei.FilterOptions{
		Assignees: *listAssignee,
		Types:     *listType,
		Markers:   *listMarker,
		Limit:     *listLimit,
	}
	if *listUnseen {
		seen := false
		filters.Seen = &seen
	}
	switch strings.ToLower(*listCategory) {
	case "":
	case "recebidos":
		filters.Categories = []sei.Category{sei.CategoryReceived}
	case "gerados":
		filters.Categories = []sei.Category{sei.CategoryGenerated}
	default:
		serviceutil.Fatal("unknown category", fmt.Errorf("%q is not recebidos or gerados", *listCategory))
	}
	return filters
}

func printProcesses(processes []*sei.Process) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Número", "Categoria", "Tipo", "Atribuído", "Visto", "Docs", "Sigiloso"})
	for _, proc := range processes {
		seen := ""
		if proc.Seen {
			seen = "x"
		}
		confidential := ""
		if proc.Confidential {
			confidential = "x"
		}
		t.AppendRow(table.Row{
			proc.Number, proc.Category, proc.TypeDetail,
			proc.AssigneeName, seen, len(proc.Documents), confidential,
		})
	}
	t.Render()
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Logs into the portal and lists the processes on the control panel.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		ctx := cmd.Context()

		client, controlHtml, controlUrl := openSession(ctx, cfg)
		pagination := sei.PaginationOptions{MaxPagesTotal: *listMaxPages}

		all, filtered, err := client.ListProcesses(ctx, controlHtml, controlUrl, pagination, buildFilters())
		if err != nil {
			serviceutil.Fatal("failed to collect processes", err)
		}
		slog.Info("collected processes", "total", len(all), "after_filters", len(filtered))

		if *listEnrich {
			client.EnrichProcesses(ctx, filtered, sei.EnrichmentOptions{})
		}

		printProcesses(filtered)

		if *listDb != "" {
			store, err := procstore.Open(*listDb)
			if err != nil {
				serviceutil.Fatal("failed to open process store", err)
			}
			defer store.Close()
			if err := store.Put(ctx, filtered...); err != nil {
				serviceutil.Fatal("failed to store processes", err)
			}
		}
		if *listXlsx != "" {
			if err := procstore.ExportXlsx(filtered, *listXlsx); err != nil {
				serviceutil.Fatal("failed to export spreadsheet", err)
			}
			slog.Info("exported spreadsheet", "path", *listXlsx)
		}
	},
}
