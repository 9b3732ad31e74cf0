package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"seiassist/lib/scrapers/sei"
	"seiassist/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	downloadOut      *string
	downloadLimit    *int
	downloadMaxPages *int
	downloadUnseen   *bool
	downloadAttempts *int
	downloadParallel *bool
	downloadWorkers  *int
)

func init() {
	downloadOut = downloadCmd.Flags().String("out", "pdfs", "The directory to write generated PDFs to.")
	downloadLimit = downloadCmd.Flags().Int("limit", 0, "Maximum processes to download (0 means all).")
	downloadMaxPages = downloadCmd.Flags().Int("max-pages", 0, "Maximum listing pages to fetch per category (0 means all).")
	downloadUnseen = downloadCmd.Flags().Bool("unseen", false, "Download only processes not yet viewed.")
	downloadAttempts = downloadCmd.Flags().Int("attempts", 3, "Attempts per process before giving up.")
	downloadParallel = downloadCmd.Flags().Bool("parallel", false, "Download with multiple portal sessions at once.")
	downloadWorkers = downloadCmd.Flags().Int("workers", 3, "Sessions to use in parallel mode.")
	rootCmd.AddCommand(downloadCmd)
}

func printResults(results []sei.DownloadResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Número", "Resultado", "Tentativas", "Tempo", "Arquivo"})
	for _, result := range results {
		outcome := "ok"
		if !result.Success {
			outcome = result.Err.Error()
		}
		t.AppendRow(table.Row{
			result.Process.Number, outcome, result.Attempts,
			result.Elapsed.Round(time.Millisecond), result.Path,
		})
	}
	t.Render()
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Generates and downloads the PDF of each listed process.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		ctx := cmd.Context()

		client, controlHtml, controlUrl := openSession(ctx, cfg)

		filters := sei.FilterOptions{}
		if *downloadUnseen {
			seen := false
			filters.Seen = &seen
		}
		pagination := sei.PaginationOptions{MaxPagesTotal: *downloadMaxPages}

		_, filtered, err := client.ListProcesses(ctx, controlHtml, controlUrl, pagination, filters)
		if err != nil {
			serviceutil.Fatal("failed to collect processes", err)
		}
		slog.Info("downloading processes", "count", len(filtered))

		retry := sei.DefaultRetryPolicy()
		retry.MaxAttempts = *downloadAttempts

		opts := sei.DownloadOptions{
			Limit:     *downloadLimit,
			OutputDir: *downloadOut,
			Retry:     retry,
			Parallel:  *downloadParallel,
			Workers:   *downloadWorkers,
		}
		if opts.Parallel {
			// worker-session failures flow back through the batch's
			// error return instead of exiting the process
			opts.NewSession = func(ctx context.Context) (sei.Client, error) {
				session, _, _, err := newSession(ctx, cfg)
				return session, err
			}
		}

		results, err := client.DownloadPDFs(ctx, filtered, opts)
		if err != nil {
			serviceutil.Fatal("batch download failed", err)
		}
		printResults(results)
	},
}
