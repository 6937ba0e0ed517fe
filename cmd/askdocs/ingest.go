package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/xhad/askdocs/internal/types"
	"github.com/xhad/askdocs/pkg/ingest"
	"github.com/xhad/askdocs/pkg/loader"
)

func ingestCMD() *cobra.Command {
	var reset bool
	var docsURL string

	var cmd = &cobra.Command{
		Use:   "ingest",
		Short: "Index the documentation into the vector store",
		Long: `Loads markdown and HTML files from the configured docs path, or crawls
a documentation site with --url, then chunks, embeds and indexes them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var l types.Loader
			if docsURL != "" {
				color.Blue("\nCrawling documentation at %s\n", docsURL)
				l, err = a.webLoader(docsURL, nil)
			} else {
				color.Blue("\nLoading documentation from %s\n", a.config.Processor.DocsPath)
				l = loader.NewFileLoader(loader.FileConfig{DocsPath: a.config.Processor.DocsPath})
			}
			if err != nil {
				return err
			}

			report, err := runIngest(ctx, a, l, reset)
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "drop the collection before indexing")
	cmd.Flags().StringVar(&docsURL, "url", "", "crawl a documentation site instead of the docs path")

	return cmd
}

func (a *app) webLoader(baseURL string, onPage func(url string)) (*loader.WebLoader, error) {
	return loader.NewWebLoader(loader.WebConfig{
		BaseURL:           baseURL,
		MaxDepth:          a.config.Scraper.MaxDepth,
		RateLimit:         a.config.Scraper.RateLimit,
		IgnorePatterns:    a.config.Scraper.IgnorePatterns,
		AllowedExtensions: a.config.Scraper.AllowedExtensions,
		OnProgress:        onPage,
	})
}

// runIngest loads every document then indexes it with a progress bar.
func runIngest(ctx context.Context, a *app, l types.Loader, reset bool) (ingest.Report, error) {
	spinner := getSpinner("Loading documents...")
	docs, err := l.LoadAll(ctx)
	spinner.Finish()
	if err != nil {
		return ingest.Report{}, fmt.Errorf("failed to load documents: %w", err)
	}
	color.Green("✓ Loaded %d documents\n", len(docs))
	if len(docs) == 0 {
		return ingest.Report{}, nil
	}

	var bar *progressbar.ProgressBar
	pipe, err := a.pipeline(func(done, total int) {
		if bar == nil {
			bar = getProgressBar(total, "Indexing chunks")
		}
		bar.Set(done)
	})
	if err != nil {
		return ingest.Report{}, err
	}

	report, err := pipe.Run(ctx, docs, ingest.Options{Reset: reset})
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	return report, err
}

func printReport(r ingest.Report) {
	color.Green("✓ Indexed %d of %d chunks from %d documents\n", r.Indexed, r.Chunks, r.Documents)
	if r.Failures > 0 {
		color.Yellow("! %d documents were skipped, run with --verbose for details\n", r.Failures)
	}
}
