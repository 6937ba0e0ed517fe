package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/xhad/askdocs/pkg/ingest"
	"github.com/xhad/askdocs/pkg/server"
)

func serveCMD() *cobra.Command {
	var addr string

	var cmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over a websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.agent.Init(ctx); err != nil {
				return err
			}
			if addr == "" {
				addr = a.config.Server.Addr
			}

			s := server.NewWSServer(server.Config{
				Addr:       addr,
				UseHistory: a.config.Agent.UseHistory,
				Ingest:     a.ingestURL,
			}, a.agent, a.metrics)
			return s.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}

// ingestURL crawls baseURL and indexes the pages into the collection,
// reporting crawl and indexing progress as text.
func (a *app) ingestURL(ctx context.Context, baseURL string, progress func(string)) (ingest.Report, error) {
	var pages int32
	web, err := a.webLoader(baseURL, func(string) {
		n := atomic.AddInt32(&pages, 1)
		if n%10 == 0 {
			progress(fmt.Sprintf("Scraped %d pages", n))
		}
	})
	if err != nil {
		return ingest.Report{}, err
	}

	docs, err := web.LoadAll(ctx)
	if err != nil {
		return ingest.Report{}, err
	}
	progress(fmt.Sprintf("Scraped %d documents", len(docs)))

	pipe, err := a.pipeline(func(done, total int) {
		progress(fmt.Sprintf("Indexed %d of %d chunks", done, total))
	})
	if err != nil {
		return ingest.Report{}, err
	}
	return pipe.Run(ctx, docs, ingest.Options{})
}
