package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"BookPublisher/internal/app"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bookpublisher [url]",
		Short: "Scrape, rewrite, review, finalize and archive book chapters",
		Long: `Without a subcommand bookpublisher runs the full pipeline for one chapter:
scrape the page, rewrite it with the language model and review the rewrite.
When no URL is given it is read from standard input.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var url string
			if len(args) > 0 {
				url = strings.TrimSpace(args[0])
			} else {
				fmt.Fprint(cmd.OutOrStdout(), "Enter the Wikisource chapter URL: ")
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				url = strings.TrimSpace(line)
			}
			if url == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No URL provided.")
				return nil
			}
			return runPipeline(ctx, cmd, url)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path (defaults to $BOOKPUBLISHER_CONFIG)")

	rootCmd.AddCommand(newIDCommand())
	rootCmd.AddCommand(newScrapeCommand(ctx))
	rootCmd.AddCommand(newWriteCommand(ctx))
	rootCmd.AddCommand(newReviewCommand(ctx))
	rootCmd.AddCommand(newFinalizeCommand(ctx))
	rootCmd.AddCommand(newIngestCommand(ctx))
	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))

	return rootCmd
}

func runPipeline(ctx *commandContext, cmd *cobra.Command, url string) error {
	stream := newReviewStream(cmd.OutOrStdout())
	return ctx.withApp(cmd, stream, func(application *app.Application) error {
		_, err := application.Pipeline.Run(cmd.Context(), url, stream.sink())
		return err
	})
}
