package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"BookPublisher/internal/app"
	"BookPublisher/internal/domain"
	"BookPublisher/internal/usecase"
	"BookPublisher/internal/web"
)

func newIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "id <url>",
		Short: "Print the chapter id derived from a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.DeriveChapterID(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newScrapeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrape a chapter page into a raw artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, cmd.OutOrStdout(), func(application *app.Application) error {
				_, err := application.Pipeline.Scrape(cmd.Context(), strings.TrimSpace(args[0]))
				return err
			})
		},
	}
}

func newWriteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "write <chapter-id>",
		Short: "Rewrite a scraped chapter with the language model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, cmd.OutOrStdout(), func(application *app.Application) error {
				_, err := application.Pipeline.Write(cmd.Context(), strings.TrimSpace(args[0]))
				return err
			})
		},
	}
}

func newReviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "review <chapter-id>",
		Short: "Critique and refine a rewritten chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stream := newReviewStream(cmd.OutOrStdout())
			return ctx.withApp(cmd, stream, func(application *app.Application) error {
				_, err := application.Pipeline.Review(cmd.Context(), strings.TrimSpace(args[0]), stream.sink())
				return err
			})
		},
	}
}

func newFinalizeCommand(ctx *commandContext) *cobra.Command {
	var (
		comment     string
		textFile    string
		disposition string
	)

	cmd := &cobra.Command{
		Use:   "finalize <reviewed.json>",
		Short: "Apply an editor decision to a reviewed chapter",
		Long: `Finalize saves the chapter as final when the comment is "final" (any case,
surrounding spaces ignored) or when --disposition finalize is given; otherwise
it is saved back as reviewed. --disposition discard saves nothing.

The edited text is read from --text-file; without it the reviewed text is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := domain.ParseDisposition(disposition)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, cmd.OutOrStdout(), func(application *app.Application) error {
				record, err := application.Store().Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				text := record.ReviewedText
				if record.Status == domain.StatusFinal && record.FinalText != "" {
					text = record.FinalText
				}
				if textFile != "" {
					raw, err := os.ReadFile(textFile)
					if err != nil {
						return fmt.Errorf("read edited text: %w", err)
					}
					text = string(raw)
				}

				outcome, err := application.Finalizer.Apply(cmd.Context(), record, usecase.Decision{
					Text:        text,
					Comments:    comment,
					Disposition: parsed,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch outcome.Disposition {
				case domain.DispositionFinalize:
					fmt.Fprintf(out, "Finalized chapter saved to: %s\n", outcome.Path)
				case domain.DispositionDiscard:
					fmt.Fprintln(out, "Edits discarded; nothing was saved.")
				default:
					fmt.Fprintf(out, "Chapter saved for further review at: %s\n", outcome.Path)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", `Editor comment; "final" finalizes the chapter`)
	cmd.Flags().StringVar(&textFile, "text-file", "", "File holding the edited chapter text")
	cmd.Flags().StringVar(&disposition, "disposition", "", "Explicit decision: needs-review, finalize or discard")
	return cmd
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "ingest [final.json]...",
		Short: "Store finalized chapters in the searchable archive",
		Long: `Ingest indexes the given final artifacts. With --all every artifact under
processed/final is indexed; re-ingesting a chapter replaces its entry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("give at least one final artifact or --all")
			}
			return ctx.withApp(cmd, cmd.OutOrStdout(), func(application *app.Application) error {
				if all {
					n, err := application.ArchiveSync.SyncOnce(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d chapters stored in the archive.\n", n)
				}
				for _, path := range args {
					record, err := application.Store().Load(cmd.Context(), path)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					id, err := application.Archive.Ingest(cmd.Context(), record)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Chapter %s stored in the archive.\n", id)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Index every final artifact in the data directory")
	return cmd
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search archived chapters by id, title or keywords",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, cmd.OutOrStdout(), func(application *app.Application) error {
				results, err := application.Archive.Search(cmd.Context(), strings.Join(args, " "), topK)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No chapters found.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderResults(results))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", usecase.DefaultTopK, "Number of results (1-"+strconv.Itoa(usecase.MaxTopK)+")")
	return cmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the interactive web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.ensureConfig()
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if !strings.EqualFold(cfg.Logging.Level, "debug") {
				gin.SetMode(gin.ReleaseMode)
			}

			return ctx.withApp(cmd, cmd.ErrOrStderr(), func(application *app.Application) error {
				router := web.NewRouter(web.RouterConfig{
					Pipeline:  application.Pipeline,
					Finalizer: application.Finalizer,
					Archive:   application.Archive,
					Store:     application.Store(),
					Logger:    application.Logger().With("component", "web"),
				})
				if err := application.ArchiveSync.Start(cmd.Context()); err != nil {
					return err
				}
				defer func() {
					if err := application.ArchiveSync.Stop(context.Background()); err != nil {
						application.Logger().Warn("stop archive sync", "error", err)
					}
				}()
				return web.NewServer(addr, router, application.Logger()).Run(cmd.Context())
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr)")
	return cmd
}
