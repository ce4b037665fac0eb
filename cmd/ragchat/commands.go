package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragchat/internal/history"
	"ragchat/internal/indexer"
	"ragchat/internal/session"
	"ragchat/internal/tui"
)

func scrapeCmd(a *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Download product pages into the corpus directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if outDir != "" {
				a.cfg.Collector.OutputDir = outDir
			}
			report, err := newCollector(a.cfg.Collector, a.log).Run(ctx)
			if err != nil {
				return err
			}
			for _, s := range report.Skipped {
				fmt.Fprintf(a.out, "skipped %s: %s\n", s.Topic.Title(), s.Reason)
			}
			fmt.Fprintf(a.out, "saved %d pages to %s, skipped %d\n", len(report.Saved), a.cfg.Collector.OutputDir, len(report.Skipped))
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Override collector.output_dir")
	return cmd
}

func indexCmd(a *app) *cobra.Command {
	var watch, rebuild bool
	cmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Chunk, embed and store the corpus",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Indexer.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if rebuild {
				if err := resetStore(a.cfg.VectorStore); err != nil {
					return err
				}
			}
			p, err := a.openPipeline()
			if err != nil {
				return err
			}
			defer p.Close()
			ix, err := a.newIndexer(p)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			stats, err := ix.BuildIndex(ctx, dir)
			if err != nil {
				return err
			}
			printStats(a, stats)
			if !watch {
				return nil
			}
			fmt.Fprintf(a.out, "watching %s for changes (ctrl+c to stop)\n", dir)
			err = ix.Watch(ctx, dir, func(stats indexer.Stats, err error) {
				if err != nil {
					a.log.Error("rebuild failed", "err", err)
					return
				}
				printStats(a, stats)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and re-index when corpus files change")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Delete the local index before indexing")
	return cmd
}

func printStats(a *app, s indexer.Stats) {
	fmt.Fprintf(a.out, "indexed %d documents into %d chunks: %d added, %d skipped\n", s.Documents, s.Chunks, s.Added, s.Skipped)
}

func askCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openPipeline()
			if err != nil {
				return err
			}
			defer p.Close()
			svc, err := a.newService(p)
			if err != nil {
				return err
			}
			ans, err := svc.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, ans.Text)
			if src := session.Sources(ans); len(src) > 0 {
				fmt.Fprintf(a.out, "\nsources: %s\n", strings.Join(src, ", "))
			}
			return nil
		},
	}
}

func chatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.openPipeline()
			if err != nil {
				return err
			}
			defer p.Close()
			svc, err := a.newService(p)
			if err != nil {
				return err
			}
			ix, err := a.newIndexer(p)
			if err != nil {
				return err
			}
			sess := session.New(history.NewFileStore(a.cfg.History.Path, a.log), svc, a.log)
			build := func(ctx context.Context) (indexer.Stats, error) {
				return ix.BuildIndex(ctx, a.cfg.Indexer.Dir)
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			m := tui.New(ctx, sess, build)
			if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
				return fmt.Errorf("chat ui: %w", err)
			}
			return nil
		},
	}
}

func historyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and edit saved conversations",
	}
	store := func() *history.FileStore { return history.NewFileStore(a.cfg.History.Path, a.log) }

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved conversations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			h := store().Load()
			if len(h) == 0 {
				fmt.Fprintln(a.out, "no saved chats")
				return nil
			}
			for _, name := range h.Names() {
				msgs, _ := h.Get(name)
				fmt.Fprintf(a.out, "%s\t%d messages\n", name, len(msgs))
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			s := store()
			h := s.Load()
			if !h.Rename(args[0], args[1]) {
				fmt.Fprintf(a.out, "nothing renamed: %q to %q\n", args[0], args[1])
				return nil
			}
			return s.Save(h)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			s := store()
			h := s.Load()
			if !h.Delete(args[0]) {
				return fmt.Errorf("no chat named %q", args[0])
			}
			return s.Save(h)
		},
	})
	return cmd
}
