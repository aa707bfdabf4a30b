package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/docchat-cli/docchat/internal/core/ports/driven"
	"github.com/docchat-cli/docchat/internal/core/ports/driving"
	"github.com/docchat-cli/docchat/internal/logger"
)

// defaultWatchDebounce coalesces bursts of filesystem events into one
// sync run. Editors and downloads touch files several times in a row.
const defaultWatchDebounce = 500 * time.Millisecond

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Synchronise the document store with a folder of PDFs",
	Long: `Scans a folder for PDF files and brings the document store in line
with it: new and modified files are extracted, chunked and indexed,
unchanged files are skipped, and documents whose file disappeared are
removed together with their chunks.

If no directory is given, the configured source directory is used.
With --watch, the command keeps running and re-synchronises whenever
the folder changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching the folder and re-sync on changes")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}

	dir := ""
	if len(args) > 0 {
		dir = args[0]
	} else if configStore != nil {
		dir = configStore.GetString(driven.ConfigKeySourceDir)
	}
	if dir == "" {
		return errors.New("no source directory given; pass one or set source.dir in the config file")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd.Printf("Ingesting %s...\n", dir)
	report, err := syncWithProgress(ctx, cmd, ingestor, dir)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	printReport(cmd, report)

	if !ingestWatch {
		return nil
	}

	return watchAndSync(ctx, cmd, dir)
}

// syncWithProgress runs a sync while displaying progress updates.
func syncWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	ing driving.Ingestor,
	dir string,
) (*driving.SyncReport, error) {
	type result struct {
		report *driving.SyncReport
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		report, err := ing.Sync(ctx, dir)
		resCh <- result{report, err}
	}()

	// Poll status every 500ms
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	sourceID := ing.SourceID(dir)
	lastCount := 0
	for {
		select {
		case res := <-resCh:
			if lastCount > 0 {
				cmd.Println()
			}
			return res.report, res.err
		case <-ticker.C:
			// Best effort progress display
			status, err := ing.Status(ctx, sourceID)
			if err == nil && status != nil && status.DocumentsProcessed > lastCount {
				cmd.Printf("\rProcessing... %d documents", status.DocumentsProcessed)
				lastCount = status.DocumentsProcessed
			}
		}
	}
}

func printReport(cmd *cobra.Command, report *driving.SyncReport) {
	if report == nil {
		return
	}
	cmd.Printf("Done: %d ingested, %d unchanged, %d deleted.\n",
		report.Ingested, report.Unchanged, report.Deleted)
	for _, failure := range report.Failed {
		cmd.Printf("  failed: %s: %v\n", failure.DocumentID, failure.Err)
	}
}

// watchAndSync re-runs the sync whenever the folder changes, until the
// context is cancelled.
func watchAndSync(ctx context.Context, cmd *cobra.Command, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	debounce := defaultWatchDebounce
	if configStore != nil {
		if ms := configStore.GetInt(driven.ConfigKeyWatchDebounceMSec); ms > 0 {
			debounce = time.Duration(ms) * time.Millisecond
		}
	}

	cmd.Printf("Watching %s for changes (ctrl-c to stop)...\n", dir)

	var timer *time.Timer
	var timerCh <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			cmd.Println("Stopped.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			logger.Debug("watch event: %s", event)
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerCh = timer.C
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		case <-timerCh:
			timer = nil
			timerCh = nil
			report, err := ingestor.Sync(ctx, dir)
			if err != nil {
				// Keep watching; transient failures should not end the session.
				cmd.Printf("sync failed: %v\n", err)
				continue
			}
			printReport(cmd, report)
		}
	}
}
