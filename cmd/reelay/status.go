package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"reelay/internal/journal"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and journal history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := journal.Open(cfg.Paths.DataDir)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			var statuses []journal.Status
			if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
				for _, value := range strings.Split(trimmed, ",") {
					statuses = append(statuses, journal.Status(strings.TrimSpace(value)))
				}
			}

			records, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return fmt.Errorf("list journal: %w", err)
			}
			counts, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("journal stats: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon running: %s\n", yesNo(daemonRunning(cfg.Paths.DataDir)))
			fmt.Fprintf(out, "Journal: %s\n", store.Path())
			fmt.Fprintln(out, formatCounts(counts))

			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No journal records")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					strconv.FormatInt(record.ID, 10),
					string(record.Kind),
					string(record.Status),
					strconv.FormatInt(record.ChatID, 10),
					strconv.FormatInt(record.MessageID, 10),
					record.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
					truncateCell(record.ErrorMessage, 48),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "KIND", "STATUS", "CHAT", "MESSAGE", "UPDATED", "ERROR"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Comma-separated status filter (processing, published, failed, skipped, abandoned)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to show (0 for all)")
	return cmd
}

// daemonRunning probes the instance lock without holding it.
func daemonRunning(dataDir string) bool {
	lock := flock.New(filepath.Join(dataDir, "reelay.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}

func formatCounts(counts map[journal.Status]int) string {
	order := []journal.Status{
		journal.StatusProcessing,
		journal.StatusPublished,
		journal.StatusFailed,
		journal.StatusSkipped,
		journal.StatusAbandoned,
	}
	parts := make([]string, 0, len(order))
	for _, status := range order {
		parts = append(parts, fmt.Sprintf("%s=%d", status, counts[status]))
	}
	return strings.Join(parts, "  ")
}

func truncateCell(value string, width int) string {
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
