package tester

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// DisplayTable renders a plain-text table of every probe's send/receive/
// elapsed times, replacing bridgetester.py's curses tabular screen with a
// stdout frame suitable for any terminal.
func DisplayTable(w io.Writer, records []*MsgRecord) {
	fmt.Fprintf(w, "%-36s %-10s %-10s %-10s\n", "ID", "SENT", "RECEIVED", "ELAPSED")
	for _, r := range records {
		status := "pending"
		elapsed := "-"
		if r.Reconciled {
			status = r.RecvAt.Format("15:04:05")
			elapsed = r.Elapsed().Round(1e6).String()
		}
		fmt.Fprintf(w, "%-36s %-10s %-10s %-10s\n", r.ID, r.SentAt.Format("15:04:05"), status, elapsed)
	}
}

// DisplayGraph renders a dot-per-message graph of reconciliation state,
// replacing bridgetester.py's curses dot-graph screen: '.' for reconciled,
// '?' for still pending.
func DisplayGraph(w io.Writer, records []*MsgRecord) {
	var sb strings.Builder
	for _, r := range records {
		if r.Reconciled {
			sb.WriteByte('.')
		} else {
			sb.WriteByte('?')
		}
	}
	fmt.Fprintln(w, sb.String())
}

// WriteUnreconciledReport writes one unreconciled message ID per line to
// path, matching report_unreconciled_msgs's output file.
func WriteUnreconciledReport(path string, ids []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file %s: %w", path, err)
	}
	defer f.Close()
	for _, id := range ids {
		if _, err := fmt.Fprintln(f, id); err != nil {
			return fmt.Errorf("writing report file %s: %w", path, err)
		}
	}
	return nil
}
