package execlog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Export renders the retained records in the requested format. Supported
// formats are "json", "csv", and "text".
func (l *Log) Export(format string) ([]byte, error) {
	records := l.Snapshot()

	switch strings.ToLower(format) {
	case "json":
		return exportJSON(records)
	case "csv":
		return exportCSV(records)
	case "text":
		return exportText(records), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

func exportJSON(records []Record) ([]byte, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal records: %w", err)
	}
	return data, nil
}

func exportCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "tool", "origin", "start", "duration_ms", "outcome", "failure_kind", "message"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.ID,
			rec.Tool,
			rec.Origin,
			rec.Start.Format(time.RFC3339),
			strconv.FormatInt(rec.Duration.Milliseconds(), 10),
			string(rec.Outcome.Kind),
			string(rec.Outcome.FailureKind),
			rec.Outcome.Message,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func exportText(records []Record) []byte {
	var b strings.Builder

	if len(records) == 0 {
		b.WriteString("no execution records\n")
		return []byte(b.String())
	}

	for _, rec := range records {
		fmt.Fprintf(&b, "[%s] %s (%s) %dms", rec.Start.Format(time.RFC3339), rec.Tool, rec.Origin, rec.Duration.Milliseconds())
		if rec.Outcome.Succeeded() {
			fmt.Fprintf(&b, " ok: %v\n", rec.Outcome.Value)
		} else {
			fmt.Fprintf(&b, " %s: %s\n", rec.Outcome.FailureKind, rec.Outcome.Message)
		}
	}
	return []byte(b.String())
}
