package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Export renders entries in the requested format. Unknown formats fall back to JSON.
func Export(entries []*Entry, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportFormatCSV:
		return exportCSV(entries)
	case ExportFormatNDJSON:
		return exportNDJSON(entries)
	default:
		return exportJSON(entries)
	}
}

// exportJSON exports audit entries as JSON array
func exportJSON(entries []*Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}

// exportNDJSON exports audit entries as newline-delimited JSON
func exportNDJSON(entries []*Entry) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			return nil, fmt.Errorf("failed to encode entry: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// exportCSV exports audit entries as CSV with snapshots as raw JSON cells
func exportCSV(entries []*Entry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"ID",
		"CreatedAt",
		"WorkspaceID",
		"UserID",
		"EntityType",
		"EntityID",
		"Action",
		"Before",
		"After",
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, entry := range entries {
		row := []string{
			strconv.FormatInt(entry.ID, 10),
			entry.CreatedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(entry.WorkspaceID, 10),
			formatInt64Ptr(entry.UserID),
			string(entry.EntityType),
			strconv.FormatInt(entry.EntityID, 10),
			string(entry.Action),
			string(entry.Before),
			string(entry.After),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// formatInt64Ptr formats an int64 pointer as string, returning empty string for nil
func formatInt64Ptr(val *int64) string {
	if val == nil {
		return ""
	}
	return strconv.FormatInt(*val, 10)
}
