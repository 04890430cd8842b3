package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

func exportJSON(attempts []AccessAttempt) ([]byte, error) {
	return json.MarshalIndent(attempts, "", "  ")
}

func exportCSV(attempts []AccessAttempt) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"ID", "Timestamp", "UserID", "Email", "DisplayName",
		"Action", "Operation", "Outcome", "Role", "Permission", "Required", "Reason",
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, a := range attempts {
		row := []string{
			strconv.FormatInt(a.ID, 10),
			a.CreatedAt.UTC().Format(time.RFC3339),
			formatInt64Ptr(a.UserID),
			a.UserEmail,
			a.UserDisplayName,
			string(a.Action),
			a.Operation,
			a.Outcome,
			a.Role,
			a.Permission,
			a.Required,
			a.Reason,
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
