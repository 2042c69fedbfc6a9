// Package report renders rooms, summaries and event logs for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/huddle/pkg/room"
)

// FormatSummary writes the room summary as an aligned key/count table.
// Enum buckets are always printed in display order, including zero counts.
func FormatSummary(w io.Writer, s room.Summary) {
	status := "active"
	if s.Paused {
		status = "PAUSED"
	}
	fmt.Fprintf(w, "Room '%s' (%s) - %s\n\n", s.RoomName, formatID(s.RoomID), status)

	fmt.Fprintf(w, "%-22s %s\n", "PARTICIPANTS", "COUNT")
	for _, role := range []room.ParticipantRole{room.RoleObserver, room.RolePlanner, room.RoleReviewer, room.RoleImplementor} {
		fmt.Fprintf(w, "  %-20s %d\n", role, s.ParticipantsByRole[role])
	}
	for _, t := range []room.ParticipantType{room.ParticipantTypeHuman, room.ParticipantTypeAI} {
		fmt.Fprintf(w, "  %-20s %d\n", t, s.ParticipantsByType[t])
	}

	fmt.Fprintf(w, "\n%-22s %s\n", "ARTIFACTS", "COUNT")
	for _, t := range room.ArtifactTypes {
		fmt.Fprintf(w, "  %-20s %d\n", t, s.ArtifactsByType[t])
	}

	fmt.Fprintf(w, "\n%-22s %s\n", "TASK LANES", "COUNT")
	for _, st := range room.LaneStates {
		fmt.Fprintf(w, "  %-20s %d\n", st, s.TaskLanesByState[st])
	}

	fmt.Fprintf(w, "\n%-22s %d\n", "MESSAGES", s.MessageCount)
	fmt.Fprintf(w, "%-22s %s (%d/%d failures)\n", "DRIVER", s.Driver.State, s.Driver.ConsecutiveFailures, s.Driver.MaxRetries)
	if s.Driver.LastFailureReason != "" {
		fmt.Fprintf(w, "%-22s %s\n", "LAST FAILURE", formatText(s.Driver.LastFailureReason))
	}
}

// FormatEventsTable writes events as a formatted table to the provided writer.
// The table includes columns: ID, AGE, TYPE, and DESCRIPTION (truncated).
// Returns the number of events formatted.
func FormatEventsTable(w io.Writer, events []room.RoomEvent, now time.Time) int {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found")
		return 0
	}

	fmt.Fprintf(w, "%-10s %-8s %-20s %s\n", "ID", "AGE", "TYPE", "DESCRIPTION")
	fmt.Fprintf(w, "%-10s %-8s %-20s %s\n",
		"----------", "--------", "--------------------", "----------------------------------------")

	for _, ev := range events {
		fmt.Fprintf(w, "%-10s %-8s %-20s %s\n",
			formatID(ev.ID),
			formatAge(ev.OccurredAt, now),
			ev.Type,
			formatText(ev.Description),
		)
	}

	countMsg := "event"
	if len(events) != 1 {
		countMsg = "events"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(events), countMsg)

	return len(events)
}

// FormatJSONL writes each value as a single compact JSON object on its own line.
// This format is ideal for streaming and processing with tools like jq.
func FormatJSONL[T any](w io.Writer, values []T) error {
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a value as pretty-printed JSON to the provided writer.
func FormatSingleJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)
	return nil
}

// formatID truncates an id to its first 8 characters for compact display.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatText truncates text to its first non-empty line with max 60 characters.
// Empty text returns "-".
func formatText(text string) string {
	var firstLine string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			firstLine = trimmed
			break
		}
	}

	if firstLine == "" {
		return "-"
	}
	if len(firstLine) > 60 {
		return firstLine[:57] + "..."
	}
	return firstLine
}

// formatAge shows relative time like "2m ago", "1h ago", etc.
func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}

	diff := now.Sub(t)
	if diff < 0 {
		diff = 0
	}

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
