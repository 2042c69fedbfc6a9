// Package watch streams live room events to a terminal.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/dyluth/huddle/internal/filter"
	"github.com/dyluth/huddle/pkg/room"
)

// OutputFormat selects how streamed events are rendered.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSON    OutputFormat = "json"
)

// ParseOutputFormat converts a flag value into an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown format: %s (must be 'default' or 'json')", s)
	}
}

// EventSource is a live feed of room events, satisfied by
// *eventbus.Subscription.
type EventSource interface {
	Events() <-chan room.RoomEvent
	Errors() <-chan error
}

// Options configures StreamEvents.
type Options struct {
	Format OutputFormat
	Filter filter.Criteria
}

// StreamEvents writes events from src to w until ctx is cancelled or the
// source closes. Errors reported by the source are logged and skipped.
func StreamEvents(ctx context.Context, src EventSource, w io.Writer, opts Options) error {
	formatter, err := newFormatter(opts.Format, w)
	if err != nil {
		return err
	}

	events, errs := src.Events(), src.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !opts.Filter.Matches(&ev) {
				continue
			}
			if err := formatter.FormatEvent(&ev); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("[Watch] Skipping event: %v", err)
		}
	}
}

type formatter interface {
	FormatEvent(ev *room.RoomEvent) error
}

func newFormatter(format OutputFormat, w io.Writer) (formatter, error) {
	switch format {
	case OutputFormatDefault, "":
		return &defaultFormatter{writer: w}, nil
	case OutputFormatJSON:
		return &jsonFormatter{writer: w}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

// defaultFormatter renders one human-readable line per event.
type defaultFormatter struct {
	writer io.Writer
}

func (f *defaultFormatter) FormatEvent(ev *room.RoomEvent) error {
	line := fmt.Sprintf("[%s] %s %s", ev.OccurredAt.Format("15:04:05"), eventIcon(ev.Type), ev.Description)

	switch {
	case ev.ArtifactID != "":
		line += fmt.Sprintf(" (artifact=%s)", ev.ArtifactID)
	case ev.TaskLaneID != "":
		line += fmt.Sprintf(" (lane=%s)", ev.TaskLaneID)
	case ev.ParticipantID != "":
		line += fmt.Sprintf(" (participant=%s)", ev.ParticipantID)
	}

	_, err := fmt.Fprintln(f.writer, line)
	return err
}

func eventIcon(t room.EventType) string {
	switch t {
	case room.EventRoomCreated:
		return "🏠"
	case room.EventParticipantJoined:
		return "👋"
	case room.EventProviderRegistered:
		return "🔌"
	case room.EventArtifactCreated:
		return "✨"
	case room.EventTaskUpdated:
		return "📋"
	case room.EventMessagePosted:
		return "💬"
	case room.EventStateChanged:
		return "⏸️"
	default:
		return "•"
	}
}

// jsonFormatter writes each event as one JSON line.
type jsonFormatter struct {
	writer io.Writer
}

func (f *jsonFormatter) FormatEvent(ev *room.RoomEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(f.writer, "%s\n", data)
	return err
}
