package main

import (
	"encoding/json"
	"fmt"
	"io"

	"vidsqueeze/internal/events"
)

// eventPrinter renders hub events as text lines or JSON lines.
type eventPrinter struct {
	out   io.Writer
	json  bool
	names map[string]string
}

func (p *eventPrinter) label(id string) string {
	if name := p.names[id]; name != "" {
		return fmt.Sprintf("%s (%s)", id, name)
	}
	return id
}

func (p *eventPrinter) print(evt events.Event) error {
	if p.json {
		return json.NewEncoder(p.out).Encode(evt)
	}
	_, err := fmt.Fprintln(p.out, p.describe(evt))
	return err
}

func (p *eventPrinter) describe(evt events.Event) string {
	label := p.label(evt.JobID)
	if evt.Type == events.TypeProgress {
		return fmt.Sprintf("%s  %3d%%", label, evt.Percent)
	}
	switch evt.Status {
	case events.OutcomeSuccess:
		return fmt.Sprintf("%s  Done (%s)", label, formatSize(evt.OutputSizeBytes))
	case events.OutcomeError:
		return fmt.Sprintf("%s  Error: %s", label, evt.Error)
	default:
		return fmt.Sprintf("%s  %s", label, statusLabel(string(evt.Status)))
	}
}
