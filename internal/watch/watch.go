// Package watch streams board events from the store to a terminal or a
// JSON Lines consumer.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dyluth/ctfboard/internal/store"
)

// OutputFormat specifies how events are written.
type OutputFormat string

const (
	// OutputFormatDefault writes one human-readable line per event
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON writes events as line-delimited JSON
	OutputFormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format: %s", s)
}

// Source is a live event subscription.
type Source interface {
	Events() <-chan *store.Event
	Errors() <-chan error
}

// StreamEvents writes events from src until ctx is done or the
// subscription ends. Undecodable events are reported on stderr and skipped.
func StreamEvents(ctx context.Context, src Source, format OutputFormat, w io.Writer) error {
	errs := src.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)

		case e, ok := <-src.Events():
			if !ok {
				return nil
			}
			if err := writeEvent(w, e, format); err != nil {
				return err
			}
		}
	}
}

func writeEvent(w io.Writer, e *store.Event, format OutputFormat) error {
	switch format {
	case OutputFormatJSON:
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	default:
		if _, err := fmt.Fprintf(w, "[%s] %s\n", formatTimestamp(e.CreatedAtMs), FormatEvent(e)); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
	return nil
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return "--:--:--"
	}
	return time.UnixMilli(ms).Format("15:04:05")
}

// FormatEvent renders an event as a single line.
func FormatEvent(e *store.Event) string {
	target := e.Category + "/" + e.Challenge
	switch e.Kind {
	case store.EventStarted:
		return fmt.Sprintf("🚩 CTF started: mode=%s by=%s", e.Detail, e.Actor)
	case store.EventChallengeAdded:
		return fmt.Sprintf("➕ Challenge added: %s by=%s", target, e.Actor)
	case store.EventSolved:
		return fmt.Sprintf("✅ Solved: %s by=%s", target, e.Actor)
	case store.EventAssigned:
		return fmt.Sprintf("👤 Assigned: %s to %s by=%s", e.Player, target, e.Actor)
	case store.EventUnassigned:
		return fmt.Sprintf("👋 Unassigned: %s from %s by=%s", e.Player, target, e.Actor)
	case store.EventVulnAdded:
		return fmt.Sprintf("🐛 Vuln added: %s on %s by=%s", e.Vuln, target, e.Actor)
	case store.EventVulnPatched:
		return fmt.Sprintf("🩹 Vuln patched: %s on %s by=%s", e.Vuln, target, e.Actor)
	case store.EventVulnExploited:
		return fmt.Sprintf("💥 Vuln exploited: %s on %s by=%s", e.Vuln, target, e.Actor)
	case store.EventArchived:
		return fmt.Sprintf("📦 Archived as %s by=%s", e.Detail, e.Actor)
	case store.EventNuked:
		return fmt.Sprintf("☢️  Nuked category %s (%s) by=%s", e.Category, e.Detail, e.Actor)
	default:
		return fmt.Sprintf("❓ %s by=%s", e.Kind, e.Actor)
	}
}
