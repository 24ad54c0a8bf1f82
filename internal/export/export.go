// Package export writes channel transcripts to zstd-compressed JSON Lines
// archives and posts them to the transcript channel.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"github.com/dyluth/ctfboard/internal/logging"
)

// Message is one chat message in a transcript.
type Message struct {
	ID          string    `json:"id"`
	Author      string    `json:"author"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Attachments []string  `json:"attachments,omitempty"`
}

// Record is one line of an archive.
type Record struct {
	Channel string `json:"channel"`
	Message
}

// Channel identifies a channel to export.
type Channel struct {
	ID   string
	Name string
}

// Source reads channel history and uploads the finished archive.
type Source interface {
	// ChannelMessages returns the full history of a channel, oldest first.
	ChannelMessages(ctx context.Context, channelID string) ([]Message, error)
	SendFile(ctx context.Context, channelID, content, filename string, r io.Reader) (string, error)
}

// Result describes a written archive.
type Result struct {
	Path      string
	Channels  int
	Messages  int
	MessageID string
}

// Exporter writes archives into dir and posts them to transcriptChannel.
type Exporter struct {
	source            Source
	dir               string
	transcriptChannel string
	now               func() time.Time
	log               *logrus.Entry
}

// NewExporter creates an exporter.
func NewExporter(source Source, dir, transcriptChannel string) *Exporter {
	return &Exporter{
		source:            source,
		dir:               dir,
		transcriptChannel: transcriptChannel,
		now:               time.Now,
		log:               logging.For("export"),
	}
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Export archives every channel under label. The archive is kept on disk even
// if posting it fails.
func (e *Exporter) Export(ctx context.Context, label string, channels []Channel) (Result, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create export directory: %w", err)
	}

	name := fmt.Sprintf("transcript_%s_%s.jsonl.zst",
		unsafeFileChars.ReplaceAllString(label, "_"),
		e.now().UTC().Format("20060102T150405Z"))
	res := Result{Path: filepath.Join(e.dir, name), Channels: len(channels)}

	f, err := os.Create(res.Path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create archive: %w", err)
	}

	n, err := e.write(ctx, f, channels)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(res.Path)
		return Result{}, err
	}
	res.Messages = n

	archive, err := os.Open(res.Path)
	if err != nil {
		return res, fmt.Errorf("failed to reopen archive: %w", err)
	}
	defer archive.Close()

	content := fmt.Sprintf("Transcript for %s (%d channels, %d messages)", label, res.Channels, res.Messages)
	res.MessageID, err = e.source.SendFile(ctx, e.transcriptChannel, content, name, archive)
	if err != nil {
		return res, fmt.Errorf("archive written to %s but upload failed: %w", res.Path, err)
	}

	logging.LogEvent(e.log, "transcript_exported", logrus.Fields{
		"label":    label,
		"path":     res.Path,
		"channels": res.Channels,
		"messages": res.Messages,
	})
	return res, nil
}

func (e *Exporter) write(ctx context.Context, w io.Writer, channels []Channel) (int, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	enc := json.NewEncoder(zw)

	var count int
	for _, ch := range channels {
		messages, err := e.source.ChannelMessages(ctx, ch.ID)
		if err != nil {
			zw.Close()
			return 0, fmt.Errorf("failed to read history of #%s: %w", ch.Name, err)
		}
		for _, m := range messages {
			if err := enc.Encode(Record{Channel: ch.Name, Message: m}); err != nil {
				zw.Close()
				return 0, fmt.Errorf("failed to write archive: %w", err)
			}
			count++
		}
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish archive: %w", err)
	}
	return count, nil
}

// ReadArchive decodes every record of an archive.
func ReadArchive(r io.Reader) ([]Record, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	var records []Record
	dec := json.NewDecoder(zr)
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode archive record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
