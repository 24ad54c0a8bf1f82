// Package publisher keeps the rendered status board visible in the transcript
// channel. It re-renders on a fixed interval, edits the channel's last message
// in place when it can, and mirrors every published text to Redis so the
// board can be restored after a restart.
package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dyluth/ctfboard/internal/logging"
	"github.com/dyluth/ctfboard/internal/metrics"
	"github.com/dyluth/ctfboard/internal/store"
	"github.com/dyluth/ctfboard/pkg/board"
)

// Message is a chat message as seen by the publisher.
type Message struct {
	ID      string
	Content string
}

// Surface is the chat channel the board is published to.
type Surface interface {
	// LastMessage returns the newest message of the channel, or nil if the
	// channel is empty.
	LastMessage(ctx context.Context, channelID string) (*Message, error)
	SendMessage(ctx context.Context, channelID, content string) (string, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
}

// Mirror stores the last published board text.
type Mirror interface {
	SaveBoard(ctx context.Context, text string) error
	LoadBoard(ctx context.Context) (string, error)
}

// Publish results, also used as metric labels.
const (
	ResultSent      = "sent"
	ResultEdited    = "edited"
	ResultUnchanged = "unchanged"
	ResultError     = "error"
)

// Seed sources.
const (
	SourceNone       = "none"
	SourceTranscript = "transcript"
	SourceMirror     = "mirror"
)

// Option configures a Publisher.
type Option func(*Publisher)

// WithMirror enables the Redis mirror.
func WithMirror(m Mirror) Option {
	return func(p *Publisher) { p.mirror = m }
}

// WithMetrics records publish and render metrics.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Publisher) { p.metrics = r }
}

// Publisher renders a StatusBoard into a single channel.
type Publisher struct {
	board     *board.StatusBoard
	surface   Surface
	channelID string
	interval  time.Duration
	mirror    Mirror
	metrics   *metrics.Recorder
	log       *logrus.Entry

	publishMu sync.Mutex
	lastText  string

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a publisher. Nothing is published until Start or PublishNow.
func New(sb *board.StatusBoard, surface Surface, channelID string, interval time.Duration, opts ...Option) *Publisher {
	p := &Publisher{
		board:     sb,
		surface:   surface,
		channelID: channelID,
		interval:  interval,
		log:       logging.For("publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SeedResult describes what Seed restored.
type SeedResult struct {
	Source  string
	Dropped []string
	Skipped []board.SkippedLine
}

// Seed restores challenges from the last board in the transcript channel,
// falling back to the mirror. The board must already be Reset to the
// configured categories.
func (p *Publisher) Seed(ctx context.Context) (SeedResult, error) {
	text, source, err := p.lastBoardText(ctx)
	if err != nil {
		return SeedResult{Source: SourceNone}, err
	}
	if source == SourceNone {
		return SeedResult{Source: SourceNone}, nil
	}

	parsed := board.Parse(text, p.board.Mode())
	for _, skipped := range parsed.Skipped {
		p.log.WithFields(logrus.Fields{
			"line": skipped.Line,
			"text": skipped.Text,
		}).WithError(skipped.Err).Warn("Skipped board line while seeding")
	}
	res := SeedResult{
		Source:  source,
		Dropped: p.board.Seed(parsed.Competition),
		Skipped: parsed.Skipped,
	}

	logging.LogEvent(p.log, "board_seeded", logrus.Fields{
		"source":  source,
		"dropped": res.Dropped,
		"skipped": len(res.Skipped),
	})
	return res, nil
}

func (p *Publisher) lastBoardText(ctx context.Context) (string, string, error) {
	msg, err := p.surface.LastMessage(ctx, p.channelID)
	if err != nil {
		p.log.WithError(err).Warn("Failed to read transcript channel, trying mirror")
	} else if msg != nil && board.LooksLikeBoard(msg.Content) {
		return msg.Content, SourceTranscript, nil
	}

	if p.mirror == nil {
		return "", SourceNone, nil
	}
	text, err := p.mirror.LoadBoard(ctx)
	if err != nil {
		if store.IsNotFound(err) {
			return "", SourceNone, nil
		}
		return "", SourceNone, err
	}
	return text, SourceMirror, nil
}

// PublishNow renders the board and publishes it if the text changed since the
// last successful publish. It returns one of the Result constants.
func (p *Publisher) PublishNow(ctx context.Context) (string, error) {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	start := time.Now()
	text := p.board.Render()
	p.metrics.ObserveRender(time.Since(start))

	if text == p.lastText {
		p.metrics.ObservePublish(ResultUnchanged)
		return ResultUnchanged, nil
	}

	result, err := p.publish(ctx, text)
	p.metrics.ObservePublish(result)
	if err != nil {
		return result, err
	}
	p.lastText = text

	if p.mirror != nil {
		if err := p.mirror.SaveBoard(ctx, text); err != nil {
			p.log.WithError(err).Warn("Failed to mirror board to Redis")
		}
	}
	return result, nil
}

func (p *Publisher) publish(ctx context.Context, text string) (string, error) {
	msg, err := p.surface.LastMessage(ctx, p.channelID)
	if err != nil {
		p.log.WithError(err).Debug("Failed to read last message, sending a new one")
	}
	if err == nil && msg != nil && board.LooksLikeBoard(msg.Content) {
		err := p.surface.EditMessage(ctx, p.channelID, msg.ID, text)
		if err == nil {
			return ResultEdited, nil
		}
		p.log.WithError(err).Debug("Failed to edit board message, sending a new one")
	}

	if _, err := p.surface.SendMessage(ctx, p.channelID, text); err != nil {
		return ResultError, err
	}
	return ResultSent, nil
}

// Start launches the publish loop. It publishes immediately, then on every
// interval until Stop is called or ctx is cancelled. Starting a running loop
// is a no-op.
func (p *Publisher) Start(ctx context.Context) {
	p.loopMu.Lock()
	defer p.loopMu.Unlock()
	if p.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done

	go p.loop(loopCtx, done)
	logging.LogEvent(p.log, "publish_loop_started", logrus.Fields{"interval": p.interval.String()})
}

// Stop halts the loop and waits for an in-flight publish to finish.
func (p *Publisher) Stop() {
	p.loopMu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logging.LogEvent(p.log, "publish_loop_stopped", nil)
}

// Running reports whether the loop is active.
func (p *Publisher) Running() bool {
	p.loopMu.Lock()
	defer p.loopMu.Unlock()
	return p.cancel != nil
}

func (p *Publisher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.PublishNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.log.WithError(err).Error("Failed to publish board")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
