package router

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/blake3"

	"github.com/dyluth/ctfboard/internal/store"
)

// NukeCode is the confirmation code for deleting a category. It changes when
// the category is renamed or moved.
func NukeCode(categoryName string, position int) string {
	sum := blake3.Sum256([]byte(categoryName + strconv.Itoa(position)))
	return hex.EncodeToString(sum[:])
}

func (r *Router) handleNuke(ctx context.Context, req Request, resp Responder) error {
	cat, err := r.deps.Channels.Channel(ctx, req.Options.String("category"))
	if err != nil {
		return fmt.Errorf("failed to look up category: %w", err)
	}
	if !cat.IsCategory {
		return replyEphemeral(ctx, resp, "That's not a category, buddy...")
	}

	code := NukeCode(cat.Name, cat.Position)
	if req.Options.String("confirm") != code {
		return replyEphemeral(ctx, resp,
			"Are you ***REALLY*** sure you performed the /export for %s?? If so, use this as confirmation code: %s",
			cat.Name, code)
	}
	if err := resp.Defer(ctx, false); err != nil {
		return err
	}

	channels, err := r.deps.Channels.CategoryChannels(ctx, cat.ID)
	if err != nil {
		return fmt.Errorf("failed to list channels of %s: %w", cat.Name, err)
	}
	category := strings.ToLower(cat.Name)
	for _, ch := range channels {
		reason := fmt.Sprintf("Nuked by %s with #%s", req.Invoker.Name, cat.Name)
		if err := r.deps.Channels.DeleteChannel(ctx, ch.ID, reason); err != nil {
			return fmt.Errorf("failed to delete #%s: %w", ch.Name, err)
		}
		// Channels that never made it onto the board are fine to skip.
		_ = r.board.RemoveChallenge(category, r.boardKey(ch.Name))
	}
	if err := r.deps.Channels.DeleteCategory(ctx, cat.ID, "Nuked by "+req.Invoker.Name); err != nil {
		return fmt.Errorf("failed to delete category %s: %w", cat.Name, err)
	}

	r.emit(ctx, req, store.Event{Kind: store.EventNuked, Category: category, Detail: fmt.Sprintf("%d channels", len(channels))})
	return reply(ctx, resp, "Category %s was nuked on request of %s", cat.Name, req.Invoker.Name)
}

func (r *Router) handleStats(ctx context.Context, _ Request, resp Responder) error {
	channels, err := r.deps.Channels.AllChannels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}
	var categories int
	for _, ch := range channels {
		if ch.IsCategory {
			categories++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Channels: %d/%d, %d left\nCategories: %d",
		len(channels), r.cfg.ChannelLimit, r.cfg.ChannelLimit-len(channels), categories)

	if r.started.IsZero() {
		b.WriteString("\nNo CTF running.")
		return reply(ctx, resp, "%s", b.String())
	}

	s := r.board.Stats()
	fmt.Fprintf(&b, "\nChallenges: %d solved of %d, %d being worked on", s.Solved, s.Challenges, s.Assigned)
	if s.Vulns > 0 {
		fmt.Fprintf(&b, "\nVulns: %d patched, %d exploited of %d", s.Patched, s.Exploited, s.Vulns)
	}
	fmt.Fprintf(&b, "\nStarted %s (%s)", humanize.RelTime(r.started, r.now(), "ago", "from now"), r.board.Mode())
	return reply(ctx, resp, "%s", b.String())
}

func (r *Router) handlePing(ctx context.Context, _ Request, resp Responder) error {
	return reply(ctx, resp, "Pong!")
}
