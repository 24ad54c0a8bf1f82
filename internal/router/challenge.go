package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/ctfboard/pkg/board"
)

const notAChallenge = "This command only works in a challenge channel."

// challengeRef locates the board entry of a challenge channel.
type challengeRef struct {
	channel  Channel
	category string
	name     string
}

// challengeFor resolves the channel a command was issued in. ok is false when
// the channel does not sit under one of the board's categories.
func (r *Router) challengeFor(ctx context.Context, channelID string) (challengeRef, bool, error) {
	ch, err := r.deps.Channels.Channel(ctx, channelID)
	if err != nil {
		return challengeRef{}, false, fmt.Errorf("failed to look up channel: %w", err)
	}
	if ch.ParentID == "" {
		return challengeRef{}, false, nil
	}
	parent, err := r.deps.Channels.Channel(ctx, ch.ParentID)
	if err != nil {
		return challengeRef{}, false, fmt.Errorf("failed to look up category: %w", err)
	}
	category := strings.ToLower(parent.Name)
	if !r.board.HasCategory(category) {
		return challengeRef{}, false, nil
	}
	return challengeRef{channel: ch, category: category, name: r.boardKey(ch.Name)}, true, nil
}

// boardKey maps a channel name to its challenge name. The solved prefix is a
// display convention only; the board's solved flag is authoritative.
func (r *Router) boardKey(channelName string) string {
	return strings.TrimPrefix(channelName, r.cfg.SolvedPrefix)
}

// boardError answers the invoker for the board's own lookup and validation
// errors and passes anything else through.
func boardError(ctx context.Context, resp Responder, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, board.ErrUnknownCategory), errors.Is(err, board.ErrUnknownChallenge):
		return replyEphemeral(ctx, resp, notAChallenge)
	case errors.Is(err, board.ErrInvalidName):
		return replyEphemeral(ctx, resp, "That name cannot be shown on the board: %v", err)
	default:
		return err
	}
}
