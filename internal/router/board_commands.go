package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/ctfboard/internal/export"
	"github.com/dyluth/ctfboard/internal/publisher"
	"github.com/dyluth/ctfboard/internal/store"
	"github.com/dyluth/ctfboard/pkg/board"
)

func (r *Router) handleStart(ctx context.Context, req Request, resp Responder) error {
	mode, err := board.ParseMode(req.Options.String("ctf_type"))
	if err != nil {
		return replyEphemeral(ctx, resp, "Unknown CTF type %q, use Jeopardy or AD.", req.Options.String("ctf_type"))
	}
	if err := resp.Defer(ctx, false); err != nil {
		return err
	}

	r.deps.Display.Stop()
	r.board.Reset(mode, r.cfg.Categories)
	r.started = r.now()

	seeded, err := r.deps.Display.Seed(ctx)
	if err != nil {
		r.log.WithError(err).Error("Failed to load previous board")
	}
	r.deps.Display.Start(r.lifetime)
	r.emit(ctx, req, store.Event{Kind: store.EventStarted, Detail: string(mode)})

	msg := fmt.Sprintf("CTF started, type: %s", mode)
	if seeded.Source != "" && seeded.Source != publisher.SourceNone {
		msg += fmt.Sprintf("\nRestored %d challenges from the %s.", r.board.Stats().Challenges, seeded.Source)
	}
	if len(seeded.Dropped) > 0 {
		msg += fmt.Sprintf("\nIgnored unconfigured categories: %s", strings.Join(seeded.Dropped, ", "))
	}
	return reply(ctx, resp, "%s", msg)
}

func (r *Router) handleChal(ctx context.Context, req Request, resp Responder) error {
	category := req.Options.String("category")
	name := req.Options.String("challenge")
	if !r.board.HasCategory(category) {
		return replyEphemeral(ctx, resp, "Unknown category %q. Did you /start the CTF?", category)
	}

	created, err := r.deps.Channels.CreateChannel(ctx, category, name)
	if err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}
	// The guild normalises channel names; the board follows the channel.
	if err := r.board.AddChallenge(category, created.Name); err != nil {
		// A channel without a board entry would reject every later command.
		if delErr := r.deps.Channels.DeleteChannel(ctx, created.ID, "challenge name rejected by the board"); delErr != nil {
			r.log.WithError(delErr).WithField("channel", created.ID).Warn("Failed to remove rejected challenge channel")
		}
		return boardError(ctx, resp, err)
	}
	r.emit(ctx, req, store.Event{Kind: store.EventChallengeAdded, Category: category, Challenge: created.Name})

	if err := reply(ctx, resp, "The channel for <#%s> (%s) was created", created.ID, category); err != nil {
		return err
	}

	if r.deps.Notes == nil {
		return nil
	}
	ctfID, _ := req.Options.Int("ctfid")
	if err := r.linkTask(ctx, created, ctfID, category, name); err != nil {
		r.warn(ctx, resp, "Failed to create CTFNote task", err)
	}
	return nil
}

func (r *Router) handleSolved(ctx context.Context, req Request, resp Responder) error {
	ref, ok, err := r.challengeFor(ctx, req.ChannelID)
	if err != nil {
		return err
	}
	if !ok {
		return replyEphemeral(ctx, resp, notAChallenge)
	}
	if err := resp.Defer(ctx, false); err != nil {
		return err
	}

	solved, err := r.board.IsSolved(ref.category, ref.name)
	if err != nil {
		return boardError(ctx, resp, err)
	}
	if !solved {
		if err := r.board.MarkSolved(ref.category, ref.name); err != nil {
			return boardError(ctx, resp, err)
		}
		r.emit(ctx, req, store.Event{Kind: store.EventSolved, Category: ref.category, Challenge: ref.name})

		if !strings.HasPrefix(ref.channel.Name, r.cfg.SolvedPrefix) {
			if err := r.deps.Channels.RenameChannel(ctx, ref.channel.ID, r.cfg.SolvedPrefix+ref.channel.Name); err != nil {
				r.warn(ctx, resp, "Failed to rename channel", err)
			}
		}
	}

	flag := req.Options.String("flag")
	if r.deps.Notes != nil {
		if err := r.setFlag(ctx, ref.channel, flag); err != nil {
			r.warn(ctx, resp, "Failed to store flag in CTFNote", err)
		}
	}

	if flag == "" {
		return reply(ctx, resp, "removed flag.")
	}
	return resp.Reply(ctx, Response{Content: fmt.Sprintf("The flag: `%s`", flag), Pin: true})
}

func (r *Router) handleVuln(ctx context.Context, req Request, resp Responder) error {
	return r.withChallenge(ctx, req, resp, func(ref challengeRef) error {
		vuln := req.Options.String("vuln_name")
		if err := r.board.AddVuln(ref.category, ref.name, vuln); err != nil {
			return boardError(ctx, resp, err)
		}
		r.emit(ctx, req, store.Event{Kind: store.EventVulnAdded, Category: ref.category, Challenge: ref.name, Vuln: vuln})
		return reply(ctx, resp, "Added vuln: %s", vuln)
	})
}

func (r *Router) handlePatch(ctx context.Context, req Request, resp Responder) error {
	return r.markVuln(ctx, req, resp, store.EventVulnPatched, "patched", r.board.MarkVulnPatched)
}

func (r *Router) handleExploit(ctx context.Context, req Request, resp Responder) error {
	return r.markVuln(ctx, req, resp, store.EventVulnExploited, "exploited", r.board.MarkVulnExploited)
}

func (r *Router) markVuln(ctx context.Context, req Request, resp Responder, kind store.EventKind, verb string,
	mark func(category, challenge, vuln string) error) error {
	return r.withChallenge(ctx, req, resp, func(ref challengeRef) error {
		vuln := req.Options.String("vuln_name")
		err := mark(ref.category, ref.name, vuln)
		if errors.Is(err, board.ErrUnknownVuln) {
			known, _ := r.board.VulnNames(ref.category, ref.name)
			return reply(ctx, resp, "Vuln %s not found. Currently marked vulns: %s", vuln, strings.Join(known, ", "))
		}
		if err != nil {
			return boardError(ctx, resp, err)
		}
		r.emit(ctx, req, store.Event{Kind: kind, Category: ref.category, Challenge: ref.name, Vuln: vuln})
		return reply(ctx, resp, "Marked vuln %s as %s", vuln, verb)
	})
}

func (r *Router) handleAssign(ctx context.Context, req Request, resp Responder) error {
	return r.withChallenge(ctx, req, resp, func(ref challengeRef) error {
		player, ok := req.Options.Member("playername")
		if !ok {
			return replyEphemeral(ctx, resp, "Pick a player to assign.")
		}
		if err := r.board.Assign(ref.category, ref.name, player.Name); err != nil {
			return boardError(ctx, resp, err)
		}
		r.emit(ctx, req, store.Event{Kind: store.EventAssigned, Category: ref.category, Challenge: ref.name, Player: player.Name})
		return reply(ctx, resp, "%s is now working on this challenge", player.Name)
	})
}

func (r *Router) handleUnassign(ctx context.Context, req Request, resp Responder) error {
	return r.withChallenge(ctx, req, resp, func(ref challengeRef) error {
		player, ok := req.Options.Member("playername")
		if !ok {
			return replyEphemeral(ctx, resp, "Pick a player to unassign.")
		}
		if err := r.board.Unassign(ref.category, ref.name, player.Name); err != nil {
			return boardError(ctx, resp, err)
		}
		r.emit(ctx, req, store.Event{Kind: store.EventUnassigned, Category: ref.category, Challenge: ref.name, Player: player.Name})
		return reply(ctx, resp, "%s is no longer working on this challenge", player.Name)
	})
}

func (r *Router) withChallenge(ctx context.Context, req Request, resp Responder, fn func(challengeRef) error) error {
	ref, ok, err := r.challengeFor(ctx, req.ChannelID)
	if err != nil {
		return err
	}
	if !ok {
		return replyEphemeral(ctx, resp, notAChallenge)
	}
	return fn(ref)
}

func (r *Router) handleArchive(ctx context.Context, req Request, resp Responder) error {
	name := req.Options.String("name")
	if err := resp.Defer(ctx, false); err != nil {
		return err
	}

	categories, err := r.deps.Channels.Categories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}
	var moved int
	for _, cat := range categories {
		if !r.isBoardCategory(cat.Name) {
			continue
		}
		channels, err := r.deps.Channels.CategoryChannels(ctx, cat.ID)
		if err != nil {
			return fmt.Errorf("failed to list channels of %s: %w", cat.Name, err)
		}
		for _, ch := range channels {
			if err := r.deps.Channels.MoveToArchiveCategory(ctx, ch.ID, name); err != nil {
				return fmt.Errorf("failed to archive #%s after moving %d channels: %w", ch.Name, moved, err)
			}
			moved++
		}
	}

	r.board.Clear()
	r.emit(ctx, req, store.Event{Kind: store.EventArchived, Detail: name})
	if _, err := r.deps.Display.PublishNow(ctx); err != nil {
		r.warn(ctx, resp, "Failed to publish the cleared board", err)
	}
	r.deps.Display.Stop()

	return reply(ctx, resp, "Archived %s", name)
}

func (r *Router) handleExport(ctx context.Context, req Request, resp Responder) error {
	if r.deps.Exporter == nil {
		return replyEphemeral(ctx, resp, "Exports are disabled.")
	}
	cat, err := r.deps.Channels.Channel(ctx, req.Options.String("category"))
	if err != nil {
		return fmt.Errorf("failed to look up category: %w", err)
	}
	if !cat.IsCategory {
		r.log.WithField("channel", cat.Name).Info("Tried exporting non category channel")
		return reply(ctx, resp, "Can only export categories, not normal channels!")
	}
	if err := resp.Defer(ctx, false); err != nil {
		return err
	}

	channels, err := r.deps.Channels.CategoryChannels(ctx, cat.ID)
	if err != nil {
		return fmt.Errorf("failed to list channels of %s: %w", cat.Name, err)
	}
	targets := make([]export.Channel, 0, len(channels))
	for _, ch := range channels {
		targets = append(targets, export.Channel{ID: ch.ID, Name: ch.Name})
	}

	res, err := r.deps.Exporter.Export(ctx, cat.Name, targets)
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", cat.Name, err)
	}
	return reply(ctx, resp, "Transcript for %s created: %d messages from %d channels", cat.Name, res.Messages, res.Channels)
}

func (r *Router) isBoardCategory(name string) bool {
	for _, c := range r.cfg.Categories {
		if c == strings.ToLower(name) {
			return true
		}
	}
	return false
}
