package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dyluth/ctfboard/internal/ctfnote"
)

const notesDisabled = "The CTFNote integration is disabled."

const notLinked = "This channel is not linked to a CTFNote task. Use /ctfnote_fixup_channel first."

// linkTask creates or finds the task for a challenge channel and records the
// reference in the channel topic.
func (r *Router) linkTask(ctx context.Context, ch Channel, ctfID int64, category, name string) error {
	var ref ctfnote.TaskRef
	err := r.noteCall("upsert_task", func() error {
		var err error
		ref, err = r.deps.Notes.UpsertTask(ctx, ctfID, category, name)
		return err
	})
	if err != nil {
		return err
	}
	if err := r.deps.Channels.SetTopic(ctx, ch.ID, ctfnote.WithTaskRef(ch.Topic, ref)); err != nil {
		return fmt.Errorf("task %s created but channel topic not updated: %w", ref, err)
	}
	return nil
}

func (r *Router) setFlag(ctx context.Context, ch Channel, flag string) error {
	ref, ok := ctfnote.ParseTaskRef(ch.Topic)
	if !ok {
		return errors.New("channel is not linked to a CTFNote task")
	}
	var flagPtr *string
	if flag != "" {
		flagPtr = &flag
	}
	return r.noteCall("set_flag", func() error {
		return r.deps.Notes.SetFlag(ctx, ref, flagPtr)
	})
}

func (r *Router) noteCall(op string, fn func() error) error {
	err := fn()
	r.deps.Metrics.ObserveNoteSync(op, err)
	return err
}

// linkedTask resolves the task of the channel a command was issued in.
func (r *Router) linkedTask(ctx context.Context, req Request, resp Responder) (ctfnote.TaskRef, bool, error) {
	ch, err := r.deps.Channels.Channel(ctx, req.ChannelID)
	if err != nil {
		return ctfnote.TaskRef{}, false, fmt.Errorf("failed to look up channel: %w", err)
	}
	ref, ok := ctfnote.ParseTaskRef(ch.Topic)
	if !ok {
		return ctfnote.TaskRef{}, false, replyEphemeral(ctx, resp, notLinked)
	}
	return ref, true, nil
}

func (r *Router) handleNoteFixup(ctx context.Context, req Request, resp Responder) error {
	if r.deps.Notes == nil {
		return replyEphemeral(ctx, resp, notesDisabled)
	}
	ref, ok, err := r.challengeFor(ctx, req.ChannelID)
	if err != nil {
		return err
	}
	if !ok {
		return replyEphemeral(ctx, resp, notAChallenge)
	}
	if err := resp.Defer(ctx, true); err != nil {
		return err
	}

	ctfID, _ := req.Options.Int("ctfid")
	if err := r.linkTask(ctx, ref.channel, ctfID, ref.category, ref.name); err != nil {
		return fmt.Errorf("failed to link channel to CTFNote: %w", err)
	}
	return replyEphemeral(ctx, resp, "Linked this channel to CTFNote.")
}

func (r *Router) handleNoteAuth(ctx context.Context, req Request, resp Responder) error {
	if r.deps.Notes == nil {
		return replyEphemeral(ctx, resp, notesDisabled)
	}
	r.deps.Notes.UpdateLogin(req.Options.String("url"), req.Options.String("adminlogin"), req.Options.String("adminpass"))
	r.log.WithField("invoker", req.Invoker.Name).Info("CTFNote login info updated")
	return replyEphemeral(ctx, resp, "Updated CTFNote login info.")
}

func (r *Router) handleNoteAssignLead(ctx context.Context, req Request, resp Responder) error {
	if r.deps.Notes == nil {
		return replyEphemeral(ctx, resp, notesDisabled)
	}
	player, ok := req.Options.Member("playername")
	if !ok {
		return replyEphemeral(ctx, resp, "Pick a player to lead.")
	}
	ref, ok, err := r.linkedTask(ctx, req, resp)
	if !ok {
		return err
	}

	err = r.noteCall("assign_lead", func() error {
		return r.deps.Notes.AssignLead(ctx, ref, player.Name)
	})
	if errors.Is(err, ctfnote.ErrUnknownProfile) {
		return replyEphemeral(ctx, resp, "%s has no CTFNote account. /ctfnote_register_myself can create one.", player.Name)
	}
	if err != nil {
		return err
	}
	return reply(ctx, resp, "%s now leads this challenge", player.Name)
}

func (r *Router) handleNoteRegister(ctx context.Context, req Request, resp Responder) error {
	if r.deps.Notes == nil {
		return replyEphemeral(ctx, resp, notesDisabled)
	}
	password := req.Options.String("password")
	if password == "" {
		password = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	err := r.noteCall("register", func() error {
		return r.deps.Notes.Register(ctx, req.Invoker.Name, password)
	})
	if err != nil {
		return err
	}
	return replyEphemeral(ctx, resp, "Registered CTFNote account `%s` with password `%s`", req.Invoker.Name, password)
}

func (r *Router) handleNoteWhoLeads(ctx context.Context, req Request, resp Responder) error {
	if r.deps.Notes == nil {
		return replyEphemeral(ctx, resp, notesDisabled)
	}
	ref, ok, err := r.linkedTask(ctx, req, resp)
	if !ok {
		return err
	}

	var lead string
	err = r.noteCall("who_leads", func() error {
		var err error
		lead, err = r.deps.Notes.WhoIsLead(ctx, ref)
		return err
	})
	if err != nil {
		return err
	}
	if lead == "" {
		return reply(ctx, resp, "Nobody leads this challenge yet.")
	}
	return reply(ctx, resp, "%s leads this challenge", lead)
}

func (r *Router) handleNoteImport(ctx context.Context, req Request, resp Responder) error {
	if r.deps.Notes == nil {
		return replyEphemeral(ctx, resp, notesDisabled)
	}
	id, err := ctfnote.ParseCTFTimeID(req.Options.String("link"))
	if err != nil {
		return replyEphemeral(ctx, resp, "%v", err)
	}
	if err := resp.Defer(ctx, false); err != nil {
		return err
	}

	var ctfID int64
	err = r.noteCall("import_ctf", func() error {
		var err error
		ctfID, err = r.deps.Notes.ImportCTF(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	return reply(ctx, resp, "Imported ctftime event %d as CTFNote CTF %d", id, ctfID)
}
