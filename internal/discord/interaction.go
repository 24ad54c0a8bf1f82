package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/dyluth/ctfboard/internal/router"
)

// RequestFromInteraction converts a slash command interaction into a router
// request. User options resolve to members using the interaction's resolved
// data; channel options carry the channel ID.
func RequestFromInteraction(i *discordgo.Interaction) (router.Request, error) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return router.Request{}, fmt.Errorf("unsupported interaction type %s", i.Type)
	}
	data := i.ApplicationCommandData()

	req := router.Request{
		Command:   data.Name,
		ChannelID: i.ChannelID,
		Invoker:   invoker(i),
		Options:   router.Options{},
	}
	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			req.Options[opt.Name] = opt.StringValue()
		case discordgo.ApplicationCommandOptionInteger:
			req.Options[opt.Name] = opt.IntValue()
		case discordgo.ApplicationCommandOptionBoolean:
			req.Options[opt.Name] = opt.BoolValue()
		case discordgo.ApplicationCommandOptionChannel:
			id, _ := opt.Value.(string)
			req.Options[opt.Name] = id
		case discordgo.ApplicationCommandOptionUser:
			id, _ := opt.Value.(string)
			req.Options[opt.Name] = resolvedMember(data.Resolved, id)
		default:
			return router.Request{}, fmt.Errorf("option %s has unsupported type %s", opt.Name, opt.Type)
		}
	}
	return req, nil
}

func invoker(i *discordgo.Interaction) router.Member {
	if i.Member != nil && i.Member.User != nil {
		return router.Member{ID: i.Member.User.ID, Name: i.Member.User.Username, Roles: i.Member.Roles}
	}
	if i.User != nil {
		return router.Member{ID: i.User.ID, Name: i.User.Username}
	}
	return router.Member{}
}

func resolvedMember(res *discordgo.ApplicationCommandInteractionDataResolved, id string) router.Member {
	m := router.Member{ID: id, Name: id}
	if res == nil {
		return m
	}
	if u, ok := res.Users[id]; ok && u != nil {
		m.Name = u.Username
	}
	if gm, ok := res.Members[id]; ok && gm != nil {
		m.Roles = gm.Roles
	}
	return m
}

// Responder answers one interaction. The first reply is the interaction
// response unless it was deferred; every later reply is a follow-up.
type Responder struct {
	s *discordgo.Session
	i *discordgo.Interaction

	mu        sync.Mutex
	responded bool
}

var _ router.Responder = (*Responder)(nil)

// NewResponder creates a Responder for an interaction.
func NewResponder(s *discordgo.Session, i *discordgo.Interaction) *Responder {
	return &Responder{s: s, i: i}
}

func flags(ephemeral bool) discordgo.MessageFlags {
	if ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

// Defer acknowledges the interaction so the command may run past Discord's
// three second response window. Deferring twice is a no-op.
func (r *Responder) Defer(ctx context.Context, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responded {
		return nil
	}
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags(ephemeral)},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to defer interaction: %w", err)
	}
	r.responded = true
	return nil
}

// Reply sends a reply, pinning it when asked.
func (r *Responder) Reply(ctx context.Context, resp router.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		msg *discordgo.Message
		err error
	)
	if !r.responded {
		err = r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: resp.Content, Flags: flags(resp.Ephemeral)},
		}, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to respond to interaction: %w", err)
		}
		r.responded = true
		if resp.Pin {
			msg, err = r.s.InteractionResponse(r.i, discordgo.WithContext(ctx))
			if err != nil {
				return fmt.Errorf("failed to fetch interaction response: %w", err)
			}
		}
	} else {
		msg, err = r.s.FollowupMessageCreate(r.i, true, &discordgo.WebhookParams{
			Content: resp.Content,
			Flags:   flags(resp.Ephemeral),
		}, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to send follow-up: %w", err)
		}
	}

	if resp.Pin && msg != nil {
		if err := r.s.ChannelMessagePin(msg.ChannelID, msg.ID, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("failed to pin reply: %w", err)
		}
	}
	return nil
}
