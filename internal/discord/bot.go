package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/dyluth/ctfboard/internal/logging"
	"github.com/dyluth/ctfboard/internal/router"
)

// DefaultCommandTimeout bounds a single command, including deferred work.
const DefaultCommandTimeout = 2 * time.Minute

// ErrNotConnected is returned by Check while the gateway session is down.
var ErrNotConnected = errors.New("discord gateway not connected")

// Handler runs router requests.
type Handler interface {
	Handle(ctx context.Context, req router.Request, resp router.Responder) error
}

// NewSession creates a bot session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	return s, nil
}

// Bot connects a session to a Handler.
type Bot struct {
	s        *discordgo.Session
	appID    string
	guildID  string
	commands []*discordgo.ApplicationCommand
	handler  Handler
	timeout  time.Duration
	log      *logrus.Entry

	lifetime context.Context
	removeFn func()
}

// NewBot creates a Bot. Interactions are handled under lifetime with a per
// command timeout.
func NewBot(lifetime context.Context, s *discordgo.Session, appID, guildID string, commands []*discordgo.ApplicationCommand, handler Handler) *Bot {
	return &Bot{
		s:        s,
		appID:    appID,
		guildID:  guildID,
		commands: commands,
		handler:  handler,
		timeout:  DefaultCommandTimeout,
		log:      logging.For("discord"),
		lifetime: lifetime,
	}
}

// Open registers the interaction handler, connects the gateway and installs
// the guild's slash commands.
func (b *Bot) Open(ctx context.Context) error {
	b.removeFn = b.s.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		b.onInteraction(ic.Interaction)
	})
	b.s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logging.LogEvent(b.log, "gateway_ready", logrus.Fields{"user": r.User.Username, "guilds": len(r.Guilds)})
	})

	if err := b.s.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	if _, err := b.s.ApplicationCommandBulkOverwrite(b.appID, b.guildID, b.commands, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to register slash commands: %w", err)
	}
	logging.LogEvent(b.log, "commands_registered", logrus.Fields{"guild": b.guildID, "count": len(b.commands)})
	return nil
}

// Close disconnects the gateway.
func (b *Bot) Close() error {
	if b.removeFn != nil {
		b.removeFn()
	}
	return b.s.Close()
}

// Check reports whether the gateway is connected.
func (b *Bot) Check(context.Context) error {
	b.s.RLock()
	defer b.s.RUnlock()
	if !b.s.DataReady {
		return ErrNotConnected
	}
	return nil
}

func (b *Bot) onInteraction(i *discordgo.Interaction) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.GuildID != b.guildID {
		b.log.WithField("guild", i.GuildID).Debug("Ignoring interaction from another guild")
		return
	}

	ctx, cancel := context.WithTimeout(b.lifetime, b.timeout)
	defer cancel()

	resp := NewResponder(b.s, i)
	req, err := RequestFromInteraction(i)
	if err != nil {
		b.log.WithError(err).Warn("Failed to decode interaction")
		if replyErr := resp.Reply(ctx, router.Response{Content: "Command failed: " + err.Error(), Ephemeral: true}); replyErr != nil {
			b.log.WithError(replyErr).Warn("Failed to report decode failure")
		}
		return
	}
	if err := b.handler.Handle(ctx, req, resp); err != nil {
		b.log.WithError(err).WithField("command", req.Command).Debug("Command returned an error")
	}
}
