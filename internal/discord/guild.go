// Package discord binds the router, publisher and exporter to a Discord guild
// through discordgo.
package discord

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/dyluth/ctfboard/internal/export"
	"github.com/dyluth/ctfboard/internal/publisher"
	"github.com/dyluth/ctfboard/internal/router"
)

// bottomPosition pushes a channel below its siblings.
const bottomPosition = 999

// historyPageSize is the largest page the messages endpoint returns.
const historyPageSize = 100

// ArchivePrefix prefixes archive category names.
const ArchivePrefix = "Archive-"

// Guild performs channel and message operations in one guild over REST.
type Guild struct {
	s       *discordgo.Session
	guildID string

	// archiveMu serialises find-or-create of archive categories.
	archiveMu sync.Mutex
}

var (
	_ router.ChannelManager = (*Guild)(nil)
	_ publisher.Surface     = (*Guild)(nil)
	_ export.Source         = (*Guild)(nil)
)

// NewGuild creates a Guild.
func NewGuild(s *discordgo.Session, guildID string) *Guild {
	return &Guild{s: s, guildID: guildID}
}

func toChannel(c *discordgo.Channel) router.Channel {
	return router.Channel{
		ID:         c.ID,
		Name:       c.Name,
		ParentID:   c.ParentID,
		Topic:      c.Topic,
		Position:   c.Position,
		IsCategory: c.Type == discordgo.ChannelTypeGuildCategory,
	}
}

// CreateChannel creates a text channel at the top of the named category.
func (g *Guild) CreateChannel(ctx context.Context, category, name string) (router.Channel, error) {
	cat, err := g.categoryByName(ctx, category)
	if err != nil {
		return router.Channel{}, err
	}
	if cat == nil {
		return router.Channel{}, fmt.Errorf("category %q does not exist in the guild", category)
	}

	created, err := g.s.GuildChannelCreateComplex(g.guildID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		Position: 0,
		ParentID: cat.ID,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return router.Channel{}, err
	}
	return toChannel(created), nil
}

// RenameChannel renames a channel and moves it to the bottom of its category.
func (g *Guild) RenameChannel(ctx context.Context, channelID, name string) error {
	position := bottomPosition
	_, err := g.s.ChannelEdit(channelID, &discordgo.ChannelEdit{
		Name:     name,
		Position: &position,
	}, discordgo.WithContext(ctx))
	return err
}

// MoveToArchiveCategory moves a channel under Archive-<archiveName>.
func (g *Guild) MoveToArchiveCategory(ctx context.Context, channelID, archiveName string) error {
	cat, err := g.archiveCategory(ctx, ArchivePrefix+archiveName)
	if err != nil {
		return err
	}
	_, err = g.s.ChannelEdit(channelID, &discordgo.ChannelEdit{ParentID: cat.ID}, discordgo.WithContext(ctx))
	return err
}

func (g *Guild) archiveCategory(ctx context.Context, name string) (*discordgo.Channel, error) {
	g.archiveMu.Lock()
	defer g.archiveMu.Unlock()

	cat, err := g.categoryByName(ctx, name)
	if err != nil || cat != nil {
		return cat, err
	}
	cat, err = g.s.GuildChannelCreateComplex(g.guildID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildCategory,
		Position: bottomPosition,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create category %s: %w", name, err)
	}
	return cat, nil
}

// DeleteChannel deletes a channel, recording reason in the audit log.
func (g *Guild) DeleteChannel(ctx context.Context, channelID, reason string) error {
	_, err := g.s.ChannelDelete(channelID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return err
}

// DeleteCategory deletes a category. Its channels must already be gone.
func (g *Guild) DeleteCategory(ctx context.Context, categoryID, reason string) error {
	return g.DeleteChannel(ctx, categoryID, reason)
}

// SetTopic replaces a channel topic.
func (g *Guild) SetTopic(ctx context.Context, channelID, topic string) error {
	_, err := g.s.ChannelEdit(channelID, &discordgo.ChannelEdit{Topic: topic}, discordgo.WithContext(ctx))
	return err
}

// Channel fetches one channel.
func (g *Guild) Channel(ctx context.Context, channelID string) (router.Channel, error) {
	c, err := g.s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return router.Channel{}, err
	}
	return toChannel(c), nil
}

// Categories lists the guild's categories by position.
func (g *Guild) Categories(ctx context.Context) ([]router.Channel, error) {
	return g.channels(ctx, func(c *discordgo.Channel) bool {
		return c.Type == discordgo.ChannelTypeGuildCategory
	})
}

// CategoryChannels lists the text channels of a category by position.
func (g *Guild) CategoryChannels(ctx context.Context, categoryID string) ([]router.Channel, error) {
	return g.channels(ctx, func(c *discordgo.Channel) bool {
		return c.ParentID == categoryID && c.Type == discordgo.ChannelTypeGuildText
	})
}

// AllChannels lists every channel and category of the guild.
func (g *Guild) AllChannels(ctx context.Context) ([]router.Channel, error) {
	return g.channels(ctx, func(*discordgo.Channel) bool { return true })
}

func (g *Guild) channels(ctx context.Context, keep func(*discordgo.Channel) bool) ([]router.Channel, error) {
	all, err := g.s.GuildChannels(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list guild channels: %w", err)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Position < all[j].Position })

	out := make([]router.Channel, 0, len(all))
	for _, c := range all {
		if keep(c) {
			out = append(out, toChannel(c))
		}
	}
	return out, nil
}

func (g *Guild) categoryByName(ctx context.Context, name string) (*discordgo.Channel, error) {
	all, err := g.s.GuildChannels(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list guild channels: %w", err)
	}
	for _, c := range all {
		if c.Type == discordgo.ChannelTypeGuildCategory && c.Name == name {
			return c, nil
		}
	}
	return nil, nil
}

// LastMessage returns the newest message of a channel, or nil if it is empty.
func (g *Guild) LastMessage(ctx context.Context, channelID string) (*publisher.Message, error) {
	msgs, err := g.s.ChannelMessages(channelID, 1, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &publisher.Message{ID: msgs[0].ID, Content: msgs[0].Content}, nil
}

// SendMessage posts a message and returns its ID.
func (g *Guild) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	msg, err := g.s.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// EditMessage replaces the content of a message.
func (g *Guild) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	_, err := g.s.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx))
	return err
}

// ChannelMessages returns the full history of a channel, oldest first.
func (g *Guild) ChannelMessages(ctx context.Context, channelID string) ([]export.Message, error) {
	var (
		out    []export.Message
		before string
	)
	for {
		page, err := g.s.ChannelMessages(channelID, historyPageSize, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		for _, m := range page {
			out = append(out, toExportMessage(m))
		}
		if len(page) < historyPageSize {
			break
		}
		before = page[len(page)-1].ID
	}

	// Pages come newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func toExportMessage(m *discordgo.Message) export.Message {
	msg := export.Message{ID: m.ID, Content: m.Content, Timestamp: m.Timestamp}
	if m.Author != nil {
		msg.Author = m.Author.Username
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, a.URL)
	}
	return msg
}

// SendFile uploads a file with a message.
func (g *Guild) SendFile(ctx context.Context, channelID, content, filename string, r io.Reader) (string, error) {
	msg, err := g.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		Files: []*discordgo.File{{
			Name:        filename,
			ContentType: "application/zstd",
			Reader:      r,
		}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}
