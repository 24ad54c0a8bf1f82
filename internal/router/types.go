package router

import (
	"context"

	"github.com/dyluth/ctfboard/internal/ctfnote"
	"github.com/dyluth/ctfboard/internal/export"
	"github.com/dyluth/ctfboard/internal/publisher"
	"github.com/dyluth/ctfboard/internal/store"
)

// Command names.
const (
	CmdStart          = "start"
	CmdChal           = "chal"
	CmdSolved         = "solved"
	CmdVuln           = "vuln"
	CmdPatch          = "patch"
	CmdExploit        = "exploit"
	CmdAssign         = "assign"
	CmdUnassign       = "unassign"
	CmdArchive        = "archive"
	CmdExport         = "export"
	CmdNuke           = "nuke"
	CmdNoteFixup      = "ctfnote_fixup_channel"
	CmdNoteAuth       = "ctfnote_update_auth"
	CmdNoteAssignLead = "ctfnote_assign_lead"
	CmdNoteRegister   = "ctfnote_register_myself"
	CmdNoteWhoLeads   = "ctfnote_who_leads"
	CmdNoteImport     = "ctfnote_import"
	CmdStats          = "stats"
	CmdPing           = "ping"
)

// Member is a guild member as seen by the router.
type Member struct {
	ID    string
	Name  string
	Roles []string
}

// HasRole reports whether the member holds the role.
func (m Member) HasRole(roleID string) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Options holds resolved command options. Values are string, int64, bool or
// Member.
type Options map[string]any

// String returns a string option, or "" when absent.
func (o Options) String(name string) string {
	s, _ := o[name].(string)
	return s
}

// Int returns an integer option.
func (o Options) Int(name string) (int64, bool) {
	i, ok := o[name].(int64)
	return i, ok
}

// Member returns a user option.
func (o Options) Member(name string) (Member, bool) {
	m, ok := o[name].(Member)
	return m, ok
}

// Request is one slash command invocation.
type Request struct {
	Command   string
	ChannelID string
	Invoker   Member
	Options   Options
}

// Response is a reply to the invoker.
type Response struct {
	Content   string
	Ephemeral bool
	// Pin pins the reply in the channel it was sent to.
	Pin bool
}

// Responder delivers replies for one request. Reply may be called more than
// once; later calls become follow-up messages.
type Responder interface {
	Defer(ctx context.Context, ephemeral bool) error
	Reply(ctx context.Context, resp Response) error
}

// Channel describes a guild channel or category.
type Channel struct {
	ID         string
	Name       string
	ParentID   string
	Topic      string
	Position   int
	IsCategory bool
}

// ChannelManager manages the guild's channel layout.
type ChannelManager interface {
	// CreateChannel creates a text channel at the top of the named category.
	CreateChannel(ctx context.Context, category, name string) (Channel, error)
	// RenameChannel renames a channel and moves it to the bottom of its category.
	RenameChannel(ctx context.Context, channelID, name string) error
	// MoveToArchiveCategory moves a channel under Archive-<archiveName>,
	// creating that category on first use.
	MoveToArchiveCategory(ctx context.Context, channelID, archiveName string) error
	DeleteChannel(ctx context.Context, channelID, reason string) error
	DeleteCategory(ctx context.Context, categoryID, reason string) error
	SetTopic(ctx context.Context, channelID, topic string) error

	Channel(ctx context.Context, channelID string) (Channel, error)
	Categories(ctx context.Context) ([]Channel, error)
	CategoryChannels(ctx context.Context, categoryID string) ([]Channel, error)
	AllChannels(ctx context.Context) ([]Channel, error)
}

// NoteService mirrors challenges into the note service.
type NoteService interface {
	UpsertTask(ctx context.Context, ctfID int64, category, name string) (ctfnote.TaskRef, error)
	SetFlag(ctx context.Context, ref ctfnote.TaskRef, flag *string) error
	AssignLead(ctx context.Context, ref ctfnote.TaskRef, username string) error
	WhoIsLead(ctx context.Context, ref ctfnote.TaskRef) (string, error)
	UpdateLogin(baseURL, login, password string)
	Register(ctx context.Context, login, password string) error
	ImportCTF(ctx context.Context, ctftimeID int64) (int64, error)
}

// Display publishes the board.
type Display interface {
	Seed(ctx context.Context) (publisher.SeedResult, error)
	Start(ctx context.Context)
	Stop()
	PublishNow(ctx context.Context) (string, error)
}

// Exporter archives channel transcripts.
type Exporter interface {
	Export(ctx context.Context, label string, channels []export.Channel) (export.Result, error)
}

// EventPublisher broadcasts board mutations.
type EventPublisher interface {
	PublishEvent(ctx context.Context, e store.Event) error
}

var (
	_ NoteService    = (*ctfnote.Client)(nil)
	_ Display        = (*publisher.Publisher)(nil)
	_ Exporter       = (*export.Exporter)(nil)
	_ EventPublisher = (*store.Client)(nil)
)
