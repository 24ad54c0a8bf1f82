package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dyluth/ctfboard/internal/ctfnote"
	"github.com/dyluth/ctfboard/internal/export"
	"github.com/dyluth/ctfboard/internal/publisher"
	"github.com/dyluth/ctfboard/internal/store"
)

// fakeGuild is an in-memory ChannelManager.
type fakeGuild struct {
	mu       sync.Mutex
	channels map[string]*Channel
	nextID   int
	deleted  []string
	failOn   map[string]error
}

func newFakeGuild(categories ...string) *fakeGuild {
	g := &fakeGuild{channels: map[string]*Channel{}, failOn: map[string]error{}}
	for _, name := range categories {
		g.addCategory(name)
	}
	return g
}

func (g *fakeGuild) id() string {
	g.nextID++
	return fmt.Sprintf("%d", 100+g.nextID)
}

func (g *fakeGuild) addCategory(name string) Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := &Channel{ID: g.id(), Name: name, IsCategory: true, Position: len(g.channels)}
	g.channels[ch.ID] = ch
	return *ch
}

func (g *fakeGuild) addChannel(parentID, name, topic string) Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := &Channel{ID: g.id(), Name: name, ParentID: parentID, Topic: topic}
	g.channels[ch.ID] = ch
	return *ch
}

func (g *fakeGuild) byName(name string) (Channel, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ch := range g.channels {
		if ch.Name == name {
			return *ch, true
		}
	}
	return Channel{}, false
}

func (g *fakeGuild) CreateChannel(_ context.Context, category, name string) (Channel, error) {
	if err := g.failOn["create"]; err != nil {
		return Channel{}, err
	}
	cat, ok := g.byName(category)
	if !ok || !cat.IsCategory {
		return Channel{}, fmt.Errorf("no category %s", category)
	}
	return g.addChannel(cat.ID, normalise(name), ""), nil
}

func (g *fakeGuild) RenameChannel(_ context.Context, channelID, name string) error {
	if err := g.failOn["rename"]; err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.channels[channelID]
	if !ok {
		return errors.New("unknown channel")
	}
	ch.Name = name
	ch.Position = 999
	return nil
}

func (g *fakeGuild) MoveToArchiveCategory(_ context.Context, channelID, archiveName string) error {
	arch, ok := g.byName("Archive-" + archiveName)
	if !ok {
		arch = g.addCategory("Archive-" + archiveName)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[channelID].ParentID = arch.ID
	return nil
}

func (g *fakeGuild) DeleteChannel(_ context.Context, channelID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.channels, channelID)
	g.deleted = append(g.deleted, channelID)
	return nil
}

func (g *fakeGuild) DeleteCategory(ctx context.Context, categoryID, reason string) error {
	return g.DeleteChannel(ctx, categoryID, reason)
}

func (g *fakeGuild) SetTopic(_ context.Context, channelID, topic string) error {
	if err := g.failOn["topic"]; err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[channelID].Topic = topic
	return nil
}

func (g *fakeGuild) Channel(_ context.Context, channelID string) (Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.channels[channelID]
	if !ok {
		return Channel{}, errors.New("unknown channel")
	}
	return *ch, nil
}

func (g *fakeGuild) Categories(context.Context) ([]Channel, error) {
	return g.filter(func(ch *Channel) bool { return ch.IsCategory }), nil
}

func (g *fakeGuild) CategoryChannels(_ context.Context, categoryID string) ([]Channel, error) {
	return g.filter(func(ch *Channel) bool { return ch.ParentID == categoryID }), nil
}

func (g *fakeGuild) AllChannels(context.Context) ([]Channel, error) {
	return g.filter(func(*Channel) bool { return true }), nil
}

func (g *fakeGuild) filter(keep func(*Channel) bool) []Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Channel
	for _, ch := range g.channels {
		if keep(ch) {
			out = append(out, *ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func normalise(name string) string {
	out := []rune{}
	for _, r := range name {
		switch {
		case r == ' ':
			out = append(out, '-')
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

type fakeNotes struct {
	tasks      map[string]ctfnote.TaskRef
	flags      map[int64]*string
	leads      map[int64]string
	registered map[string]string
	login      []string
	err        error
}

func newFakeNotes() *fakeNotes {
	return &fakeNotes{
		tasks:      map[string]ctfnote.TaskRef{},
		flags:      map[int64]*string{},
		leads:      map[int64]string{},
		registered: map[string]string{},
	}
}

func (n *fakeNotes) UpsertTask(_ context.Context, ctfID int64, category, name string) (ctfnote.TaskRef, error) {
	if n.err != nil {
		return ctfnote.TaskRef{}, n.err
	}
	if ctfID == 0 {
		ctfID = 7
	}
	key := category + "/" + name
	if ref, ok := n.tasks[key]; ok {
		return ref, nil
	}
	ref := ctfnote.TaskRef{CTFID: ctfID, TaskID: int64(len(n.tasks) + 1)}
	n.tasks[key] = ref
	return ref, nil
}

func (n *fakeNotes) SetFlag(_ context.Context, ref ctfnote.TaskRef, flag *string) error {
	if n.err != nil {
		return n.err
	}
	n.flags[ref.TaskID] = flag
	return nil
}

func (n *fakeNotes) AssignLead(_ context.Context, ref ctfnote.TaskRef, username string) error {
	if username == "nobody" {
		return fmt.Errorf("%w: %q", ctfnote.ErrUnknownProfile, username)
	}
	n.leads[ref.TaskID] = username
	return nil
}

func (n *fakeNotes) WhoIsLead(_ context.Context, ref ctfnote.TaskRef) (string, error) {
	return n.leads[ref.TaskID], nil
}

func (n *fakeNotes) UpdateLogin(baseURL, login, password string) {
	n.login = []string{baseURL, login, password}
}

func (n *fakeNotes) Register(_ context.Context, login, password string) error {
	n.registered[login] = password
	return nil
}

func (n *fakeNotes) ImportCTF(_ context.Context, ctftimeID int64) (int64, error) {
	return ctftimeID + 1, nil
}

type fakeDisplay struct {
	seed      publisher.SeedResult
	seedFn    func()
	running   bool
	starts    int
	publishes int
}

func (d *fakeDisplay) Seed(context.Context) (publisher.SeedResult, error) {
	if d.seedFn != nil {
		d.seedFn()
	}
	return d.seed, nil
}

func (d *fakeDisplay) Start(context.Context) {
	d.running = true
	d.starts++
}

func (d *fakeDisplay) Stop() { d.running = false }

func (d *fakeDisplay) PublishNow(context.Context) (string, error) {
	d.publishes++
	return publisher.ResultEdited, nil
}

type fakeExporter struct {
	label    string
	channels []export.Channel
}

func (e *fakeExporter) Export(_ context.Context, label string, channels []export.Channel) (export.Result, error) {
	e.label, e.channels = label, channels
	return export.Result{Channels: len(channels), Messages: 10 * len(channels)}, nil
}

type fakeEvents struct {
	events []store.Event
}

func (e *fakeEvents) PublishEvent(_ context.Context, ev store.Event) error {
	e.events = append(e.events, ev)
	return nil
}

func (e *fakeEvents) kinds() []store.EventKind {
	var kinds []store.EventKind
	for _, ev := range e.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

// recorder captures every reply.
type recorder struct {
	deferred  bool
	responses []Response
}

func (r *recorder) Defer(context.Context, bool) error {
	r.deferred = true
	return nil
}

func (r *recorder) Reply(_ context.Context, resp Response) error {
	r.responses = append(r.responses, resp)
	return nil
}

func (r *recorder) last() Response {
	if len(r.responses) == 0 {
		return Response{}
	}
	return r.responses[len(r.responses)-1]
}
