// Package router turns slash commands into StatusBoard mutations and the
// channel, note and export side effects that go with them.
//
// The router knows nothing about Discord. Requests arrive already resolved
// (invoker roles, option values) and replies go out through a Responder.
// Commands are handled one at a time so board mutations never interleave.
// Collaborator failures after a successful mutation are logged and reported
// to the invoker but never undo the mutation.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dyluth/ctfboard/internal/logging"
	"github.com/dyluth/ctfboard/internal/metrics"
	"github.com/dyluth/ctfboard/internal/store"
	"github.com/dyluth/ctfboard/pkg/board"
)

// DefaultChannelLimit is Discord's per-guild channel cap.
const DefaultChannelLimit = 500

const denied = "Get lost!"

// Config carries the management settings the router needs.
type Config struct {
	Categories   []string
	PlayerRole   string
	AdminRole    string
	SolvedPrefix string
	ChannelLimit int
}

// Deps are the collaborators. Notes, Exporter and Events may be nil; the
// matching commands then report the feature as disabled or skip it.
type Deps struct {
	Channels ChannelManager
	Display  Display
	Notes    NoteService
	Exporter Exporter
	Events   EventPublisher
	Metrics  *metrics.Recorder
}

type role int

const (
	roleNone role = iota
	rolePlayer
	roleAdmin
)

type handlerFunc func(ctx context.Context, req Request, resp Responder) error

type route struct {
	role    role
	handler handlerFunc
}

// Router dispatches commands.
type Router struct {
	cfg      Config
	board    *board.StatusBoard
	deps     Deps
	lifetime context.Context
	now      func() time.Time
	log      *logrus.Entry

	// busy holds one token while a command runs; commands run one at a time.
	busy    chan struct{}
	started time.Time
	routes  map[string]route
}

// New creates a router. lifetime bounds background work started by commands,
// such as the publish loop.
func New(lifetime context.Context, cfg Config, sb *board.StatusBoard, deps Deps) *Router {
	if cfg.ChannelLimit == 0 {
		cfg.ChannelLimit = DefaultChannelLimit
	}
	r := &Router{
		cfg:      cfg,
		board:    sb,
		deps:     deps,
		lifetime: lifetime,
		now:      time.Now,
		log:      logging.For("router"),
		busy:     make(chan struct{}, 1),
	}
	r.routes = map[string]route{
		CmdStart:          {rolePlayer, r.handleStart},
		CmdChal:           {rolePlayer, r.handleChal},
		CmdSolved:         {rolePlayer, r.handleSolved},
		CmdVuln:           {rolePlayer, r.handleVuln},
		CmdPatch:          {rolePlayer, r.handlePatch},
		CmdExploit:        {rolePlayer, r.handleExploit},
		CmdAssign:         {rolePlayer, r.handleAssign},
		CmdUnassign:       {rolePlayer, r.handleUnassign},
		CmdArchive:        {rolePlayer, r.handleArchive},
		CmdExport:         {rolePlayer, r.handleExport},
		CmdNuke:           {roleAdmin, r.handleNuke},
		CmdNoteFixup:      {rolePlayer, r.handleNoteFixup},
		CmdNoteAuth:       {rolePlayer, r.handleNoteAuth},
		CmdNoteAssignLead: {rolePlayer, r.handleNoteAssignLead},
		CmdNoteRegister:   {rolePlayer, r.handleNoteRegister},
		CmdNoteWhoLeads:   {rolePlayer, r.handleNoteWhoLeads},
		CmdNoteImport:     {rolePlayer, r.handleNoteImport},
		CmdStats:          {roleNone, r.handleStats},
		CmdPing:           {roleNone, r.handlePing},
	}
	return r
}

// Commands lists the names the router handles.
func (r *Router) Commands() []string {
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	return names
}

// Handle runs one command. Expected failures (unknown challenge, missing role)
// are answered and return nil; an error is returned only when the command
// failed unexpectedly, after the invoker has been told.
func (r *Router) Handle(ctx context.Context, req Request, resp Responder) error {
	rt, ok := r.routes[req.Command]
	if !ok {
		return fmt.Errorf("unknown command %q", req.Command)
	}

	entry := r.log.WithFields(logrus.Fields{
		"command": req.Command,
		"invoker": req.Invoker.Name,
		"channel": req.ChannelID,
	})

	if !r.allowed(rt.role, req.Invoker) {
		entry.Info("Command denied")
		r.deps.Metrics.ObserveCommand(req.Command, nil)
		return resp.Reply(ctx, Response{Content: denied, Ephemeral: true})
	}

	if err := r.acquire(ctx, resp); err != nil {
		entry.WithError(err).Warn("Gave up waiting for the running command")
		r.deps.Metrics.ObserveCommand(req.Command, err)
		return fmt.Errorf("command queue: %w", err)
	}
	defer r.release()

	entry.Debug("Handling command")
	err := rt.handler(ctx, req, resp)
	r.deps.Metrics.ObserveCommand(req.Command, err)
	if err != nil {
		entry.WithError(err).Error("Command failed")
		if replyErr := resp.Reply(ctx, Response{Content: "Command failed: " + err.Error(), Ephemeral: true}); replyErr != nil {
			entry.WithError(replyErr).Warn("Failed to report command failure")
		}
		return err
	}
	return nil
}

// acquire waits for the running command to finish. A command that has to
// wait is deferred first so its interaction outlives the queue.
func (r *Router) acquire(ctx context.Context, resp Responder) error {
	select {
	case r.busy <- struct{}{}:
		return nil
	default:
	}
	if err := resp.Defer(ctx, false); err != nil {
		return err
	}
	select {
	case r.busy <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) release() {
	<-r.busy
}

func (r *Router) allowed(need role, m Member) bool {
	switch need {
	case rolePlayer:
		return m.HasRole(r.cfg.PlayerRole)
	case roleAdmin:
		return m.HasRole(r.cfg.AdminRole)
	default:
		return true
	}
}

// emit broadcasts a board event. Failures only get logged.
func (r *Router) emit(ctx context.Context, req Request, e store.Event) {
	if r.deps.Events == nil {
		return
	}
	e.Actor = req.Invoker.Name
	if err := r.deps.Events.PublishEvent(ctx, e); err != nil {
		r.log.WithError(err).WithField("kind", e.Kind).Warn("Failed to publish board event")
	}
}

// warn tells the invoker about a side effect that failed after the board was
// already updated.
func (r *Router) warn(ctx context.Context, resp Responder, what string, err error) {
	r.log.WithError(err).Warn(what)
	if replyErr := resp.Reply(ctx, Response{Content: fmt.Sprintf("%s: %v", what, err), Ephemeral: true}); replyErr != nil {
		r.log.WithError(replyErr).Warn("Failed to send warning")
	}
}

func reply(ctx context.Context, resp Responder, format string, args ...any) error {
	return resp.Reply(ctx, Response{Content: fmt.Sprintf(format, args...)})
}

func replyEphemeral(ctx context.Context, resp Responder, format string, args ...any) error {
	return resp.Reply(ctx, Response{Content: fmt.Sprintf(format, args...), Ephemeral: true})
}
