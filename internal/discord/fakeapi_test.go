package discord

import (
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

const testGuild = "900"

type upload struct {
	Content  string
	Filename string
	Data     []byte
}

type interactionCall struct {
	Type    discordgo.InteractionResponseType
	Content string
	Flags   discordgo.MessageFlags
}

// fakeAPI is an in-memory Discord REST API covering the endpoints the bot uses.
type fakeAPI struct {
	t  *testing.T
	mu sync.Mutex

	nextID   int
	channels map[string]*discordgo.Channel
	messages map[string][]*discordgo.Message
	pins     []string
	uploads  []upload
	deleted  []string
	reasons  []string

	responses []interactionCall
	followups []interactionCall
	// callbackStatus makes interaction callbacks fail when non-zero.
	callbackStatus int
	commands  []*discordgo.ApplicationCommand
}

// rewrite sends every request to the test server.
type rewrite struct {
	target *url.URL
	next   http.RoundTripper
}

func (rt rewrite) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	r.Host = rt.target.Host
	return rt.next.RoundTrip(r)
}

func newFakeAPI(t *testing.T) (*fakeAPI, *discordgo.Session) {
	t.Helper()
	f := &fakeAPI{
		t:        t,
		nextID:   1000,
		channels: map[string]*discordgo.Channel{},
		messages: map[string][]*discordgo.Message{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v9/guilds/{guild}/channels", f.listChannels)
	mux.HandleFunc("POST /api/v9/guilds/{guild}/channels", f.createChannel)
	mux.HandleFunc("GET /api/v9/channels/{id}", f.getChannel)
	mux.HandleFunc("PATCH /api/v9/channels/{id}", f.editChannel)
	mux.HandleFunc("DELETE /api/v9/channels/{id}", f.deleteChannel)
	mux.HandleFunc("GET /api/v9/channels/{id}/messages", f.listMessages)
	mux.HandleFunc("POST /api/v9/channels/{id}/messages", f.sendMessage)
	mux.HandleFunc("PATCH /api/v9/channels/{id}/messages/{mid}", f.editMessage)
	mux.HandleFunc("PUT /api/v9/channels/{id}/pins/{mid}", f.pin)
	mux.HandleFunc("POST /api/v9/interactions/{iid}/{token}/callback", f.interactionCallback)
	mux.HandleFunc("GET /api/v9/webhooks/{app}/{token}/messages/@original", f.originalResponse)
	mux.HandleFunc("POST /api/v9/webhooks/{app}/{token}", f.followup)
	mux.HandleFunc("PUT /api/v9/applications/{app}/guilds/{guild}/commands", f.overwriteCommands)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	s, err := discordgo.New("Bot test-token")
	require.NoError(t, err)
	s.Client = &http.Client{Transport: rewrite{target: target, next: http.DefaultTransport}, Timeout: 5 * time.Second}
	s.MaxRestRetries = 0
	return f, s
}

func (f *fakeAPI) id() string {
	f.nextID++
	return strconv.Itoa(f.nextID)
}

func (f *fakeAPI) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(f.t, json.NewEncoder(w).Encode(v))
}

func (f *fakeAPI) addChannel(typ discordgo.ChannelType, name, parentID string, position int) *discordgo.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := &discordgo.Channel{ID: f.id(), GuildID: testGuild, Name: name, Type: typ, ParentID: parentID, Position: position}
	f.channels[ch.ID] = ch
	return ch
}

func (f *fakeAPI) addMessage(channelID, author, content string) *discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appendMessage(channelID, author, content)
}

func (f *fakeAPI) appendMessage(channelID, author, content string) *discordgo.Message {
	msg := &discordgo.Message{
		ID:        f.id(),
		ChannelID: channelID,
		Content:   content,
		Timestamp: time.Date(2026, 10, 17, 12, 0, len(f.messages[channelID]), 0, time.UTC),
		Author:    &discordgo.User{ID: "u-" + author, Username: author},
	}
	f.messages[channelID] = append(f.messages[channelID], msg)
	return msg
}

func (f *fakeAPI) channel(id string) discordgo.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[id]
	require.True(f.t, ok, "no channel %s", id)
	return *ch
}

func (f *fakeAPI) channelByName(name string) (discordgo.Channel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.channels {
		if ch.Name == name {
			return *ch, true
		}
	}
	return discordgo.Channel{}, false
}

func (f *fakeAPI) listChannels(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	out := make([]*discordgo.Channel, 0, len(f.channels))
	for _, ch := range f.channels {
		out = append(out, ch)
	}
	f.mu.Unlock()
	// Discord does not return channels in position order.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	f.writeJSON(w, http.StatusOK, out)
}

func (f *fakeAPI) createChannel(w http.ResponseWriter, r *http.Request) {
	var data discordgo.GuildChannelCreateData
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&data))
	ch := f.addChannel(data.Type, data.Name, data.ParentID, data.Position)
	f.writeJSON(w, http.StatusCreated, ch)
}

func (f *fakeAPI) getChannel(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	ch, ok := f.channels[r.PathValue("id")]
	f.mu.Unlock()
	if !ok {
		f.writeJSON(w, http.StatusNotFound, map[string]any{"code": 10003, "message": "Unknown Channel"})
		return
	}
	f.writeJSON(w, http.StatusOK, ch)
}

func (f *fakeAPI) editChannel(w http.ResponseWriter, r *http.Request) {
	var edit discordgo.ChannelEdit
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&edit))

	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[r.PathValue("id")]
	require.True(f.t, ok)
	if edit.Name != "" {
		ch.Name = edit.Name
	}
	if edit.Topic != "" {
		ch.Topic = edit.Topic
	}
	if edit.Position != nil {
		ch.Position = *edit.Position
	}
	if edit.ParentID != "" {
		ch.ParentID = edit.ParentID
	}
	f.writeJSON(w, http.StatusOK, ch)
}

func (f *fakeAPI) deleteChannel(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	ch, ok := f.channels[id]
	require.True(f.t, ok)
	delete(f.channels, id)
	f.deleted = append(f.deleted, id)
	f.reasons = append(f.reasons, r.Header.Get("X-Audit-Log-Reason"))
	f.writeJSON(w, http.StatusOK, ch)
}

func (f *fakeAPI) listMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	require.NoError(f.t, err)
	before := r.URL.Query().Get("before")

	f.mu.Lock()
	all := f.messages[r.PathValue("id")]
	f.mu.Unlock()

	// Newest first, like the real endpoint.
	var out []*discordgo.Message
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if before != "" && !idLess(all[i].ID, before) {
			continue
		}
		out = append(out, all[i])
	}
	if out == nil {
		out = []*discordgo.Message{}
	}
	f.writeJSON(w, http.StatusOK, out)
}

func idLess(a, b string) bool {
	x, _ := strconv.Atoi(a)
	y, _ := strconv.Atoi(b)
	return x < y
}

func (f *fakeAPI) sendMessage(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("id")
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	require.NoError(f.t, err)

	var send discordgo.MessageSend
	if mediaType != "multipart/form-data" {
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&send))
		f.mu.Lock()
		msg := f.appendMessage(channelID, "ctfboard", send.Content)
		f.mu.Unlock()
		f.writeJSON(w, http.StatusOK, msg)
		return
	}

	up := upload{}
	mr := multipart.NewReader(r.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(f.t, err)
		data, err := io.ReadAll(part)
		require.NoError(f.t, err)
		if part.FormName() == "payload_json" {
			require.NoError(f.t, json.Unmarshal(data, &send))
			up.Content = send.Content
			continue
		}
		up.Filename = part.FileName()
		up.Data = data
	}

	f.mu.Lock()
	f.uploads = append(f.uploads, up)
	msg := f.appendMessage(channelID, "ctfboard", up.Content)
	f.mu.Unlock()
	f.writeJSON(w, http.StatusOK, msg)
}

func (f *fakeAPI) editMessage(w http.ResponseWriter, r *http.Request) {
	var edit discordgo.MessageEdit
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&edit))

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages[r.PathValue("id")] {
		if m.ID == r.PathValue("mid") {
			m.Content = *edit.Content
			f.writeJSON(w, http.StatusOK, m)
			return
		}
	}
	f.writeJSON(w, http.StatusNotFound, map[string]any{"code": 10008, "message": "Unknown Message"})
}

func (f *fakeAPI) pin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.pins = append(f.pins, r.PathValue("id")+"/"+r.PathValue("mid"))
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeAPI) interactionCallback(w http.ResponseWriter, r *http.Request) {
	var resp discordgo.InteractionResponse
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&resp))
	call := interactionCall{Type: resp.Type}
	if resp.Data != nil {
		call.Content = resp.Data.Content
		call.Flags = resp.Data.Flags
	}
	f.mu.Lock()
	f.responses = append(f.responses, call)
	status := f.callbackStatus
	f.mu.Unlock()
	if status != 0 {
		f.writeJSON(w, status, map[string]any{"code": 10062, "message": "Unknown interaction"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeAPI) originalResponse(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.responses)
	f.writeJSON(w, http.StatusOK, &discordgo.Message{ID: "orig-1", ChannelID: "chan-1", Content: f.responses[len(f.responses)-1].Content})
}

func (f *fakeAPI) followup(w http.ResponseWriter, r *http.Request) {
	var params discordgo.WebhookParams
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&params))
	f.mu.Lock()
	f.followups = append(f.followups, interactionCall{Content: params.Content, Flags: params.Flags})
	id := f.id()
	f.mu.Unlock()
	f.writeJSON(w, http.StatusOK, &discordgo.Message{ID: id, ChannelID: "chan-1", Content: params.Content})
}

func (f *fakeAPI) overwriteCommands(w http.ResponseWriter, r *http.Request) {
	var cmds []*discordgo.ApplicationCommand
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&cmds))
	f.mu.Lock()
	f.commands = cmds
	f.mu.Unlock()
	f.writeJSON(w, http.StatusOK, cmds)
}
