// Package ctfnote mirrors board activity into a CTFNote instance over its
// GraphQL API.
//
// Each challenge maps to one task. The task reference lives in the topic of
// the challenge channel (see TaskRef), so the note service never needs to be
// queried to find the task for a channel.
package ctfnote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/dyluth/ctfboard/internal/logging"
)

// ErrNoCurrentCTF is returned when ctfID 0 is used and no CTF is running.
var ErrNoCurrentCTF = errors.New("no CTF is currently running")

// ErrUnknownProfile is returned when a username has no CTFNote profile.
var ErrUnknownProfile = errors.New("no CTFNote profile with that username")

// GraphQLError is a failure reported in the "errors" array of a response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "ctfnote: " + strings.Join(e.Messages, "; ")
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBackOff overrides the retry policy. The factory is called once per request.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = factory }
}

// WithClock overrides time.Now, used to pick the running CTF.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client talks to the CTFNote GraphQL endpoint as the configured admin.
// The client is safe for concurrent use.
type Client struct {
	http       *http.Client
	newBackOff func() backoff.BackOff
	now        func() time.Time
	log        *logrus.Entry

	mu       sync.Mutex
	endpoint string
	login    string
	password string
	jwt      string
}

// NewClient returns a client for the CTFNote instance at baseURL. No request
// is made until the first call.
func NewClient(baseURL, login, password string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpointFor(baseURL),
		http:     &http.Client{Timeout: 15 * time.Second},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return b
		},
		now:      time.Now,
		log:      logging.For("ctfnote"),
		login:    login,
		password: password,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateLogin points the client at a new instance and admin account and
// forgets the current session. An empty baseURL keeps the current endpoint.
func (c *Client) UpdateLogin(baseURL, login, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if baseURL != "" {
		c.endpoint = endpointFor(baseURL)
	}
	c.login = login
	c.password = password
	c.jwt = ""
}

// Login authenticates with the stored credentials and caches the token.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	login, password := c.login, c.password
	c.mu.Unlock()

	data, err := c.post(ctx, "", loginMutation, map[string]any{
		"login":    login,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("failed to log in to CTFNote: %w", err)
	}
	jwt := data.Get("login.jwt").String()
	if jwt == "" {
		return fmt.Errorf("failed to log in to CTFNote as %q: bad credentials", login)
	}

	c.mu.Lock()
	c.jwt = jwt
	c.mu.Unlock()
	logging.LogEvent(c.log, "ctfnote_login", logrus.Fields{"login": login})
	return nil
}

// Register creates a new CTFNote account. It does not touch the admin session.
func (c *Client) Register(ctx context.Context, login, password string) error {
	data, err := c.post(ctx, "", registerMutation, map[string]any{
		"login":    login,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("failed to register %q: %w", login, err)
	}
	if data.Get("register.jwt").String() == "" {
		return fmt.Errorf("failed to register %q: no token returned", login)
	}
	return nil
}

// CurrentCTF returns the id of the CTF whose window contains now. When none
// is running, ErrNoCurrentCTF is returned.
func (c *Client) CurrentCTF(ctx context.Context) (int64, error) {
	data, err := c.do(ctx, incomingCTFsQuery, nil)
	if err != nil {
		return 0, err
	}
	now := c.now()
	for _, node := range data.Get("incomingCtf.nodes").Array() {
		start, err1 := time.Parse(time.RFC3339, node.Get("startTime").String())
		end, err2 := time.Parse(time.RFC3339, node.Get("endTime").String())
		if err1 != nil || err2 != nil {
			continue
		}
		if !now.Before(start) && now.Before(end) {
			return node.Get("id").Int(), nil
		}
	}
	return 0, ErrNoCurrentCTF
}

// UpsertTask finds the task titled name in the CTF, creating it when missing.
// A ctfID of 0 means the running CTF.
func (c *Client) UpsertTask(ctx context.Context, ctfID int64, category, name string) (TaskRef, error) {
	if ctfID == 0 {
		id, err := c.CurrentCTF(ctx)
		if err != nil {
			return TaskRef{}, err
		}
		ctfID = id
	}

	data, err := c.do(ctx, ctfTasksQuery, map[string]any{"ctfId": ctfID})
	if err != nil {
		return TaskRef{}, err
	}
	for _, node := range data.Get("ctf.tasks.nodes").Array() {
		if node.Get("title").String() == name {
			return TaskRef{CTFID: ctfID, TaskID: node.Get("id").Int()}, nil
		}
	}

	data, err = c.do(ctx, createTaskMutation, map[string]any{
		"ctfId":       ctfID,
		"title":       name,
		"tags":        []string{category},
		"description": "",
	})
	if err != nil {
		return TaskRef{}, fmt.Errorf("failed to create task %q: %w", name, err)
	}
	ref := TaskRef{CTFID: ctfID, TaskID: data.Get("createTask.task.id").Int()}
	if ref.TaskID == 0 {
		return TaskRef{}, fmt.Errorf("failed to create task %q: no id returned", name)
	}
	logging.LogEvent(c.log, "ctfnote_task_created", logrus.Fields{"task": ref.String(), "title": name})
	return ref, nil
}

// SetFlag sets the flag of a task. A nil flag clears it.
func (c *Client) SetFlag(ctx context.Context, ref TaskRef, flag *string) error {
	vars := map[string]any{"id": ref.TaskID, "flag": nil}
	if flag != nil {
		vars["flag"] = *flag
	}
	if _, err := c.do(ctx, updateFlagMutation, vars); err != nil {
		return fmt.Errorf("failed to set flag on %s: %w", ref, err)
	}
	return nil
}

// AssignLead makes the CTFNote user named username work on the task.
func (c *Client) AssignLead(ctx context.Context, ref TaskRef, username string) error {
	data, err := c.do(ctx, profileByUsernameQuery, map[string]any{"username": username})
	if err != nil {
		return err
	}
	nodes := data.Get("profiles.nodes").Array()
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, username)
	}
	if _, err := c.do(ctx, assignLeadMutation, map[string]any{
		"taskId":    ref.TaskID,
		"profileId": nodes[0].Get("id").Int(),
	}); err != nil {
		return fmt.Errorf("failed to assign %q to %s: %w", username, ref, err)
	}
	return nil
}

// WhoIsLead returns the username of the first person working on the task,
// or "" when nobody is.
func (c *Client) WhoIsLead(ctx context.Context, ref TaskRef) (string, error) {
	data, err := c.do(ctx, taskLeadQuery, map[string]any{"id": ref.TaskID})
	if err != nil {
		return "", err
	}
	return data.Get("task.workOnTasks.nodes.0.profile.username").String(), nil
}

// ImportCTF imports a ctftime.org event and returns the new CTF id.
func (c *Client) ImportCTF(ctx context.Context, ctftimeID int64) (int64, error) {
	data, err := c.do(ctx, importCTFMutation, map[string]any{"id": ctftimeID})
	if err != nil {
		return 0, fmt.Errorf("failed to import ctftime event %d: %w", ctftimeID, err)
	}
	return data.Get("importCtf.ctf.id").Int(), nil
}

// do runs an authenticated request, logging in first when there is no token
// and once more if the token was rejected.
func (c *Client) do(ctx context.Context, query string, vars map[string]any) (gjson.Result, error) {
	for attempt := 0; ; attempt++ {
		c.mu.Lock()
		jwt := c.jwt
		c.mu.Unlock()

		if jwt == "" {
			if err := c.Login(ctx); err != nil {
				return gjson.Result{}, err
			}
			continue
		}

		data, err := c.post(ctx, jwt, query, vars)
		if errors.Is(err, errUnauthorized) && attempt == 0 {
			c.mu.Lock()
			if c.jwt == jwt {
				c.jwt = ""
			}
			c.mu.Unlock()
			continue
		}
		return data, err
	}
}

var errUnauthorized = errors.New("ctfnote: unauthorized")

// post sends one GraphQL request, retrying transport failures and 5xx
// responses. It returns the "data" member of the response.
func (c *Client) post(ctx context.Context, jwt, query string, vars map[string]any) (gjson.Result, error) {
	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to encode request: %w", err)
	}
	c.mu.Lock()
	endpoint := c.endpoint
	c.mu.Unlock()

	var result gjson.Result
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if jwt != "" {
			req.Header.Set("Authorization", "Bearer "+jwt)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return backoff.Permanent(errUnauthorized)
		case resp.StatusCode >= 500:
			return fmt.Errorf("ctfnote: server error %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("ctfnote: request rejected with status %d", resp.StatusCode))
		}

		parsed := gjson.ParseBytes(raw)
		if errs := parsed.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
			gqlErr := &GraphQLError{}
			for _, e := range errs.Array() {
				gqlErr.Messages = append(gqlErr.Messages, e.Get("message").String())
			}
			if isJWTError(gqlErr) {
				return backoff.Permanent(errUnauthorized)
			}
			return backoff.Permanent(gqlErr)
		}
		result = parsed.Get("data")
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.log.WithError(err).WithField("retry_in", wait).Warn("CTFNote request failed, retrying")
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		return gjson.Result{}, err
	}
	return result, nil
}

func endpointFor(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/graphql"
}

func isJWTError(err *GraphQLError) bool {
	for _, m := range err.Messages {
		if strings.Contains(strings.ToLower(m), "jwt") {
			return true
		}
	}
	return false
}
