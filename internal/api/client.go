package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/auth"
)

// ErrUnauthorized marks a rejected credential. The app treats it as the
// forced-logout signal and discards all mirrors.
var ErrUnauthorized = errors.New("credential rejected")

// Client is the request/response collaborator the reconciler calls to force
// full-list refreshes. Reloads are idempotent full-state replacements, never
// partial deltas.
type Client interface {
	ListServers(ctx context.Context) ([]Server, error)
	ListChannels(ctx context.Context, serverName string) ([]Channel, error)
	ListMembers(ctx context.Context, serverName string) ([]Member, error)
	ListDMs(ctx context.Context) ([]DirectMessage, error)
	ListMessages(ctx context.Context, channelID string) ([]Message, error)
	ListDMMessages(ctx context.Context, dmID string) ([]Message, error)
}

// HTTPClient talks to the WireChat REST API with a bearer token.
type HTTPClient struct {
	baseURL string
	tokens  auth.TokenSource
	http    *http.Client
}

// NewHTTPClient builds a client over baseURL (e.g. http://localhost:8080/api).
func NewHTTPClient(baseURL string, tokens auth.TokenSource) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ListServers fetches all servers visible to the current identity.
func (c *HTTPClient) ListServers(ctx context.Context) ([]Server, error) {
	var out []Server
	if err := c.get(ctx, "/servers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListChannels fetches all channels of one server.
func (c *HTTPClient) ListChannels(ctx context.Context, serverName string) ([]Channel, error) {
	var out []Channel
	path := "/channels/servers/" + url.PathEscape(serverName) + "/channels"
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMembers fetches the member roster of one server.
func (c *HTTPClient) ListMembers(ctx context.Context, serverName string) ([]Member, error) {
	var out []Member
	path := "/servers/" + url.PathEscape(serverName) + "/members"
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDMs fetches the DM conversations of the current identity.
func (c *HTTPClient) ListDMs(ctx context.Context) ([]DirectMessage, error) {
	var out []DirectMessage
	if err := c.get(ctx, "/dms", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessages fetches one channel's message page, oldest first.
func (c *HTTPClient) ListMessages(ctx context.Context, channelID string) ([]Message, error) {
	var out []Message
	path := "/messages?target_type=channel&target_id=" + url.QueryEscape(channelID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDMMessages fetches one DM conversation's message page, oldest first.
func (c *HTTPClient) ListDMMessages(ctx context.Context, dmID string) ([]Message, error) {
	var out []Message
	path := "/dms/" + url.PathEscape(dmID) + "/messages"
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("get %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
