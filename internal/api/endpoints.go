package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rickgao/eludris-client/internal/entity"
)

// GetInstanceInfo returns information about the instance. withRatelimits
// asks the server to include its rate limit configuration.
func (c *Client) GetInstanceInfo(ctx context.Context, withRatelimits bool) (entity.InstanceInfo, error) {
	r := request{method: http.MethodGet, path: "/"}
	if withRatelimits {
		r.query = url.Values{"ratelimits": {"1"}}
	}

	body, err := c.call(ctx, r)
	if err != nil {
		return entity.InstanceInfo{}, fmt.Errorf("get instance info: %w", err)
	}
	return c.entities.DeserializeInstanceInfo(body)
}

// CreateMessage sends a message and returns it as stored by the server.
func (c *Client) CreateMessage(ctx context.Context, content string) (entity.Message, error) {
	body, err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/messages",
		body:   map[string]string{"content": content},
		auth:   authRequired,
	})
	if err != nil {
		return entity.Message{}, fmt.Errorf("create message: %w", err)
	}
	return c.entities.DeserializeMessage(body)
}

// GetSelf returns the user that owns the token.
func (c *Client) GetSelf(ctx context.Context) (entity.User, error) {
	body, err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/users/@me",
		auth:   authRequired,
	})
	if err != nil {
		return entity.User{}, fmt.Errorf("get self: %w", err)
	}
	return c.entities.DeserializeUser(body)
}

// GetUser returns a user by ID or username.
func (c *Client) GetUser(ctx context.Context, identifier string) (entity.User, error) {
	body, err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/users/" + url.PathEscape(identifier),
		auth:   authPreferred,
	})
	if err != nil {
		return entity.User{}, fmt.Errorf("get user %s: %w", identifier, err)
	}
	return c.entities.DeserializeUser(body)
}

// GetSessions returns every session of the authenticated user.
func (c *Client) GetSessions(ctx context.Context) ([]entity.Session, error) {
	body, err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/sessions",
		auth:   authRequired,
	})
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}

	sessions := make([]entity.Session, 0, len(raw))
	for _, r := range raw {
		s, err := c.entities.DeserializeSession(r)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// DeleteSession revokes a session.
func (c *Client) DeleteSession(ctx context.Context, id uint64) error {
	_, err := c.call(ctx, request{
		method: http.MethodDelete,
		path:   "/sessions/" + strconv.FormatUint(id, 10),
		auth:   authRequired,
	})
	if err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	return nil
}

// GetFileData returns the metadata of a file stored in bucket.
func (c *Client) GetFileData(ctx context.Context, bucket string, id uint64) (entity.FileData, error) {
	body, err := c.call(ctx, request{
		method: http.MethodGet,
		base:   c.cdnURL,
		path:   "/" + url.PathEscape(bucket) + "/" + strconv.FormatUint(id, 10) + "/data",
	})
	if err != nil {
		return entity.FileData{}, fmt.Errorf("get file data %s/%d: %w", bucket, id, err)
	}
	return c.entities.DeserializeFileData(body)
}

// GetAttachmentData returns the metadata of an attachment.
func (c *Client) GetAttachmentData(ctx context.Context, id uint64) (entity.FileData, error) {
	return c.GetFileData(ctx, "attachments", id)
}
