package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jacherr/assystbot/internal/domain"
)

const apiBase = "https://chat.example/api/v10"

// HTTPClient is a net/http-backed Client, grounded on the request/response
// shape in the pack's discord channel driver (bare http.Client, Bot-token
// auth header, status-code-keyed error messages).
type HTTPClient struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewHTTPClient constructs a client authenticating with token.
func NewHTTPClient(token string) *HTTPClient {
	return &HTTPClient{token: token, baseURL: apiBase, client: &http.Client{Timeout: 30 * time.Second}}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("platform: encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("platform: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("platform: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("platform: %s %s returned %d: %s", method, path, resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("platform: decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) CreateMessage(ctx context.Context, channelID, content string) (*domain.Message, error) {
	var out domain.Message
	err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", map[string]string{"content": content}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) EditMessage(ctx context.Context, channelID, messageID, content string) (*domain.Message, error) {
	var out domain.Message
	path := "/channels/" + channelID + "/messages/" + messageID
	if err := c.do(ctx, http.MethodPatch, path, map[string]string{"content": content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+channelID+"/messages/"+messageID, nil, nil)
}

func (c *HTTPClient) GetChannel(ctx context.Context, channelID string) (*domain.ChannelNSFW, error) {
	var out struct {
		NSFW bool `json:"nsfw"`
	}
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &out); err != nil {
		return nil, err
	}
	nsfw := domain.ChannelNSFW(out.NSFW)
	return &nsfw, nil
}

func (c *HTTPClient) GetGuild(ctx context.Context, guildID string) (*domain.Member, error) {
	var out domain.Member
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListChannelMessages(ctx context.Context, channelID string, limit int) ([]*domain.Message, error) {
	var out []*domain.Message
	path := fmt.Sprintf("/channels/%s/messages?limit=%d", channelID, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetWebhooks(ctx context.Context, channelID string) ([]Webhook, error) {
	var out []Webhook
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID+"/webhooks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ExecuteWebhook(ctx context.Context, webhookID, webhookToken, username, avatarURL, content string) error {
	path := "/webhooks/" + webhookID + "/" + webhookToken
	payload := map[string]string{"content": content, "username": username, "avatar_url": avatarURL}
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

func (c *HTTPClient) CreateRole(ctx context.Context, guildID, name string, color int) (*Role, error) {
	var out Role
	payload := map[string]any{"name": name, "color": color}
	if err := c.do(ctx, http.MethodPost, "/guilds/"+guildID+"/roles", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListRoles(ctx context.Context, guildID string) ([]Role, error) {
	var out []Role
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/roles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetGuildMember(ctx context.Context, guildID, userID string) (*domain.Member, error) {
	var out domain.Member
	path := "/guilds/" + guildID + "/members/" + userID
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateGuildMember(ctx context.Context, guildID, userID string, addRoleIDs, removeRoleIDs []string) error {
	path := "/guilds/" + guildID + "/members/" + userID
	payload := map[string]any{"add_roles": addRoleIDs, "remove_roles": removeRoleIDs}
	return c.do(ctx, http.MethodPatch, path, payload, nil)
}
