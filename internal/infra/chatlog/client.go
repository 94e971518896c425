package chatlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HistoryMessage is one raw message as the gateway serializes it
type HistoryMessage struct {
	Talker     string `json:"talker"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName"`
	IsSelf     bool   `json:"isSelf"`
	Seq        int64  `json:"seq"`
	Time       string `json:"time"`
	Type       int    `json:"type"`
	Content    string `json:"content"`
}

// SessionItem is one entry from the gateway's session list
type SessionItem struct {
	UserName string `json:"userName"`
	NickName string `json:"nickName"`
	Content  string `json:"content"`
	Time     string `json:"nTime"`
}

// ContactItem is one entry from the gateway's contact list
type ContactItem struct {
	UserName string `json:"userName"`
	Alias    string `json:"alias"`
	Remark   string `json:"remark"`
	NickName string `json:"nickName"`
}

// Client talks to the chatlog gateway HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway client with a bounded per-request timeout
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetHistory fetches a talker's messages for the given date range. The
// gateway may answer with a bare array or an object with an items collection;
// both shapes are accepted.
func (c *Client) GetHistory(ctx context.Context, talker string, since, until time.Time) ([]HistoryMessage, error) {
	query := url.Values{}
	query.Set("talker", talker)
	query.Set("time", fmt.Sprintf("%s~%s", since.UTC().Format("2006-01-02"), until.UTC().Format("2006-01-02")))
	query.Set("format", "json")

	body, err := c.get(ctx, "/api/v1/chatlog?"+query.Encode())
	if err != nil {
		return nil, err
	}
	return decodeItems[HistoryMessage](body)
}

// GetSession fetches the gateway's recent session list
func (c *Client) GetSession(ctx context.Context) ([]SessionItem, error) {
	body, err := c.get(ctx, "/api/v1/session?format=json")
	if err != nil {
		return nil, err
	}
	return decodeItems[SessionItem](body)
}

// GetContact fetches the gateway's contact list
func (c *Client) GetContact(ctx context.Context) ([]ContactItem, error) {
	body, err := c.get(ctx, "/api/v1/contact?format=json")
	if err != nil {
		return nil, err
	}
	return decodeItems[ContactItem](body)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// decodeItems accepts either a bare JSON array or {"items": [...]}
func decodeItems[T any](data []byte) ([]T, error) {
	var list []T
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapper struct {
		Items []T `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil {
		return wrapper.Items, nil
	}
	return nil, fmt.Errorf("unrecognized gateway payload shape")
}
