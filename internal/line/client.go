package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.line.me"

// ReplyTimeout bounds one reply call.
const ReplyTimeout = 15 * time.Second

// Client sends replies through the Messaging API.
type Client struct {
	apiBase     string
	accessToken string
	http        *http.Client
}

func NewClient(apiBase, accessToken string) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Client{
		apiBase:     strings.TrimRight(apiBase, "/"),
		accessToken: accessToken,
		http:        &http.Client{Timeout: ReplyTimeout},
	}
}

// ReplyText answers the conversation turn identified by replyToken. Reply
// tokens are single use, so a failed call is not retried.
func (c *Client) ReplyText(ctx context.Context, replyToken, text string) error {
	msg := ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   []TextMessage{{Type: MessageTypeText, Text: truncate(text, MaxTextLength)}},
	}
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, msg ReplyMessageRequest) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v2/bot/message/reply", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return replySendError(err, 0, "")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return replySendError(nil, resp.StatusCode, string(respBody))
	}
	return nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
