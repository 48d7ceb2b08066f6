// Package telegram implements the inbound side of the chat channel: a
// long-poll getUpdates client. The outbound side lives in internal/notify.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Update is one inbound chat message. UpdateID values within a bot session
// are strictly increasing; Text may be empty for non-message updates, which
// still have to advance the consumer's cursor.
type Update struct {
	UpdateID int64
	ChatID   int64
	Text     string
}

// UpdatePoller fetches ordered batches of inbound updates. offset is the next
// update identifier expected (exclusive lower bound on what was consumed);
// zero means "everything available".
type UpdatePoller interface {
	Poll(ctx context.Context, offset int64) ([]Update, error)
}

// ClientOptions parameterise the getUpdates client.
type ClientOptions struct {
	BotToken    string
	BaseURL     string
	PollTimeout time.Duration
	BatchLimit  int
}

// Client long-polls the Telegram Bot API for updates.
type Client struct {
	opts    ClientOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs the update poller. The HTTP timeout is the long-poll
// timeout plus headroom so the server side expires first.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 100
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "telegram_updates").Logger(),
		client:  &http.Client{Timeout: opts.PollTimeout + 10*time.Second},
		baseURL: baseURL,
	}
}

// Poll performs one bounded long-poll call and returns the updates ordered by
// identifier, exactly as the API delivers them.
func (c *Client) Poll(ctx context.Context, offset int64) ([]Update, error) {
	if c.opts.BotToken == "" {
		return nil, fmt.Errorf("telegram bot_token not configured")
	}

	payload := map[string]interface{}{
		"timeout":         int(c.opts.PollTimeout.Seconds()),
		"limit":           c.opts.BatchLimit,
		"allowed_updates": []string{"message", "edited_message"},
	}
	if offset > 0 {
		payload["offset"] = offset
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal getUpdates payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/getUpdates", c.baseURL, c.opts.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create getUpdates request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll telegram updates: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read getUpdates response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram getUpdates status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded getUpdatesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode getUpdates response: %w", err)
	}
	if !decoded.OK {
		return nil, fmt.Errorf("telegram getUpdates returned ok=false")
	}

	updates := make([]Update, 0, len(decoded.Result))
	for _, item := range decoded.Result {
		updates = append(updates, mapUpdate(item))
	}

	if len(updates) > 0 {
		c.logger.Debug().Int("count", len(updates)).Int64("offset", offset).Msg("updates received")
	}
	return updates, nil
}

func mapUpdate(item updatePayload) Update {
	update := Update{UpdateID: item.UpdateID}

	msg := item.Message
	if msg == nil {
		msg = item.EditedMessage
	}
	if msg != nil {
		update.ChatID = msg.Chat.ID
		update.Text = strings.TrimSpace(msg.Text)
	}

	return update
}

type getUpdatesResponse struct {
	OK     bool            `json:"ok"`
	Result []updatePayload `json:"result"`
}

type updatePayload struct {
	UpdateID      int64           `json:"update_id"`
	Message       *messagePayload `json:"message"`
	EditedMessage *messagePayload `json:"edited_message"`
}

type messagePayload struct {
	Text string `json:"text"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

var _ UpdatePoller = (*Client)(nil)
