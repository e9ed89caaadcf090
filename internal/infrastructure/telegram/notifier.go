package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/ports"
)

// ErrDisabled is returned by Send when no bot token is configured.
var ErrDisabled = errors.New("telegram publishing disabled")

// Notifier sends messages to Telegram chats via the bot API.
type Notifier struct {
	botToken string
	baseURL  string
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.Sender = (*Notifier)(nil)

// NewNotifier builds a sender from configuration.
func NewNotifier(cfg config.TelegramConfig, logger *slog.Logger) *Notifier {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		botToken: cfg.BotToken,
		baseURL:  strings.TrimRight(cfg.APIBaseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Enabled reports whether a bot token is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.botToken != ""
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send posts a plain text message to chatID.
func (n *Notifier) Send(ctx context.Context, chatID, text string) error {
	if !n.Enabled() {
		return ErrDisabled
	}

	body, err := json.Marshal(map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var payload sendMessageResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&payload)

	if resp.StatusCode != http.StatusOK {
		n.logger.Warn("telegram responded with error status", "chat_id", chatID, "status", resp.StatusCode)
		if decodeErr == nil && payload.Description != "" {
			return fmt.Errorf("telegram error: %s: %s", resp.Status, payload.Description)
		}
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode telegram response: %w", decodeErr)
	}
	if !payload.OK {
		description := payload.Description
		if description == "" {
			description = "telegram error"
		}
		n.logger.Warn("telegram sendMessage reported failure", "chat_id", chatID, "description", description)
		return errors.New(description)
	}

	n.logger.Debug("telegram message sent", "chat_id", chatID, "message_id", payload.Result.MessageID)
	return nil
}
