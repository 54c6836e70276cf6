package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// markdownV2Specials must be backslash-escaped in MarkdownV2 text.
const markdownV2Specials = "_*[]()~`>#+-=|{}.!\\"

var levelBadge = map[AlertLevel]string{
	AlertInfo:     "✅",
	AlertWarning:  "⚠️",
	AlertCritical: "🚨",
}

// TelegramNotifier posts run alerts to a chat through the Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// sendMessageResponse is the Bot API envelope; Description is set when OK is false.
type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPI,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    t.chatID,
		Text:      formatTelegram(alert),
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		return fmt.Errorf("telegram: encode: %w", err)
	}

	url := t.baseURL + "/bot" + t.botToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	var out sendMessageResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Description != "" {
			return fmt.Errorf("telegram: http %d: %s", resp.StatusCode, out.Description)
		}
		return fmt.Errorf("telegram: http %d", resp.StatusCode)
	}

	log.Printf("[telegram] sent %s alert for run %s", alert.Level, alert.RunID)
	return nil
}

// formatTelegram renders the alert as MarkdownV2: bold title, message, and
// the run ID in italics.
func formatTelegram(a Alert) string {
	var b strings.Builder
	if badge, ok := levelBadge[a.Level]; ok {
		b.WriteString(badge + " ")
	}
	b.WriteString("*" + escapeMarkdown(a.Title) + "*\n\n")
	b.WriteString(escapeMarkdown(a.Message))
	if a.RunID != "" {
		b.WriteString("\n\n_run " + escapeMarkdown(a.RunID) + "_")
	}
	return b.String()
}

func escapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownV2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
