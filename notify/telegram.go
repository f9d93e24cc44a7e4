package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/RamiroMoyano/whatsapp-bot/logger"
)

// Telegram pushes operator notifications through the Bot API sendMessage call.
// Unconfigured instances log the payload and do nothing else, so the bot keeps
// working without a Telegram channel.
type Telegram struct {
	token  string
	chatID string
	http   *http.Client
}

func NewTelegramFromEnv() *Telegram {
	return &Telegram{
		token:  strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		chatID: strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")),
		http:   &http.Client{Timeout: 8 * time.Second},
	}
}

// Notify sends one message. Best effort: failures are logged, never returned,
// and a customer reply is never blocked on delivery.
func (t *Telegram) Notify(ctx context.Context, text string) {
	log := logger.L().Sugar()
	if t.token == "" || t.chatID == "" {
		log.Infow("telegram not configured, dropping notification", "text", text)
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":                  t.chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
	if err != nil {
		log.Warnw("telegram payload marshal failed", "error", err)
		return
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Warnw("telegram request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		log.Warnw("telegram notify failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			OK          bool   `json:"ok"`
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		log.Warnw("telegram api error", "status", resp.StatusCode, "description", apiErr.Description)
	}
}
