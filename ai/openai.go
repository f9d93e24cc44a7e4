package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/RamiroMoyano/whatsapp-bot/models"
)

// ErrNotConfigured is returned when the adapter has no API key or generation
// is globally switched off. Callers map it to a fixed "unavailable" reply.
var ErrNotConfigured = errors.New("ai adapter not configured")

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	enabled  bool
	http     *http.Client
}

// NewFromEnv reads OPENAI_API_KEY, OPENAI_MODEL, OPENAI_BASE_URL and the
// AI_GLOBAL kill switch. A client always comes back; an unconfigured one
// answers every call with ErrNotConfigured.
func NewFromEnv() *Client {
	endpoint := defaultEndpoint
	if base := strings.TrimRight(strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")), "/"); base != "" {
		endpoint = base + "/chat/completions"
	}
	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		apiKey:   strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		model:    model,
		endpoint: endpoint,
		enabled:  strings.ToLower(strings.TrimSpace(os.Getenv("AI_GLOBAL"))) != "off",
		http:     &http.Client{Timeout: 8 * time.Second},
	}
}

// Reply generates one answer for the customer's turn using the company's
// persona, catalog and tone plus the bounded conversation history.
func (c *Client) Reply(ctx context.Context, company *models.Company, history []models.AIMessage, userText string) (string, error) {
	if c.apiKey == "" || !c.enabled {
		return "", ErrNotConfigured
	}

	messages := []chatMessage{{Role: "system", Content: systemPrompt(company)}}
	for _, m := range history {
		role := m.Role
		if role != "user" && role != "assistant" {
			role = "user"
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userText})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call completions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("completions status %d: %s", resp.StatusCode, string(raw))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func systemPrompt(company *models.Company) string {
	var b strings.Builder
	b.WriteString(company.Prompt)
	b.WriteString("\n\nCATÁLOGO:")
	for _, p := range company.Catalog() {
		fmt.Fprintf(&b, "\n%d) %s: $%g", p.ID, p.Name, p.Price)
	}
	rules := company.Rules()
	fmt.Fprintf(&b, "\n\nReglas:\n- Tono: %s\n- No inventar datos\n- Siempre cerrar con pregunta", rules.Tone)
	if len(rules.EmergencyKeywords) > 0 {
		fmt.Fprintf(&b, "\n- Ante palabras como %s, priorizá derivar a un humano", strings.Join(rules.EmergencyKeywords, ", "))
	}
	return b.String()
}
