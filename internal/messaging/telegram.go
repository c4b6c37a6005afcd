package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

const (
	defaultTelegramBaseURL = "https://api.telegram.org"
	// Telegram rejects texts longer than this many characters.
	maxTelegramText = 4096
)

// TelegramConfig controls the Bot API client.
type TelegramConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	// RatePerSecond caps outgoing sends across all chats.
	RatePerSecond float64
	HTTPClient    *http.Client
	Logger        *logging.Logger
}

// TelegramClient sends plain-text messages through the Telegram Bot API.
type TelegramClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	logger     *logging.Logger
}

// APIError is a non-OK Bot API answer.
type APIError struct {
	Status      int
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %d %s", e.Code, e.Description)
}

func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func NewTelegramClient(cfg TelegramConfig) (*TelegramClient, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("messaging: telegram bot token is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultTelegramBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 25
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &TelegramClient{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: httpClient,
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    backoff,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:     logger,
	}, nil
}

// SendText posts text to chatID, splitting it on line boundaries when it
// exceeds the Bot API limit.
func (c *TelegramClient) SendText(ctx context.Context, chatID, text string) error {
	if strings.TrimSpace(chatID) == "" {
		return errors.New("messaging: chat id required")
	}
	for _, part := range splitText(text, maxTelegramText) {
		body, err := json.Marshal(struct {
			ChatID string `json:"chat_id"`
			Text   string `json:"text"`
		}{ChatID: chatID, Text: part})
		if err != nil {
			return fmt.Errorf("messaging: marshal send body: %w", err)
		}
		if err := c.invoke(ctx, "sendMessage", body); err != nil {
			return err
		}
	}
	return nil
}

func (c *TelegramClient) invoke(ctx context.Context, method string, body []byte) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("messaging: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// never log err itself: the url carries the bot token
			lastErr = errors.New("messaging: telegram request failed")
			c.logger.Warn("telegram request failed", "method", method, "attempt", attempt+1)
			if sleepErr := c.sleep(ctx, attempt, 0); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("messaging: read response: %w", readErr)
		}
		apiErr := decodeTelegramResponse(resp.StatusCode, data)
		if apiErr == nil {
			return nil
		}
		if !apiErr.retryable() || attempt == c.maxRetries {
			return apiErr
		}
		lastErr = apiErr
		c.logger.Warn("telegram send retry", "method", method, "attempt", attempt+1, "status", apiErr.Status)
		if sleepErr := c.sleep(ctx, attempt, apiErr.RetryAfter); sleepErr != nil {
			return sleepErr
		}
	}
	return lastErr
}

func decodeTelegramResponse(status int, data []byte) *APIError {
	var payload struct {
		OK          bool   `json:"ok"`
		ErrorCode   int    `json:"error_code"`
		Description string `json:"description"`
		Parameters  struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		if status >= 200 && status < 300 {
			return nil
		}
		return &APIError{Status: status, Code: status, Description: http.StatusText(status)}
	}
	if payload.OK && status >= 200 && status < 300 {
		return nil
	}
	code := payload.ErrorCode
	if code == 0 {
		code = status
	}
	return &APIError{Status: status, Code: code, Description: payload.Description, RetryAfter: payload.Parameters.RetryAfter}
}

func (c *TelegramClient) sleep(ctx context.Context, attempt, retryAfter int) error {
	wait := c.backoff * time.Duration(1<<attempt)
	if retryAfter > 0 {
		wait = time.Duration(retryAfter) * time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// splitText cuts text into chunks of at most limit runes, preferring line
// breaks.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var (
		parts   []string
		current strings.Builder
		count   int
	)
	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
			count = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if count+n > limit {
			flush()
		}
		for n > limit {
			runes := []rune(line)
			parts = append(parts, string(runes[:limit]))
			line = string(runes[limit:])
			n -= limit
		}
		current.WriteString(line)
		count += n
	}
	flush()
	return parts
}
