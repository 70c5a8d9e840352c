// Package actions предоставляет клиент API управления подписками (ActionsManager)
// и каталог действий над подпиской.
package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/subscription-admin/internal/model"
)

const maxErrorBody = 64 << 10

// Client инкапсулирует HTTP-взаимодействие с API управления подписками.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient создаёт HTTP-клиент для обращения к API по указанному базовому адресу
// (например, http://backend/api/v1).
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// GetSubscription запрашивает подписку по идентификатору.
func (c *Client) GetSubscription(ctx context.Context, sid string) (*model.Subscription, error) {
	data, err := c.do(ctx, "Fetch subscription", Request{
		Method: http.MethodGet,
		Path:   "/ActionsManager/subscription/" + url.PathEscape(sid),
	})
	if err != nil {
		return nil, err
	}

	sub, err := NormalizeSubscription(data)
	if err != nil {
		return nil, fmt.Errorf("normalize subscription %s: %w", sid, err)
	}
	return sub, nil
}

// SearchByPhone ищет подписки клиента по номеру телефона.
func (c *Client) SearchByPhone(ctx context.Context, phone string) ([]model.Subscription, error) {
	data, err := c.do(ctx, "Search by phone", Request{
		Method: http.MethodGet,
		Path:   "/ActionsManager/subscription/search-by-phone/" + url.PathEscape(phone),
	})
	if err != nil {
		return nil, err
	}

	subs, err := NormalizeSubscriptions(data)
	if err != nil {
		return nil, fmt.Errorf("normalize search result: %w", err)
	}
	return subs, nil
}

// GetPlanPrice запрашивает расчёт стоимости тарифа.
func (c *Client) GetPlanPrice(ctx context.Context, req PriceRequest) (model.PriceQuote, error) {
	data, err := c.do(ctx, "Get plan price", Request{
		Method: http.MethodPost,
		Path:   "/WebIntegration/GetPlanPrice",
		Body:   req,
	})
	if err != nil {
		return model.PriceQuote{}, err
	}

	quote, err := NormalizePriceQuote(data)
	if err != nil {
		return model.PriceQuote{}, fmt.Errorf("normalize price quote: %w", err)
	}
	return quote, nil
}

// Perform проверяет и отправляет действие над подпиской.
func (c *Client) Perform(ctx context.Context, sid string, a Action) error {
	if err := a.Validate(); err != nil {
		return err
	}

	_, err := c.do(ctx, a.Operation(), a.Request(sid))
	return err
}

func (c *Client) do(ctx context.Context, operation string, r Request) (json.RawMessage, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("actions client not configured")
	}

	target := c.baseURL + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", operation, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("api call",
		zap.String("operation", operation),
		zap.String("method", r.Method),
		zap.String("path", r.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(raw, resp.StatusCode),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Operation: operation, Err: fmt.Errorf("read response: %w", err)}
	}

	data, err := unwrapEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", operation, err)
	}
	return data, nil
}

// unwrapEnvelope извлекает поле data из ответа вида {"data": ...}; если поля нет,
// возвращается тело целиком.
func unwrapEnvelope(raw []byte) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	if raw[0] != '{' {
		return raw, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	if data, ok := envelope["data"]; ok {
		return data, nil
	}
	return raw, nil
}

func errorDetail(raw []byte, status int) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return http.StatusText(status)
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, key := range []string{"message", "Message", "detail", "title", "error", "errors"} {
			switch v := body[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case nil:
			default:
				if b, err := json.Marshal(v); err == nil {
					return string(b)
				}
			}
		}
	}

	return string(raw)
}
