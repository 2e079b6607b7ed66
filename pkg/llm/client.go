// Package llm provides a client for the OpenAI-compatible AI gateway.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"studymind-go/internal/config"
	"studymind-go/pkg/log"
)

var (
	// ErrRateLimited 对应上游 429。
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrCreditsExhausted 对应上游 402。
	ErrCreditsExhausted = errors.New("ai credits exhausted")
	// ErrNoStream 表示上游返回 200 但没有响应体。
	ErrNoStream = errors.New("no stream in gateway response")
	// ErrNoToolCall 表示上游没有按要求返回函数调用。
	ErrNoToolCall = errors.New("no tool call in gateway response")
)

// StatusError 是上游返回非 2xx 状态码时的错误。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai gateway returned status %d", e.StatusCode)
}

// Unwrap 让 errors.Is 可以直接识别限流和额度耗尽。
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrCreditsExhausted
	}
	return nil
}

// Client defines the interface for the AI gateway client.
type Client interface {
	// StreamChat 发起流式对话，返回未经修改的上游 SSE 响应体，调用方负责关闭。
	StreamChat(ctx context.Context, messages []Message) (io.ReadCloser, error)
	// CallTool 强制模型调用指定函数，返回函数参数的原始 JSON。
	CallTool(ctx context.Context, messages []Message, tool Tool) (json.RawMessage, error)
	// Model 返回请求中使用的模型名，写入用量日志。
	Model() string
}

type gatewayClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new gateway client. 不设置超时、不重试，由用户重新提交。
func NewClient(cfg config.LLMConfig) Client {
	return NewClientWithHTTPClient(cfg, &http.Client{})
}

// NewClientWithHTTPClient 允许注入自定义的 http.Client（测试中替换 Transport）。
func NewClientWithHTTPClient(cfg config.LLMConfig, httpClient *http.Client) Client {
	return &gatewayClient{cfg: cfg, client: httpClient}
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool 描述一个函数调用 schema。
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type toolSpec struct {
	Type     string `json:"type"`
	Function Tool   `json:"function"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatRequest struct {
	Model       string      `json:"model"`
	Messages    []Message   `json:"messages"`
	Stream      bool        `json:"stream,omitempty"`
	Tools       []toolSpec  `json:"tools,omitempty"`
	ToolChoice  *toolChoice `json:"tool_choice,omitempty"`
	Temperature *float64    `json:"temperature,omitempty"`
	TopP        *float64    `json:"top_p,omitempty"`
	MaxTokens   *int        `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *gatewayClient) Model() string {
	return c.cfg.Model
}

// StreamChat calls the gateway with stream=true and hands back the body.
func (c *gatewayClient) StreamChat(ctx context.Context, messages []Message) (io.ReadCloser, error) {
	reqBody := c.newRequest(messages)
	reqBody.Stream = true

	resp, err := c.do(ctx, reqBody, "text/event-stream")
	if err != nil {
		return nil, err
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, ErrNoStream
	}
	return resp.Body, nil
}

// CallTool 发送非流式请求，tool_choice 强制指定函数。
func (c *gatewayClient) CallTool(ctx context.Context, messages []Message, tool Tool) (json.RawMessage, error) {
	reqBody := c.newRequest(messages)
	reqBody.Tools = []toolSpec{{Type: "function", Function: tool}}
	choice := &toolChoice{Type: "function"}
	choice.Function.Name = tool.Name
	reqBody.ToolChoice = choice

	resp, err := c.do(ctx, reqBody, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(completion.Choices) == 0 || len(completion.Choices[0].Message.ToolCalls) == 0 {
		return nil, ErrNoToolCall
	}
	args := completion.Choices[0].Message.ToolCalls[0].Function.Arguments
	if strings.TrimSpace(args) == "" {
		return nil, ErrNoToolCall
	}
	return json.RawMessage(args), nil
}

func (c *gatewayClient) newRequest(messages []Message) chatRequest {
	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
	}
	// 从全局配置注入（若非零值）
	if c.cfg.Generation.Temperature != 0 {
		t := c.cfg.Generation.Temperature
		reqBody.Temperature = &t
	}
	if c.cfg.Generation.TopP != 0 {
		p := c.cfg.Generation.TopP
		reqBody.TopP = &p
	}
	if c.cfg.Generation.MaxTokens != 0 {
		m := c.cfg.Generation.MaxTokens
		reqBody.MaxTokens = &m
	}
	return reqBody
}

// do 发送请求；非 200 时读完响应体并返回 *StatusError。
func (c *gatewayClient) do(ctx context.Context, reqBody chatRequest, accept string) (*http.Response, error) {
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", accept)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ai gateway: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var body []byte
		if resp.Body != nil {
			body, _ = io.ReadAll(resp.Body)
			resp.Body.Close()
		}
		log.Errorf("[GatewayClient] AI gateway error, status: %d, body: %s", resp.StatusCode, string(body))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}
