package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/YKarmar/jobsync/internal/types"
)

// JSON-RPC 错误码
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeServerError    = -32000
	// CodeReauthRequired 表示邮箱凭证失效，需要用户重新授权
	CodeReauthRequired = -32001
)

const MethodFetch = "email.fetch"

var (
	// ErrReauthRequired 邮箱凭证被拒绝（JSON-RPC -32001）
	ErrReauthRequired = errors.New("mailbox reauthorization required")
	// ErrAdapterUnauthorized 适配器拒绝了本地配置的 API key
	ErrAdapterUnauthorized = errors.New("MCP server rejected the API key")
	// ErrInvalidParams 适配器认为请求参数无法使用（JSON-RPC -32602）
	ErrInvalidParams = errors.New("MCP server rejected the request parameters")
)

// MCP协议相关结构体
type MCPRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type MCPResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *MCPError       `json:"error,omitempty"`
}

type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// FetchParams email.fetch 的参数
type FetchParams struct {
	Email        string    `json:"email"`
	Host         string    `json:"host,omitempty"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Since        time.Time `json:"since"`
	MaxEmails    int       `json:"max_emails"`
	Folders      []string  `json:"folders,omitempty"`
}

// MCP邮件客户端配置
type MCPEmailConfig struct {
	Email       string        `json:"email"`
	Host        string        `json:"host,omitempty"`
	MCPEndpoint string        `json:"mcp_endpoint"`
	APIKey      string        `json:"api_key,omitempty"`
	Since       time.Time     `json:"since"`
	MaxEmails   int           `json:"max_emails"`
	Folders     []string      `json:"folders,omitempty"`
	Timeout     time.Duration `json:"timeout"`
}

// MCP邮件客户端
type MCPEmailClient struct {
	config     MCPEmailConfig
	httpClient *http.Client
}

// 创建MCP邮件客户端
func NewMCPEmailClient(config MCPEmailConfig) *MCPEmailClient {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &MCPEmailClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// FetchCandidateEmails 通过MCP协议获取候选邮件。邮箱凭证失效时返回 ErrReauthRequired，
// API key 错误返回 ErrAdapterUnauthorized
func (c *MCPEmailClient) FetchCandidateEmails(ctx context.Context, accessToken, refreshToken string) ([]types.Email, error) {
	params := FetchParams{
		Email:        c.config.Email,
		Host:         c.config.Host,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Since:        c.config.Since,
		MaxEmails:    c.config.MaxEmails,
		Folders:      c.config.Folders,
	}

	var emails []types.Email
	if err := c.call(ctx, MethodFetch, params, &emails); err != nil {
		return nil, err
	}
	return dedupe(emails), nil
}

func (c *MCPEmailClient) call(ctx context.Context, method string, params any, out any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal MCP params: %w", err)
	}
	mcpReq := MCPRequest{
		Jsonrpc: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  rawParams,
	}

	reqBody, err := json.Marshal(mcpReq)
	if err != nil {
		return fmt.Errorf("marshal MCP request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.MCPEndpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: MCP server returned %d", ErrAdapterUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("MCP server error (%d): %s", resp.StatusCode, string(body))
	}

	var mcpResp MCPResponse
	if err := json.NewDecoder(resp.Body).Decode(&mcpResp); err != nil {
		return fmt.Errorf("decode MCP response: %w", err)
	}

	if mcpResp.Error != nil {
		switch mcpResp.Error.Code {
		case CodeReauthRequired:
			return fmt.Errorf("%w: %w", ErrReauthRequired, mcpResp.Error)
		case CodeInvalidParams:
			return fmt.Errorf("%w: %w", ErrInvalidParams, mcpResp.Error)
		}
		return mcpResp.Error
	}

	if err := json.Unmarshal(mcpResp.Result, out); err != nil {
		return fmt.Errorf("unmarshal %s result: %w", method, err)
	}
	return nil
}

// dedupe 去掉重复ID（同一封邮件可能出现在多个文件夹中）
func dedupe(emails []types.Email) []types.Email {
	seen := make(map[string]struct{}, len(emails))
	out := emails[:0]
	for _, e := range emails {
		if e.ID == "" {
			continue
		}
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}
