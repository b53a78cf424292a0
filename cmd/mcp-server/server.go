package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/YKarmar/jobsync/internal/client"
	"github.com/YKarmar/jobsync/internal/types"
)

// ErrAuthFailed 邮箱服务器拒绝了凭证
var ErrAuthFailed = errors.New("mailbox authentication failed")

// errInvalidParams 参数缺失或无法使用
var errInvalidParams = errors.New("invalid params")

// Fetcher 从邮箱拉取候选邮件
type Fetcher interface {
	Fetch(ctx context.Context, params client.FetchParams) ([]types.Email, error)
}

// MCP服务器
type MCPServer struct {
	fetcher Fetcher
	apiKey  string
	logger  *zap.Logger
}

func NewMCPServer(fetcher Fetcher, apiKey string, logger *zap.Logger) *MCPServer {
	return &MCPServer{
		fetcher: fetcher,
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (s *MCPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.apiKey != "" && strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != s.apiKey {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req client.MCPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, req.ID, client.CodeParseError, "Parse error")
		return
	}

	switch req.Method {
	case client.MethodFetch:
		s.handleFetch(r.Context(), w, req)
	default:
		s.sendError(w, req.ID, client.CodeMethodNotFound, "Method not found")
	}
}

func (s *MCPServer) handleFetch(ctx context.Context, w http.ResponseWriter, req client.MCPRequest) {
	var params client.FetchParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(w, req.ID, client.CodeInvalidParams, "invalid fetch parameters")
		return
	}
	if params.Email == "" {
		s.sendError(w, req.ID, client.CodeInvalidParams, "email is required")
		return
	}
	if params.AccessToken == "" && params.RefreshToken == "" {
		s.sendError(w, req.ID, client.CodeReauthRequired, "no mailbox credentials supplied")
		return
	}

	log := s.logger.With(zap.String("email", params.Email))
	emails, err := s.fetcher.Fetch(ctx, params)
	switch {
	case errors.Is(err, ErrAuthFailed):
		log.Warn("mailbox authentication failed", zap.Error(err))
		s.sendError(w, req.ID, client.CodeReauthRequired, err.Error())
		return
	case errors.Is(err, errInvalidParams):
		s.sendError(w, req.ID, client.CodeInvalidParams, err.Error())
		return
	case err != nil:
		log.Error("fetch emails failed", zap.Error(err))
		s.sendError(w, req.ID, client.CodeServerError, err.Error())
		return
	}
	if emails == nil {
		emails = []types.Email{}
	}

	result, err := json.Marshal(emails)
	if err != nil {
		s.sendError(w, req.ID, client.CodeServerError, err.Error())
		return
	}
	log.Info("emails fetched", zap.Int("count", len(emails)))
	s.send(w, client.MCPResponse{Jsonrpc: "2.0", ID: req.ID, Result: result})
}

func (s *MCPServer) sendError(w http.ResponseWriter, id string, code int, message string) {
	s.send(w, client.MCPResponse{
		Jsonrpc: "2.0",
		ID:      id,
		Error: &client.MCPError{
			Code:    code,
			Message: message,
		},
	})
}

func (s *MCPServer) send(w http.ResponseWriter, resp client.MCPResponse) {
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("write MCP response failed", zap.Error(err))
	}
}
