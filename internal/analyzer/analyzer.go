package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/YKarmar/jobsync/internal/types"
)

// LLM客户端配置
type LLMConfig struct {
	APIBase     string  `json:"api_base"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// LLM请求和响应结构
type LLMRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type LLMResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// 求职邮件分类器
type JobAnalyzer struct {
	llmConfig  LLMConfig
	httpClient *http.Client
}

// 创建求职分类器
func NewJobAnalyzer(config LLMConfig) *JobAnalyzer {
	return &JobAnalyzer{
		llmConfig: config,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

const classifyPrompt = `
请判断以下邮件属于哪一类求职邮件，并提取公司名称、职位、工作地点。

邮件信息：
发件人: %s
主题: %s
正文: %s

请按以下JSON格式返回分析结果：
{
  "type": "application_confirmation | interview_invitation | rejection | offer | calendar_event | other | unknown",
  "company": "公司名称，无法确定时为空",
  "role": "职位名称，邮件未提及时为空",
  "location": "工作地点，可为空",
  "confidence": 0.0
}

类型说明：
- application_confirmation: 投递成功/已收到申请
- interview_invitation: 面试邀请/面试安排/在线测试
- rejection: 拒信/未通过
- offer: 录用通知
- calendar_event: 日历邀请、会议通知
- other: 与求职无关
- unknown: 无法判断

confidence 为 0 到 1 之间的小数，表示你对分类结果的把握。
请确保返回有效的JSON格式，不要包含其他内容。
`

// Classify 调用LLM对邮件分类，返回结构化的分类结果
func (ja *JobAnalyzer) Classify(ctx context.Context, subject, from, body string) (types.Classification, error) {
	prompt := fmt.Sprintf(classifyPrompt, from, subject, truncateText(body, 2000))

	response, err := ja.callLLM(ctx, prompt)
	if err != nil {
		return types.Classification{}, fmt.Errorf("LLM classification failed: %w", err)
	}
	return ParseClassification(response)
}

// ParseClassification 解析LLM返回的JSON
func ParseClassification(response string) (types.Classification, error) {
	var result struct {
		Type       string          `json:"type"`
		Company    string          `json:"company"`
		Role       string          `json:"role"`
		Location   string          `json:"location"`
		Confidence json.RawMessage `json:"confidence"`
	}

	// 清理响应文本，提取JSON部分
	jsonStr := extractJSON(response)
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return types.Classification{}, fmt.Errorf("parse JSON response: %w, response: %s", err, response)
	}

	confidence, err := parseConfidence(result.Confidence)
	if err != nil {
		return types.Classification{}, err
	}

	return types.Classification{
		Type:       normalizeEmailType(result.Type),
		Company:    cleanText(result.Company),
		Role:       cleanText(result.Role),
		Location:   cleanText(result.Location),
		Confidence: confidence,
	}, nil
}

// 调用LLM API
func (ja *JobAnalyzer) callLLM(ctx context.Context, prompt string) (string, error) {
	req := LLMRequest{
		Model:       ja.llmConfig.Model,
		Temperature: ja.llmConfig.Temperature,
		MaxTokens:   ja.llmConfig.MaxTokens,
		Messages: []Message{
			{
				Role:    "user",
				Content: prompt,
			},
		},
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(ja.llmConfig.APIBase, "/")+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+ja.llmConfig.APIKey)

	resp, err := ja.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("LLM API error (%d): %s", resp.StatusCode, string(body))
	}

	var llmResp LLMResponse
	if err := json.NewDecoder(resp.Body).Decode(&llmResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(llmResp.Choices) == 0 {
		return "", errors.New("no response from LLM")
	}

	return llmResp.Choices[0].Message.Content, nil
}

// 辅助函数

// 截断文本到指定长度
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

// 提取JSON字符串
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}

	end := strings.LastIndex(text, "}")
	if end == -1 || end <= start {
		return text
	}

	return text[start : end+1]
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// 清理文本，"unknown"/"N/A" 之类的占位值视为空
func cleanText(text string) string {
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	switch strings.ToLower(text) {
	case "unknown", "n/a", "na", "none", "null", "未知", "无":
		return ""
	}
	return text
}

// confidence 可能是数字，也可能被模型写成字符串
func parseConfidence(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("invalid confidence %s", string(raw))
		}
		v, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid confidence %q", s)
		}
	}
	switch {
	case v < 0:
		return 0, nil
	case v > 1:
		return 1, nil
	}
	return v, nil
}

// 标准化邮件类型
func normalizeEmailType(t string) types.EmailType {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.NewReplacer("-", "_", " ", "_").Replace(t)

	switch t {
	case "application_confirmation", "applied", "application", "confirmation", "已申请":
		return types.EmailTypeApplicationConfirmation
	case "interview_invitation", "interview", "oa", "online_assessment", "面试", "笔试":
		return types.EmailTypeInterviewInvitation
	case "rejection", "rejected", "declined", "拒绝", "未通过":
		return types.EmailTypeRejection
	case "offer", "录用":
		return types.EmailTypeOffer
	case "calendar_event", "calendar", "meeting":
		return types.EmailTypeCalendarEvent
	case "other", "not_job_related":
		return types.EmailTypeOther
	default:
		return types.EmailTypeUnknown
	}
}
