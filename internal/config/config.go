package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Config struct {
	Mailbox struct {
		ID           string   `yaml:"id"`
		Email        string   `yaml:"email" validate:"required,email"`
		Provider     string   `yaml:"provider"`
		Host         string   `yaml:"host"`
		AccessToken  string   `yaml:"access_token"`
		RefreshToken string   `yaml:"refresh_token"`
		Folders      []string `yaml:"folders"`
	} `yaml:"mailbox"`
	MCP struct {
		Endpoint string `yaml:"endpoint" validate:"url"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"mcp"`
	Fetch struct {
		Start     string `yaml:"start"` // YYYY-MM-DD or RFC3339
		MaxEmails int    `yaml:"max_emails" validate:"gt=0"`
	} `yaml:"fetch"`
	LLM struct {
		APIBase     string  `yaml:"api_base"`
		APIKey      string  `yaml:"api_key"`
		Model       string  `yaml:"model"`
		Temperature float64 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"llm"`
	Database struct {
		Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
		DSN    string `yaml:"dsn" validate:"required"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Sync struct {
		Interval   time.Duration `yaml:"interval"`
		RunTimeout time.Duration `yaml:"run_timeout"`
		// 未设置时取 0.6，显式写 0 表示不做置信度过滤
		MinConfidence *float64 `yaml:"min_confidence" validate:"omitempty,gte=0,lte=1"`
	} `yaml:"sync"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format" validate:"oneof=console json"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Export struct {
		File string `yaml:"file"`
	} `yaml:"export"`
}

// Load 加载配置文件并替换环境变量
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse 解析YAML内容并填充默认值
func Parse(b []byte) (*Config, error) {
	content := expandEnvVars(string(b))

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if cfg.Mailbox.Email == "" {
		return nil, fmt.Errorf("mailbox.email is required")
	}
	if cfg.Mailbox.ID == "" {
		cfg.Mailbox.ID = strings.ToLower(cfg.Mailbox.Email)
	}

	if cfg.Mailbox.Provider == "" {
		cfg.Mailbox.Provider = InferEmailProvider(cfg.Mailbox.Email)
	}
	if cfg.Mailbox.Host == "" {
		cfg.Mailbox.Host = InferIMAPHost(cfg.Mailbox.Email)
	}
	if len(cfg.Mailbox.Folders) == 0 {
		cfg.Mailbox.Folders = DefaultFolders(cfg.Mailbox.Provider)
	}

	if cfg.MCP.Endpoint == "" {
		cfg.MCP.Endpoint = "http://localhost:8080/mcp"
	}
	if cfg.Fetch.MaxEmails <= 0 {
		cfg.Fetch.MaxEmails = 100
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = 2000
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "jobtracker.db"
	}

	if cfg.Sync.Interval <= 0 {
		cfg.Sync.Interval = 15 * time.Minute
	}
	if cfg.Sync.RunTimeout <= 0 {
		cfg.Sync.RunTimeout = 5 * time.Minute
	}
	if cfg.Sync.MinConfidence == nil {
		minConfidence := 0.6
		cfg.Sync.MinConfidence = &minConfidence
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Export.File == "" {
		cfg.Export.File = "applications.csv"
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// expandEnvVars 替换 ${VAR_NAME} 格式的环境变量
func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return match // 如果环境变量不存在，保持原样
	})
}

// InferEmailProvider 根据邮箱地址推断提供商
func InferEmailProvider(email string) string {
	email = strings.ToLower(email)

	if strings.Contains(email, "@gmail.com") || strings.Contains(email, "@googlemail.com") {
		return "gmail"
	}
	if strings.Contains(email, "@outlook.com") || strings.Contains(email, "@hotmail.com") || strings.Contains(email, "@live.com") {
		return "outlook"
	}
	if strings.Contains(email, "@yahoo.com") || strings.Contains(email, "@yahoo.co.") {
		return "yahoo"
	}
	if strings.Contains(email, "@qq.com") || strings.Contains(email, "@163.com") || strings.Contains(email, "@126.com") {
		return "chinese"
	}

	return "custom"
}

// InferIMAPHost 根据邮箱地址推断IMAP主机，无法推断时返回空串
func InferIMAPHost(email string) string {
	email = strings.ToLower(email)

	switch InferEmailProvider(email) {
	case "gmail":
		return "imap.gmail.com:993"
	case "outlook":
		return "outlook.office365.com:993"
	case "yahoo":
		return "imap.mail.yahoo.com:993"
	}

	switch {
	case hasSuffixInsensitive(email, "@qq.com"):
		return "imap.qq.com:993"
	case hasSuffixInsensitive(email, "@163.com"):
		return "imap.163.com:993"
	case hasSuffixInsensitive(email, "@126.com"):
		return "imap.126.com:993"
	}
	return ""
}

// DefaultFolders 根据邮箱提供商返回默认文件夹
func DefaultFolders(provider string) []string {
	switch provider {
	case "gmail":
		return []string{"INBOX", "[Gmail]/All Mail"}
	case "outlook":
		return []string{"INBOX"}
	case "yahoo":
		return []string{"INBOX"}
	default:
		return []string{"INBOX"}
	}
}

func hasSuffixInsensitive(s, suf string) bool {
	return strings.HasSuffix(strings.ToLower(s), strings.ToLower(suf))
}

func ParseDateLoose(s string, def time.Time) time.Time {
	if s == "" {
		return def
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return def
}
