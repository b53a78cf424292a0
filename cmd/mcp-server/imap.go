package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/YKarmar/jobsync/internal/client"
	"github.com/YKarmar/jobsync/internal/config"
	"github.com/YKarmar/jobsync/internal/types"
)

const maxBodyBytes = 256 << 10

// OAuthClient 某个邮箱提供商的OAuth应用凭证
type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

// IMAPFetcher 通过IMAP读取邮件，OAuth提供商使用OAUTHBEARER认证，其余使用应用密码
type IMAPFetcher struct {
	Timeout time.Duration
	OAuth   map[string]OAuthClient // provider -> client
	logger  *zap.Logger
}

func NewIMAPFetcher(oauth map[string]OAuthClient, timeout time.Duration, logger *zap.Logger) *IMAPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &IMAPFetcher{Timeout: timeout, OAuth: oauth, logger: logger}
}

func (f *IMAPFetcher) Fetch(ctx context.Context, params client.FetchParams) ([]types.Email, error) {
	provider := config.InferEmailProvider(params.Email)
	host := params.Host
	if host == "" {
		host = config.InferIMAPHost(params.Email)
	}
	if host == "" {
		return nil, fmt.Errorf("%w: cannot infer IMAP host for %s", errInvalidParams, params.Email)
	}
	folders := params.Folders
	if len(folders) == 0 {
		folders = config.DefaultFolders(provider)
	}
	maxEmails := params.MaxEmails
	if maxEmails <= 0 {
		maxEmails = 100
	}

	// 连接IMAP
	c, err := imapclient.DialTLS(host, &tls.Config{})
	if err != nil {
		return nil, fmt.Errorf("dial IMAP %s: %w", host, err)
	}
	c.Timeout = f.Timeout
	defer c.Logout()

	// IMAP客户端不支持context，取消时直接断开连接
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	if err := f.authenticate(ctx, c, provider, params); err != nil {
		return nil, err
	}

	var emails []types.Email
	seen := make(map[string]struct{})
	for _, folder := range folders {
		if len(emails) >= maxEmails {
			break
		}
		folderEmails, err := f.fetchFromFolder(c, folder, params.Since, maxEmails-len(emails))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("fetch folder failed", zap.String("folder", folder), zap.Error(err))
			continue
		}
		for _, e := range folderEmails {
			// Gmail 的 All Mail 与 INBOX 会重复出现同一封邮件
			if e.MessageID != "" {
				if _, ok := seen[e.MessageID]; ok {
					continue
				}
				seen[e.MessageID] = struct{}{}
			}
			emails = append(emails, e)
		}
	}
	return emails, nil
}

func (f *IMAPFetcher) authenticate(ctx context.Context, c *imapclient.Client, provider string, params client.FetchParams) error {
	endpoint, isOAuth := oauthEndpoint(provider)
	if !isOAuth {
		// 非OAuth邮箱（qq/163等）的 access_token 即应用密码
		if err := c.Login(params.Email, params.AccessToken); err != nil {
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		return nil
	}

	token := params.AccessToken
	if token != "" {
		err := c.Authenticate(sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{Username: params.Email, Token: token}))
		if err == nil {
			return nil
		}
		if params.RefreshToken == "" {
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		f.logger.Info("access token rejected, refreshing", zap.String("email", params.Email))
	}

	token, err := f.refresh(ctx, provider, endpoint, params.RefreshToken)
	if err != nil {
		return err
	}
	if err := c.Authenticate(sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{Username: params.Email, Token: token})); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return nil
}

func (f *IMAPFetcher) refresh(ctx context.Context, provider string, endpoint oauth2.Endpoint, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token", ErrAuthFailed)
	}
	creds, ok := f.OAuth[provider]
	if !ok || creds.ClientID == "" {
		return "", fmt.Errorf("OAuth client for %s is not configured", provider)
	}
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     endpoint,
	}
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return "", fmt.Errorf("%w: refresh token: %v", ErrAuthFailed, err)
		}
		return "", fmt.Errorf("refresh token: %w", err)
	}
	return tok.AccessToken, nil
}

func oauthEndpoint(provider string) (oauth2.Endpoint, bool) {
	switch provider {
	case "gmail":
		return endpoints.Google, true
	case "outlook":
		return endpoints.AzureAD("common"), true
	case "yahoo":
		return endpoints.Yahoo, true
	}
	return oauth2.Endpoint{}, false
}

func (f *IMAPFetcher) fetchFromFolder(c *imapclient.Client, folder string, since time.Time, limit int) ([]types.Email, error) {
	mbox, err := c.Select(folder, true)
	if err != nil {
		return nil, err
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	if !since.IsZero() {
		criteria.Since = since
	}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}

	// 只取最新的 limit 封
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var emails []types.Email
	for msg := range messages {
		email := convertToEmail(msg, folder, mbox.UidValidity)
		if body := msg.GetBody(section); body != nil {
			text, htmlBody, err := extractBody(body)
			if err != nil {
				f.logger.Debug("parse message body failed", zap.String("email_id", email.ID), zap.Error(err))
			}
			email.BodyText = text
			email.BodyHTML = htmlBody
			if email.BodyText == "" && htmlBody != "" {
				email.BodyText = htmlToText(htmlBody)
			}
		}
		emails = append(emails, email)
	}

	if err := <-done; err != nil {
		return nil, err
	}
	return emails, nil
}

// emailID 在 UIDVALIDITY 不变时对同一文件夹中的邮件是稳定的
func emailID(folder string, uidValidity, uid uint32) string {
	return fmt.Sprintf("%s/%d/%d", folder, uidValidity, uid)
}

func convertToEmail(msg *imap.Message, folder string, uidValidity uint32) types.Email {
	email := types.Email{
		ID:     emailID(folder, uidValidity, msg.Uid),
		Folder: folder,
	}
	if env := msg.Envelope; env != nil {
		if len(env.From) > 0 && env.From[0] != nil {
			from := env.From[0]
			addr := mail.Address{Name: from.PersonalName, Address: from.Address()}
			email.From = addr.String()
		}
		email.Subject = env.Subject
		email.Date = env.Date
		email.MessageID = env.MessageId
	}
	return email
}

// extractBody 返回第一个 text/plain 和 text/html 正文，跳过附件
func extractBody(r io.Reader) (text, htmlBody string, err error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", "", err
	}
	defer mr.Close()

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && (p == nil || !(message.IsUnknownCharset(err) || message.IsUnknownEncoding(err))) {
			return text, htmlBody, err
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType != "text/plain" && contentType != "text/html" {
			continue
		}
		b, err := io.ReadAll(io.LimitReader(p.Body, maxBodyBytes))
		if err != nil {
			return text, htmlBody, err
		}
		switch {
		case contentType == "text/plain" && text == "":
			text = string(b)
		case contentType == "text/html" && htmlBody == "":
			htmlBody = string(b)
		}
	}
	return text, htmlBody, nil
}

// inlineTags 两侧不补空格，避免把 <b>interview</b>. 拆成两个词
var inlineTags = map[string]bool{
	"a": true, "b": true, "em": true, "font": true, "i": true,
	"small": true, "span": true, "strong": true, "u": true,
}

// htmlToText 提取可见文本，实体由 tokenizer 解码，script/style 内容丢弃
func htmlToText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	hidden := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				switch tt {
				case html.StartTagToken:
					hidden++
				case html.EndTagToken:
					if hidden > 0 {
						hidden--
					}
				}
			}
			if !inlineTags[tag] {
				b.WriteByte(' ')
			}
		}
	}
}
