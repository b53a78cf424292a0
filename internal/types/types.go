package types

import (
	"strings"
	"time"
)

// Status 申请状态，按推进顺序排列
type Status string

const (
	StatusApplied      Status = "applied"      // 已申请
	StatusInterviewing Status = "interviewing" // 面试中
	StatusOffer        Status = "offer"        // 收到offer
	StatusClosed       Status = "closed"       // 已结束
)

// Rank 返回状态在推进顺序中的位置，未知状态返回 -1
func (s Status) Rank() int {
	switch s {
	case StatusApplied:
		return 0
	case StatusInterviewing:
		return 1
	case StatusOffer:
		return 2
	case StatusClosed:
		return 3
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// CloseReason 仅在 StatusClosed 时存在
type CloseReason string

const (
	CloseReasonRejected  CloseReason = "rejected"
	CloseReasonWithdrawn CloseReason = "withdrawn"
	CloseReasonGhosted   CloseReason = "ghosted"
	CloseReasonAccepted  CloseReason = "accepted"
)

// EmailType 邮件分类结果
type EmailType string

const (
	EmailTypeApplicationConfirmation EmailType = "application_confirmation"
	EmailTypeInterviewInvitation     EmailType = "interview_invitation"
	EmailTypeRejection               EmailType = "rejection"
	EmailTypeOffer                   EmailType = "offer"
	EmailTypeCalendarEvent           EmailType = "calendar_event"
	EmailTypeOther                   EmailType = "other"
	EmailTypeUnknown                 EmailType = "unknown"
)

// ImpliedStatus 返回该类型邮件所对应的申请状态；非求职类邮件返回 false
func (t EmailType) ImpliedStatus() (Status, bool) {
	switch t {
	case EmailTypeApplicationConfirmation:
		return StatusApplied, true
	case EmailTypeInterviewInvitation:
		return StatusInterviewing, true
	case EmailTypeOffer:
		return StatusOffer, true
	case EmailTypeRejection:
		return StatusClosed, true
	default:
		return "", false
	}
}

type Email struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Subject   string    `json:"subject"`
	Date      time.Time `json:"date"`
	BodyText  string    `json:"body_text"`
	BodyHTML  string    `json:"body_html,omitempty"`
	Snippet   string    `json:"snippet,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Folder    string    `json:"folder,omitempty"`
}

// Classification 分类器输出，只在一次处理中使用，不单独持久化
type Classification struct {
	Type       EmailType `json:"type"`
	Company    string    `json:"company"`
	Role       string    `json:"role"`
	Location   string    `json:"location"`
	Confidence float64   `json:"confidence"`
}

func (c Classification) HasCompany() bool {
	return strings.TrimSpace(c.Company) != ""
}

func (c Classification) HasRole() bool {
	return strings.TrimSpace(c.Role) != ""
}

// Application 一条求职申请记录。Role/Location 为 nil 表示尚未知晓
type Application struct {
	ID            string       `json:"id"`
	MailboxID     string       `json:"mailbox_id"`
	Company       string       `json:"company"`
	Role          *string      `json:"role,omitempty"`
	Location      *string      `json:"location,omitempty"`
	Status        Status       `json:"status"`
	CloseReason   *CloseReason `json:"close_reason,omitempty"`
	AppliedDate   time.Time    `json:"applied_date"`
	SourceEmailID string       `json:"source_email_id"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// RoleOrEmpty 返回职位名称，未知时为空串
func (a *Application) RoleOrEmpty() string {
	if a.Role == nil {
		return ""
	}
	return *a.Role
}

// EmailLink 关联到某条申请的邮件摘要，(ApplicationID, EmailID) 唯一
type EmailLink struct {
	ApplicationID string    `json:"application_id"`
	EmailID       string    `json:"email_id"`
	MailboxID     string    `json:"mailbox_id"`
	FromAddress   string    `json:"from_address"`
	SenderName    string    `json:"sender_name"`
	Subject       string    `json:"subject"`
	Snippet       string    `json:"snippet"`
	EmailDate     time.Time `json:"email_date"`
	EmailType     EmailType `json:"email_type"`
}

type SyncResult string

const (
	SyncResultProcessed SyncResult = "processed"
	SyncResultSkipped   SyncResult = "skipped"
)

// SyncLogEntry 幂等账本中的一条记录，只追加
type SyncLogEntry struct {
	MailboxID   string     `json:"mailbox_id"`
	EmailID     string     `json:"email_id"`
	Result      SyncResult `json:"result"`
	ProcessedAt time.Time  `json:"processed_at"`
}

// StringPtr 将非空字符串转换为指针，空串返回 nil
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
