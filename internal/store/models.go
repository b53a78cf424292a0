package store

import (
	"time"

	"github.com/YKarmar/jobsync/internal/types"
)

// ApplicationModel is the persistence model for types.Application
type ApplicationModel struct {
	ID            string  `gorm:"type:varchar(36);primaryKey"`
	MailboxID     string  `gorm:"type:varchar(255);not null;index:idx_applications_mailbox_company_key"`
	Company       string  `gorm:"type:varchar(255);not null"`
	CompanyKey    string  `gorm:"type:varchar(255);not null;default:'';index:idx_applications_mailbox_company_key"`
	Role          *string `gorm:"type:varchar(255)"`
	Location      *string `gorm:"type:varchar(255)"`
	Status        string  `gorm:"type:varchar(20);not null"`
	CloseReason   *string `gorm:"type:varchar(20)"`
	AppliedDate   time.Time
	SourceEmailID string `gorm:"type:varchar(255)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ApplicationModel) TableName() string {
	return "applications"
}

func applicationModelFromDomain(app *types.Application) *ApplicationModel {
	m := &ApplicationModel{
		ID:            app.ID,
		MailboxID:     app.MailboxID,
		Company:       app.Company,
		CompanyKey:    companyKey(app.Company),
		Role:          app.Role,
		Location:      app.Location,
		Status:        string(app.Status),
		AppliedDate:   app.AppliedDate,
		SourceEmailID: app.SourceEmailID,
		CreatedAt:     app.CreatedAt,
		UpdatedAt:     app.UpdatedAt,
	}
	if app.CloseReason != nil {
		reason := string(*app.CloseReason)
		m.CloseReason = &reason
	}
	return m
}

func (m *ApplicationModel) toDomain() *types.Application {
	app := &types.Application{
		ID:            m.ID,
		MailboxID:     m.MailboxID,
		Company:       m.Company,
		Role:          m.Role,
		Location:      m.Location,
		Status:        types.Status(m.Status),
		AppliedDate:   m.AppliedDate,
		SourceEmailID: m.SourceEmailID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.CloseReason != nil {
		reason := types.CloseReason(*m.CloseReason)
		app.CloseReason = &reason
	}
	return app
}

// EmailLinkModel is keyed by (application_id, email_id)
type EmailLinkModel struct {
	ApplicationID string `gorm:"type:varchar(36);primaryKey"`
	EmailID       string `gorm:"type:varchar(255);primaryKey"`
	MailboxID     string `gorm:"type:varchar(255);not null;index"`
	FromAddress   string `gorm:"type:varchar(512)"`
	SenderName    string `gorm:"type:varchar(255)"`
	Subject       string `gorm:"type:text"`
	Snippet       string `gorm:"type:text"`
	EmailDate     time.Time
	EmailType     string `gorm:"type:varchar(40)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (EmailLinkModel) TableName() string {
	return "application_emails"
}

func (m *EmailLinkModel) toDomain() types.EmailLink {
	return types.EmailLink{
		ApplicationID: m.ApplicationID,
		EmailID:       m.EmailID,
		MailboxID:     m.MailboxID,
		FromAddress:   m.FromAddress,
		SenderName:    m.SenderName,
		Subject:       m.Subject,
		Snippet:       m.Snippet,
		EmailDate:     m.EmailDate,
		EmailType:     types.EmailType(m.EmailType),
	}
}

// SyncLogModel is the append-only idempotency ledger
type SyncLogModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	MailboxID   string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_sync_log_mailbox_email"`
	EmailID     string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_sync_log_mailbox_email"`
	Result      string    `gorm:"type:varchar(20);not null"`
	ProcessedAt time.Time `gorm:"not null"`
}

func (SyncLogModel) TableName() string {
	return "email_sync_log"
}
