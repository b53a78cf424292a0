package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/YKarmar/jobsync/internal/types"
)

type GormEmailLinkRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormEmailLinkRepository(db *gorm.DB) *GormEmailLinkRepository {
	return &GormEmailLinkRepository{db: db, now: time.Now}
}

// Upsert creates the link or overwrites the descriptive fields of an existing
// (application_id, email_id) pair.
func (r *GormEmailLinkRepository) Upsert(ctx context.Context, link types.EmailLink) error {
	now := r.now()
	m := &EmailLinkModel{
		ApplicationID: link.ApplicationID,
		EmailID:       link.EmailID,
		MailboxID:     link.MailboxID,
		FromAddress:   link.FromAddress,
		SenderName:    link.SenderName,
		Subject:       link.Subject,
		Snippet:       link.Snippet,
		EmailDate:     link.EmailDate,
		EmailType:     string(link.EmailType),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "application_id"}, {Name: "email_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"mailbox_id", "from_address", "sender_name", "subject",
				"snippet", "email_date", "email_type", "updated_at",
			}),
		}).
		Create(m).Error
	if err != nil {
		return fmt.Errorf("upsert email link: %w", err)
	}
	return nil
}

// ListByApplication returns the linked emails, oldest first
func (r *GormEmailLinkRepository) ListByApplication(ctx context.Context, applicationID string) ([]types.EmailLink, error) {
	var rows []EmailLinkModel
	err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("email_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	links := make([]types.EmailLink, 0, len(rows))
	for i := range rows {
		links = append(links, rows[i].toDomain())
	}
	return links, nil
}
