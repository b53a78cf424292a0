package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/YKarmar/jobsync/internal/types"
)

// lookupChunkSize keeps IN lists under the SQLite bound-variable limit
const lookupChunkSize = 500

// GormSyncLogRepository is the append-only ledger of processed emails
type GormSyncLogRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db, now: time.Now}
}

// ProcessedEmailIDs returns the subset of emailIDs already present in the log
// together with their recorded result.
func (r *GormSyncLogRepository) ProcessedEmailIDs(ctx context.Context, mailboxID string, emailIDs []string) (map[string]types.SyncResult, error) {
	seen := make(map[string]types.SyncResult, len(emailIDs))
	for start := 0; start < len(emailIDs); start += lookupChunkSize {
		end := min(start+lookupChunkSize, len(emailIDs))

		var rows []SyncLogModel
		err := r.db.WithContext(ctx).
			Select("email_id", "result").
			Where("mailbox_id = ? AND email_id IN ?", mailboxID, emailIDs[start:end]).
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("read sync log: %w", err)
		}
		for _, row := range rows {
			seen[row.EmailID] = types.SyncResult(row.Result)
		}
	}
	return seen, nil
}

// HasProcessed reports whether a single email is already in the log
func (r *GormSyncLogRepository) HasProcessed(ctx context.Context, mailboxID, emailID string) (bool, error) {
	seen, err := r.ProcessedEmailIDs(ctx, mailboxID, []string{emailID})
	if err != nil {
		return false, err
	}
	_, ok := seen[emailID]
	return ok, nil
}

// Record appends an entry. An existing entry for the same email is left untouched.
func (r *GormSyncLogRepository) Record(ctx context.Context, mailboxID, emailID string, result types.SyncResult) error {
	m := &SyncLogModel{
		MailboxID:   mailboxID,
		EmailID:     emailID,
		Result:      string(result),
		ProcessedAt: r.now(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "mailbox_id"}, {Name: "email_id"}},
			DoNothing: true,
		}).
		Create(m).Error
	if err != nil {
		return fmt.Errorf("write sync log: %w", err)
	}
	return nil
}

// Entries returns the log of a mailbox in insertion order
func (r *GormSyncLogRepository) Entries(ctx context.Context, mailboxID string) ([]types.SyncLogEntry, error) {
	var rows []SyncLogModel
	if err := r.db.WithContext(ctx).Where("mailbox_id = ?", mailboxID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]types.SyncLogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, types.SyncLogEntry{
			MailboxID:   row.MailboxID,
			EmailID:     row.EmailID,
			Result:      types.SyncResult(row.Result),
			ProcessedAt: row.ProcessedAt,
		})
	}
	return entries, nil
}
