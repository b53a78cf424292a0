package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/YKarmar/jobsync/internal/types"
)

// GormApplicationRepository is the Application Store. All company lookups are
// case-insensitive and scoped to one mailbox.
type GormApplicationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormApplicationRepository(db *gorm.DB) *GormApplicationRepository {
	return &GormApplicationRepository{db: db, now: time.Now}
}

// companyKey 在 Go 侧做 Unicode 大小写折叠，不依赖数据库的 LOWER()
func companyKey(company string) string {
	return cases.Fold().String(strings.TrimSpace(company))
}

func (r *GormApplicationRepository) byCompany(ctx context.Context, mailboxID, company string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&ApplicationModel{}).
		Where("mailbox_id = ? AND company_key = ?", mailboxID, companyKey(company))
}

func (r *GormApplicationRepository) takeNewest(q *gorm.DB) (*types.Application, error) {
	var m ApplicationModel
	err := q.Order("created_at DESC").Order("id DESC").Limit(1).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m.toDomain(), nil
}

// FindByCompanyAndRole returns the newest application with exactly this role
func (r *GormApplicationRepository) FindByCompanyAndRole(ctx context.Context, mailboxID, company, role string) (*types.Application, error) {
	return r.takeNewest(r.byCompany(ctx, mailboxID, company).Where("role = ?", strings.TrimSpace(role)))
}

// FindByCompanyWithNullRole returns the newest application whose role is still unknown
func (r *GormApplicationRepository) FindByCompanyWithNullRole(ctx context.Context, mailboxID, company string) (*types.Application, error) {
	return r.takeNewest(r.byCompany(ctx, mailboxID, company).Where("role IS NULL"))
}

// FindMostRecentByCompany returns the most recently created application for the company
func (r *GormApplicationRepository) FindMostRecentByCompany(ctx context.Context, mailboxID, company string) (*types.Application, error) {
	return r.takeNewest(r.byCompany(ctx, mailboxID, company))
}

// Get returns the application with the given id
func (r *GormApplicationRepository) Get(ctx context.Context, id string) (*types.Application, error) {
	var m ApplicationModel
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m.toDomain(), nil
}

// ListByMailbox returns every application of the mailbox, newest first
func (r *GormApplicationRepository) ListByMailbox(ctx context.Context, mailboxID string) ([]*types.Application, error) {
	var rows []ApplicationModel
	err := r.db.WithContext(ctx).
		Where("mailbox_id = ?", mailboxID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	apps := make([]*types.Application, 0, len(rows))
	for i := range rows {
		apps = append(apps, rows[i].toDomain())
	}
	return apps, nil
}

// Create inserts a new application, assigning id and timestamps when unset
func (r *GormApplicationRepository) Create(ctx context.Context, app *types.Application) error {
	if strings.TrimSpace(app.Company) == "" {
		return fmt.Errorf("create application: company is required")
	}
	if !app.Status.Valid() {
		return fmt.Errorf("create application: invalid status %q", app.Status)
	}
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := r.now()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	if app.UpdatedAt.IsZero() {
		app.UpdatedAt = app.CreatedAt
	}

	if err := r.db.WithContext(ctx).Create(applicationModelFromDomain(app)).Error; err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// UpdateStatus writes status and close reason together; a nil reason clears it
func (r *GormApplicationRepository) UpdateStatus(ctx context.Context, id string, status types.Status, reason *types.CloseReason) error {
	var closeReason any
	if reason != nil {
		closeReason = string(*reason)
	}
	result := r.db.WithContext(ctx).
		Model(&ApplicationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       string(status),
			"close_reason": closeReason,
			"updated_at":   r.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("update application status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FillRole sets the role only while it is still NULL and reports whether a
// row was changed.
func (r *GormApplicationRepository) FillRole(ctx context.Context, id, role string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&ApplicationModel{}).
		Where("id = ? AND role IS NULL", id).
		Updates(map[string]any{
			"role":       strings.TrimSpace(role),
			"updated_at": r.now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("fill application role: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
