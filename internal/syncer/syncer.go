// Package syncer runs one inbox synchronization pass: it pulls candidate
// emails, classifies them and folds the result into the application store.
//
// A run never lets one email's failure abort the batch. An email is written to
// the sync log only after its side effects are committed (or it was skipped on
// purpose), so anything that failed earlier is retried on the next run.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/YKarmar/jobsync/internal/client"
	"github.com/YKarmar/jobsync/internal/lifecycle"
	"github.com/YKarmar/jobsync/internal/lock"
	"github.com/YKarmar/jobsync/internal/logger"
	"github.com/YKarmar/jobsync/internal/resolver"
	"github.com/YKarmar/jobsync/internal/types"
)

const (
	DefaultMinConfidence = 0.6
	DefaultRunTimeout    = 5 * time.Minute
)

type MailboxClient interface {
	FetchCandidateEmails(ctx context.Context, accessToken, refreshToken string) ([]types.Email, error)
}

type Classifier interface {
	Classify(ctx context.Context, subject, from, body string) (types.Classification, error)
}

type ApplicationStore interface {
	resolver.Store
	Create(ctx context.Context, app *types.Application) error
	UpdateStatus(ctx context.Context, id string, status types.Status, reason *types.CloseReason) error
}

type EmailLinker interface {
	Link(ctx context.Context, app *types.Application, email types.Email, emailType types.EmailType) error
}

type SyncLog interface {
	ProcessedEmailIDs(ctx context.Context, mailboxID string, emailIDs []string) (map[string]types.SyncResult, error)
	Record(ctx context.Context, mailboxID, emailID string, result types.SyncResult) error
}

// Deps are the collaborators of a Syncer
type Deps struct {
	Mailbox      MailboxClient
	Classifier   Classifier
	Applications ApplicationStore
	Linker       EmailLinker
	SyncLog      SyncLog
	Locker       lock.Locker
}

// Config tunes a Syncer. MinConfidence is used as given, so 0 disables the
// confidence gate; a zero RunTimeout means no run deadline.
type Config struct {
	MinConfidence float64
	RunTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinConfidence: DefaultMinConfidence,
		RunTimeout:    DefaultRunTimeout,
	}
}

// Mailbox identifies the mailbox a run syncs and carries its credentials
type Mailbox struct {
	ID           string
	AccessToken  string
	RefreshToken string
}

type Syncer struct {
	deps     Deps
	resolver *resolver.Resolver
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func New(deps Deps, cfg Config, l *zap.Logger) *Syncer {
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewMemoryLocker()
	}
	return &Syncer{
		deps:     deps,
		resolver: resolver.New(deps.Applications),
		cfg:      cfg,
		logger:   logger.OrNop(l),
		now:      time.Now,
	}
}

// Run performs one sync pass for the mailbox. Run-level failures return a nil
// summary and one of ErrSyncInProgress, ErrReauthRequired, ErrMailboxUnavailable
// or ErrConfiguration. A deadline hit mid-batch returns the partial summary
// together with ErrRunTimeout.
func (s *Syncer) Run(ctx context.Context, mb Mailbox) (*Summary, error) {
	release, err := s.deps.Locker.TryLock(ctx, mb.ID)
	if errors.Is(err, lock.ErrLocked) {
		return nil, ErrSyncInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	defer release()

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	summary := &Summary{
		RunID:     uuid.NewString(),
		MailboxID: mb.ID,
		StartedAt: s.now(),
	}
	log := s.logger.With(zap.String("mailbox_id", mb.ID), zap.String("run_id", summary.RunID))
	ctx = logger.WithContext(ctx, log)

	emails, err := s.deps.Mailbox.FetchCandidateEmails(ctx, mb.AccessToken, mb.RefreshToken)
	if err != nil {
		return nil, s.fetchError(log, err)
	}
	summary.Scanned = len(emails)

	ids := make([]string, 0, len(emails))
	for _, e := range emails {
		ids = append(ids, e.ID)
	}
	processed, err := s.deps.SyncLog.ProcessedEmailIDs(ctx, mb.ID, ids)
	if err != nil {
		log.Error("sync log unreadable", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	// 按时间顺序处理，确认信先于拒信
	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].Date.Before(emails[j].Date)
	})

	for i, email := range emails {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = s.now()
			log.Warn("sync run aborted", zap.Int("handled", i), zap.Int("total", len(emails)), zap.Error(err))
			if errors.Is(err, context.DeadlineExceeded) {
				return summary, fmt.Errorf("%w after %d of %d emails", ErrRunTimeout, i, len(emails))
			}
			return summary, err
		}
		if _, ok := processed[email.ID]; ok {
			summary.AlreadyProcessed++
			continue
		}
		summary.add(s.processEmail(ctx, mb.ID, email))
	}

	summary.FinishedAt = s.now()
	log.Info("sync run finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("already_processed", summary.AlreadyProcessed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration()),
	)
	return summary, nil
}

// fetchError sorts a fetch failure into the run-level taxonomy
func (s *Syncer) fetchError(log *zap.Logger, err error) error {
	switch {
	case errors.Is(err, client.ErrReauthRequired):
		log.Warn("mailbox credentials rejected", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrReauthRequired, err)
	case errors.Is(err, client.ErrAdapterUnauthorized), errors.Is(err, client.ErrInvalidParams):
		log.Error("mailbox adapter rejected the request", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	default:
		log.Error("fetch candidate emails failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrMailboxUnavailable, err)
	}
}

func (s *Syncer) processEmail(ctx context.Context, mailboxID string, email types.Email) outcome {
	log := logger.FromContext(ctx).With(zap.String("email_id", email.ID))

	if IsCalendarArtifact(email.Subject) {
		s.recordSkip(ctx, log, mailboxID, email.ID, "calendar_artifact")
		return outcomeSkipped
	}

	c, err := s.deps.Classifier.Classify(ctx, email.Subject, email.From, email.BodyText)
	if err != nil {
		log.Warn("classification failed, will retry next run", zap.Error(err))
		return outcomeFailed
	}
	if reason := s.skipReason(c); reason != "" {
		s.recordSkip(ctx, log, mailboxID, email.ID, reason)
		return outcomeSkipped
	}

	app, result, err := s.apply(ctx, mailboxID, email, c)
	if err != nil {
		log.Warn("apply classification failed, will retry next run",
			zap.String("company", c.Company),
			zap.String("type", string(c.Type)),
			zap.Error(err),
		)
		return outcomeFailed
	}

	if err := s.deps.Linker.Link(ctx, app, email, c.Type); err != nil {
		log.Warn("link email to application failed", zap.String("application_id", app.ID), zap.Error(err))
	}
	if err := s.deps.SyncLog.Record(ctx, mailboxID, email.ID, types.SyncResultProcessed); err != nil {
		log.Error("record processed email failed", zap.String("application_id", app.ID), zap.Error(err))
	}

	log.Debug("email processed",
		zap.String("application_id", app.ID),
		zap.String("outcome", result.String()),
		zap.String("status", string(app.Status)),
	)
	return result
}

func (s *Syncer) skipReason(c types.Classification) string {
	if c.Confidence < s.cfg.MinConfidence {
		return "low_confidence"
	}
	if _, ok := c.Type.ImpliedStatus(); !ok {
		return "not_job_related"
	}
	if !c.HasCompany() {
		return "no_company"
	}
	return ""
}

func (s *Syncer) recordSkip(ctx context.Context, log *zap.Logger, mailboxID, emailID, reason string) {
	log.Debug("email skipped", zap.String("reason", reason))
	if err := s.deps.SyncLog.Record(ctx, mailboxID, emailID, types.SyncResultSkipped); err != nil {
		log.Warn("record skipped email failed", zap.Error(err))
	}
}

// apply resolves the classification and creates or advances the application
func (s *Syncer) apply(ctx context.Context, mailboxID string, email types.Email, c types.Classification) (*types.Application, outcome, error) {
	match, err := s.resolver.Resolve(ctx, mailboxID, c)
	if err != nil {
		return nil, outcomeFailed, err
	}

	if match == nil {
		status, reason, _ := lifecycle.Initial(c.Type)
		appliedDate := email.Date
		if appliedDate.IsZero() {
			appliedDate = s.now()
		}
		app := &types.Application{
			MailboxID:     mailboxID,
			Company:       c.Company,
			Role:          types.StringPtr(c.Role),
			Location:      types.StringPtr(c.Location),
			Status:        status,
			CloseReason:   reason,
			AppliedDate:   appliedDate,
			SourceEmailID: email.ID,
		}
		if err := s.deps.Applications.Create(ctx, app); err != nil {
			return nil, outcomeFailed, err
		}
		return app, outcomeCreated, nil
	}

	app := match.Application
	decision := lifecycle.Decide(app, c.Type)
	if decision.Apply {
		if err := s.deps.Applications.UpdateStatus(ctx, app.ID, decision.Status, decision.CloseReason); err != nil {
			return nil, outcomeFailed, err
		}
		app.Status = decision.Status
		app.CloseReason = decision.CloseReason
		return app, outcomeUpdated, nil
	}
	if match.RoleFilled {
		return app, outcomeUpdated, nil
	}
	return app, outcomeUnchanged, nil
}
