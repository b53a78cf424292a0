// Package resolver maps a classified email to an existing application.
//
// Emails carry no application id, so resolution walks an ordered list of
// strategies scoped to the classification's company and stops at the first hit.
// Each strategy is a plain value so the cascade can be inspected, reordered or
// tested on its own.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/YKarmar/jobsync/internal/store"
	"github.com/YKarmar/jobsync/internal/types"
)

var ErrNoCompany = errors.New("classification has no company")

// Store is the part of the application store the resolver reads and enriches
type Store interface {
	FindByCompanyAndRole(ctx context.Context, mailboxID, company, role string) (*types.Application, error)
	FindByCompanyWithNullRole(ctx context.Context, mailboxID, company string) (*types.Application, error)
	FindMostRecentByCompany(ctx context.Context, mailboxID, company string) (*types.Application, error)
	FillRole(ctx context.Context, id, role string) (bool, error)
}

// Match is a resolved application and the strategy that found it
type Match struct {
	Application *types.Application
	Strategy    string
	RoleFilled  bool
}

// Strategy returns a nil Match when it does not apply or finds nothing
type Strategy struct {
	Name    string
	Resolve func(ctx context.Context, s Store, mailboxID string, c types.Classification) (*Match, error)
}

// DefaultStrategies is the cascade used by New, strongest signal first
var DefaultStrategies = []Strategy{
	{Name: "company_and_role", Resolve: matchCompanyAndRole},
	{Name: "company_null_role_enrich", Resolve: matchNullRoleAndEnrich},
	{Name: "company_null_role", Resolve: matchNullRole},
	{Name: "company_most_recent", Resolve: matchMostRecent},
}

type Resolver struct {
	store      Store
	strategies []Strategy
}

func New(s Store) *Resolver {
	return NewWithStrategies(s, DefaultStrategies)
}

func NewWithStrategies(s Store, strategies []Strategy) *Resolver {
	return &Resolver{store: s, strategies: strategies}
}

// Resolve returns the first match of the cascade, or nil when no application
// exists for the classification.
func (r *Resolver) Resolve(ctx context.Context, mailboxID string, c types.Classification) (*Match, error) {
	if !c.HasCompany() {
		return nil, ErrNoCompany
	}
	for _, strategy := range r.strategies {
		m, err := strategy.Resolve(ctx, r.store, mailboxID, c)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", strategy.Name, err)
		}
		if m != nil {
			m.Strategy = strategy.Name
			return m, nil
		}
	}
	return nil, nil
}

// found turns store.ErrNotFound into a nil match
func found(app *types.Application, err error) (*Match, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Match{Application: app}, nil
}

func matchCompanyAndRole(ctx context.Context, s Store, mailboxID string, c types.Classification) (*Match, error) {
	if !c.HasRole() {
		return nil, nil
	}
	return found(s.FindByCompanyAndRole(ctx, mailboxID, c.Company, c.Role))
}

// matchNullRoleAndEnrich fills in the role of a role-less application. The fill
// is conditional on role still being NULL, so a set role is never overwritten.
func matchNullRoleAndEnrich(ctx context.Context, s Store, mailboxID string, c types.Classification) (*Match, error) {
	if !c.HasRole() {
		return nil, nil
	}
	m, err := found(s.FindByCompanyWithNullRole(ctx, mailboxID, c.Company))
	if m == nil || err != nil {
		return m, err
	}
	filled, err := s.FillRole(ctx, m.Application.ID, c.Role)
	if err != nil {
		return nil, err
	}
	if !filled {
		// role was set concurrently; let the fallback decide
		return nil, nil
	}
	m.Application.Role = types.StringPtr(c.Role)
	m.RoleFilled = true
	return m, nil
}

func matchNullRole(ctx context.Context, s Store, mailboxID string, c types.Classification) (*Match, error) {
	if c.HasRole() {
		return nil, nil
	}
	return found(s.FindByCompanyWithNullRole(ctx, mailboxID, c.Company))
}

// matchMostRecent attaches the email to the newest application for the
// company. With two open applications at one company a role-less email may
// land on the wrong one.
func matchMostRecent(ctx context.Context, s Store, mailboxID string, c types.Classification) (*Match, error) {
	return found(s.FindMostRecentByCompany(ctx, mailboxID, c.Company))
}
