package accounts

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records chart of accounts changes.
type AuditPort interface {
	Record(ctx context.Context, log platformshared.AuditLog) error
}

// Service maintains the chart of accounts.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the chart of accounts service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns accounts ordered by code.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Account, error) {
	return s.repo.List(ctx, filter)
}

// Get loads one account.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode loads an account by its unique code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// Children lists the direct descendants of id.
func (s *Service) Children(ctx context.Context, id int64) ([]Account, error) {
	return s.repo.List(ctx, ListFilter{ParentID: &id})
}

// Create adds a node with a zero balance.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetByCode(ctx, in.Code); err == nil {
			return shared.ErrDuplicateCode
		} else if !errors.Is(err, shared.ErrAccountNotFound) {
			return err
		}
		if in.ParentID != nil {
			if _, err := tx.Get(ctx, *in.ParentID); err != nil {
				return err
			}
		}
		acc, err := tx.Insert(ctx, in)
		if err != nil {
			return err
		}
		created = acc
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, in.ActorID, "account.create", created.ID, map[string]any{"code": created.Code, "type": created.Type})
	return created, nil
}

// Update changes name and description.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Account, error) {
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateDetails(ctx, id, in); err != nil {
			return err
		}
		acc, err := tx.Get(ctx, id)
		updated = acc
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, in.ActorID, "account.update", id, map[string]any{"name": in.Name})
	return updated, nil
}

// ReassignParent moves an account in the tree after checking for cycles.
func (s *Service) ReassignParent(ctx context.Context, id int64, in ReassignParentInput) (Account, error) {
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Two concurrent moves can each pass the walk and close a loop.
		if err := tx.LockTree(ctx); err != nil {
			return err
		}
		if _, err := tx.Get(ctx, id); err != nil {
			return err
		}
		if in.ParentID != nil {
			if err := ensureAcyclic(ctx, tx, id, *in.ParentID); err != nil {
				return err
			}
		}
		if err := tx.UpdateParent(ctx, id, in.ParentID); err != nil {
			return err
		}
		acc, err := tx.Get(ctx, id)
		updated = acc
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, in.ActorID, "account.reparent", id, map[string]any{"parent_id": in.ParentID})
	return updated, nil
}

// ensureAcyclic walks up from parentID and fails if it reaches id.
func ensureAcyclic(ctx context.Context, tx TxRepository, id, parentID int64) error {
	seen := map[int64]bool{}
	cursor := &parentID
	for cursor != nil {
		if *cursor == id || seen[*cursor] {
			return shared.ErrAccountCycle
		}
		seen[*cursor] = true
		node, err := tx.Get(ctx, *cursor)
		if err != nil {
			return err
		}
		cursor = node.ParentID
	}
	return nil
}

// Deactivate hides the account from new postings.
func (s *Service) Deactivate(ctx context.Context, id, actorID int64) error {
	return s.setActive(ctx, id, actorID, false)
}

// Activate re-enables the account.
func (s *Service) Activate(ctx context.Context, id, actorID int64) error {
	return s.setActive(ctx, id, actorID, true)
}

func (s *Service) setActive(ctx context.Context, id, actorID int64, active bool) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetActive(ctx, id, active)
	})
	if err != nil {
		return err
	}
	action := "account.deactivate"
	if active {
		action = "account.activate"
	}
	s.record(ctx, actorID, action, id, nil)
	return nil
}

// Delete removes an account that nothing references.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	var code string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		code = acc.Code
		refs, err := tx.CountReferences(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return shared.ErrAccountProtected
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "account.delete", id, map[string]any{"code": code})
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, platformshared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "account",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
}
