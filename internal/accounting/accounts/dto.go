package accounts

import (
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// CreateInput captures a new chart of accounts node.
type CreateInput struct {
	Code        string      `json:"code" validate:"required,max=20"`
	Name        string      `json:"name" validate:"required,max=200"`
	Type        AccountType `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	ParentID    *int64      `json:"parent_id,omitempty"`
	Description string      `json:"description,omitempty"`
	ActorID     int64       `json:"-"`
}

// Normalize trims user supplied fields.
func (in *CreateInput) Normalize() {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Type = AccountType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	in.Description = strings.TrimSpace(in.Description)
}

// Validate ensures minimum fields are present.
func (in CreateInput) Validate() error {
	if in.Code == "" {
		return fmt.Errorf("%w: account code required", shared.ErrValidation)
	}
	if in.Name == "" {
		return fmt.Errorf("%w: account name required", shared.ErrValidation)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrInvalidAccountType, in.Type)
	}
	return nil
}

// UpdateInput changes descriptive metadata only. Type and parent are fixed here.
type UpdateInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description"`
	ActorID     int64  `json:"-"`
}

// ReassignParentInput moves an account under another node or to the root.
type ReassignParentInput struct {
	ParentID *int64 `json:"parent_id"`
	ActorID  int64  `json:"-"`
}
