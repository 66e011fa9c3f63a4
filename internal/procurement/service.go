package procurement

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages procurement attachments.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, logger: slog.Default(), now: time.Now}
}

// Attach validates and stores an attachment for exactly one owner.
func (s *Service) Attach(ctx context.Context, input AttachInput) (Attachment, error) {
	a := Attachment{
		Owner:       Owner{Kind: OwnerKind(strings.TrimSpace(string(input.OwnerKind))), ID: input.OwnerID},
		Name:        strings.TrimSpace(input.Name),
		Type:        input.Type,
		Path:        strings.TrimSpace(input.Path),
		Description: strings.TrimSpace(input.Description),
	}
	if input.UploadedBy != 0 {
		uploader := input.UploadedBy
		a.UploadedBy = &uploader
	}
	a.ContentType = contentTypeFor(a.Path)
	if a.Type == "" {
		a.Type = inferType(a.ContentType)
	}
	if err := a.Validate(); err != nil {
		return Attachment{}, err
	}
	created, err := s.repo.Insert(ctx, a)
	if err != nil {
		return Attachment{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.UploadedBy,
			Action:   "attachment.create",
			Entity:   "procurement_attachment",
			EntityID: strconv.FormatInt(created.ID, 10),
			Meta:     map[string]any{"owner": created.Owner.String(), "name": created.Name},
			At:       s.now(),
		})
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Attachment, error) {
	return s.repo.Get(ctx, id)
}

// ListByOwner returns the attachments of one owner, newest first.
func (s *Service) ListByOwner(ctx context.Context, owner Owner) ([]Attachment, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListByOwner(ctx, owner)
}

func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "attachment.delete",
			Entity:   "procurement_attachment",
			EntityID: strconv.FormatInt(id, 10),
			At:       s.now(),
		})
	}
	return nil
}
