package procurement

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("procurement: attachment not found")
	ErrInvalidOwner      = errors.New("procurement: attachment must have exactly one owner")
	ErrInvalidAttachment = errors.New("procurement: invalid attachment")
)

// OwnerKind names the procurement record an attachment belongs to.
type OwnerKind string

const (
	OwnerVendor        OwnerKind = "vendor"
	OwnerRequisition   OwnerKind = "requisition"
	OwnerRFQ           OwnerKind = "rfq"
	OwnerRFQVendor     OwnerKind = "rfq_vendor"
	OwnerPurchaseOrder OwnerKind = "purchase_order"
)

// OwnerKinds lists every accepted owner kind.
var OwnerKinds = []OwnerKind{OwnerVendor, OwnerRequisition, OwnerRFQ, OwnerRFQVendor, OwnerPurchaseOrder}

func (k OwnerKind) Valid() bool {
	for _, known := range OwnerKinds {
		if k == known {
			return true
		}
	}
	return false
}

// AttachmentType classifies the attached file.
type AttachmentType string

const (
	TypeDocument      AttachmentType = "document"
	TypeImage         AttachmentType = "image"
	TypeContract      AttachmentType = "contract"
	TypeQuote         AttachmentType = "quote"
	TypeSpecification AttachmentType = "specification"
	TypeOther         AttachmentType = "other"
)

func (t AttachmentType) Valid() bool {
	switch t {
	case TypeDocument, TypeImage, TypeContract, TypeQuote, TypeSpecification, TypeOther:
		return true
	}
	return false
}

// Owner identifies the single record an attachment hangs off.
type Owner struct {
	Kind OwnerKind `json:"owner_kind"`
	ID   int64     `json:"owner_id"`
}

func (o Owner) Validate() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("%w: unknown owner kind %q", ErrInvalidOwner, o.Kind)
	}
	if o.ID <= 0 {
		return fmt.Errorf("%w: owner id must be positive", ErrInvalidOwner)
	}
	return nil
}

func (o Owner) String() string {
	return fmt.Sprintf("%s:%d", o.Kind, o.ID)
}

// Attachment is a file attached to one procurement record.
type Attachment struct {
	ID          int64          `json:"id"`
	Owner                      // exactly one owner
	Name        string         `json:"name"`
	Type        AttachmentType `json:"attachment_type"`
	Path        string         `json:"path"`
	ContentType string         `json:"content_type,omitempty"`
	Description string         `json:"description,omitempty"`
	UploadedBy  *int64         `json:"uploaded_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Validate enforces a single known owner and the required file metadata.
func (a Attachment) Validate() error {
	if err := a.Owner.Validate(); err != nil {
		return err
	}
	switch {
	case strings.TrimSpace(a.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidAttachment)
	case len(a.Name) > 255:
		return fmt.Errorf("%w: name exceeds 255 characters", ErrInvalidAttachment)
	case !a.Type.Valid():
		return fmt.Errorf("%w: unknown attachment type %q", ErrInvalidAttachment, a.Type)
	case strings.TrimSpace(a.Path) == "":
		return fmt.Errorf("%w: path is required", ErrInvalidAttachment)
	}
	return nil
}

// AttachInput describes a new attachment.
type AttachInput struct {
	OwnerKind   OwnerKind      `json:"owner_kind" validate:"required"`
	OwnerID     int64          `json:"owner_id" validate:"required,gt=0"`
	Name        string         `json:"name" validate:"required,max=255"`
	Type        AttachmentType `json:"attachment_type"`
	Path        string         `json:"path" validate:"required,max=1024"`
	Description string         `json:"description"`
	UploadedBy  int64          `json:"-"`
}
