package domain

import "fmt"

// CreatePost creates a post under a warehouse.
type CreatePost struct {
	WarehouseID int64  `json:"warehouseId"`
	Content     string `json:"content"`
	PostTypeID  int64  `json:"postTypeId"`
}

func (CreatePost) Kind() Kind { return KindCreatePost }

func (p CreatePost) Validate() error {
	if p.WarehouseID <= 0 {
		return missing(KindCreatePost, "warehouseId")
	}
	if p.Content == "" {
		return missing(KindCreatePost, "content")
	}
	if p.PostTypeID <= 0 {
		return missing(KindCreatePost, "postTypeId")
	}
	return nil
}

// CreateComment attaches a comment to an existing post.
type CreateComment struct {
	PostID  int64  `json:"postId"`
	Comment string `json:"comment"`
}

func (CreateComment) Kind() Kind { return KindCreateComment }

func (p CreateComment) Validate() error {
	if p.PostID <= 0 {
		return missing(KindCreateComment, "postId")
	}
	if p.Comment == "" {
		return missing(KindCreateComment, "comment")
	}
	return nil
}

// SubmitReaction records a reaction against a post. When ReactionRecordID is
// set the existing reaction record is changed instead of a new one created.
type SubmitReaction struct {
	PostID             int64  `json:"postId"`
	PostReactionTypeID int64  `json:"postReactionTypeId"`
	ReactionRecordID   *int64 `json:"reactionRecordId,omitempty"`
}

func (SubmitReaction) Kind() Kind { return KindSubmitReaction }

func (p SubmitReaction) Validate() error {
	if p.PostID <= 0 {
		return missing(KindSubmitReaction, "postId")
	}
	if p.PostReactionTypeID <= 0 {
		return missing(KindSubmitReaction, "postReactionTypeId")
	}
	if p.ReactionRecordID != nil && *p.ReactionRecordID <= 0 {
		return fmt.Errorf("%w: %s reactionRecordId must be positive", ErrInvalidPayload, KindSubmitReaction)
	}
	return nil
}

// AvailabilityStatus is a user-reported stock state for a product.
type AvailabilityStatus string

const (
	AvailabilityInStock    AvailabilityStatus = "IN_STOCK"
	AvailabilityOutOfStock AvailabilityStatus = "OUT_OF_STOCK"
	AvailabilityUnknown    AvailabilityStatus = "UNKNOWN"
)

func (s AvailabilityStatus) IsValid() bool {
	switch s {
	case AvailabilityInStock, AvailabilityOutOfStock, AvailabilityUnknown:
		return true
	}
	return false
}

// ReportAvailability reports a product's stock state at a warehouse. With
// RecordID set only the status of that existing record is updated.
type ReportAvailability struct {
	ProductID   int64              `json:"productId,omitempty"`
	WarehouseID int64              `json:"warehouseId,omitempty"`
	Status      AvailabilityStatus `json:"status"`
	RecordID    *int64             `json:"recordId,omitempty"`
}

func (ReportAvailability) Kind() Kind { return KindReportAvailability }

func (p ReportAvailability) Validate() error {
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: %s status %q", ErrInvalidPayload, KindReportAvailability, p.Status)
	}
	if p.RecordID != nil {
		if *p.RecordID <= 0 {
			return fmt.Errorf("%w: %s recordId must be positive", ErrInvalidPayload, KindReportAvailability)
		}
		return nil
	}
	if p.ProductID <= 0 {
		return missing(KindReportAvailability, "productId")
	}
	if p.WarehouseID <= 0 {
		return missing(KindReportAvailability, "warehouseId")
	}
	return nil
}

func missing(k Kind, field string) error {
	return fmt.Errorf("%w: %s requires %s", ErrInvalidPayload, k, field)
}
