package promotion

import (
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-dapur/internal/common"
)

// CreateInput is the authoring payload for a new promotion.
type CreateInput struct {
	Name           string    `json:"name" validate:"required,max=255"`
	Description    string    `json:"description" validate:"max=2000"`
	Type           Type      `json:"promotion_type" validate:"required,oneof=percentage fixed gift"`
	Value          *int64    `json:"value"`
	GiftProductID  *int64    `json:"gift_product_id" validate:"omitempty,gt=0"`
	MinQuantity    int       `json:"min_quantity" validate:"gte=0"`
	MinOrderAmount int64     `json:"min_order_amount" validate:"gte=0"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	IsActive       *bool     `json:"is_active"`
	Priority       int       `json:"priority"`
	CategoryIDs    []int64   `json:"category_ids" validate:"dive,gt=0"`
	ProductIDs     []int64   `json:"product_ids" validate:"dive,gt=0"`
}

// UpdateInput carries the mutable promotion fields; nil means unchanged.
type UpdateInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	IsActive    *bool   `json:"is_active"`
	Priority    *int    `json:"priority"`
}

// Empty reports whether the update carries no changes.
func (u UpdateInput) Empty() bool {
	return u.Name == nil && u.Description == nil && u.IsActive == nil && u.Priority == nil
}

// RegisterValidation installs the type-dependent value rules on v.
func RegisterValidation(v *validator.Validate) {
	v.RegisterStructValidation(validateCreate, CreateInput{})
}

func validateCreate(sl validator.StructLevel) {
	in := sl.Current().Interface().(CreateInput)
	switch in.Type {
	case TypePercentage:
		switch {
		case in.Value == nil:
			sl.ReportError(in.Value, "value", "Value", "required_for_type", string(in.Type))
		case *in.Value < 1 || *in.Value > 100:
			sl.ReportError(in.Value, "value", "Value", "percentage_range", "1-100")
		}
	case TypeFixed:
		switch {
		case in.Value == nil:
			sl.ReportError(in.Value, "value", "Value", "required_for_type", string(in.Type))
		case *in.Value <= 0:
			sl.ReportError(in.Value, "value", "Value", "gt", "0")
		}
	case TypeGift:
		if in.GiftProductID == nil {
			sl.ReportError(in.GiftProductID, "gift_product_id", "GiftProductID", "required_for_type", string(in.Type))
		}
	}
}

// ValidateInput runs the struct and type-dependent rules, returning a VALIDATION_ERROR AppError.
func ValidateInput(v *validator.Validate, in any) error {
	return common.ValidationFailed(v.Struct(in))
}

// normalize fills defaults on a validated create payload.
func (in CreateInput) normalize() CreateInput {
	if in.MinQuantity < 1 {
		in.MinQuantity = 1
	}
	if in.Type == TypeGift {
		in.Value = nil
	}
	return in
}
