package pipeline

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/seenimoa/fnopart/pkg/utils"
)

// User-facing validation messages.
const (
	MsgPreviousNotBeforeCurrent = "Previous Date must be earlier than Current Date."
	MsgCurrentInFuture          = "Current Date cannot be in the future."
)

// ValidationError reports a rejected date pair. It is returned before any
// network request is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// datePair is validated with struct tags; all three are calendar dates in IST.
type datePair struct {
	Previous time.Time `validate:"required,ltfield=Current"`
	Current  time.Time `validate:"required,ltefield=Today"`
	Today    time.Time `validate:"required"`
}

var validate = validator.New()

// ValidateDates checks that previous is strictly before current and that
// current is not after today. Times are compared as IST calendar dates.
func ValidateDates(previous, current, today time.Time) error {
	p := datePair{
		Previous: utils.DateOnly(previous),
		Current:  utils.DateOnly(current),
		Today:    utils.DateOnly(today),
	}
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	// Fields are reported in declaration order, so an inverted pair dated in
	// the future reports the ordering problem.
	switch fieldErrs[0].StructField() {
	case "Previous":
		return &ValidationError{Field: "previous", Message: MsgPreviousNotBeforeCurrent}
	case "Current":
		return &ValidationError{Field: "current", Message: MsgCurrentInFuture}
	default:
		return &ValidationError{Field: "today", Message: "Today's date is required."}
	}
}
