package core

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	userIDPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	symbolPattern = regexp.MustCompile(`^[A-Z0-9.]{1,5}$`)

	orderValidator = newValidator()
)

// orderRequest carries the user supplied fields of a new order through validation
type orderRequest struct {
	User   string `validate:"userid"`
	Symbol string `validate:"symbol"`
	Side   Side   `validate:"oneof=0 1"`
	Volume int    `validate:"min=1,max=10000"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// registration only fails on an empty tag or nil func
	_ = v.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
		return userIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("symbol", func(fl validator.FieldLevel) bool {
		return symbolPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateUserID checks a user id is exactly three upper-case letters
func ValidateUserID(id string) error {
	if !userIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidUser, id)
	}
	return nil
}

// ValidateSymbol checks a product symbol is 1-5 characters of A-Z, 0-9 or '.'
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

func (r orderRequest) validate() error {
	err := orderValidator.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	// report the first failing field with its package sentinel
	switch fe := verrs[0]; fe.Field() {
	case "User":
		return fmt.Errorf("%w: %q", ErrInvalidUser, r.User)
	case "Symbol":
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, r.Symbol)
	case "Side":
		return fmt.Errorf("%w: %d", ErrInvalidSide, int(r.Side))
	case "Volume":
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidVolume, r.Volume, MinOrderVolume, MaxOrderVolume)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, fe.Error())
	}
}
