package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hulu/pkg/logger"
	"hulu/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate  *validator.Validate
	logger    *logger.Logger
	maxRooms  int
	maxNights int
}

// NewBookingValidator bounds a draft to maxRooms rooms in total and a stay of at
// most maxNights nights.
func NewBookingValidator(log *logger.Logger, maxRooms, maxNights int) *BookingValidator {
	v := validator.New()
	bv := &BookingValidator{
		validate:  v,
		logger:    log,
		maxRooms:  maxRooms,
		maxNights: maxNights,
	}

	v.RegisterStructValidation(bv.validateDraftLimits, model.BookingDraft{})

	log.Info("Booking validator initialized successfully", "max_rooms", maxRooms, "max_nights", maxNights)
	return bv
}

func (v *BookingValidator) validateDraftLimits(sl validator.StructLevel) {
	draft := sl.Current().Interface().(model.BookingDraft)

	rooms := 0
	for _, room := range draft.Rooms {
		rooms += room.Quantity
	}
	if rooms > v.maxRooms {
		sl.ReportError(draft.Rooms, "Rooms", "rooms", "max_rooms", fmt.Sprint(v.maxRooms))
	}

	if draft.CheckOut.After(draft.CheckIn) && model.Nights(draft.CheckIn, draft.CheckOut) > v.maxNights {
		sl.ReportError(draft.CheckOut, "CheckOut", "check_out", "max_nights", fmt.Sprint(v.maxNights))
	}
}

// Validate checks a draft whose dates have already been normalised to UTC midnight.
// today is the first date a stay may start on.
func (v *BookingValidator) Validate(draft *model.BookingDraft, today time.Time) error {
	if err := v.validate.Struct(draft); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if draft.CheckIn.Before(today) {
		return ValidationErrors{
			ValidationError{
				Field:   "CheckIn",
				Message: "check_in cannot be in the past",
			},
		}
	}

	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +251911234567)", err.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "max_rooms":
			message = fmt.Sprintf("a booking may hold at most %s rooms", err.Param())
		case "max_nights":
			message = fmt.Sprintf("a stay may last at most %s nights", err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
