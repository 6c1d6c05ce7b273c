// Package validation holds the rules checked before records are written.
// Request fields are checked through their validate tags; rules that need
// another record (seat against train, source against destination) are
// written out here.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"train-station/internal/apperr"
	"train-station/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	// notblank rejects whitespace-only strings.
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(err)
	}
	return v
}

// Struct checks the validate tags of a request. Every failure becomes a field
// error keyed by its JSON path, e.g. tickets[0].trip.
func Struct(v interface{}) error {
	return fieldErrors(validate.Struct(v))
}

// Patch checks a full (PUT) or partial (PATCH) update. A partial update only
// checks the fields it sets.
func Patch(v interface{}, partial bool) error {
	if !partial {
		return Struct(v)
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	rt := rv.Type()
	unset := make(map[string]bool)
	for i := 0; i < rv.NumField(); i++ {
		if f := rv.Field(i); f.Kind() == reflect.Ptr && f.IsNil() {
			unset[rt.Name()+"."+rt.Field(i).Name] = true
		}
	}
	return fieldErrors(validate.StructFiltered(v, func(ns []byte) bool {
		return unset[string(ns)]
	}))
}

func fieldErrors(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	errs := make(apperr.Errors, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, apperr.Field(fieldPath(fe), apperr.ErrInvalid, "%s", message(fe)))
	}
	return errs
}

// fieldPath drops the struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "notblank":
		return "this field may not be blank"
	case "email":
		return "enter a valid email address"
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("ensure this field has at least %s characters", fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("ensure this field has at least %s items", fe.Param())
		}
		return fmt.Sprintf("ensure this value is greater than or equal to %s", fe.Param())
	case "gte":
		return fmt.Sprintf("ensure this value is greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("ensure this value is less than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("ensure this value is greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed the %s rule", fe.Tag())
	}
}

// ValidateTrip rejects a trip whose arrival is not strictly after its departure.
func ValidateTrip(departure, arrival time.Time) error {
	if !arrival.After(departure) {
		return apperr.Field("arrival_time", apperr.ErrInvalidTripWindow,
			"arrival time %s must be after departure time %s",
			arrival.UTC().Format(time.RFC3339), departure.UTC().Format(time.RFC3339))
	}
	return nil
}

// ValidateTicket checks a seat number and optional luggage weight against the
// train that runs the ticket's trip.
func ValidateTicket(seat int, train models.Train, luggageWeight *int) error {
	var errs apperr.Errors
	if seat < 1 || seat > train.SeatCapacity {
		errs = append(errs, apperr.Field("seat", apperr.ErrSeatOutOfRange,
			"seat must be in range [1, %d], not %d", train.SeatCapacity, seat))
	}
	if luggageWeight != nil {
		switch {
		case *luggageWeight < 0:
			errs = append(errs, apperr.Field("luggage_weight", apperr.ErrInvalid,
				"luggage weight must not be negative"))
		case *luggageWeight > train.LuggageCapacity:
			errs = append(errs, apperr.Field("luggage_weight", apperr.ErrLuggageOverweight,
				"luggage weight must be at most %d kg, not %d", train.LuggageCapacity, *luggageWeight))
		}
	}
	return errs.OrNil()
}

// ValidateRoute rejects a route that starts and ends at the same station.
func ValidateRoute(r models.Route) error {
	if r.SourceID == r.DestinationID {
		return apperr.Field("destination", apperr.ErrSameStation, "destination must differ from source")
	}
	return nil
}
