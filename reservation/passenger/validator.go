package passenger

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
)

// DefaultMaxAgeYears bounds how far in the past a date of birth may lie.
const DefaultMaxAgeYears = 150

var (
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

var fieldLabels = map[string]string{
	"name":    "Name",
	"surname": "Surname",
}

// Validator checks passenger records field by field. It has no side effects
// and is safe for concurrent use.
type Validator struct {
	validate    *validator.Validate
	clock       clockwork.Clock
	maxAgeYears int
}

// NewValidator builds a validator whose notion of "today" comes from clock.
// A non-positive maxAgeYears falls back to DefaultMaxAgeYears.
func NewValidator(clock clockwork.Clock, maxAgeYears int) *Validator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxAgeYears <= 0 {
		maxAgeYears = DefaultMaxAgeYears
	}

	v := &Validator{
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		clock:       clock,
		maxAgeYears: maxAgeYears,
	}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.validate.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
				return false
			}
		}
		return true
	})
	_ = v.validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.validate.RegisterValidation("emailaddr", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	_ = v.validate.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(DateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.validate.RegisterValidation("pastdate", func(fl validator.FieldLevel) bool {
		dob, err := time.Parse(DateLayout, fl.Field().String())
		if err != nil {
			return false
		}
		return dob.Before(v.today())
	})
	_ = v.validate.RegisterValidation("maxage", func(fl validator.FieldLevel) bool {
		dob, err := time.Parse(DateLayout, fl.Field().String())
		if err != nil {
			return false
		}
		return !dob.Before(v.today().AddDate(-v.maxAgeYears, 0, 0))
	})

	return v
}

// MaxAgeYears returns the configured age bound.
func (v *Validator) MaxAgeYears() int {
	return v.maxAgeYears
}

// Validate returns the per-field errors of rec. Only the first failing rule of
// each field is reported.
func (v *Validator) Validate(rec Record) Errors {
	out := Errors{}

	err := v.validate.Struct(rec)
	if err == nil {
		return out
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out["record"] = err.Error()
		return out
	}

	for _, fe := range fieldErrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = v.message(fe)
	}
	return out
}

// ValidateAll validates every record and returns the failing ones keyed by
// seat number. An empty map means all records are valid.
func (v *Validator) ValidateAll(records []Record) map[int]Errors {
	result := make(map[int]Errors)
	for _, rec := range records {
		if errs := v.Validate(rec); !errs.Valid() {
			result[rec.Seat] = errs
		}
	}
	return result
}

// today is the start of the current day in UTC, matching how DateOfBirth is
// parsed.
func (v *Validator) today() time.Time {
	y, m, d := v.clock.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (v *Validator) message(fe validator.FieldError) string {
	switch fe.Field() {
	case "name", "surname":
		label := fieldLabels[fe.Field()]
		if fe.Tag() == "notblank" {
			return label + " cannot be empty"
		}
		return label + " may only contain letters and spaces"
	case "phone":
		return "Phone number must be exactly 10 digits"
	case "email":
		return "Enter a valid e-mail address"
	case "gender":
		return "Gender selection is required"
	case "dateOfBirth":
		switch fe.Tag() {
		case "required":
			return "Date of birth cannot be empty"
		case "isodate":
			return "Date of birth must be a valid date (YYYY-MM-DD)"
		case "pastdate":
			return "Date of birth must be before today"
		default:
			return fmt.Sprintf("Date of birth must be at most %d years ago", v.maxAgeYears)
		}
	}
	return fe.Field() + " is invalid"
}
