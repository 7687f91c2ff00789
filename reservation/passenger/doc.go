// Package passenger defines the per-seat passenger record and the validator
// that checks it before a reservation is submitted.
//
// Validation is a pure function of the record and the current date:
//
//	v := passenger.NewValidator(clockwork.NewRealClock(), passenger.DefaultMaxAgeYears)
//	errs := v.Validate(passenger.Record{Seat: 11, Name: "Ada", ...})
//	if !errs.Valid() {
//		fmt.Println(errs["phone"])
//	}
//
// Field keys in Errors are the JSON names of the record fields.
package passenger
