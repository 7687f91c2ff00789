package passenger

// Gender of a passenger. The zero value means no choice was made yet.
type Gender string

const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// DateLayout is the wire format of DateOfBirth.
const DateLayout = "2006-01-02"

// Record holds the passenger details entered for one selected seat.
type Record struct {
	Seat        int    `json:"seat"`
	Name        string `json:"name" validate:"notblank,personname"`
	Surname     string `json:"surname" validate:"notblank,personname"`
	Phone       string `json:"phone" validate:"phone"`
	Email       string `json:"email" validate:"emailaddr"`
	Gender      Gender `json:"gender" validate:"required,oneof=Male Female"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,isodate,pastdate,maxage"`
}

// Empty returns a blank record for the given seat.
func Empty(seat int) Record {
	return Record{Seat: seat}
}

// Errors maps a field name to a human-readable message. An empty map means
// the record is valid.
type Errors map[string]string

// Valid reports whether no field failed validation.
func (e Errors) Valid() bool {
	return len(e) == 0
}
