package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wricardo/seatsession/reservation/passenger"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExists      = errors.New("session already exists")
	ErrInvalidSessionID   = errors.New("invalid session ID")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionNotExpired  = errors.New("session has not expired")
	ErrNoSeatsSelected    = errors.New("select at least one seat")
	ErrPersistenceFailure = errors.New("persistence failure")
)

// ValidationErrorMap holds the failing fields of every rejected seat.
type ValidationErrorMap map[int]passenger.Errors

// ValidationError is returned by SubmitPassengers when any record is invalid.
type ValidationError struct {
	Errors ValidationErrorMap
}

func (e *ValidationError) Error() string {
	seats := make([]int, 0, len(e.Errors))
	for seat := range e.Errors {
		seats = append(seats, seat)
	}
	sort.Ints(seats)

	parts := make([]string, 0, len(seats))
	for _, seat := range seats {
		fields := make([]string, 0, len(e.Errors[seat]))
		for field := range e.Errors[seat] {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		parts = append(parts, fmt.Sprintf("seat %d: %s", seat, strings.Join(fields, ", ")))
	}
	return "invalid passenger details (" + strings.Join(parts, "; ") + ")"
}
