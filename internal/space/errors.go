package space

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrorev/internal/interval"
)

var (
	// ErrOutOfRange is returned for accesses outside of the bounds of a space.
	ErrOutOfRange = errors.New("address out of range")
	// ErrUnmapped is returned for accesses that no segment or local storage can serve.
	ErrUnmapped = errors.New("unmapped memory")
	// ErrValueTooWide is returned for writes that exceed the word width of the backing store.
	ErrValueTooWide = errors.New("value too wide")
	// ErrPrecondition is returned for operations that would corrupt a space.
	ErrPrecondition = interval.ErrPrecondition
	// ErrAmbiguousTranslation is returned when overlapping non-shared segments are mapped.
	ErrAmbiguousTranslation = errors.New("ambiguous translation")
)

// AddressError records a failed access together with the address and space.
type AddressError struct {
	Op    string
	Space string
	Addr  uint64
	Err   error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("%s %s at 0x%04x: %v", e.Op, e.Space, e.Addr, e.Err)
}

func (e *AddressError) Unwrap() error {
	return e.Err
}

// IsRecoverable returns whether the error only signals that an access ran off the
// edge of mapped memory. Such failures abandon a single work item, all other errors
// indicate broken invariants.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrUnmapped) || errors.Is(err, ErrOutOfRange)
}

func addressError(op, space string, address uint64, err error) error {
	return &AddressError{
		Op:    op,
		Space: space,
		Addr:  address,
		Err:   err,
	}
}
