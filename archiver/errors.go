package archiver

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMissingAncestorLayout means a SIP in the revision chain which had
	// to be consulted has no recorded layout.
	ErrMissingAncestorLayout = errors.New("missing ancestor layout")

	// ErrNameCollision means two entries of a bag resolve to the same
	// archive path.
	ErrNameCollision = errors.New("name collision")

	// ErrIO is matched by every *IOError, so callers can use
	// errors.Is(err, ErrIO).
	ErrIO = errors.New("I/O failure")
)

// IOError is returned when a source cannot be read or the bag cannot be
// written.
type IOError struct {
	SIP  string
	Path string // the SIP path or archive path involved
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("sip %s: %s: %s", e.SIP, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error { return e.Err }

// Is makes every IOError match ErrIO.
func (e *IOError) Is(target error) bool { return target == ErrIO }

func ioError(sip, path string, err error) error {
	return &IOError{SIP: sip, Path: path, Err: err}
}
