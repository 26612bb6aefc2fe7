package versioning

import (
	"errors"
	"fmt"
)

// ErrDamaged is returned when stored versioning data exists but can not be decoded.
var ErrDamaged = errors.New("versioning data damaged")

// InternalError reports an inconsistency in the bookkeeping of an overview,
// like a request for a version that does not exist or a blob referenced by
// the overview that is missing from the store.
type InternalError struct {
	Page string
	Msg  string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("versioning internal error for page %q: %s", e.Page, e.Msg)
}

func internalErrorf(page string, format string, a ...any) *InternalError {
	return &InternalError{Page: page, Msg: fmt.Sprintf(format, a...)}
}
