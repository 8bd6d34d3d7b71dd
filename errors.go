package tagcache

import (
	"errors"
	"fmt"
)

var (
	ErrProviderRequired  = errors.New("tagcache: provider is required")
	ErrNamespaceRequired = errors.New("tagcache: namespace is required")
	ErrStoreRequired     = errors.New("tagcache: store is required")
	ErrCodecRequired     = errors.New("tagcache: codec is required")
	ErrEmptyKey          = errors.New("tagcache: empty key")
)

// InvalidateError reports a failed key or tag invalidation. Target is the
// user key, or "tags:<t1,t2>" for tag flushes.
type InvalidateError struct {
	Target   string
	IndexErr error
	DelErr   error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.IndexErr != nil && e.DelErr != nil:
		return fmt.Sprintf("invalidate %q failed: index and delete failed: index=%v; delete=%v",
			e.Target, e.IndexErr, e.DelErr)
	case e.IndexErr != nil:
		return fmt.Sprintf("invalidate %q: index failed: %v", e.Target, e.IndexErr)
	case e.DelErr != nil:
		return fmt.Sprintf("invalidate %q: delete failed: %v", e.Target, e.DelErr)
	default:
		return fmt.Sprintf("invalidate %q: unknown error", e.Target)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.IndexErr != nil {
		errs = append(errs, e.IndexErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}
