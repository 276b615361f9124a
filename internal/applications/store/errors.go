package store

import (
	"fmt"

	"portal/pkg/platform/sentinel"
)

// ErrReferenceTaken is returned when a write would attach a reference number
// another application already holds. It also matches sentinel.ErrConflict.
var ErrReferenceTaken = fmt.Errorf("reference number taken: %w", sentinel.ErrConflict)
