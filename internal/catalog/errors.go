package catalog

import (
	"fmt"

	"github.com/gofrs/uuid"
)

// InsufficientInventoryError reports that a surplus offer cannot cover the
// requested quantity. It always names the offending item.
type InsufficientInventoryError struct {
	MealID    uuid.UUID
	MealName  string
	Available int
	Requested int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("only %d left for %q (requested %d)", e.Available, e.MealName, e.Requested)
}
