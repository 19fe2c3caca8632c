// Package consent defines stable contract types for cross-module consent boundaries.
package consent

import (
	"context"

	"consentd/internal/consent/models"
)

// Checker answers whether a gated consumer of a category may run. Consumers
// depend on this interface instead of importing the consent service package.
type Checker interface {
	IsCategoryAllowed(ctx context.Context, category models.Category) bool
}
