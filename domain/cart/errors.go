package cart

import (
	"errors"
	"fmt"

	"storefront/domain/shared"
)

var (
	ErrOutOfStock      = errors.New("not enough stock for this product")
	ErrCapReached      = fmt.Errorf("purchase limit of %d per product reached", MaxPerUser)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be a positive integer", shared.ErrInvalidInput)
	ErrEmptyCart       = fmt.Errorf("%w: cart is empty", shared.ErrInvalidInput)
	ErrNoOwner         = fmt.Errorf("%w: cart has no owner", shared.ErrUnauthorized)
	ErrProductNotFound = fmt.Errorf("product %w", shared.ErrNotFound)
)
