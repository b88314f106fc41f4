package availability

import "errors"

var (
	ErrOwnerRequired  = errors.New("availability: owner id required")
	ErrRentalRequired = errors.New("availability: rental id required")
	ErrRangeRequired  = errors.New("availability: from and to required")
)
