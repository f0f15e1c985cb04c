package saga

import (
	"errors"
	"fmt"

	"github.com/iota-uz/order-saga/pkg/serrors"
)

var (
	ErrNoRoute           = serrors.NewError("SAGA_NO_ROUTE", "no route for source and status", "")
	ErrIncompleteRoutes  = serrors.NewError("SAGA_INCOMPLETE_ROUTES", "routing table is incomplete", "")
	ErrMalformedEnvelope = serrors.NewError("SAGA_MALFORMED_ENVELOPE", "malformed event envelope", "")
	ErrInvalidTopics     = serrors.NewError("SAGA_INVALID_TOPICS", "invalid topic configuration", "")
	ErrInvalidTopology   = serrors.NewError("SAGA_INVALID_TOPOLOGY", "invalid saga topology", "")
)

// BusinessError is a failed business rule. It turns into a FAIL envelope and
// is never retried as an infrastructure error.
type BusinessError struct {
	Reason string
}

func (e *BusinessError) Error() string {
	return e.Reason
}

func Rejectf(format string, args ...any) error {
	return &BusinessError{Reason: fmt.Sprintf(format, args...)}
}

func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}
