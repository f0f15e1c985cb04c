package outbox

import (
	"fmt"

	"github.com/iota-uz/order-saga/pkg/serrors"
)

var (
	ErrInvalidConfig  = serrors.NewError("OUTBOX_INVALID_CONFIG", "invalid outbox configuration", "")
	ErrNoTx           = serrors.NewError("OUTBOX_NO_TX", "outbox append requires an active transaction", "")
	ErrRecordNotFound = serrors.NewError("OUTBOX_RECORD_NOT_FOUND", "outbox record not found", "")
	ErrInvalidRecord  = serrors.NewError("OUTBOX_INVALID_RECORD", "invalid outbox record", "")
)

func invalidConfig(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{ErrInvalidConfig}, args...)...)
}
