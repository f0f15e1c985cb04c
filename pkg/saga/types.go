package saga

type Source string

const (
	SourceOrder             Source = "ORDER_SERVICE"
	SourceProductValidation Source = "PRODUCT_VALIDATION_SERVICE"
	SourcePayment           Source = "PAYMENT_SERVICE"
	SourceInventory         Source = "INVENTORY_SERVICE"
)

type Status string

const (
	StatusSuccess         Status = "SUCCESS"
	StatusFail            Status = "FAIL"
	StatusRollbackPending Status = "ROLLBACK_PENDING"
)

// Steps is the forward order of the saga after the order is created.
var Steps = []Source{SourceProductValidation, SourcePayment, SourceInventory}

// Sources lists every emitter of envelopes.
var Sources = []Source{SourceOrder, SourceProductValidation, SourcePayment, SourceInventory}

var Statuses = []Status{StatusSuccess, StatusFail, StatusRollbackPending}

type Topology string

const (
	Orchestrated  Topology = "orchestrated"
	Choreographed Topology = "choreographed"
)

func ParseTopology(s string) (Topology, error) {
	switch Topology(s) {
	case Orchestrated, Choreographed:
		return Topology(s), nil
	default:
		return "", ErrInvalidTopology.Wrapf("%q (expected orchestrated|choreographed)", s)
	}
}
