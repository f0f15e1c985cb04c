package saga

import "fmt"

// Topics names every broker channel of the saga. The values come from
// configuration; DefaultTopics matches the deployed names.
type Topics struct {
	Orchestrator           string `env:"TOPIC_ORCHESTRATOR" envDefault:"orchestrator"`
	ProductValidationStart string `env:"TOPIC_PRODUCT_VALIDATION_START" envDefault:"product-validation-start"`
	ProductValidationFail  string `env:"TOPIC_PRODUCT_VALIDATION_FAIL" envDefault:"product-validation-fail"`
	PaymentStart           string `env:"TOPIC_PAYMENT_START" envDefault:"payment-start"`
	PaymentFail            string `env:"TOPIC_PAYMENT_FAIL" envDefault:"payment-fail"`
	InventoryStart         string `env:"TOPIC_INVENTORY_START" envDefault:"inventory-start"`
	InventoryFail          string `env:"TOPIC_INVENTORY_FAIL" envDefault:"inventory-fail"`
	FinishSuccess          string `env:"TOPIC_FINISH_SUCCESS" envDefault:"finish-success"`
	FinishFail             string `env:"TOPIC_FINISH_FAIL" envDefault:"finish-fail"`
	NotifyEnding           string `env:"TOPIC_NOTIFY_ENDING" envDefault:"notify-ending"`
}

func DefaultTopics() Topics {
	return Topics{
		Orchestrator:           "orchestrator",
		ProductValidationStart: "product-validation-start",
		ProductValidationFail:  "product-validation-fail",
		PaymentStart:           "payment-start",
		PaymentFail:            "payment-fail",
		InventoryStart:         "inventory-start",
		InventoryFail:          "inventory-fail",
		FinishSuccess:          "finish-success",
		FinishFail:             "finish-fail",
		NotifyEnding:           "notify-ending",
	}
}

func (t Topics) named() map[string]string {
	return map[string]string{
		"orchestrator":             t.Orchestrator,
		"product-validation-start": t.ProductValidationStart,
		"product-validation-fail":  t.ProductValidationFail,
		"payment-start":            t.PaymentStart,
		"payment-fail":             t.PaymentFail,
		"inventory-start":          t.InventoryStart,
		"inventory-fail":           t.InventoryFail,
		"finish-success":           t.FinishSuccess,
		"finish-fail":              t.FinishFail,
		"notify-ending":            t.NotifyEnding,
	}
}

// Validate rejects empty and duplicated topic names.
func (t Topics) Validate() error {
	seen := make(map[string]string)
	for role, name := range t.named() {
		if name == "" {
			return fmt.Errorf("%w: %s topic is empty", ErrInvalidTopics, role)
		}
		if other, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s and %s share topic %q", ErrInvalidTopics, role, other, name)
		}
		seen[name] = role
	}
	return nil
}

// Start is the forward topic consumed by step.
func (t Topics) Start(step Source) string {
	switch step {
	case SourceProductValidation:
		return t.ProductValidationStart
	case SourcePayment:
		return t.PaymentStart
	case SourceInventory:
		return t.InventoryStart
	default:
		return ""
	}
}

// Fail is the compensation topic consumed by step.
func (t Topics) Fail(step Source) string {
	switch step {
	case SourceProductValidation:
		return t.ProductValidationFail
	case SourcePayment:
		return t.PaymentFail
	case SourceInventory:
		return t.InventoryFail
	default:
		return ""
	}
}
