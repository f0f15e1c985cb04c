package order

type CreatedEvent struct {
	Order Order
}

func NewCreatedEvent(o Order) *CreatedEvent {
	return &CreatedEvent{Order: o}
}

type FinishedEvent struct {
	Order Order
}

func NewFinishedEvent(o Order) *FinishedEvent {
	return &FinishedEvent{Order: o}
}
