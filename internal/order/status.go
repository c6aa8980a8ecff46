package order

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusPreparing: true,
		StatusCancelled: true,
	},
	StatusPreparing: {
		StatusReady:     true,
		StatusCancelled: true,
	},
	StatusReady: {
		StatusOutForDelivery: true,
		StatusCancelled:      true,
	},
	StatusOutForDelivery: {
		StatusDelivered: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransition reports whether the status machine allows from -> to.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

// StatusMessage is the customer-facing sentence for a status.
func StatusMessage(s Status) string {
	switch s {
	case StatusPending:
		return "Your order has been placed"
	case StatusConfirmed:
		return "Your order has been confirmed"
	case StatusPreparing:
		return "Your pizza is being prepared"
	case StatusReady:
		return "Your order is ready"
	case StatusOutForDelivery:
		return "Your order is out for delivery"
	case StatusDelivered:
		return "Your order has been delivered"
	case StatusCancelled:
		return "Your order has been cancelled"
	}
	return "Your order status has been updated"
}
