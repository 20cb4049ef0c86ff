package order

// Status 订单状态
type Status string

const (
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
	StatusShipped         Status = "shipped"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
	StatusRefunded        Status = "refunded"
)

// Statuses 全部状态，按展示顺序
func Statuses() []Status {
	return []Status{
		StatusAwaitingPayment,
		StatusPaid,
		StatusShipped,
		StatusCompleted,
		StatusCancelled,
		StatusRefunded,
	}
}

var transitions = map[Status][]Status{
	StatusAwaitingPayment: {StatusPaid},
	StatusPaid:            {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:         {StatusCompleted, StatusCancelled, StatusRefunded},
	StatusCompleted:       {StatusCancelled, StatusRefunded},
}

func (s Status) Valid() bool {
	for _, v := range Statuses() {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal cancelled 与 refunded 不可再流转
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
