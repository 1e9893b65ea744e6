package domain

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Rank grows along every allowed transition, so of two observations of one
// order the higher rank is the later one.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusPaid:
		return 1
	case StatusShipped:
		return 2
	case StatusCancelled:
		return 3
	}
	return -1
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Reason: "unknown status " + s}
	}
	return st, nil
}
