package proposal

import "time"

// Payment is one installment of the payment schedule.
type Payment struct {
	Milestone string    `json:"milestone"`
	Percent   int       `json:"percent"`
	Amount    int64     `json:"amount"`
	DueDate   time.Time `json:"dueDate"`
}

var installments = []struct {
	milestone string
	percent   int
	due       func(Timeline) time.Time
}{
	{"Project kickoff", 30, func(t Timeline) time.Time { return t.StartDate }},
	{"Design approval", 40, func(t Timeline) time.Time { return t.phaseEnd(PhaseDesign) }},
	{"Launch", 30, func(t Timeline) time.Time { return t.phaseEnd(PhaseLaunch) }},
}

// Schedule splits total into the 30/40/30 installments. Every installment
// but the last is floored; the last takes the remainder so the amounts sum
// to total exactly.
func Schedule(total int64, t Timeline) []Payment {
	out := make([]Payment, 0, len(installments))
	var assigned int64
	for i, in := range installments {
		amount := total * int64(in.percent) / 100
		if i == len(installments)-1 {
			amount = total - assigned
		}
		assigned += amount
		out = append(out, Payment{
			Milestone: in.milestone,
			Percent:   in.percent,
			Amount:    amount,
			DueDate:   in.due(t),
		})
	}
	return out
}
