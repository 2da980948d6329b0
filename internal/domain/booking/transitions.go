package booking

var (
	participants = []ActorType{ActorCouple, ActorVendor, ActorAdmin}
	systemOnly   = []ActorType{ActorSystem}
)

// transitions lists every allowed edge and the actors permitted to take it.
// disputed -> completed is not here; it goes through ResolveDispute.
var transitions = map[Status]map[Status][]ActorType{
	StatusRequest: {
		StatusQuoteRequested: {ActorCouple, ActorAdmin},
		StatusQuoteSent:      {ActorVendor},
		StatusCancelled:      participants,
	},
	StatusQuoteRequested: {
		StatusQuoteSent: {ActorVendor},
		StatusCancelled: participants,
	},
	StatusQuoteSent: {
		StatusQuoteAccepted: {ActorCouple},
		StatusQuoteRejected: {ActorCouple},
		StatusCancelled:     participants,
	},
	StatusQuoteAccepted: {
		StatusApproved:    {ActorVendor, ActorAdmin},
		StatusDownpayment: systemOnly,
		StatusCancelled:   participants,
	},
	StatusQuoteRejected: {
		StatusQuoteSent: {ActorVendor},
		StatusCancelled: participants,
	},
	StatusApproved: {
		StatusDownpayment: systemOnly,
		StatusCancelled:   participants,
	},
	StatusDownpayment: {
		StatusFullyPaid:  systemOnly,
		StatusInProgress: {ActorVendor, ActorAdmin},
		StatusCancelled:  participants,
		StatusRefunded:   {ActorAdmin, ActorSystem},
	},
	StatusFullyPaid: {
		StatusInProgress: {ActorVendor, ActorAdmin},
		StatusCompleted:  systemOnly,
		StatusRefunded:   {ActorAdmin, ActorSystem},
		StatusDisputed:   participants,
	},
	StatusInProgress: {
		StatusCompleted: systemOnly,
		StatusDisputed:  participants,
	},
	StatusCompleted: {
		StatusDisputed: participants,
	},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// AllowedActors returns the actor types permitted on from -> to, or nil when
// the edge does not exist.
func AllowedActors(from, to Status) []ActorType {
	return transitions[from][to]
}

// NextStatuses returns the targets reachable from s in one edge.
func NextStatuses(s Status) []Status {
	out := make([]Status, 0, len(transitions[s]))
	for _, candidate := range AllStatuses() {
		if CanTransition(s, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

func actorAllowed(from, to Status, t ActorType) bool {
	for _, allowed := range transitions[from][to] {
		if allowed == t {
			return true
		}
	}
	return false
}
