package domain

import (
	"context"
	"encoding/json"
)

// TripProvider produces trip data for a trip input. Calls may take minutes.
type TripProvider interface {
	GenerateTrip(ctx context.Context, input TripInput, userID, authToken string) (json.RawMessage, error)
}

// Charge is a single points deduction against the external ledger.
type Charge struct {
	UserID         string
	Amount         int
	Description    string
	AuthToken      string
	Metadata       map[string]any
	IdempotencyKey string
	TransactionID  string
}

// Ledger deducts points. A nil error means the charge was applied (or was a
// replay of an already-applied idempotency key).
type Ledger interface {
	Charge(ctx context.Context, charge Charge) error
}

// PriceParams carries the inputs a price depends on.
type PriceParams struct {
	DateRange string
}

// Pricer computes the point cost of an action.
type Pricer interface {
	Cost(action Action, params PriceParams) int
}

// JobSnapshotRepository persists the whole job table so restart recovery has
// something to recover.
type JobSnapshotRepository interface {
	Load(ctx context.Context) ([]GenerationJob, error)
	Save(ctx context.Context, jobs []GenerationJob) error
}
