package remote

// Record is the remote system's view of an item. The pipeline only ever
// creates records or patches their price fields; no other field is written
// after creation.
type Record struct {
	ExternalKey   string  `json:"externalKey"`
	DisplayName   string  `json:"displayName"`
	Category      string  `json:"category"`
	UnitOfMeasure string  `json:"unitOfMeasure"`
	PurchasePrice float64 `json:"purchasePrice"`
	SalesPrice    float64 `json:"salesPrice"`
}

// CreateOutcome classifies a create attempt. "Already exists" is a
// distinguished outcome decided from the remote's structured error code,
// never an error.
type CreateOutcome int

const (
	// OutcomeFailed means the create failed; the accompanying error says why.
	OutcomeFailed CreateOutcome = iota
	// OutcomeCreated means the record was created.
	OutcomeCreated
	// OutcomeExists means a record with this key already exists remotely.
	OutcomeExists
)

func (o CreateOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeExists:
		return "exists"
	default:
		return "failed"
	}
}
