// Package claims is the adjudication engine: the claim queue, the
// disposition state machine, reference normalization, and the global
// statistics ledger.
package claims

import (
	"fmt"

	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

// Field length limits for claim text.
const (
	MaxInvoiceNumber = 20
	MaxNote          = 144
	MaxAilment       = 45
)

// Status of a live queue entry.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusAssigned Status = "assigned"
)

// Disposition of a processed claim. DeniedAfterAppeal is terminal; a plain
// denial can still be appealed.
type Disposition string

const (
	DispositionApproved          Disposition = "approved"
	DispositionDenied            Disposition = "denied"
	DispositionAppealed          Disposition = "appealed"
	DispositionDeniedAfterAppeal Disposition = "denied_after_appeal"
)

// Ref selects a directory entity. Pending means the submitter supplied an
// out-of-range index: the entity is not registered yet and normalization
// will assign the real index from the claim's descriptive fields.
type Ref struct {
	Pending bool   `json:"pending"`
	Index   uint32 `json:"index"`
}

// Claim is a live queue entry. The descriptive hospital/insurer fields are a
// denormalized copy used until normalization registers or validates the
// directory entities.
type Claim struct {
	Owner        protocol.Address `json:"owner"`
	PatientIndex uint32           `json:"patient_index"`
	Country      uint32           `json:"country"`
	State        uint32           `json:"state"`
	Hospital     Ref              `json:"hospital"`
	Insurance    Ref              `json:"insurance"`

	HospitalName    string `json:"hospital_name"`
	HospitalAddress string `json:"hospital_address"`
	HospitalCity    string `json:"hospital_city"`
	InsuranceName   string `json:"insurance_name"`
	InvoiceNumber   string `json:"invoice_number"`
	Note            string `json:"note"`
	Ailment         string `json:"ailment"`
	Amount          uint64 `json:"amount"`

	Status    Status           `json:"status"`
	Processor protocol.Address `json:"processor,omitempty"`

	PatientNormalized   bool `json:"patient_normalized"`
	HospitalNormalized  bool `json:"hospital_normalized"`
	InsuranceNormalized bool `json:"insurance_normalized"`
}

// ProcessedClaim is the amendable audit record a claim becomes at
// disposition. Never deleted.
type ProcessedClaim struct {
	Owner     protocol.Address `json:"owner"`
	Seq       uint64           `json:"seq"`
	Processor protocol.Address `json:"processor"`

	Disposition  Disposition `json:"disposition"`
	Reason       string      `json:"reason,omitempty"`
	AppealReason string      `json:"appeal_reason,omitempty"`

	PatientIndex uint32 `json:"patient_index"`
	Country      uint32 `json:"country"`
	State        uint32 `json:"state"`
	Hospital     Ref    `json:"hospital"`
	Insurance    Ref    `json:"insurance"`

	HospitalName    string `json:"hospital_name"`
	HospitalAddress string `json:"hospital_address"`
	HospitalCity    string `json:"hospital_city"`
	InsuranceName   string `json:"insurance_name"`
	InvoiceNumber   string `json:"invoice_number"`
	Note            string `json:"note"`
	Ailment         string `json:"ailment"`
	Amount          uint64 `json:"amount"`

	PatientNormalized   bool `json:"patient_normalized"`
	HospitalNormalized  bool `json:"hospital_normalized"`
	InsuranceNormalized bool `json:"insurance_normalized"`
}

// Stats is the global statistics singleton. All counters are monotonic
// except the approved/denied pair, which an undeny or revocation shifts
// between outcomes.
type Stats struct {
	ProcessedClaimCount  uint64 `json:"processed_claim_count"`
	ApprovedClaimCount   uint64 `json:"approved_claim_count"`
	DeniedClaimCount     uint64 `json:"denied_claim_count"`
	MaxDeniedClaimCount  uint64 `json:"max_denied_claim_count"`
	UndeniedClaimCount   uint64 `json:"undenied_claim_count"`
	DeniedAppealCount    uint64 `json:"denied_appeal_count"`
	RevokedApprovalCount uint64 `json:"revoked_approval_count"`

	SubmittedClaimCount uint64 `json:"submitted_claim_count"`
	AppealCount         uint64 `json:"appeal_count"`
	HammerDropCount     uint64 `json:"hammer_drop_count"`
	ApprovedAmount      uint64 `json:"approved_amount"`
}

// Gate is the queue admission singleton. QueuedCount tracks live claims so
// the size limit is a single-record check.
type Gate struct {
	Enabled      bool   `json:"enabled"`
	MaxQueueSize uint32 `json:"max_queue_size"`
	QueuedCount  uint32 `json:"queued_count"`
}

func ClaimKey(owner protocol.Address) string {
	return ledger.Key("claim", string(owner))
}

// ProcessedClaimKey zero-pads the sequence so lexicographic key order is
// numeric order for prefix listings.
func ProcessedClaimKey(owner protocol.Address, seq uint64) string {
	return ledger.Key("processed-claim", string(owner), fmt.Sprintf("%020d", seq))
}

func StatsKey() string {
	return ledger.Key("stats")
}

func GateKey() string {
	return ledger.Key("queue-gate")
}
