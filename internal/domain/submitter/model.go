// Package submitter manages submitter accounts and the ordered patient
// sub-records they own. A submitter files claims on behalf of its patients;
// outcome tallies on both record kinds are maintained by the adjudication
// engine.
package submitter

import (
	"strconv"

	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

// MaxName bounds patient first and last names.
const MaxName = 52

type Submitter struct {
	Address      protocol.Address `json:"address"`
	PatientCount uint32           `json:"patient_count"`

	ActivePatientCount uint32 `json:"active_patient_count"`
	// ProcessedClaimCount seeds the submitter's audit-trail sequence; each
	// disposition of this submitter's claim takes the next number.
	ProcessedClaimCount uint64 `json:"processed_claim_count"`
	ApprovedClaimCount uint64 `json:"approved_claim_count"`
	DeniedClaimCount   uint64 `json:"denied_claim_count"`
	AppealCount        uint64 `json:"appeal_count"`
	ApprovedAmount     uint64 `json:"approved_amount"`
}

type Patient struct {
	Owner     protocol.Address `json:"owner"`
	Index     uint32           `json:"index"`
	FirstName string           `json:"first_name"`
	LastName  string           `json:"last_name"`
	Active    bool             `json:"active"`

	ApprovedClaimCount uint64 `json:"approved_claim_count"`
	DeniedClaimCount   uint64 `json:"denied_claim_count"`
	AppealCount        uint64 `json:"appeal_count"`
	ApprovedAmount     uint64 `json:"approved_amount"`
}

func SubmitterKey(owner protocol.Address) string {
	return ledger.Key("submitter", string(owner))
}

func PatientKey(owner protocol.Address, index uint32) string {
	return ledger.Key("patient", string(owner), strconv.FormatUint(uint64(index), 10))
}
