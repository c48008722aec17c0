// Package directory is the canonical reference data store: geographic state
// accounts, hospitals, and insurance companies, each addressed by composite
// index. Hospitals are numbered per state; insurers are numbered globally.
// Outcome tallies on each record are maintained by the adjudication engine.
package directory

import (
	"strconv"

	"github.com/m4a/m4a/internal/platform/ledger"
)

// Field length limits.
const (
	MaxHospitalName = 50
	MaxAddress      = 100
	MaxCity         = 40
	MaxInsurerName  = 35
)

type StateAccount struct {
	Country       uint32 `json:"country"`
	State         uint32 `json:"state"`
	HospitalCount uint32 `json:"hospital_count"`

	ApprovedClaimCount uint64 `json:"approved_claim_count"`
	DeniedClaimCount   uint64 `json:"denied_claim_count"`
	ApprovedAmount     uint64 `json:"approved_amount"`
}

type Hospital struct {
	Country uint32 `json:"country"`
	State   uint32 `json:"state"`
	Index   uint32 `json:"index"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`

	ApprovedClaimCount uint64 `json:"approved_claim_count"`
	DeniedClaimCount   uint64 `json:"denied_claim_count"`
	AppealCount        uint64 `json:"appeal_count"`
	ApprovedAmount     uint64 `json:"approved_amount"`
}

type InsuranceCompany struct {
	Index uint32 `json:"index"`
	Name  string `json:"name"`

	ApprovedClaimCount uint64 `json:"approved_claim_count"`
	DeniedClaimCount   uint64 `json:"denied_claim_count"`
	AppealCount        uint64 `json:"appeal_count"`
	ApprovedAmount     uint64 `json:"approved_amount"`
}

// insurerDirectory is the singleton allocating global insurer indices.
type insurerDirectory struct {
	Count uint32 `json:"count"`
}

func u32(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func StateKey(country, state uint32) string {
	return ledger.Key("state", u32(country), u32(state))
}

func HospitalKey(country, state, index uint32) string {
	return ledger.Key("hospital", u32(country), u32(state), u32(index))
}

func InsurerKey(index uint32) string {
	return ledger.Key("insurer", u32(index))
}

func insurerDirectoryKey() string {
	return ledger.Key("insurer-directory")
}
