package submitter

import (
	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

// Transaction-level accessors used by the claims engine.

func GetSubmitter(tx ledger.Tx, owner protocol.Address) (Submitter, error) {
	var sub Submitter
	err := tx.Get(SubmitterKey(owner), &sub)
	return sub, err
}

func SaveSubmitter(tx ledger.Tx, sub Submitter) error {
	return tx.Put(SubmitterKey(sub.Address), sub)
}

func GetPatient(tx ledger.Tx, owner protocol.Address, index uint32) (Patient, error) {
	var p Patient
	err := tx.Get(PatientKey(owner, index), &p)
	return p, err
}

func SavePatient(tx ledger.Tx, p Patient) error {
	return tx.Put(PatientKey(p.Owner, p.Index), p)
}
