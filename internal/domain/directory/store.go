package directory

import (
	"errors"
	"fmt"

	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

// Transaction-level accessors. The adjudication engine calls these inside
// its own transactions to validate references, register pending entities,
// and update outcome tallies.

func GetState(tx ledger.Tx, country, state uint32) (StateAccount, error) {
	var sa StateAccount
	err := tx.Get(StateKey(country, state), &sa)
	return sa, err
}

func SaveState(tx ledger.Tx, sa StateAccount) error {
	return tx.Put(StateKey(sa.Country, sa.State), sa)
}

func GetHospital(tx ledger.Tx, country, state, index uint32) (Hospital, error) {
	var h Hospital
	err := tx.Get(HospitalKey(country, state, index), &h)
	return h, err
}

func SaveHospital(tx ledger.Tx, h Hospital) error {
	return tx.Put(HospitalKey(h.Country, h.State, h.Index), h)
}

func GetInsurer(tx ledger.Tx, index uint32) (InsuranceCompany, error) {
	var ic InsuranceCompany
	err := tx.Get(InsurerKey(index), &ic)
	return ic, err
}

func SaveInsurer(tx ledger.Tx, ic InsuranceCompany) error {
	return tx.Put(InsurerKey(ic.Index), ic)
}

// HospitalInRange reports whether index names a registered hospital in the
// given state. A missing state account means nothing is in range.
func HospitalInRange(tx ledger.Tx, country, state, index uint32) (bool, error) {
	sa, err := GetState(tx, country, state)
	if errors.Is(err, protocol.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return index < sa.HospitalCount, nil
}

// InsurerInRange reports whether index names a registered insurance company.
func InsurerInRange(tx ledger.Tx, index uint32) (bool, error) {
	var dir insurerDirectory
	if err := tx.Get(insurerDirectoryKey(), &dir); err != nil {
		if errors.Is(err, protocol.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return index < dir.Count, nil
}

// RegisterHospital creates a hospital at the state's next index. The state
// account must already exist.
func RegisterHospital(tx ledger.Tx, country, state uint32, name, address, city string) (Hospital, error) {
	if err := protocol.CheckLen("hospital name", name, MaxHospitalName); err != nil {
		return Hospital{}, err
	}
	if err := protocol.CheckLen("hospital address", address, MaxAddress); err != nil {
		return Hospital{}, err
	}
	if err := protocol.CheckLen("hospital city", city, MaxCity); err != nil {
		return Hospital{}, err
	}
	sa, err := GetState(tx, country, state)
	if err != nil {
		return Hospital{}, fmt.Errorf("state (%d,%d): %w", country, state, err)
	}
	h := Hospital{
		Country: country,
		State:   state,
		Index:   sa.HospitalCount,
		Name:    name,
		Address: address,
		City:    city,
	}
	if err := tx.Create(HospitalKey(country, state, h.Index), h); err != nil {
		return Hospital{}, err
	}
	sa.HospitalCount++
	if err := SaveState(tx, sa); err != nil {
		return Hospital{}, err
	}
	return h, nil
}

// RegisterInsurer creates an insurance company at the next global index.
func RegisterInsurer(tx ledger.Tx, name string) (InsuranceCompany, error) {
	if err := protocol.CheckLen("insurer name", name, MaxInsurerName); err != nil {
		return InsuranceCompany{}, err
	}
	var dir insurerDirectory
	if err := tx.Get(insurerDirectoryKey(), &dir); err != nil && !errors.Is(err, protocol.ErrNotFound) {
		return InsuranceCompany{}, err
	}
	ic := InsuranceCompany{Index: dir.Count, Name: name}
	if err := tx.Create(InsurerKey(ic.Index), ic); err != nil {
		return InsuranceCompany{}, err
	}
	dir.Count++
	if err := tx.Put(insurerDirectoryKey(), dir); err != nil {
		return InsuranceCompany{}, err
	}
	return ic, nil
}
