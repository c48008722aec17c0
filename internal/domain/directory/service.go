package directory

import (
	"context"

	"github.com/m4a/m4a/internal/domain/registry"
	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

type Service struct {
	store ledger.Store
}

func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// CreateStateAccount registers a geographic state. Admin-only.
func (s *Service) CreateStateAccount(ctx context.Context, caller protocol.Address, country, state uint32) (StateAccount, error) {
	sa := StateAccount{Country: country, State: state}
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		return tx.Create(StateKey(country, state), sa)
	})
	if err != nil {
		return StateAccount{}, err
	}
	return sa, nil
}

// CreateHospital registers a hospital under an existing state. Admin-only.
func (s *Service) CreateHospital(ctx context.Context, caller protocol.Address, country, state uint32, name, address, city string) (Hospital, error) {
	var h Hospital
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		var err error
		h, err = RegisterHospital(tx, country, state, name, address, city)
		return err
	})
	if err != nil {
		return Hospital{}, err
	}
	return h, nil
}

// EditHospital amends a hospital's descriptive fields. Admin-only.
func (s *Service) EditHospital(ctx context.Context, caller protocol.Address, country, state, index uint32, name, address, city string) (Hospital, error) {
	var h Hospital
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		if err := protocol.CheckLen("hospital name", name, MaxHospitalName); err != nil {
			return err
		}
		if err := protocol.CheckLen("hospital address", address, MaxAddress); err != nil {
			return err
		}
		if err := protocol.CheckLen("hospital city", city, MaxCity); err != nil {
			return err
		}
		var err error
		h, err = GetHospital(tx, country, state, index)
		if err != nil {
			return err
		}
		h.Name, h.Address, h.City = name, address, city
		return SaveHospital(tx, h)
	})
	if err != nil {
		return Hospital{}, err
	}
	return h, nil
}

// CreateInsuranceCompany registers an insurer at the next global index.
// Admin-only.
func (s *Service) CreateInsuranceCompany(ctx context.Context, caller protocol.Address, name string) (InsuranceCompany, error) {
	var ic InsuranceCompany
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		var err error
		ic, err = RegisterInsurer(tx, name)
		return err
	})
	if err != nil {
		return InsuranceCompany{}, err
	}
	return ic, nil
}

// EditInsuranceCompany renames an insurer. Admin-only.
func (s *Service) EditInsuranceCompany(ctx context.Context, caller protocol.Address, index uint32, name string) (InsuranceCompany, error) {
	var ic InsuranceCompany
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		if err := protocol.CheckLen("insurer name", name, MaxInsurerName); err != nil {
			return err
		}
		var err error
		ic, err = GetInsurer(tx, index)
		if err != nil {
			return err
		}
		ic.Name = name
		return SaveInsurer(tx, ic)
	})
	if err != nil {
		return InsuranceCompany{}, err
	}
	return ic, nil
}

func (s *Service) GetStateAccount(ctx context.Context, country, state uint32) (StateAccount, error) {
	var sa StateAccount
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		sa, err = GetState(tx, country, state)
		return err
	})
	return sa, err
}

func (s *Service) GetHospital(ctx context.Context, country, state, index uint32) (Hospital, error) {
	var h Hospital
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		h, err = GetHospital(tx, country, state, index)
		return err
	})
	return h, err
}

func (s *Service) GetInsuranceCompany(ctx context.Context, index uint32) (InsuranceCompany, error) {
	var ic InsuranceCompany
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		ic, err = GetInsurer(tx, index)
		return err
	})
	return ic, err
}

// ListHospitals enumerates a state's hospitals in index order.
func (s *Service) ListHospitals(ctx context.Context, country, state uint32) ([]Hospital, error) {
	var hospitals []Hospital
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		sa, err := GetState(tx, country, state)
		if err != nil {
			return err
		}
		hospitals = make([]Hospital, 0, sa.HospitalCount)
		for i := uint32(0); i < sa.HospitalCount; i++ {
			h, err := GetHospital(tx, country, state, i)
			if err != nil {
				return err
			}
			hospitals = append(hospitals, h)
		}
		return nil
	})
	return hospitals, err
}
