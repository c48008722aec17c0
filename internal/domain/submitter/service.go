package submitter

import (
	"context"
	"fmt"

	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

type Service struct {
	store ledger.Store
}

func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// CreateSubmitter opens an account for the caller. Self-service.
func (s *Service) CreateSubmitter(ctx context.Context, caller protocol.Address) (Submitter, error) {
	if caller == protocol.Zero {
		return Submitter{}, protocol.ErrUnauthorized
	}
	sub := Submitter{Address: caller}
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		return tx.Create(SubmitterKey(caller), sub)
	})
	if err != nil {
		return Submitter{}, err
	}
	return sub, nil
}

// CreatePatient appends a patient record under the caller's account at the
// next index. Patients start active.
func (s *Service) CreatePatient(ctx context.Context, caller protocol.Address, firstName, lastName string) (Patient, error) {
	if err := protocol.CheckLen("first name", firstName, MaxName); err != nil {
		return Patient{}, err
	}
	if err := protocol.CheckLen("last name", lastName, MaxName); err != nil {
		return Patient{}, err
	}
	var p Patient
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		sub, err := GetSubmitter(tx, caller)
		if err != nil {
			return fmt.Errorf("submitter %s: %w", caller, err)
		}
		p = Patient{
			Owner:     caller,
			Index:     sub.PatientCount,
			FirstName: firstName,
			LastName:  lastName,
			Active:    true,
		}
		if err := tx.Create(PatientKey(caller, p.Index), p); err != nil {
			return err
		}
		sub.PatientCount++
		sub.ActivePatientCount++
		return SaveSubmitter(tx, sub)
	})
	if err != nil {
		return Patient{}, err
	}
	return p, nil
}

// SetPatientFlag toggles a patient's active flag. Only the owning submitter
// may call, and setting the current value is rejected so the active-patient
// tally stays exact.
func (s *Service) SetPatientFlag(ctx context.Context, caller protocol.Address, index uint32, active bool) (Patient, error) {
	var p Patient
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		sub, err := GetSubmitter(tx, caller)
		if err != nil {
			return fmt.Errorf("submitter %s: %w", caller, err)
		}
		p, err = GetPatient(tx, caller, index)
		if err != nil {
			return err
		}
		if p.Active == active {
			return protocol.ErrSameFlagState
		}
		p.Active = active
		if active {
			sub.ActivePatientCount++
		} else {
			sub.ActivePatientCount--
		}
		if err := SavePatient(tx, p); err != nil {
			return err
		}
		return SaveSubmitter(tx, sub)
	})
	if err != nil {
		return Patient{}, err
	}
	return p, nil
}

func (s *Service) GetSubmitter(ctx context.Context, owner protocol.Address) (Submitter, error) {
	var sub Submitter
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		sub, err = GetSubmitter(tx, owner)
		return err
	})
	return sub, err
}

func (s *Service) GetPatient(ctx context.Context, owner protocol.Address, index uint32) (Patient, error) {
	var p Patient
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		p, err = GetPatient(tx, owner, index)
		return err
	})
	return p, err
}

// ListPatients enumerates a submitter's patients in index order.
func (s *Service) ListPatients(ctx context.Context, owner protocol.Address) ([]Patient, error) {
	var patients []Patient
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		sub, err := GetSubmitter(tx, owner)
		if err != nil {
			return err
		}
		patients = make([]Patient, 0, sub.PatientCount)
		for i := uint32(0); i < sub.PatientCount; i++ {
			p, err := GetPatient(tx, owner, i)
			if err != nil {
				return err
			}
			patients = append(patients, p)
		}
		return nil
	})
	return patients, err
}
