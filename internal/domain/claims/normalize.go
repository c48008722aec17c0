package claims

import (
	"context"
	"fmt"

	"github.com/m4a/m4a/internal/domain/directory"
	"github.com/m4a/m4a/internal/domain/submitter"
	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

// recordSet names which normalization records a transition requires.
type recordSet struct {
	patient   bool
	hospital  bool
	insurance bool
}

// Per-transition normalization policy. Approval needs everything; a denial
// can proceed on the patient record alone via the create-and-deny variant.
var approveRecords = recordSet{patient: true, hospital: true, insurance: true}

// checkRecords verifies a live claim's normalization state against the
// required set.
func checkRecords(cl Claim, rs recordSet) error {
	if rs.patient && !cl.PatientNormalized {
		return fmt.Errorf("patient record missing: %w", protocol.ErrPreconditionUnmet)
	}
	if rs.hospital && (!cl.HospitalNormalized || cl.Hospital.Pending) {
		return fmt.Errorf("hospital record missing: %w", protocol.ErrPreconditionUnmet)
	}
	if rs.insurance && (!cl.InsuranceNormalized || cl.Insurance.Pending) {
		return fmt.Errorf("insurance record missing: %w", protocol.ErrPreconditionUnmet)
	}
	return nil
}

// matchProcessedRecords asserts that a processed claim carries exactly the
// record set the operation variant was written for.
func matchProcessedRecords(pc ProcessedClaim, wantAll bool) error {
	hasAll := pc.HospitalNormalized && pc.InsuranceNormalized
	if wantAll && !hasAll {
		return fmt.Errorf("hospital/insurance records missing: %w", protocol.ErrInvalidState)
	}
	if !wantAll && hasAll {
		return fmt.Errorf("hospital/insurance records exist: %w", protocol.ErrInvalidState)
	}
	if !pc.PatientNormalized {
		return fmt.Errorf("patient record missing: %w", protocol.ErrInvalidState)
	}
	return nil
}

// normalizePatient links the claim to its patient record.
func normalizePatient(tx ledger.Tx, cl *Claim) error {
	if cl.PatientNormalized {
		return fmt.Errorf("patient record: %w", protocol.ErrAlreadyExists)
	}
	if _, err := submitter.GetPatient(tx, cl.Owner, cl.PatientIndex); err != nil {
		return err
	}
	cl.PatientNormalized = true
	return nil
}

// normalizeHospitalAndInsurer resolves pending references by registering the
// entities from the claim's descriptive fields, or validates existing
// indices. The claim's geographic state must already be registered.
func normalizeHospitalAndInsurer(tx ledger.Tx, cl *Claim) error {
	if cl.HospitalNormalized && cl.InsuranceNormalized {
		return fmt.Errorf("hospital and insurance records: %w", protocol.ErrAlreadyExists)
	}

	if !cl.HospitalNormalized {
		if cl.Hospital.Pending {
			h, err := directory.RegisterHospital(tx, cl.Country, cl.State,
				cl.HospitalName, cl.HospitalAddress, cl.HospitalCity)
			if err != nil {
				return err
			}
			cl.Hospital = Ref{Index: h.Index}
		} else {
			if _, err := directory.GetHospital(tx, cl.Country, cl.State, cl.Hospital.Index); err != nil {
				return err
			}
		}
		cl.HospitalNormalized = true
	}

	if !cl.InsuranceNormalized {
		if cl.Insurance.Pending {
			ic, err := directory.RegisterInsurer(tx, cl.InsuranceName)
			if err != nil {
				return err
			}
			cl.Insurance = Ref{Index: ic.Index}
		} else {
			if _, err := directory.GetInsurer(tx, cl.Insurance.Index); err != nil {
				return err
			}
		}
		cl.InsuranceNormalized = true
	}
	return nil
}

// CreatePatientRecord performs patient normalization for an assigned claim.
// Caller must be the assigned processor.
func (s *Service) CreatePatientRecord(ctx context.Context, caller, owner protocol.Address) (Claim, error) {
	var cl Claim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		var err error
		cl, err = getClaim(tx, owner)
		if err != nil {
			return err
		}
		if err := requireAdjudicator(tx, caller, cl); err != nil {
			return err
		}
		if err := normalizePatient(tx, &cl); err != nil {
			return err
		}
		return saveClaim(tx, cl)
	})
	if err != nil {
		return Claim{}, err
	}
	return cl, nil
}

// CreateHospitalAndInsuranceCompanyRecords performs hospital and insurance
// normalization for an assigned claim. Caller must be the assigned
// processor.
func (s *Service) CreateHospitalAndInsuranceCompanyRecords(ctx context.Context, caller, owner protocol.Address) (Claim, error) {
	var cl Claim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		var err error
		cl, err = getClaim(tx, owner)
		if err != nil {
			return err
		}
		if err := requireAdjudicator(tx, caller, cl); err != nil {
			return err
		}
		if err := normalizeHospitalAndInsurer(tx, &cl); err != nil {
			return err
		}
		return saveClaim(tx, cl)
	})
	if err != nil {
		return Claim{}, err
	}
	return cl, nil
}

// normalizeProcessedHospitalAndInsurer re-runs hospital/insurance
// normalization for a processed claim during an appeal or undeny variant
// that registers records late.
func normalizeProcessedHospitalAndInsurer(tx ledger.Tx, pc *ProcessedClaim) error {
	cl := Claim{
		Owner:               pc.Owner,
		Country:             pc.Country,
		State:               pc.State,
		Hospital:            pc.Hospital,
		Insurance:           pc.Insurance,
		HospitalName:        pc.HospitalName,
		HospitalAddress:     pc.HospitalAddress,
		HospitalCity:        pc.HospitalCity,
		InsuranceName:       pc.InsuranceName,
		HospitalNormalized:  pc.HospitalNormalized,
		InsuranceNormalized: pc.InsuranceNormalized,
	}
	if err := normalizeHospitalAndInsurer(tx, &cl); err != nil {
		return err
	}
	pc.Hospital = cl.Hospital
	pc.Insurance = cl.Insurance
	pc.HospitalNormalized = cl.HospitalNormalized
	pc.InsuranceNormalized = cl.InsuranceNormalized
	return nil
}
