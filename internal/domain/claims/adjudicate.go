package claims

import (
	"context"
	"fmt"

	"github.com/m4a/m4a/internal/domain/directory"
	"github.com/m4a/m4a/internal/domain/registry"
	"github.com/m4a/m4a/internal/domain/submitter"
	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

// Edits are corrective amendments to claim text. Nil fields are left
// unchanged. Amounts and references are not editable here; indices have
// their own update operations and amounts are fixed at submission.
type Edits struct {
	HospitalName     *string `json:"hospital_name,omitempty"`
	HospitalAddress  *string `json:"hospital_address,omitempty"`
	HospitalCity     *string `json:"hospital_city,omitempty"`
	InsuranceName    *string `json:"insurance_name,omitempty"`
	InvoiceNumber    *string `json:"invoice_number,omitempty"`
	Note             *string `json:"note,omitempty"`
	Ailment          *string `json:"ailment,omitempty"`
	PatientFirstName *string `json:"patient_first_name,omitempty"`
	PatientLastName  *string `json:"patient_last_name,omitempty"`
}

func (e Edits) validate() error {
	checks := []struct {
		name  string
		value *string
		max   int
	}{
		{"hospital name", e.HospitalName, directory.MaxHospitalName},
		{"hospital address", e.HospitalAddress, directory.MaxAddress},
		{"hospital city", e.HospitalCity, directory.MaxCity},
		{"insurer name", e.InsuranceName, directory.MaxInsurerName},
		{"invoice number", e.InvoiceNumber, MaxInvoiceNumber},
		{"note", e.Note, MaxNote},
		{"ailment", e.Ailment, MaxAilment},
		{"patient first name", e.PatientFirstName, submitter.MaxName},
		{"patient last name", e.PatientLastName, submitter.MaxName},
	}
	for _, c := range checks {
		if c.value == nil {
			continue
		}
		if err := protocol.CheckLen(c.name, *c.value, c.max); err != nil {
			return err
		}
	}
	return nil
}

func set(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func (e Edits) applyToClaim(cl *Claim) {
	set(&cl.HospitalName, e.HospitalName)
	set(&cl.HospitalAddress, e.HospitalAddress)
	set(&cl.HospitalCity, e.HospitalCity)
	set(&cl.InsuranceName, e.InsuranceName)
	set(&cl.InvoiceNumber, e.InvoiceNumber)
	set(&cl.Note, e.Note)
	set(&cl.Ailment, e.Ailment)
}

func (e Edits) applyToProcessed(pc *ProcessedClaim) {
	set(&pc.HospitalName, e.HospitalName)
	set(&pc.HospitalAddress, e.HospitalAddress)
	set(&pc.HospitalCity, e.HospitalCity)
	set(&pc.InsuranceName, e.InsuranceName)
	set(&pc.InvoiceNumber, e.InvoiceNumber)
	set(&pc.Note, e.Note)
	set(&pc.Ailment, e.Ailment)
}

func toProcessed(cl Claim, seq uint64, processor protocol.Address, disp Disposition, reason string) ProcessedClaim {
	return ProcessedClaim{
		Owner:               cl.Owner,
		Seq:                 seq,
		Processor:           processor,
		Disposition:         disp,
		Reason:              reason,
		PatientIndex:        cl.PatientIndex,
		Country:             cl.Country,
		State:               cl.State,
		Hospital:            cl.Hospital,
		Insurance:           cl.Insurance,
		HospitalName:        cl.HospitalName,
		HospitalAddress:     cl.HospitalAddress,
		HospitalCity:        cl.HospitalCity,
		InsuranceName:       cl.InsuranceName,
		InvoiceNumber:       cl.InvoiceNumber,
		Note:                cl.Note,
		Ailment:             cl.Ailment,
		Amount:              cl.Amount,
		PatientNormalized:   cl.PatientNormalized,
		HospitalNormalized:  cl.HospitalNormalized,
		InsuranceNormalized: cl.InsuranceNormalized,
	}
}

// finalize moves a live claim out of the queue into its processed record.
func (s *Service) finalize(tx ledger.Tx, cl Claim, pc ProcessedClaim) error {
	if err := tx.Create(ProcessedClaimKey(pc.Owner, pc.Seq), pc); err != nil {
		return err
	}
	if err := tx.Delete(ClaimKey(cl.Owner)); err != nil {
		return err
	}
	gate, err := s.loadGate(tx)
	if err != nil {
		return err
	}
	if gate.QueuedCount > 0 {
		gate.QueuedCount--
	}
	return saveGate(tx, gate)
}

// Approve converts an assigned, fully normalized claim into an approved
// processed claim.
func (s *Service) Approve(ctx context.Context, caller, owner protocol.Address) (ProcessedClaim, error) {
	return s.approve(ctx, caller, owner, nil)
}

// ApproveWithEdits approves while atomically applying corrections found
// during review.
func (s *Service) ApproveWithEdits(ctx context.Context, caller, owner protocol.Address, edits Edits) (ProcessedClaim, error) {
	return s.approve(ctx, caller, owner, &edits)
}

func (s *Service) approve(ctx context.Context, caller, owner protocol.Address, edits *Edits) (ProcessedClaim, error) {
	if edits != nil {
		if err := edits.validate(); err != nil {
			return ProcessedClaim{}, err
		}
	}
	var pc ProcessedClaim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		cl, err := getClaim(tx, owner)
		if err != nil {
			return err
		}
		if err := requireAdjudicator(tx, caller, cl); err != nil {
			return err
		}
		if err := checkRecords(cl, approveRecords); err != nil {
			return err
		}
		if edits != nil {
			edits.applyToClaim(&cl)
		}
		seq, err := nextSeq(tx, cl.Owner, caller)
		if err != nil {
			return err
		}
		pc = toProcessed(cl, seq, caller, DispositionApproved, "")
		if err := s.finalize(tx, cl, pc); err != nil {
			return err
		}
		st, err := loadStats(tx)
		if err != nil {
			return err
		}
		st.ProcessedClaimCount++
		st.ApprovedClaimCount++
		st.ApprovedAmount += cl.Amount
		if err := saveStats(tx, st); err != nil {
			return err
		}
		return applyOutcome(tx, pc, outcomeDelta{approved: 1, amount: int64(cl.Amount)})
	})
	if err != nil {
		return ProcessedClaim{}, err
	}
	s.countDisposition("approved")
	return pc, nil
}

// DenyWithAllRecords denies an assigned claim whose patient, hospital, and
// insurance records all exist.
func (s *Service) DenyWithAllRecords(ctx context.Context, caller, owner protocol.Address, reason string) (ProcessedClaim, error) {
	return s.deny(ctx, caller, owner, reason, false)
}

// CreatePatientRecordAndDenyClaim performs patient normalization and denies
// in one step, for claims denied before any record work happened.
func (s *Service) CreatePatientRecordAndDenyClaim(ctx context.Context, caller, owner protocol.Address, reason string) (ProcessedClaim, error) {
	return s.deny(ctx, caller, owner, reason, true)
}

func (s *Service) deny(ctx context.Context, caller, owner protocol.Address, reason string, createPatient bool) (ProcessedClaim, error) {
	if err := protocol.CheckLen("denial reason", reason, MaxNote); err != nil {
		return ProcessedClaim{}, err
	}
	var pc ProcessedClaim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		cl, err := getClaim(tx, owner)
		if err != nil {
			return err
		}
		if err := requireAdjudicator(tx, caller, cl); err != nil {
			return err
		}
		if createPatient {
			if err := normalizePatient(tx, &cl); err != nil {
				return err
			}
		} else if err := checkRecords(cl, recordSet{patient: true, hospital: true, insurance: true}); err != nil {
			return err
		}
		seq, err := nextSeq(tx, cl.Owner, caller)
		if err != nil {
			return err
		}
		pc = toProcessed(cl, seq, caller, DispositionDenied, reason)
		if err := s.finalize(tx, cl, pc); err != nil {
			return err
		}
		st, err := loadStats(tx)
		if err != nil {
			return err
		}
		st.ProcessedClaimCount++
		st.DeniedClaimCount++
		if err := saveStats(tx, st); err != nil {
			return err
		}
		return applyOutcome(tx, pc, outcomeDelta{denied: 1})
	})
	if err != nil {
		return ProcessedClaim{}, err
	}
	s.countDisposition("denied")
	return pc, nil
}

// AppealOnlyPatientRecord appeals a denial whose hospital/insurance records
// were never registered. Caller must be the claim's submitter.
func (s *Service) AppealOnlyPatientRecord(ctx context.Context, caller protocol.Address, seq uint64, reason string) (ProcessedClaim, error) {
	return s.appeal(ctx, caller, seq, reason, false)
}

// AppealAllRecords appeals a denial, registering hospital and insurance
// records if the denial skipped them.
func (s *Service) AppealAllRecords(ctx context.Context, caller protocol.Address, seq uint64, reason string) (ProcessedClaim, error) {
	return s.appeal(ctx, caller, seq, reason, true)
}

func (s *Service) appeal(ctx context.Context, caller protocol.Address, seq uint64, reason string, allRecords bool) (ProcessedClaim, error) {
	if caller == protocol.Zero {
		return ProcessedClaim{}, protocol.ErrUnauthorized
	}
	if err := protocol.CheckLen("appeal reason", reason, MaxNote); err != nil {
		return ProcessedClaim{}, err
	}
	var pc ProcessedClaim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		var err error
		pc, err = getProcessed(tx, caller, seq)
		if err != nil {
			return err
		}
		if pc.Disposition != DispositionDenied {
			return fmt.Errorf("disposition is %s: %w", pc.Disposition, protocol.ErrInvalidState)
		}
		if allRecords {
			if !pc.HospitalNormalized || !pc.InsuranceNormalized {
				if err := normalizeProcessedHospitalAndInsurer(tx, &pc); err != nil {
					return err
				}
			}
		} else if err := matchProcessedRecords(pc, false); err != nil {
			return err
		}
		pc.Disposition = DispositionAppealed
		pc.AppealReason = reason
		if err := saveProcessed(tx, pc); err != nil {
			return err
		}
		st, err := loadStats(tx)
		if err != nil {
			return err
		}
		st.AppealCount++
		if err := saveStats(tx, st); err != nil {
			return err
		}
		return applyOutcome(tx, pc, outcomeDelta{appeals: 1})
	})
	if err != nil {
		return ProcessedClaim{}, err
	}
	s.countDisposition("appealed")
	return pc, nil
}

// UndenyAndCreateHospitalAndInsuranceCompanyRecords reinstates an appealed
// claim, registering its hospital and insurance records late. Admin-only.
func (s *Service) UndenyAndCreateHospitalAndInsuranceCompanyRecords(ctx context.Context, caller, owner protocol.Address, seq uint64) (ProcessedClaim, error) {
	return s.undeny(ctx, caller, owner, seq, true)
}

// UndenyWithAllRecords reinstates an appealed claim whose records all exist.
// Admin-only.
func (s *Service) UndenyWithAllRecords(ctx context.Context, caller, owner protocol.Address, seq uint64) (ProcessedClaim, error) {
	return s.undeny(ctx, caller, owner, seq, false)
}

func (s *Service) undeny(ctx context.Context, caller, owner protocol.Address, seq uint64, createRecords bool) (ProcessedClaim, error) {
	var pc ProcessedClaim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		var err error
		pc, err = getProcessed(tx, owner, seq)
		if err != nil {
			return err
		}
		if pc.Disposition != DispositionAppealed {
			return fmt.Errorf("disposition is %s: %w", pc.Disposition, protocol.ErrInvalidState)
		}
		if createRecords {
			if err := normalizeProcessedHospitalAndInsurer(tx, &pc); err != nil {
				return err
			}
		} else if err := matchProcessedRecords(pc, true); err != nil {
			return err
		}
		pc.Disposition = DispositionApproved
		if err := saveProcessed(tx, pc); err != nil {
			return err
		}
		st, err := loadStats(tx)
		if err != nil {
			return err
		}
		st.UndeniedClaimCount++
		st.ApprovedClaimCount++
		st.DeniedClaimCount--
		st.ApprovedAmount += pc.Amount
		if err := saveStats(tx, st); err != nil {
			return err
		}
		return applyOutcome(tx, pc, outcomeDelta{approved: 1, denied: -1, amount: int64(pc.Amount)})
	})
	if err != nil {
		return ProcessedClaim{}, err
	}
	s.countDisposition("undenied")
	return pc, nil
}

// DenyAppealedOnlyPatientRecord terminally denies an appeal for a claim with
// only a patient record. Admin-only.
func (s *Service) DenyAppealedOnlyPatientRecord(ctx context.Context, caller, owner protocol.Address, seq uint64, reason string) (ProcessedClaim, error) {
	return s.denyAppealed(ctx, caller, owner, seq, reason, false)
}

// DenyAppealedAllRecords terminally denies an appeal for a fully normalized
// claim. Admin-only.
func (s *Service) DenyAppealedAllRecords(ctx context.Context, caller, owner protocol.Address, seq uint64, reason string) (ProcessedClaim, error) {
	return s.denyAppealed(ctx, caller, owner, seq, reason, true)
}

func (s *Service) denyAppealed(ctx context.Context, caller, owner protocol.Address, seq uint64, reason string, allRecords bool) (ProcessedClaim, error) {
	if err := protocol.CheckLen("denial reason", reason, MaxNote); err != nil {
		return ProcessedClaim{}, err
	}
	var pc ProcessedClaim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		var err error
		pc, err = getProcessed(tx, owner, seq)
		if err != nil {
			return err
		}
		if pc.Disposition != DispositionAppealed {
			return fmt.Errorf("disposition is %s: %w", pc.Disposition, protocol.ErrInvalidState)
		}
		if err := matchProcessedRecords(pc, allRecords); err != nil {
			return err
		}
		pc.Disposition = DispositionDeniedAfterAppeal
		pc.Reason = reason
		if err := saveProcessed(tx, pc); err != nil {
			return err
		}
		st, err := loadStats(tx)
		if err != nil {
			return err
		}
		st.DeniedAppealCount++
		return saveStats(tx, st)
	})
	if err != nil {
		return ProcessedClaim{}, err
	}
	s.countDisposition("denied_after_appeal")
	return pc, nil
}

// RevokeApproval moves an approved claim back to denied. Admin-only.
func (s *Service) RevokeApproval(ctx context.Context, caller, owner protocol.Address, seq uint64, reason string) (ProcessedClaim, error) {
	if err := protocol.CheckLen("revocation reason", reason, MaxNote); err != nil {
		return ProcessedClaim{}, err
	}
	var pc ProcessedClaim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		var err error
		pc, err = getProcessed(tx, owner, seq)
		if err != nil {
			return err
		}
		if pc.Disposition != DispositionApproved {
			return fmt.Errorf("disposition is %s: %w", pc.Disposition, protocol.ErrInvalidState)
		}
		pc.Disposition = DispositionDenied
		pc.Reason = reason
		if err := saveProcessed(tx, pc); err != nil {
			return err
		}
		st, err := loadStats(tx)
		if err != nil {
			return err
		}
		st.RevokedApprovalCount++
		st.ApprovedClaimCount--
		st.DeniedClaimCount++
		st.ApprovedAmount -= pc.Amount
		if err := saveStats(tx, st); err != nil {
			return err
		}
		return applyOutcome(tx, pc, outcomeDelta{approved: -1, denied: 1, amount: -int64(pc.Amount)})
	})
	if err != nil {
		return ProcessedClaim{}, err
	}
	s.countDisposition("revoked")
	return pc, nil
}

// EditProcessedClaimAndPatientRecord amends a processed claim that carries
// only a patient record, plus the patient's name fields. Admin-only; no
// disposition or counter changes.
func (s *Service) EditProcessedClaimAndPatientRecord(ctx context.Context, caller, owner protocol.Address, seq uint64, edits Edits) (ProcessedClaim, error) {
	return s.edit(ctx, caller, owner, seq, edits, false)
}

// EditProcessedClaimAndAllRecords amends a fully normalized processed claim
// and its patient record. Admin-only.
func (s *Service) EditProcessedClaimAndAllRecords(ctx context.Context, caller, owner protocol.Address, seq uint64, edits Edits) (ProcessedClaim, error) {
	return s.edit(ctx, caller, owner, seq, edits, true)
}

func (s *Service) edit(ctx context.Context, caller, owner protocol.Address, seq uint64, edits Edits, allRecords bool) (ProcessedClaim, error) {
	if err := edits.validate(); err != nil {
		return ProcessedClaim{}, err
	}
	var pc ProcessedClaim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		var err error
		pc, err = getProcessed(tx, owner, seq)
		if err != nil {
			return err
		}
		if err := matchProcessedRecords(pc, allRecords); err != nil {
			return err
		}
		edits.applyToProcessed(&pc)
		if edits.PatientFirstName != nil || edits.PatientLastName != nil {
			pat, err := submitter.GetPatient(tx, pc.Owner, pc.PatientIndex)
			if err != nil {
				return err
			}
			set(&pat.FirstName, edits.PatientFirstName)
			set(&pat.LastName, edits.PatientLastName)
			if err := submitter.SavePatient(tx, pat); err != nil {
				return err
			}
		}
		return saveProcessed(tx, pc)
	})
	if err != nil {
		return ProcessedClaim{}, err
	}
	return pc, nil
}

// UpdateClaimHospitalIndex corrects a live claim's hospital reference before
// normalization. Admin-only.
func (s *Service) UpdateClaimHospitalIndex(ctx context.Context, caller, owner protocol.Address, index uint32) (Claim, error) {
	var cl Claim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		var err error
		cl, err = getClaim(tx, owner)
		if err != nil {
			return err
		}
		if cl.HospitalNormalized {
			return fmt.Errorf("hospital already normalized: %w", protocol.ErrInvalidState)
		}
		known, err := directory.HospitalInRange(tx, cl.Country, cl.State, index)
		if err != nil {
			return err
		}
		cl.Hospital = Ref{Pending: !known, Index: index}
		return saveClaim(tx, cl)
	})
	if err != nil {
		return Claim{}, err
	}
	return cl, nil
}

// UpdateClaimInsuranceCompanyIndex corrects a live claim's insurance
// reference before normalization. Admin-only.
func (s *Service) UpdateClaimInsuranceCompanyIndex(ctx context.Context, caller, owner protocol.Address, index uint32) (Claim, error) {
	var cl Claim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		var err error
		cl, err = getClaim(tx, owner)
		if err != nil {
			return err
		}
		if cl.InsuranceNormalized {
			return fmt.Errorf("insurance already normalized: %w", protocol.ErrInvalidState)
		}
		known, err := directory.InsurerInRange(tx, index)
		if err != nil {
			return err
		}
		cl.Insurance = Ref{Pending: !known, Index: index}
		return saveClaim(tx, cl)
	})
	if err != nil {
		return Claim{}, err
	}
	return cl, nil
}
