package claims

import (
	"context"
	"errors"
	"fmt"

	"github.com/m4a/m4a/internal/domain/directory"
	"github.com/m4a/m4a/internal/domain/registry"
	"github.com/m4a/m4a/internal/domain/submitter"
	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

// Submission carries the fields a submitter files a claim with. Hospital and
// insurance indices may be out of range, which queues the claim with pending
// references to be registered during normalization.
type Submission struct {
	PatientIndex    uint32 `json:"patient_index"`
	Country         uint32 `json:"country"`
	State           uint32 `json:"state"`
	HospitalIndex   uint32 `json:"hospital_index"`
	InsuranceIndex  uint32 `json:"insurance_index"`
	HospitalName    string `json:"hospital_name"`
	HospitalAddress string `json:"hospital_address"`
	HospitalCity    string `json:"hospital_city"`
	InsuranceName   string `json:"insurance_name"`
	InvoiceNumber   string `json:"invoice_number"`
	Note            string `json:"note"`
	Ailment         string `json:"ailment"`
	Amount          uint64 `json:"amount"`
}

func (sub Submission) validate() error {
	checks := []struct {
		name  string
		value string
		max   int
	}{
		{"hospital name", sub.HospitalName, directory.MaxHospitalName},
		{"hospital address", sub.HospitalAddress, directory.MaxAddress},
		{"hospital city", sub.HospitalCity, directory.MaxCity},
		{"insurer name", sub.InsuranceName, directory.MaxInsurerName},
		{"invoice number", sub.InvoiceNumber, MaxInvoiceNumber},
		{"note", sub.Note, MaxNote},
		{"ailment", sub.Ailment, MaxAilment},
	}
	for _, c := range checks {
		if err := protocol.CheckLen(c.name, c.value, c.max); err != nil {
			return err
		}
	}
	return nil
}

// Submit queues a claim for the caller. At most one live claim per
// submitter.
func (s *Service) Submit(ctx context.Context, caller protocol.Address, sub Submission) (Claim, error) {
	if err := sub.validate(); err != nil {
		return Claim{}, err
	}
	var cl Claim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		gate, err := s.loadGate(tx)
		if err != nil {
			return err
		}
		if !gate.Enabled {
			return protocol.ErrQueueDisabled
		}
		if gate.MaxQueueSize > 0 && gate.QueuedCount >= gate.MaxQueueSize {
			return protocol.ErrQueueFull
		}
		if _, err := submitter.GetSubmitter(tx, caller); err != nil {
			return fmt.Errorf("submitter account: %w", err)
		}
		if _, err := submitter.GetPatient(tx, caller, sub.PatientIndex); err != nil {
			return fmt.Errorf("patient %d: %w", sub.PatientIndex, err)
		}
		if ok, err := tx.Has(ClaimKey(caller)); err != nil {
			return err
		} else if ok {
			return protocol.ErrDuplicateClaim
		}

		hospitalKnown, err := directory.HospitalInRange(tx, sub.Country, sub.State, sub.HospitalIndex)
		if err != nil {
			return err
		}
		insurerKnown, err := directory.InsurerInRange(tx, sub.InsuranceIndex)
		if err != nil {
			return err
		}

		cl = Claim{
			Owner:           caller,
			PatientIndex:    sub.PatientIndex,
			Country:         sub.Country,
			State:           sub.State,
			Hospital:        Ref{Pending: !hospitalKnown, Index: sub.HospitalIndex},
			Insurance:       Ref{Pending: !insurerKnown, Index: sub.InsuranceIndex},
			HospitalName:    sub.HospitalName,
			HospitalAddress: sub.HospitalAddress,
			HospitalCity:    sub.HospitalCity,
			InsuranceName:   sub.InsuranceName,
			InvoiceNumber:   sub.InvoiceNumber,
			Note:            sub.Note,
			Ailment:         sub.Ailment,
			Amount:          sub.Amount,
			Status:          StatusQueued,
		}
		if err := tx.Create(ClaimKey(caller), cl); err != nil {
			return err
		}

		gate.QueuedCount++
		if err := saveGate(tx, gate); err != nil {
			return err
		}
		st, err := loadStats(tx)
		if err != nil {
			return err
		}
		st.SubmittedClaimCount++
		return saveStats(tx, st)
	})
	if err != nil {
		return Claim{}, err
	}
	if s.met != nil {
		s.met.ClaimsSubmitted.Inc()
	}
	return cl, nil
}

// Assign moves a queued claim to the caller. Exactly one processor wins a
// race; losers observe ErrAlreadyAssigned.
func (s *Service) Assign(ctx context.Context, caller, owner protocol.Address) (Claim, error) {
	var cl Claim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleActiveProcessor); err != nil {
			return err
		}
		var err error
		cl, err = getClaim(tx, owner)
		if err != nil {
			return err
		}
		if cl.Status == StatusAssigned {
			return fmt.Errorf("held by %s: %w", cl.Processor, protocol.ErrAlreadyAssigned)
		}
		cl.Status = StatusAssigned
		cl.Processor = caller
		return saveClaim(tx, cl)
	})
	if err != nil {
		return Claim{}, err
	}
	if s.met != nil {
		s.met.ClaimsAssigned.Inc()
	}
	return cl, nil
}

// Reassign hands an assigned claim to another active processor. Admin-only.
func (s *Service) Reassign(ctx context.Context, caller, owner, to protocol.Address) (Claim, error) {
	var cl Claim
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		if err := registry.Authorize(tx, to, protocol.RoleActiveProcessor); err != nil {
			return fmt.Errorf("target processor: %w", err)
		}
		var err error
		cl, err = getClaim(tx, owner)
		if err != nil {
			return err
		}
		if cl.Status != StatusAssigned {
			return fmt.Errorf("claim is %s: %w", cl.Status, protocol.ErrInvalidState)
		}
		cl.Processor = to
		return saveClaim(tx, cl)
	})
	if err != nil {
		return Claim{}, err
	}
	return cl, nil
}

// Unassign returns an assigned claim to the queue. Admin-only.
func (s *Service) Unassign(ctx context.Context, caller, owner protocol.Address) (Claim, error) {
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
		if cl.Status != StatusAssigned {
			return fmt.Errorf("claim is %s: %w", cl.Status, protocol.ErrInvalidState)
		}
		cl.Status = StatusQueued
		cl.Processor = protocol.Zero
		return saveClaim(tx, cl)
	})
	if err != nil {
		return Claim{}, err
	}
	return cl, nil
}

// MaxDenyPending removes a queued claim without adjudication. Admin-only,
// refused once any normalization has happened.
func (s *Service) MaxDenyPending(ctx context.Context, caller, owner protocol.Address) error {
	return s.maxDeny(ctx, caller, owner, StatusQueued)
}

// MaxDenyInProgress removes an assigned claim without adjudication.
func (s *Service) MaxDenyInProgress(ctx context.Context, caller, owner protocol.Address) error {
	return s.maxDeny(ctx, caller, owner, StatusAssigned)
}

func (s *Service) maxDeny(ctx context.Context, caller, owner protocol.Address, want Status) error {
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		cl, err := getClaim(tx, owner)
		if err != nil {
			return err
		}
		if cl.Status != want {
			return fmt.Errorf("claim is %s, want %s: %w", cl.Status, want, protocol.ErrInvalidState)
		}
		if cl.PatientNormalized || cl.HospitalNormalized || cl.InsuranceNormalized {
			return fmt.Errorf("claim has normalization records: %w", protocol.ErrInvalidState)
		}
		return s.purgeClaim(tx, cl, false)
	})
	if err != nil {
		return err
	}
	s.countDisposition("max_denied")
	return nil
}

// purgeClaim removes a live claim and books it as a max denial. The counters
// are the only terminal marker; no ProcessedClaim is written.
func (s *Service) purgeClaim(tx ledger.Tx, cl Claim, hammer bool) error {
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
	if err := saveGate(tx, gate); err != nil {
		return err
	}
	st, err := loadStats(tx)
	if err != nil {
		return err
	}
	st.ProcessedClaimCount++
	st.MaxDeniedClaimCount++
	if hammer {
		st.HammerDropCount++
	}
	return saveStats(tx, st)
}

// DropDenialHammer purges every claim in the batch. Each invocation is one
// transaction; missing keys are skipped so a sweep can be re-run safely.
// Returns the number of claims removed.
func (s *Service) DropDenialHammer(ctx context.Context, caller protocol.Address, owners []protocol.Address) (int, error) {
	if len(owners) > HammerBatchLimit {
		return 0, fmt.Errorf("batch of %d exceeds limit %d", len(owners), HammerBatchLimit)
	}
	removed := 0
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		removed = 0
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		for _, owner := range owners {
			cl, err := getClaim(tx, owner)
			if errors.Is(err, protocol.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := s.purgeClaim(tx, cl, true); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for i := 0; i < removed; i++ {
		s.countDisposition("max_denied")
	}
	return removed, nil
}

// ListLiveClaims enumerates the queue. Used by operators driving the
// denial hammer.
func (s *Service) ListLiveClaims(ctx context.Context) ([]Claim, error) {
	var out []Claim
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		keys, err := tx.List(ledger.Key("claim") + "/")
		if err != nil {
			return err
		}
		out = make([]Claim, 0, len(keys))
		for _, k := range keys {
			var cl Claim
			if err := tx.Get(k, &cl); err != nil {
				return err
			}
			out = append(out, cl)
		}
		return nil
	})
	return out, err
}

// SetGate toggles queue admission. Admin-only.
func (s *Service) SetGate(ctx context.Context, caller protocol.Address, enabled bool) (Gate, error) {
	var gate Gate
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := registry.Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		var err error
		gate, err = s.loadGate(tx)
		if err != nil {
			return err
		}
		gate.Enabled = enabled
		return saveGate(tx, gate)
	})
	if err != nil {
		return Gate{}, err
	}
	return gate, nil
}
