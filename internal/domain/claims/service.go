package claims

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/m4a/m4a/internal/domain/directory"
	"github.com/m4a/m4a/internal/domain/registry"
	"github.com/m4a/m4a/internal/domain/submitter"
	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/platform/metrics"
	"github.com/m4a/m4a/internal/protocol"
)

// HammerBatchLimit bounds a single denial-hammer invocation.
const HammerBatchLimit = 25

// Config carries queue policy.
type Config struct {
	// MaxQueueSize caps live claims; 0 means unbounded.
	MaxQueueSize uint32
}

type Service struct {
	store ledger.Store
	log   zerolog.Logger
	met   *metrics.Metrics
	cfg   Config
}

// NewService wires the engine. met may be nil when metrics are not served.
func NewService(store ledger.Store, log zerolog.Logger, met *metrics.Metrics, cfg Config) *Service {
	return &Service{store: store, log: log, met: met, cfg: cfg}
}

// -- singletons --

func loadStats(tx ledger.Tx) (Stats, error) {
	var st Stats
	if err := tx.Get(StatsKey(), &st); err != nil && !errors.Is(err, protocol.ErrNotFound) {
		return Stats{}, err
	}
	return st, nil
}

func saveStats(tx ledger.Tx, st Stats) error {
	return tx.Put(StatsKey(), st)
}

func (s *Service) loadGate(tx ledger.Tx) (Gate, error) {
	var g Gate
	err := tx.Get(GateKey(), &g)
	if errors.Is(err, protocol.ErrNotFound) {
		// Fresh deployment: queue open, service-configured size limit.
		return Gate{Enabled: true, MaxQueueSize: s.cfg.MaxQueueSize}, nil
	}
	if err != nil {
		return Gate{}, err
	}
	return g, nil
}

func saveGate(tx ledger.Tx, g Gate) error {
	return tx.Put(GateKey(), g)
}

// -- claim access --

func getClaim(tx ledger.Tx, owner protocol.Address) (Claim, error) {
	var cl Claim
	if err := tx.Get(ClaimKey(owner), &cl); err != nil {
		return Claim{}, fmt.Errorf("claim for %s: %w", owner, err)
	}
	return cl, nil
}

func saveClaim(tx ledger.Tx, cl Claim) error {
	return tx.Put(ClaimKey(cl.Owner), cl)
}

func getProcessed(tx ledger.Tx, owner protocol.Address, seq uint64) (ProcessedClaim, error) {
	var pc ProcessedClaim
	if err := tx.Get(ProcessedClaimKey(owner, seq), &pc); err != nil {
		return ProcessedClaim{}, fmt.Errorf("processed claim %s/%d: %w", owner, seq, err)
	}
	return pc, nil
}

func saveProcessed(tx ledger.Tx, pc ProcessedClaim) error {
	return tx.Put(ProcessedClaimKey(pc.Owner, pc.Seq), pc)
}

// requireAdjudicator checks that the caller is the active processor the
// claim is assigned to.
func requireAdjudicator(tx ledger.Tx, caller protocol.Address, cl Claim) error {
	if err := registry.Authorize(tx, caller, protocol.RoleActiveProcessor); err != nil {
		return err
	}
	if cl.Status != StatusAssigned {
		return fmt.Errorf("claim is %s: %w", cl.Status, protocol.ErrInvalidState)
	}
	if cl.Processor != caller {
		return fmt.Errorf("claim is assigned to %s: %w", cl.Processor, protocol.ErrUnauthorized)
	}
	return nil
}

// nextSeq advances the owner's audit-trail counter and returns the new
// sequence number. Keying the processed claim by the owner's own counter
// keeps keys unique no matter which processor disposes; the processor's
// count is bumped as a roster statistic only.
func nextSeq(tx ledger.Tx, owner, processor protocol.Address) (uint64, error) {
	sub, err := submitter.GetSubmitter(tx, owner)
	if err != nil {
		return 0, err
	}
	sub.ProcessedClaimCount++
	if err := submitter.SaveSubmitter(tx, sub); err != nil {
		return 0, err
	}

	var proc registry.Processor
	if err := tx.Get(registry.ProcessorKey(processor), &proc); err != nil {
		return 0, err
	}
	proc.ProcessedClaimCount++
	if err := tx.Put(registry.ProcessorKey(processor), proc); err != nil {
		return 0, err
	}
	return sub.ProcessedClaimCount, nil
}

// outcome tally deltas applied to the entities a processed claim touches.
type outcomeDelta struct {
	approved int64
	denied   int64
	appeals  int64
	amount   int64
}

func addU64(v uint64, d int64) uint64 {
	if d < 0 {
		return v - uint64(-d)
	}
	return v + uint64(d)
}

// applyOutcome updates per-entity tallies on the submitter, patient, and,
// when normalized, the hospital, insurer, and state records.
func applyOutcome(tx ledger.Tx, pc ProcessedClaim, d outcomeDelta) error {
	sub, err := submitter.GetSubmitter(tx, pc.Owner)
	if err != nil {
		return err
	}
	sub.ApprovedClaimCount = addU64(sub.ApprovedClaimCount, d.approved)
	sub.DeniedClaimCount = addU64(sub.DeniedClaimCount, d.denied)
	sub.AppealCount = addU64(sub.AppealCount, d.appeals)
	sub.ApprovedAmount = addU64(sub.ApprovedAmount, d.amount)
	if err := submitter.SaveSubmitter(tx, sub); err != nil {
		return err
	}

	pat, err := submitter.GetPatient(tx, pc.Owner, pc.PatientIndex)
	if err != nil {
		return err
	}
	pat.ApprovedClaimCount = addU64(pat.ApprovedClaimCount, d.approved)
	pat.DeniedClaimCount = addU64(pat.DeniedClaimCount, d.denied)
	pat.AppealCount = addU64(pat.AppealCount, d.appeals)
	pat.ApprovedAmount = addU64(pat.ApprovedAmount, d.amount)
	if err := submitter.SavePatient(tx, pat); err != nil {
		return err
	}

	if pc.HospitalNormalized {
		h, err := directory.GetHospital(tx, pc.Country, pc.State, pc.Hospital.Index)
		if err != nil {
			return err
		}
		h.ApprovedClaimCount = addU64(h.ApprovedClaimCount, d.approved)
		h.DeniedClaimCount = addU64(h.DeniedClaimCount, d.denied)
		h.AppealCount = addU64(h.AppealCount, d.appeals)
		h.ApprovedAmount = addU64(h.ApprovedAmount, d.amount)
		if err := directory.SaveHospital(tx, h); err != nil {
			return err
		}

		sa, err := directory.GetState(tx, pc.Country, pc.State)
		if err != nil {
			return err
		}
		sa.ApprovedClaimCount = addU64(sa.ApprovedClaimCount, d.approved)
		sa.DeniedClaimCount = addU64(sa.DeniedClaimCount, d.denied)
		sa.ApprovedAmount = addU64(sa.ApprovedAmount, d.amount)
		if err := directory.SaveState(tx, sa); err != nil {
			return err
		}
	}

	if pc.InsuranceNormalized {
		ic, err := directory.GetInsurer(tx, pc.Insurance.Index)
		if err != nil {
			return err
		}
		ic.ApprovedClaimCount = addU64(ic.ApprovedClaimCount, d.approved)
		ic.DeniedClaimCount = addU64(ic.DeniedClaimCount, d.denied)
		ic.AppealCount = addU64(ic.AppealCount, d.appeals)
		ic.ApprovedAmount = addU64(ic.ApprovedAmount, d.amount)
		if err := directory.SaveInsurer(tx, ic); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) countDisposition(kind string) {
	if s.met != nil {
		s.met.Dispositions.WithLabelValues(kind).Inc()
	}
}

// -- reads --

func (s *Service) GetClaim(ctx context.Context, owner protocol.Address) (Claim, error) {
	var cl Claim
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		cl, err = getClaim(tx, owner)
		return err
	})
	return cl, err
}

func (s *Service) GetProcessedClaim(ctx context.Context, owner protocol.Address, seq uint64) (ProcessedClaim, error) {
	var pc ProcessedClaim
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		pc, err = getProcessed(tx, owner, seq)
		return err
	})
	return pc, err
}

// ListProcessedClaims returns a submitter's audit trail in key order.
func (s *Service) ListProcessedClaims(ctx context.Context, owner protocol.Address) ([]ProcessedClaim, error) {
	var out []ProcessedClaim
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		keys, err := tx.List(ledger.Key("processed-claim", string(owner)) + "/")
		if err != nil {
			return err
		}
		out = make([]ProcessedClaim, 0, len(keys))
		for _, k := range keys {
			var pc ProcessedClaim
			if err := tx.Get(k, &pc); err != nil {
				return err
			}
			out = append(out, pc)
		}
		return nil
	})
	return out, err
}

func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		st, err = loadStats(tx)
		return err
	})
	return st, err
}

func (s *Service) GetGate(ctx context.Context) (Gate, error) {
	var g Gate
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		g, err = s.loadGate(tx)
		return err
	})
	return g, err
}
