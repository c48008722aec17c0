package claims

import (
	"context"
	"errors"
	"testing"

	"github.com/m4a/m4a/internal/protocol"
)

func TestApproveRequiresNormalization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.submitAndAssign(t, sub1, procA, submission())

	if _, err := f.svc.Approve(ctx, procA, sub1); !errors.Is(err, protocol.ErrPreconditionUnmet) {
		t.Fatalf("approve before normalization: got %v, want ErrPreconditionUnmet", err)
	}
	if _, err := f.svc.CreatePatientRecord(ctx, procA, sub1); err != nil {
		t.Fatalf("create patient record: %v", err)
	}
	if _, err := f.svc.Approve(ctx, procA, sub1); !errors.Is(err, protocol.ErrPreconditionUnmet) {
		t.Fatalf("approve without hospital records: got %v, want ErrPreconditionUnmet", err)
	}
	if _, err := f.svc.CreateHospitalAndInsuranceCompanyRecords(ctx, procA, sub1); err != nil {
		t.Fatalf("create hospital/insurance records: %v", err)
	}

	pc, err := f.svc.Approve(ctx, procA, sub1)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if pc.Disposition != DispositionApproved || pc.Processor != procA || pc.Seq != 1 {
		t.Errorf("processed claim: %+v", pc)
	}
	if _, err := f.svc.GetClaim(ctx, sub1); !errors.Is(err, protocol.ErrNotFound) {
		t.Fatalf("claim should leave the queue: %v", err)
	}

	st := f.stats(t)
	if st.ApprovedClaimCount != 1 || st.ProcessedClaimCount != 1 || st.ApprovedAmount != 25_000 {
		t.Errorf("stats: %+v", st)
	}
	checkConservation(t, st)

	// Per-processor counter advanced.
	proc, err := f.reg.GetProcessor(ctx, procA)
	if err != nil {
		t.Fatalf("get processor: %v", err)
	}
	if proc.ProcessedClaimCount != 1 {
		t.Errorf("processor count = %d, want 1", proc.ProcessedClaimCount)
	}

	// Entity tallies followed the outcome.
	h, err := f.dir.GetHospital(ctx, 1, 5, 0)
	if err != nil {
		t.Fatalf("get hospital: %v", err)
	}
	if h.ApprovedClaimCount != 1 || h.ApprovedAmount != 25_000 {
		t.Errorf("hospital tallies: %+v", h)
	}
	sub, err := f.subs.GetSubmitter(ctx, sub1)
	if err != nil {
		t.Fatalf("get submitter: %v", err)
	}
	if sub.ApprovedClaimCount != 1 {
		t.Errorf("submitter tallies: %+v", sub)
	}
}

func TestOutOfRangeIndexScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	sub := submission()
	sub.HospitalIndex = 11
	f.submitAndAssign(t, sub1, procA, sub)
	if _, err := f.svc.CreatePatientRecord(ctx, procA, sub1); err != nil {
		t.Fatalf("create patient record: %v", err)
	}

	if _, err := f.svc.Approve(ctx, procA, sub1); !errors.Is(err, protocol.ErrPreconditionUnmet) {
		t.Fatalf("approve with pending hospital: got %v, want ErrPreconditionUnmet", err)
	}
	if _, err := f.svc.CreateHospitalAndInsuranceCompanyRecords(ctx, procA, sub1); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	pc, err := f.svc.Approve(ctx, procA, sub1)
	if err != nil {
		t.Fatalf("approve after normalization: %v", err)
	}
	if pc.Disposition != DispositionApproved {
		t.Errorf("disposition = %s", pc.Disposition)
	}
	if pc.Hospital.Pending || pc.Hospital.Index != 1 {
		t.Errorf("hospital ref on processed claim: %+v", pc.Hospital)
	}
}

func TestApproveGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	if _, err := f.svc.Submit(ctx, sub1, submission()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := f.svc.Approve(ctx, procA, sub1); !errors.Is(err, protocol.ErrInvalidState) {
		t.Fatalf("approve queued claim: got %v, want ErrInvalidState", err)
	}
	if _, err := f.svc.Assign(ctx, procA, sub1); err != nil {
		t.Fatalf("assign: %v", err)
	}
	f.normalizeAll(t, procA, sub1)
	if _, err := f.svc.Approve(ctx, procB, sub1); !errors.Is(err, protocol.ErrUnauthorized) {
		t.Fatalf("approve by other processor: got %v, want ErrUnauthorized", err)
	}
}

func TestApproveWithEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.submitAndAssign(t, sub1, procA, submission())
	f.normalizeAll(t, procA, sub1)

	note := "corrected after review"
	invoice := "INV-101"
	pc, err := f.svc.ApproveWithEdits(ctx, procA, sub1, Edits{Note: &note, InvoiceNumber: &invoice})
	if err != nil {
		t.Fatalf("approve with edits: %v", err)
	}
	if pc.Note != note || pc.InvoiceNumber != invoice {
		t.Errorf("edits not applied: %+v", pc)
	}
}

func TestDenyAppealUndeny(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.submitAndAssign(t, sub1, procA, submission())

	pc, err := f.svc.CreatePatientRecordAndDenyClaim(ctx, procA, sub1, "Testing")
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if pc.Disposition != DispositionDenied || pc.Reason != "Testing" {
		t.Errorf("denied claim: %+v", pc)
	}
	st := f.stats(t)
	if st.DeniedClaimCount != 1 || st.ProcessedClaimCount != 1 {
		t.Errorf("stats after deny: %+v", st)
	}
	checkConservation(t, st)

	// Only the submitter may appeal.
	if _, err := f.svc.AppealAllRecords(ctx, sub2, pc.Seq, "not mine"); !errors.Is(err, protocol.ErrNotFound) {
		t.Fatalf("appeal of foreign claim: got %v, want ErrNotFound", err)
	}

	pc, err = f.svc.AppealAllRecords(ctx, sub1, pc.Seq, "Testing Appeal")
	if err != nil {
		t.Fatalf("appeal: %v", err)
	}
	if pc.Disposition != DispositionAppealed || pc.AppealReason != "Testing Appeal" {
		t.Errorf("appealed claim: %+v", pc)
	}
	if !pc.HospitalNormalized || !pc.InsuranceNormalized {
		t.Errorf("appeal should register records: %+v", pc)
	}

	pc, err = f.svc.UndenyWithAllRecords(ctx, ceo, sub1, pc.Seq)
	if err != nil {
		t.Fatalf("undeny: %v", err)
	}
	if pc.Disposition != DispositionApproved {
		t.Errorf("disposition = %s, want approved", pc.Disposition)
	}

	st = f.stats(t)
	if st.UndeniedClaimCount != 1 || st.ApprovedClaimCount != 1 || st.DeniedClaimCount != 0 {
		t.Errorf("stats after undeny: %+v", st)
	}
	checkConservation(t, st)
}

func TestDenyAppealedIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.submitAndAssign(t, sub1, procA, submission())

	pc, err := f.svc.CreatePatientRecordAndDenyClaim(ctx, procA, sub1, "missing invoice")
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	pc, err = f.svc.AppealOnlyPatientRecord(ctx, sub1, pc.Seq, "invoice attached")
	if err != nil {
		t.Fatalf("appeal: %v", err)
	}

	if _, err := f.svc.DenyAppealedOnlyPatientRecord(ctx, procA, sub1, pc.Seq, "still missing"); !errors.Is(err, protocol.ErrUnauthorized) {
		t.Fatalf("appeal denial by plain processor: got %v, want ErrUnauthorized", err)
	}
	pc, err = f.svc.DenyAppealedOnlyPatientRecord(ctx, ceo, sub1, pc.Seq, "still missing")
	if err != nil {
		t.Fatalf("deny appeal: %v", err)
	}
	if pc.Disposition != DispositionDeniedAfterAppeal {
		t.Errorf("disposition = %s", pc.Disposition)
	}

	// Terminal: no further appeal or undeny.
	if _, err := f.svc.AppealOnlyPatientRecord(ctx, sub1, pc.Seq, "again"); !errors.Is(err, protocol.ErrInvalidState) {
		t.Fatalf("appeal after terminal denial: got %v, want ErrInvalidState", err)
	}
	if _, err := f.svc.UndenyWithAllRecords(ctx, ceo, sub1, pc.Seq); !errors.Is(err, protocol.ErrInvalidState) {
		t.Fatalf("undeny after terminal denial: got %v, want ErrInvalidState", err)
	}

	st := f.stats(t)
	if st.DeniedAppealCount != 1 || st.DeniedClaimCount != 1 {
		t.Errorf("stats: %+v", st)
	}
	checkConservation(t, st)
}

func TestRevokeApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.submitAndAssign(t, sub1, procA, submission())
	f.normalizeAll(t, procA, sub1)

	pc, err := f.svc.Approve(ctx, procA, sub1)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := f.svc.RevokeApproval(ctx, procA, sub1, pc.Seq, "audit"); !errors.Is(err, protocol.ErrUnauthorized) {
		t.Fatalf("revoke by plain processor: got %v, want ErrUnauthorized", err)
	}
	pc, err = f.svc.RevokeApproval(ctx, ceo, sub1, pc.Seq, "billing irregularity")
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if pc.Disposition != DispositionDenied || pc.Reason != "billing irregularity" {
		t.Errorf("revoked claim: %+v", pc)
	}

	st := f.stats(t)
	if st.RevokedApprovalCount != 1 || st.ApprovedClaimCount != 0 || st.DeniedClaimCount != 1 || st.ApprovedAmount != 0 {
		t.Errorf("stats after revoke: %+v", st)
	}
	checkConservation(t, st)

	// Revocation leads back to denied, which is appealable.
	if _, err := f.svc.AppealAllRecords(ctx, sub1, pc.Seq, "disputing revocation"); err != nil {
		t.Fatalf("appeal after revoke: %v", err)
	}
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.submitAndAssign(t, sub1, procA, submission())
	f.normalizeAll(t, procA, sub1)

	pc, err := f.svc.Approve(ctx, procA, sub1)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := f.svc.AppealAllRecords(ctx, sub1, pc.Seq, "why"); !errors.Is(err, protocol.ErrInvalidState) {
		t.Fatalf("appeal of approved claim: got %v, want ErrInvalidState", err)
	}
	if _, err := f.svc.UndenyWithAllRecords(ctx, ceo, sub1, pc.Seq); !errors.Is(err, protocol.ErrInvalidState) {
		t.Fatalf("undeny of approved claim: got %v, want ErrInvalidState", err)
	}
	if _, err := f.svc.DenyAppealedAllRecords(ctx, ceo, sub1, pc.Seq, "no"); !errors.Is(err, protocol.ErrInvalidState) {
		t.Fatalf("appeal denial of approved claim: got %v, want ErrInvalidState", err)
	}
}

func TestEditProcessedClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.submitAndAssign(t, sub1, procA, submission())

	pc, err := f.svc.CreatePatientRecordAndDenyClaim(ctx, procA, sub1, "typo in note")
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	before := f.stats(t)

	note := "corrected note"
	first := "Augusta"
	pc, err = f.svc.EditProcessedClaimAndPatientRecord(ctx, ceo, sub1, pc.Seq, Edits{
		Note:             &note,
		PatientFirstName: &first,
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if pc.Note != note || pc.Disposition != DispositionDenied {
		t.Errorf("edited claim: %+v", pc)
	}

	pat, err := f.subs.GetPatient(ctx, sub1, 0)
	if err != nil {
		t.Fatalf("get patient: %v", err)
	}
	if pat.FirstName != "Augusta" {
		t.Errorf("patient name = %q", pat.FirstName)
	}

	// Edits are audit amendments: counters unchanged.
	if after := f.stats(t); after != before {
		t.Errorf("stats changed by edit: before=%+v after=%+v", before, after)
	}

	// The all-records variant refuses a patient-only claim.
	if _, err := f.svc.EditProcessedClaimAndAllRecords(ctx, ceo, sub1, pc.Seq, Edits{Note: &note}); !errors.Is(err, protocol.ErrInvalidState) {
		t.Fatalf("all-records edit on patient-only claim: got %v, want ErrInvalidState", err)
	}
}

func TestCounterConservationAcrossMixedOutcomes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.addSubmitter(t, sub2)
	third := protocol.Address("sub-3")
	f.addSubmitter(t, third)

	// sub1: approved.
	f.submitAndAssign(t, sub1, procA, submission())
	f.normalizeAll(t, procA, sub1)
	if _, err := f.svc.Approve(ctx, procA, sub1); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// sub2: denied.
	f.submitAndAssign(t, sub2, procB, submission())
	if _, err := f.svc.CreatePatientRecordAndDenyClaim(ctx, procB, sub2, "incomplete"); err != nil {
		t.Fatalf("deny: %v", err)
	}

	// sub3: max denied.
	if _, err := f.svc.Submit(ctx, third, submission()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.svc.MaxDenyPending(ctx, ceo, third); err != nil {
		t.Fatalf("max deny: %v", err)
	}

	st := f.stats(t)
	if st.ProcessedClaimCount != 3 {
		t.Errorf("processed = %d, want 3", st.ProcessedClaimCount)
	}
	checkConservation(t, st)
}

func TestTwoProcessorsShareOneAuditTrail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	f.submitAndAssign(t, sub1, procA, submission())
	first, err := f.svc.CreatePatientRecordAndDenyClaim(ctx, procA, sub1, "missing invoice")
	if err != nil {
		t.Fatalf("first deny: %v", err)
	}

	f.submitAndAssign(t, sub1, procB, submission())
	second, err := f.svc.CreatePatientRecordAndDenyClaim(ctx, procB, sub1, "missing invoice again")
	if err != nil {
		t.Fatalf("second deny by fresh processor: %v", err)
	}

	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("seqs = %d, %d; want 1, 2", first.Seq, second.Seq)
	}
	if first.Processor != procA || second.Processor != procB {
		t.Errorf("processors = %s, %s", first.Processor, second.Processor)
	}
	for _, seq := range []uint64{1, 2} {
		if _, err := f.svc.GetProcessedClaim(ctx, sub1, seq); err != nil {
			t.Errorf("get seq %d: %v", seq, err)
		}
	}
}

func TestListProcessedClaimsNumericOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	for i := 0; i < 11; i++ {
		f.submitAndAssign(t, sub1, procA, submission())
		if _, err := f.svc.CreatePatientRecordAndDenyClaim(ctx, procA, sub1, "no"); err != nil {
			t.Fatalf("deny %d: %v", i, err)
		}
	}

	out, err := f.svc.ListProcessedClaims(ctx, sub1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 11 {
		t.Fatalf("len = %d, want 11", len(out))
	}
	for i, pc := range out {
		if pc.Seq != uint64(i+1) {
			t.Fatalf("out[%d].Seq = %d, want %d", i, pc.Seq, i+1)
		}
	}
}
