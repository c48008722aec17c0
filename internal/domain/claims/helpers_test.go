package claims

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/m4a/m4a/internal/domain/directory"
	"github.com/m4a/m4a/internal/domain/registry"
	"github.com/m4a/m4a/internal/domain/submitter"
	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

const (
	ceo   = protocol.Address("ceo")
	procA = protocol.Address("proc-a")
	procB = protocol.Address("proc-b")
	sub1  = protocol.Address("sub-1")
	sub2  = protocol.Address("sub-2")
)

type fixture struct {
	store *ledger.Memory
	reg   *registry.Service
	dir   *directory.Service
	subs  *submitter.Service
	svc   *Service
}

// newFixture seeds an owner, two active processors, a state with one
// hospital, one insurer, and a submitter with one patient.
func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewMemory()
	f := &fixture{
		store: store,
		reg:   registry.NewService(store),
		dir:   directory.NewService(store),
		subs:  submitter.NewService(store),
		svc:   NewService(store, zerolog.Nop(), nil, cfg),
	}
	if err := f.reg.InitializeOwner(ctx, ceo); err != nil {
		t.Fatalf("initialize owner: %v", err)
	}
	for _, p := range []protocol.Address{procA, procB} {
		if _, err := f.reg.RegisterProcessor(ctx, ceo, p); err != nil {
			t.Fatalf("register %s: %v", p, err)
		}
	}
	if _, err := f.dir.CreateStateAccount(ctx, ceo, 1, 5); err != nil {
		t.Fatalf("create state: %v", err)
	}
	if _, err := f.dir.CreateHospital(ctx, ceo, 1, 5, "General", "1 Main St", "Springfield"); err != nil {
		t.Fatalf("create hospital: %v", err)
	}
	if _, err := f.dir.CreateInsuranceCompany(ctx, ceo, "Acme Health"); err != nil {
		t.Fatalf("create insurer: %v", err)
	}
	f.addSubmitter(t, sub1)
	return f
}

func (f *fixture) addSubmitter(t *testing.T, addr protocol.Address) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.subs.CreateSubmitter(ctx, addr); err != nil {
		t.Fatalf("create submitter %s: %v", addr, err)
	}
	if _, err := f.subs.CreatePatient(ctx, addr, "Ada", "Lovelace"); err != nil {
		t.Fatalf("create patient for %s: %v", addr, err)
	}
}

// submission returns a valid claim referencing the seeded hospital and
// insurer.
func submission() Submission {
	return Submission{
		PatientIndex:    0,
		Country:         1,
		State:           5,
		HospitalIndex:   0,
		InsuranceIndex:  0,
		HospitalName:    "General",
		HospitalAddress: "1 Main St",
		HospitalCity:    "Springfield",
		InsuranceName:   "Acme Health",
		InvoiceNumber:   "INV-100",
		Note:            "routine visit",
		Ailment:         "sprained ankle",
		Amount:          25_000,
	}
}

// submitAndAssign files a claim for owner and assigns it to proc.
func (f *fixture) submitAndAssign(t *testing.T, owner, proc protocol.Address, sub Submission) Claim {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.Submit(ctx, owner, sub); err != nil {
		t.Fatalf("submit for %s: %v", owner, err)
	}
	cl, err := f.svc.Assign(ctx, proc, owner)
	if err != nil {
		t.Fatalf("assign %s: %v", owner, err)
	}
	return cl
}

// normalizeAll runs both normalization steps for an assigned claim.
func (f *fixture) normalizeAll(t *testing.T, proc, owner protocol.Address) Claim {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.CreatePatientRecord(ctx, proc, owner); err != nil {
		t.Fatalf("create patient record: %v", err)
	}
	cl, err := f.svc.CreateHospitalAndInsuranceCompanyRecords(ctx, proc, owner)
	if err != nil {
		t.Fatalf("create hospital/insurance records: %v", err)
	}
	return cl
}

func (f *fixture) stats(t *testing.T) Stats {
	t.Helper()
	st, err := f.svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	return st
}

// checkConservation asserts the outcome-counter identity that holds
// whenever no appeal is in flight.
func checkConservation(t *testing.T, st Stats) {
	t.Helper()
	if st.ProcessedClaimCount != st.ApprovedClaimCount+st.DeniedClaimCount+st.MaxDeniedClaimCount {
		t.Errorf("counter identity broken: processed=%d approved=%d denied=%d maxDenied=%d",
			st.ProcessedClaimCount, st.ApprovedClaimCount, st.DeniedClaimCount, st.MaxDeniedClaimCount)
	}
}
