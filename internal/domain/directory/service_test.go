package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m4a/m4a/internal/domain/registry"
	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

const ceo = protocol.Address("ceo")

func newService(t *testing.T) *Service {
	t.Helper()
	store := ledger.NewMemory()
	if err := registry.NewService(store).InitializeOwner(context.Background(), ceo); err != nil {
		t.Fatalf("initialize owner: %v", err)
	}
	return NewService(store)
}

func TestHospitalIndexAllocation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	if _, err := svc.CreateStateAccount(ctx, ceo, 1, 5); err != nil {
		t.Fatalf("create state: %v", err)
	}
	if _, err := svc.CreateStateAccount(ctx, ceo, 1, 5); !errors.Is(err, protocol.ErrAlreadyExists) {
		t.Fatalf("duplicate state: got %v, want ErrAlreadyExists", err)
	}

	h0, err := svc.CreateHospital(ctx, ceo, 1, 5, "General", "1 Main St", "Springfield")
	if err != nil {
		t.Fatalf("create hospital: %v", err)
	}
	h1, err := svc.CreateHospital(ctx, ceo, 1, 5, "Mercy", "2 Oak Ave", "Springfield")
	if err != nil {
		t.Fatalf("create hospital: %v", err)
	}
	if h0.Index != 0 || h1.Index != 1 {
		t.Errorf("indices = %d, %d; want 0, 1", h0.Index, h1.Index)
	}

	sa, err := svc.GetStateAccount(ctx, 1, 5)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if sa.HospitalCount != 2 {
		t.Errorf("hospital count = %d, want 2", sa.HospitalCount)
	}

	if _, err := svc.CreateHospital(ctx, ceo, 9, 9, "Nowhere", "", ""); !errors.Is(err, protocol.ErrNotFound) {
		t.Fatalf("hospital under missing state: got %v, want ErrNotFound", err)
	}
}

func TestInsurerIndexAllocation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	a, err := svc.CreateInsuranceCompany(ctx, ceo, "Acme Health")
	if err != nil {
		t.Fatalf("create insurer: %v", err)
	}
	b, err := svc.CreateInsuranceCompany(ctx, ceo, "Blue Cross")
	if err != nil {
		t.Fatalf("create insurer: %v", err)
	}
	if a.Index != 0 || b.Index != 1 {
		t.Errorf("indices = %d, %d; want 0, 1", a.Index, b.Index)
	}

	got, err := svc.GetInsuranceCompany(ctx, 1)
	if err != nil {
		t.Fatalf("get insurer: %v", err)
	}
	if got.Name != "Blue Cross" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestDirectoryAuthorization(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	if _, err := svc.CreateStateAccount(ctx, "stranger", 1, 1); !errors.Is(err, protocol.ErrUnauthorized) {
		t.Fatalf("create state by stranger: got %v, want ErrUnauthorized", err)
	}
	if _, err := svc.CreateInsuranceCompany(ctx, "stranger", "Acme"); !errors.Is(err, protocol.ErrUnauthorized) {
		t.Fatalf("create insurer by stranger: got %v, want ErrUnauthorized", err)
	}
}

func TestFieldLengthLimits(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	if _, err := svc.CreateStateAccount(ctx, ceo, 1, 1); err != nil {
		t.Fatalf("create state: %v", err)
	}

	long := strings.Repeat("x", MaxHospitalName+1)
	if _, err := svc.CreateHospital(ctx, ceo, 1, 1, long, "", ""); !errors.Is(err, protocol.ErrFieldTooLong) {
		t.Fatalf("oversized hospital name: got %v, want ErrFieldTooLong", err)
	}
	if _, err := svc.CreateInsuranceCompany(ctx, ceo, strings.Repeat("y", MaxInsurerName+1)); !errors.Is(err, protocol.ErrFieldTooLong) {
		t.Fatalf("oversized insurer name: got %v, want ErrFieldTooLong", err)
	}
}

func TestEditHospital(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	if _, err := svc.CreateStateAccount(ctx, ceo, 1, 1); err != nil {
		t.Fatalf("create state: %v", err)
	}
	if _, err := svc.CreateHospital(ctx, ceo, 1, 1, "General", "1 Main St", "Springfield"); err != nil {
		t.Fatalf("create hospital: %v", err)
	}

	h, err := svc.EditHospital(ctx, ceo, 1, 1, 0, "General Renamed", "9 Elm St", "Shelbyville")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if h.Name != "General Renamed" || h.City != "Shelbyville" {
		t.Errorf("edit not applied: %+v", h)
	}
	if _, err := svc.EditHospital(ctx, ceo, 1, 1, 7, "X", "", ""); !errors.Is(err, protocol.ErrNotFound) {
		t.Fatalf("edit missing hospital: got %v, want ErrNotFound", err)
	}
}
