package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

const (
	ceo   = protocol.Address("ceo")
	admin = protocol.Address("admin")
	proc1 = protocol.Address("proc1")
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(ledger.NewMemory())
}

func TestInitializeOwnerOnce(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	if err := svc.InitializeOwner(ctx, ceo); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	err := svc.InitializeOwner(ctx, admin)
	if !errors.Is(err, protocol.ErrAlreadyExists) {
		t.Fatalf("second initialize: got %v, want ErrAlreadyExists", err)
	}
	owner, err := svc.GetOwner(ctx)
	if err != nil {
		t.Fatalf("get owner: %v", err)
	}
	if owner.Address != ceo {
		t.Errorf("owner = %s, want %s", owner.Address, ceo)
	}
}

func TestTransferOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	if err := svc.InitializeOwner(ctx, ceo); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := svc.TransferOwnership(ctx, admin, proc1); !errors.Is(err, protocol.ErrUnauthorized) {
		t.Fatalf("transfer by stranger: got %v, want ErrUnauthorized", err)
	}
	if err := svc.TransferOwnership(ctx, ceo, admin); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	owner, _ := svc.GetOwner(ctx)
	if owner.Address != admin {
		t.Errorf("owner = %s, want %s", owner.Address, admin)
	}
	// Old owner has lost the role.
	if err := svc.TransferOwnership(ctx, ceo, proc1); !errors.Is(err, protocol.ErrUnauthorized) {
		t.Fatalf("transfer by former owner: got %v, want ErrUnauthorized", err)
	}
}

func TestRegisterProcessorDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	if err := svc.InitializeOwner(ctx, ceo); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	proc, err := svc.RegisterProcessor(ctx, ceo, proc1)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !proc.Active || proc.SuperAdmin || proc.ProcessedClaimCount != 0 {
		t.Errorf("defaults: %+v", proc)
	}

	if _, err := svc.RegisterProcessor(ctx, ceo, proc1); !errors.Is(err, protocol.ErrAlreadyExists) {
		t.Fatalf("re-register: got %v, want ErrAlreadyExists", err)
	}
	if _, err := svc.RegisterProcessor(ctx, proc1, "other"); !errors.Is(err, protocol.ErrUnauthorized) {
		t.Fatalf("register by non-admin processor: got %v, want ErrUnauthorized", err)
	}
}

func TestProcessorFlagTransitions(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	if err := svc.InitializeOwner(ctx, ceo); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := svc.RegisterProcessor(ctx, ceo, proc1); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Idempotent set succeeds.
	proc, err := svc.SetProcessorActive(ctx, ceo, proc1, true)
	if err != nil {
		t.Fatalf("idempotent set active: %v", err)
	}
	if !proc.Active {
		t.Error("processor should stay active")
	}

	// Promotion, then deactivation strips super-admin.
	if _, err := svc.SetProcessorAdmin(ctx, ceo, proc1, true); err != nil {
		t.Fatalf("promote: %v", err)
	}
	proc, err = svc.SetProcessorActive(ctx, ceo, proc1, false)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if proc.Active || proc.SuperAdmin {
		t.Errorf("deactivation should strip super-admin: %+v", proc)
	}

	// Promotion reactivates.
	proc, err = svc.SetProcessorAdmin(ctx, ceo, proc1, true)
	if err != nil {
		t.Fatalf("re-promote: %v", err)
	}
	if !proc.Active || !proc.SuperAdmin {
		t.Errorf("promotion should reactivate: %+v", proc)
	}

	// An active super-admin can manage the roster.
	if _, err := svc.RegisterProcessor(ctx, proc1, "other"); err != nil {
		t.Fatalf("register by super-admin: %v", err)
	}

	if _, err := svc.SetProcessorActive(ctx, ceo, "ghost", true); !errors.Is(err, protocol.ErrNotFound) {
		t.Fatalf("set flag on missing processor: got %v, want ErrNotFound", err)
	}
}
