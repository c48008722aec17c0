package registry

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

// InitializeOwner installs the caller as protocol owner. One-time.
func (s *Service) InitializeOwner(ctx context.Context, caller protocol.Address) error {
	if caller == protocol.Zero {
		return protocol.ErrUnauthorized
	}
	return s.store.Update(ctx, func(tx ledger.Tx) error {
		return tx.Create(OwnerKey(), Owner{Address: caller})
	})
}

// TransferOwnership replaces the owner address. Only the current owner.
func (s *Service) TransferOwnership(ctx context.Context, caller, next protocol.Address) error {
	if next == protocol.Zero {
		return fmt.Errorf("new owner address is required")
	}
	return s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := Authorize(tx, caller, protocol.RoleOwner); err != nil {
			return err
		}
		return tx.Put(OwnerKey(), Owner{Address: next})
	})
}

// RegisterProcessor adds a roster entry, active and non-admin by default.
func (s *Service) RegisterProcessor(ctx context.Context, caller, addr protocol.Address) (Processor, error) {
	if addr == protocol.Zero {
		return Processor{}, fmt.Errorf("processor address is required")
	}
	proc := Processor{Address: addr, Active: true}
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		return tx.Create(ProcessorKey(addr), proc)
	})
	if err != nil {
		return Processor{}, err
	}
	return proc, nil
}

// SetProcessorActive flips the active flag. Setting the current value is a
// no-op that still succeeds. Deactivation also strips super-admin.
func (s *Service) SetProcessorActive(ctx context.Context, caller, addr protocol.Address, active bool) (Processor, error) {
	var proc Processor
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		if err := tx.Get(ProcessorKey(addr), &proc); err != nil {
			return err
		}
		if proc.Active == active {
			return nil
		}
		proc.Active = active
		if !active {
			proc.SuperAdmin = false
		}
		return tx.Put(ProcessorKey(addr), proc)
	})
	if err != nil {
		return Processor{}, err
	}
	return proc, nil
}

// SetProcessorAdmin flips the super-admin flag. Promotion reactivates an
// inactive processor; setting the current value is a no-op.
func (s *Service) SetProcessorAdmin(ctx context.Context, caller, addr protocol.Address, admin bool) (Processor, error) {
	var proc Processor
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := Authorize(tx, caller, protocol.RoleSuperAdmin); err != nil {
			return err
		}
		if err := tx.Get(ProcessorKey(addr), &proc); err != nil {
			return err
		}
		if proc.SuperAdmin == admin {
			return nil
		}
		proc.SuperAdmin = admin
		if admin {
			proc.Active = true
		}
		return tx.Put(ProcessorKey(addr), proc)
	})
	if err != nil {
		return Processor{}, err
	}
	return proc, nil
}

func (s *Service) GetOwner(ctx context.Context) (Owner, error) {
	var owner Owner
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		return tx.Get(OwnerKey(), &owner)
	})
	return owner, err
}

func (s *Service) GetProcessor(ctx context.Context, addr protocol.Address) (Processor, error) {
	var proc Processor
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		return tx.Get(ProcessorKey(addr), &proc)
	})
	return proc, err
}

// ListProcessors enumerates the roster.
func (s *Service) ListProcessors(ctx context.Context) ([]Processor, error) {
	var procs []Processor
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		keys, err := tx.List(ledger.Key("processor") + "/")
		if err != nil {
			return err
		}
		procs = make([]Processor, 0, len(keys))
		for _, k := range keys {
			var p Processor
			if err := tx.Get(k, &p); err != nil {
				return err
			}
			procs = append(procs, p)
		}
		return nil
	})
	return procs, err
}
