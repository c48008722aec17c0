package registry

import (
	"errors"
	"fmt"

	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

// Authorize checks the caller against the required role inside an open
// transaction. Every state-changing operation in every domain package calls
// this as its first step.
func Authorize(tx ledger.Tx, caller protocol.Address, role protocol.Role) error {
	if caller == protocol.Zero {
		return protocol.ErrUnauthorized
	}
	switch role {
	case protocol.RoleOwner:
		owner, err := getOwner(tx)
		if err != nil {
			return err
		}
		if owner.Address != caller {
			return fmt.Errorf("caller is not the owner: %w", protocol.ErrUnauthorized)
		}
		return nil

	case protocol.RoleSuperAdmin:
		owner, err := getOwner(tx)
		if err != nil {
			return err
		}
		if owner.Address == caller {
			return nil
		}
		proc, err := getProcessor(tx, caller)
		if err != nil {
			return err
		}
		if !proc.Active || !proc.SuperAdmin {
			return fmt.Errorf("caller is not an active super-admin: %w", protocol.ErrUnauthorized)
		}
		return nil

	case protocol.RoleActiveProcessor:
		proc, err := getProcessor(tx, caller)
		if err != nil {
			return err
		}
		if !proc.Active {
			return fmt.Errorf("processor is inactive: %w", protocol.ErrUnauthorized)
		}
		return nil

	default:
		return fmt.Errorf("unknown role %d: %w", role, protocol.ErrUnauthorized)
	}
}

func getOwner(tx ledger.Tx) (Owner, error) {
	var owner Owner
	if err := tx.Get(OwnerKey(), &owner); err != nil {
		if errors.Is(err, protocol.ErrNotFound) {
			return Owner{}, fmt.Errorf("owner not initialized: %w", protocol.ErrUnauthorized)
		}
		return Owner{}, err
	}
	return owner, nil
}

func getProcessor(tx ledger.Tx, addr protocol.Address) (Processor, error) {
	var proc Processor
	if err := tx.Get(ProcessorKey(addr), &proc); err != nil {
		if errors.Is(err, protocol.ErrNotFound) {
			return Processor{}, fmt.Errorf("no processor record for caller: %w", protocol.ErrUnauthorized)
		}
		return Processor{}, err
	}
	return proc, nil
}
