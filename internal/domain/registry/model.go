// Package registry tracks the protocol owner and the processor roster, and
// provides the role check every mutating operation runs behind.
package registry

import (
	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/protocol"
)

// Owner is the singleton protocol owner record.
type Owner struct {
	Address protocol.Address `json:"address"`
}

// Processor is an adjudicator's roster entry. ProcessedClaimCount tallies
// the dispositions this processor has made.
type Processor struct {
	Address             protocol.Address `json:"address"`
	Active              bool             `json:"active"`
	SuperAdmin          bool             `json:"super_admin"`
	ProcessedClaimCount uint64           `json:"processed_claim_count"`
}

func OwnerKey() string {
	return ledger.Key("owner")
}

func ProcessorKey(addr protocol.Address) string {
	return ledger.Key("processor", string(addr))
}
