package transfers

import (
	"math"

	"github.com/safevault/node/internal/wire"
	"github.com/safevault/node/internal/xorname"
)

// GenesisAmount is the section wallet's genesis balance in nanotokens:
// u32::MAX * 1_000_000_000 (spec.md §4.3/§4.4, scenario S5).
const GenesisAmount uint64 = uint64(math.MaxUint32) * 1_000_000_000

// NewGenesisCredit builds the single genesis credit minted into the
// section wallet. The credit id is derived from the section wallet id so
// every elder proposing genesis independently arrives at the same id.
func NewGenesisCredit(sectionWallet wire.WalletID) wire.Credit {
	return wire.Credit{
		ID:        xorname.Hash(sectionWallet[:], []byte("genesis")),
		Amount:    GenesisAmount,
		Recipient: sectionWallet,
		Msg:       "genesis",
	}
}
