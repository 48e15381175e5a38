// Package assets abstracts the ledger substrate's asset primitives: escrowed
// transfers, opt-ins, and asset creation. Engines depend only on the gateway
// interfaces; the substrate (or the in-memory Ledger for tests) supplies the
// implementation.
package assets

// Receipt describes a submitted substrate transaction.
type Receipt struct {
	// ID is the substrate-assigned transaction identifier.
	ID string
	// Fee is the processing fee charged, in micro-fee units.
	Fee uint64
}

// AssetSpec describes an asset-creation request. Pool tokens use large
// totals; loan NFTs always use Total = 1.
type AssetSpec struct {
	Total        uint64
	UnitName     string
	AssetName    string
	URL          string
	MetadataHash string
	// Controller receives manager, reserve, freeze and clawback authority.
	Controller [20]byte
	Fee        uint64
}

// TransferGateway moves assets out of the contract's escrow account.
type TransferGateway interface {
	Transfer(assetID, amount uint64, receiver [20]byte, fee uint64, note string) (Receipt, error)
	// OptIn registers the contract account for an asset via a zero-amount
	// self transfer.
	OptIn(assetID, fee uint64) (Receipt, error)
}

// MintGateway creates new assets controlled by the contract.
type MintGateway interface {
	CreateAsset(spec AssetSpec) (uint64, error)
}

// FeeSchedule fixes the substrate processing fees per transaction kind. The
// historical deployments charged 1000 micro-fee units for transfers and asset
// configuration and a reduced 100 for the final collateral release; the values
// stay configurable rather than hardcoded at call sites.
type FeeSchedule struct {
	TransferFee          uint64 `toml:"TransferFee"`
	AssetConfigFee       uint64 `toml:"AssetConfigFee"`
	CollateralReleaseFee uint64 `toml:"CollateralReleaseFee"`
}

// DefaultFeeSchedule returns the fee units used by the deployed contracts.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		TransferFee:          1000,
		AssetConfigFee:       1000,
		CollateralReleaseFee: 100,
	}
}

// Normalise fills zero fields with the historical defaults.
func (f FeeSchedule) Normalise() FeeSchedule {
	defaults := DefaultFeeSchedule()
	if f.TransferFee == 0 {
		f.TransferFee = defaults.TransferFee
	}
	if f.AssetConfigFee == 0 {
		f.AssetConfigFee = defaults.AssetConfigFee
	}
	if f.CollateralReleaseFee == 0 {
		f.CollateralReleaseFee = defaults.CollateralReleaseFee
	}
	return f
}
