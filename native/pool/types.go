package pool

// PoolInfo is the persisted record for a funding pool. Records are keyed by a
// caller-chosen unique string and always round-trip through storage as whole
// values.
type PoolInfo struct {
	// PoolKey is the immutable record identity.
	PoolKey string
	// TokenBalance is the pool-token inventory still held by the contract.
	// Funding operations draw it down as rewards are paid.
	TokenBalance uint64
	// PoolAssetID identifies the minted pool token. Immutable once set.
	PoolAssetID uint64
}

// Copy returns a deep copy so callers cannot mutate stored state through
// shared pointers.
func (p *PoolInfo) Copy() *PoolInfo {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// CreationRequest carries the caller-supplied parameters for
// AuthorizePoolCreation.
type CreationRequest struct {
	PoolKey        string
	ImageURL       string
	TokenUnitName  string
	TokenAssetName string
	// MaxContributors scales the minted pool-token supply.
	MaxContributors uint64
	// DecimalsMultiplier converts the paid asset's integral units into whole
	// units for valuation (10^decimals).
	DecimalsMultiplier uint64
}

// FundRequest carries the caller-supplied parameters for FundPool.
type FundRequest struct {
	PoolKey            string
	FundAmount         uint64
	UserAccount        [20]byte
	PoolAssetID        uint64
	DecimalsMultiplier uint64
}

// FundResponse acknowledges an accepted contribution.
type FundResponse struct {
	Amount  uint64
	Success bool
}

// VoteApprovalResponse is the voting-weight receipt produced by
// ApprovePoolVote.
type VoteApprovalResponse struct {
	// Multiplier is the pool-token amount backing the vote.
	Multiplier uint64
	// TxnID identifies the triggering transfer.
	TxnID string
}
