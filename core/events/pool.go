package events

import "zaibatsu/core/types"

const (
	// TypePoolCreated is emitted when a pool record and its token asset are
	// created.
	TypePoolCreated = "pool.created"
	// TypePoolFunded is emitted for every accepted pool contribution.
	TypePoolFunded = "pool.funded"
)

// PoolCreated records the minting of a new pool token and the creation of the
// backing pool record.
type PoolCreated struct {
	PoolKey      string
	PoolAssetID  uint64
	TokenBalance uint64
	Creator      [20]byte
}

func (PoolCreated) EventType() string { return TypePoolCreated }

func (e PoolCreated) Event() *types.Event {
	return newEvent(TypePoolCreated, map[string]string{
		"poolKey":      e.PoolKey,
		"poolAssetId":  formatUint(e.PoolAssetID),
		"tokenBalance": formatUint(e.TokenBalance),
		"creator":      formatAddress(e.Creator),
	})
}

// PoolFunded records a contribution together with the pool-token reward paid
// out for it and the inventory left afterwards.
type PoolFunded struct {
	PoolKey      string
	Funder       [20]byte
	Amount       uint64
	RewardTokens uint64
	TokenBalance uint64
}

func (PoolFunded) EventType() string { return TypePoolFunded }

func (e PoolFunded) Event() *types.Event {
	return newEvent(TypePoolFunded, map[string]string{
		"poolKey":      e.PoolKey,
		"funder":       formatAddress(e.Funder),
		"amount":       formatUint(e.Amount),
		"rewardTokens": formatUint(e.RewardTokens),
		"tokenBalance": formatUint(e.TokenBalance),
	})
}
