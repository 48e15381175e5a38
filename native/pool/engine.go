package pool

import (
	"errors"
	"math"
	"math/big"

	"zaibatsu/core/events"
	"zaibatsu/core/types"
	"zaibatsu/native/assets"
	nativecommon "zaibatsu/native/common"
	"zaibatsu/native/fees"
	"zaibatsu/native/oracle"
)

var (
	ErrNilState                = errors.New("pool engine: state not configured")
	ErrNilOracle               = errors.New("pool engine: price feed not configured")
	ErrNilGateway              = errors.New("pool engine: asset gateways not configured")
	ErrWrongReceiver           = errors.New("pool engine: the receiver must be the service contract account")
	ErrDuplicatePoolKey        = errors.New("pool engine: a pool with this key already exists")
	ErrPoolNotFound            = errors.New("pool engine: a pool with that key does not exist")
	ErrSenderMismatch          = errors.New("pool engine: the user account must match the txn sender")
	ErrAssetMismatch           = errors.New("pool engine: the asset must match the pool asset")
	ErrBelowMinimumValue       = errors.New("pool engine: the amount is below the minimum creation value")
	ErrInsufficientAmount      = errors.New("pool engine: the txn amount is insufficient")
	ErrInsufficientPoolBalance = errors.New("pool engine: the pool token balance cannot cover the reward")
	ErrZeroDecimalsMultiplier  = errors.New("pool engine: decimals multiplier must be positive")
	ErrTooManyContributors     = errors.New("pool engine: max contributors exceeds the mintable token supply")
)

const moduleName = "pool"

// tokenUnitsPerContributor is the pool-token supply minted per permitted
// contributor.
const tokenUnitsPerContributor = 1_000_000

// minCreationValue is the minimum USD-equivalent value, in the oracle's fixed
// price units, that a creation payment must carry.
const minCreationValue = 20

type engineState interface {
	PoolGet(key string) (*PoolInfo, bool, error)
	PoolPut(key string, info *PoolInfo) error
}

// Engine implements pool creation, funding and vote approval against the
// persistent record store.
type Engine struct {
	state           engineState
	serviceAddress  [20]byte
	contractAddress [20]byte
	transfers       assets.TransferGateway
	minter          assets.MintGateway
	feed            oracle.PriceFeed
	feeSched        assets.FeeSchedule
	emitter         events.Emitter
	pauses          nativecommon.PauseView
}

// NewEngine constructs a pool engine bound to the service contract's escrow
// account.
func NewEngine(serviceAddr, contractAddr [20]byte) *Engine {
	return &Engine{
		serviceAddress:  serviceAddr,
		contractAddress: contractAddr,
		feeSched:        assets.DefaultFeeSchedule(),
		emitter:         events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetGateways configures the transfer and mint gateways.
func (e *Engine) SetGateways(transfers assets.TransferGateway, minter assets.MintGateway) {
	if e == nil {
		return
	}
	e.transfers = transfers
	e.minter = minter
}

// SetPriceFeed configures the oracle used for valuations.
func (e *Engine) SetPriceFeed(feed oracle.PriceFeed) {
	if e == nil {
		return
	}
	e.feed = feed
}

// SetFeeSchedule overrides the substrate fee units.
func (e *Engine) SetFeeSchedule(sched assets.FeeSchedule) {
	if e == nil {
		return
	}
	e.feeSched = sched.Normalise()
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.feed == nil {
		return ErrNilOracle
	}
	if e.transfers == nil || e.minter == nil {
		return ErrNilGateway
	}
	return nil
}

// AuthorizePoolCreation validates the creation payment, mints the pool token
// and persists the new pool record. The payment must have been escrowed to
// the service account within the same atomic request.
func (e *Engine) AuthorizePoolCreation(txn types.AssetTransferTxn, req CreationRequest) (*PoolInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if req.DecimalsMultiplier == 0 {
		return nil, ErrZeroDecimalsMultiplier
	}
	if txn.Receiver != e.serviceAddress {
		return nil, ErrWrongReceiver
	}
	if _, exists, err := e.state.PoolGet(req.PoolKey); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicatePoolKey
	}

	price, err := e.feed.UnitPrice(txn.AssetID)
	if err != nil {
		return nil, err
	}
	creationFee := mulDiv(price, txn.Amount, req.DecimalsMultiplier)
	if creationFee < minCreationValue {
		return nil, ErrBelowMinimumValue
	}

	// The supply multiplication must not wrap; a wrapped total would mint a
	// zero-or-tiny-supply token and persist an unfundable pool.
	if req.MaxContributors > math.MaxUint64/tokenUnitsPerContributor {
		return nil, ErrTooManyContributors
	}
	total := tokenUnitsPerContributor * req.MaxContributors
	assetID, err := e.minter.CreateAsset(assets.AssetSpec{
		Total:      total,
		UnitName:   req.TokenUnitName,
		AssetName:  req.TokenAssetName,
		URL:        req.ImageURL,
		Controller: e.contractAddress,
		Fee:        e.feeSched.AssetConfigFee,
	})
	if err != nil {
		return nil, err
	}

	info := &PoolInfo{
		PoolKey:      req.PoolKey,
		TokenBalance: total,
		PoolAssetID:  assetID,
	}
	if err := e.state.PoolPut(req.PoolKey, info); err != nil {
		return nil, err
	}

	e.emit(events.PoolCreated{
		PoolKey:      req.PoolKey,
		PoolAssetID:  assetID,
		TokenBalance: total,
		Creator:      txn.Sender,
	})
	return info.Copy(), nil
}

// OptInPoolAsset validates that the caller's opt-in transaction targets the
// pool's token. Pure validation gate; no state mutation.
func (e *Engine) OptInPoolAsset(optInAssetID uint64, poolKey string) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	info, exists, err := e.state.PoolGet(poolKey)
	if err != nil {
		return err
	}
	if !exists {
		return ErrPoolNotFound
	}
	if optInAssetID != info.PoolAssetID {
		return ErrAssetMismatch
	}
	return nil
}

// FundPool accepts a contribution escrowed to the service account and pays
// the contributor a pool-token reward equal to the contribution's USD value.
func (e *Engine) FundPool(txn types.AssetTransferTxn, req FundRequest) (*FundResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if req.DecimalsMultiplier == 0 {
		return nil, ErrZeroDecimalsMultiplier
	}
	info, exists, err := e.state.PoolGet(req.PoolKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPoolNotFound
	}
	if req.UserAccount != txn.Sender {
		return nil, ErrSenderMismatch
	}
	if req.PoolAssetID != info.PoolAssetID {
		return nil, ErrAssetMismatch
	}
	if txn.Receiver != e.serviceAddress {
		return nil, ErrWrongReceiver
	}
	if txn.Amount < fees.AmountPlusFee(req.FundAmount, 1) {
		return nil, ErrInsufficientAmount
	}

	price, err := e.feed.UnitPrice(txn.AssetID)
	if err != nil {
		return nil, err
	}
	// Whole units first, then price: matches the recorded valuation order.
	assetValueUSD := (txn.Amount / req.DecimalsMultiplier) * price

	// The historical contract decremented without a floor check; reject
	// instead of letting the balance wrap.
	if assetValueUSD > info.TokenBalance {
		return nil, ErrInsufficientPoolBalance
	}

	if _, err := e.transfers.Transfer(info.PoolAssetID, assetValueUSD, req.UserAccount, e.feeSched.TransferFee, "Pool fund reward"); err != nil {
		return nil, err
	}

	info.TokenBalance -= assetValueUSD
	if err := e.state.PoolPut(req.PoolKey, info); err != nil {
		return nil, err
	}

	e.emit(events.PoolFunded{
		PoolKey:      req.PoolKey,
		Funder:       req.UserAccount,
		Amount:       req.FundAmount,
		RewardTokens: assetValueUSD,
		TokenBalance: info.TokenBalance,
	})
	return &FundResponse{Amount: req.FundAmount, Success: true}, nil
}

// ApprovePoolVote produces a voting-weight receipt for a pool-token transfer.
// Pure read; no mutation.
func (e *Engine) ApprovePoolVote(poolKey string, txn types.AssetTransferTxn) (*VoteApprovalResponse, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	info, exists, err := e.state.PoolGet(poolKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPoolNotFound
	}
	if txn.AssetID != info.PoolAssetID {
		return nil, ErrAssetMismatch
	}
	return &VoteApprovalResponse{Multiplier: txn.Amount, TxnID: txn.ID}, nil
}

// mulDiv computes a * b / div with a big.Int intermediate so the product
// cannot overflow uint64.
func mulDiv(a, b, div uint64) uint64 {
	product := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	product.Quo(product, new(big.Int).SetUint64(div))
	return product.Uint64()
}
