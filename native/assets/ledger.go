package assets

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	errUnknownAsset        = errors.New("asset ledger: unknown asset")
	errInsufficientBalance = errors.New("asset ledger: insufficient escrow balance")
)

// Asset is the metadata recorded for every minted asset.
type Asset struct {
	ID           uint64
	Total        uint64
	UnitName     string
	AssetName    string
	URL          string
	MetadataHash string
	Controller   [20]byte
}

// Ledger is an in-memory implementation of both gateways. It tracks minted
// assets, per-account balances and issued receipts, and serves as the
// reference substrate for engine tests and the daemon's dry-run mode.
type Ledger struct {
	mu       sync.Mutex
	source   [20]byte
	nextID   uint64
	assets   map[uint64]*Asset
	balances map[uint64]map[[20]byte]uint64
	receipts []Receipt
	feesPaid uint64
}

// NewLedger constructs a ledger whose outbound transfers debit the given
// escrow account.
func NewLedger(source [20]byte) *Ledger {
	return &Ledger{
		source:   source,
		nextID:   1,
		assets:   make(map[uint64]*Asset),
		balances: make(map[uint64]map[[20]byte]uint64),
	}
}

// Seed credits an account with units of an asset, registering the asset on
// first use. Intended for test and genesis setup.
func (l *Ledger) Seed(assetID uint64, account [20]byte, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.assets[assetID]; !ok {
		l.assets[assetID] = &Asset{ID: assetID, Total: amount}
		if assetID >= l.nextID {
			l.nextID = assetID + 1
		}
	}
	l.credit(assetID, account, amount)
}

func (l *Ledger) credit(assetID uint64, account [20]byte, amount uint64) {
	holders, ok := l.balances[assetID]
	if !ok {
		holders = make(map[[20]byte]uint64)
		l.balances[assetID] = holders
	}
	holders[account] += amount
}

// Transfer debits the escrow account and credits the receiver.
func (l *Ledger) Transfer(assetID, amount uint64, receiver [20]byte, fee uint64, note string) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.assets[assetID]; !ok {
		return Receipt{}, fmt.Errorf("%w: %d", errUnknownAsset, assetID)
	}
	if amount > 0 {
		holders := l.balances[assetID]
		if holders == nil || holders[l.source] < amount {
			return Receipt{}, errInsufficientBalance
		}
		holders[l.source] -= amount
		l.credit(assetID, receiver, amount)
	}
	receipt := Receipt{ID: uuid.NewString(), Fee: fee}
	l.receipts = append(l.receipts, receipt)
	l.feesPaid += fee
	return receipt, nil
}

// OptIn registers the source account for the asset with a zero-amount self
// transfer.
func (l *Ledger) OptIn(assetID, fee uint64) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.assets[assetID]; !ok {
		return Receipt{}, fmt.Errorf("%w: %d", errUnknownAsset, assetID)
	}
	l.credit(assetID, l.source, 0)
	receipt := Receipt{ID: uuid.NewString(), Fee: fee}
	l.receipts = append(l.receipts, receipt)
	l.feesPaid += fee
	return receipt, nil
}

// CreateAsset mints a new asset and credits the full supply to the
// controller.
func (l *Ledger) CreateAsset(spec AssetSpec) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.assets[id] = &Asset{
		ID:           id,
		Total:        spec.Total,
		UnitName:     spec.UnitName,
		AssetName:    spec.AssetName,
		URL:          spec.URL,
		MetadataHash: spec.MetadataHash,
		Controller:   spec.Controller,
	}
	l.credit(id, spec.Controller, spec.Total)
	l.feesPaid += spec.Fee
	return id, nil
}

// Balance reports the holdings of an account for an asset.
func (l *Ledger) Balance(assetID uint64, account [20]byte) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	holders := l.balances[assetID]
	if holders == nil {
		return 0
	}
	return holders[account]
}

// AssetInfo returns the metadata for a minted asset.
func (l *Ledger) AssetInfo(assetID uint64) (Asset, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	asset, ok := l.assets[assetID]
	if !ok {
		return Asset{}, false
	}
	return *asset, true
}

// FeesPaid reports the cumulative processing fees charged by the ledger.
func (l *Ledger) FeesPaid() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.feesPaid
}

// Receipts returns a copy of all issued receipts in submission order.
func (l *Ledger) Receipts() []Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Receipt(nil), l.receipts...)
}
