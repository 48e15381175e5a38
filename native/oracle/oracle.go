// Package oracle adapts the external price-feed application into the narrow
// read contract the engines depend on: a single synchronous unit-price lookup
// that fails closed.
package oracle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// ErrUnsupportedAsset marks assets the feed application carries no price for.
var ErrUnsupportedAsset = errors.New("oracle: this asset is not supported")

// PriceFeed resolves the unit price of an asset in the oracle's fixed price
// units. Reads are single shot; there is no caching or retry policy.
type PriceFeed interface {
	UnitPrice(assetID uint64) (uint64, error)
}

// AppStateReader exposes the global key space of an external application.
type AppStateReader interface {
	GetEx(appID uint64, key []byte) ([]byte, bool)
}

// AppFeed reads prices out of a feed application's global state. Keys are the
// asset identifier as 8 big-endian bytes; values start with an 8-byte
// big-endian price.
type AppFeed struct {
	reader AppStateReader
	appID  uint64
}

// NewAppFeed binds a feed to the external application holding the prices.
func NewAppFeed(reader AppStateReader, appID uint64) *AppFeed {
	return &AppFeed{reader: reader, appID: appID}
}

// UnitPrice looks up the asset's price, failing with ErrUnsupportedAsset when
// the feed has no entry.
func (f *AppFeed) UnitPrice(assetID uint64) (uint64, error) {
	if f == nil || f.reader == nil {
		return 0, errors.New("oracle: feed not configured")
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, assetID)
	value, exists := f.reader.GetEx(f.appID, key)
	if !exists {
		return 0, fmt.Errorf("%w: asset %d", ErrUnsupportedAsset, assetID)
	}
	if len(value) < 8 {
		return 0, fmt.Errorf("oracle: malformed price entry for asset %d", assetID)
	}
	return binary.BigEndian.Uint64(value[:8]), nil
}

// ManualFeed is an in-memory feed used for tests and manual overrides during
// incident response.
type ManualFeed struct {
	mu     sync.RWMutex
	prices map[uint64]uint64
}

// NewManualFeed constructs an empty manual feed.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{prices: make(map[uint64]uint64)}
}

// Set records the unit price for an asset.
func (m *ManualFeed) Set(assetID, price uint64) {
	m.mu.Lock()
	m.prices[assetID] = price
	m.mu.Unlock()
}

// UnitPrice returns the stored price or ErrUnsupportedAsset.
func (m *ManualFeed) UnitPrice(assetID uint64) (uint64, error) {
	m.mu.RLock()
	price, ok := m.prices[assetID]
	m.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: asset %d", ErrUnsupportedAsset, assetID)
	}
	return price, nil
}
