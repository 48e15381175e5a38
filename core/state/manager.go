package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"zaibatsu/native/auth"
	"zaibatsu/native/loan"
	"zaibatsu/native/pool"
	"zaibatsu/storage"
)

// Key prefixes partition the flat key-value store per record family.
var (
	poolPrefix      = []byte("pool/")
	loanPrefix      = []byte("loan/")
	repaymentPrefix = []byte("repayment/")
	oraclePrefix    = []byte("oracle/")
	authKey         = []byte("auth/contract")
)

// Manager persists engine records to a storage.Database as RLP-encoded
// values. It satisfies the state interfaces of both the pool and loan
// engines.
type Manager struct {
	db storage.Database
}

func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// KVPut RLP-encodes value and stores it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, encoded)
}

// KVGet decodes the value stored under key into out. It returns false with a
// nil error when the key is absent; a nil out only reports presence.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok, err := m.db.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) KVDelete(key []byte) error {
	return m.db.Delete(key)
}

func prefixed(prefix []byte, key string) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

func (m *Manager) PoolGet(key string) (*pool.PoolInfo, bool, error) {
	var info pool.PoolInfo
	ok, err := m.KVGet(prefixed(poolPrefix, key), &info)
	if err != nil || !ok {
		return nil, false, err
	}
	return &info, true, nil
}

func (m *Manager) PoolPut(key string, info *pool.PoolInfo) error {
	return m.KVPut(prefixed(poolPrefix, key), info)
}

func (m *Manager) LoanGet(key string) (*loan.Details, bool, error) {
	var details loan.Details
	ok, err := m.KVGet(prefixed(loanPrefix, key), &details)
	if err != nil || !ok {
		return nil, false, err
	}
	return &details, true, nil
}

func (m *Manager) LoanPut(key string, details *loan.Details) error {
	return m.KVPut(prefixed(loanPrefix, key), details)
}

func (m *Manager) LoanDelete(key string) error {
	return m.KVDelete(prefixed(loanPrefix, key))
}

func (m *Manager) RepaymentGet(key string) (*loan.PendingRoundPayment, bool, error) {
	var payment loan.PendingRoundPayment
	ok, err := m.KVGet(prefixed(repaymentPrefix, key), &payment)
	if err != nil || !ok {
		return nil, false, err
	}
	return &payment, true, nil
}

func (m *Manager) RepaymentPut(key string, payment *loan.PendingRoundPayment) error {
	return m.KVPut(prefixed(repaymentPrefix, key), payment)
}

func (m *Manager) RepaymentDelete(key string) error {
	return m.KVDelete(prefixed(repaymentPrefix, key))
}

// AppStateKey builds the storage key mirroring one entry of an external
// application's global state.
func appStateKey(appID uint64, key []byte) []byte {
	out := make([]byte, 0, len(oraclePrefix)+8+1+len(key))
	out = append(out, oraclePrefix...)
	out = append(out, []byte(fmt.Sprintf("%d/", appID))...)
	return append(out, key...)
}

// GetEx reads a raw entry of a mirrored application's global state. It
// satisfies the oracle's AppStateReader contract; read errors report as
// absent so price lookups fail closed.
func (m *Manager) GetEx(appID uint64, key []byte) ([]byte, bool) {
	value, ok, err := m.db.Get(appStateKey(appID, key))
	if err != nil || !ok {
		return nil, false
	}
	return value, true
}

// AppStatePut mirrors one entry of an external application's global state,
// fed by the oracle relay.
func (m *Manager) AppStatePut(appID uint64, key, value []byte) error {
	return m.db.Put(appStateKey(appID, key), value)
}

// AuthGet loads the persisted contract authorization state, if any.
func (m *Manager) AuthGet() (*auth.ContractState, bool, error) {
	var contract auth.ContractState
	ok, err := m.KVGet(authKey, &contract)
	if err != nil || !ok {
		return nil, false, err
	}
	return &contract, true, nil
}

func (m *Manager) AuthPut(contract *auth.ContractState) error {
	return m.KVPut(authKey, contract)
}
