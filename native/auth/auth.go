// Package auth provides the shared authorization layer consumed by every
// contract in the suite: the admin registry, the service-address binding and
// the generic contract asset opt-in.
package auth

import (
	"errors"

	"zaibatsu/native/assets"
)

var (
	// ErrNotAuthorized is returned when the caller is neither the creator
	// nor a registered admin.
	ErrNotAuthorized = errors.New("auth: you are not authorised to perform this action")
)

// ContractState is the per-contract global state every engine operation
// receives explicitly. There are no ambient singletons; callers own the value
// and pass it in.
type ContractState struct {
	// Creator is implicitly authorized even when absent from Admins.
	Creator [20]byte
	// Admins is the ordered admin set. It is appended to exactly once, at
	// contract creation; no removal operation exists.
	Admins [][20]byte
	// ServiceAddress is the registered service-contract escrow account.
	ServiceAddress [20]byte
}

// NewContractState initialises the state for a freshly created contract. The
// creating account is appended to the admin set, mirroring the create-time
// append that is the admin list's only mutation.
func NewContractState(creator [20]byte) *ContractState {
	return &ContractState{
		Creator: creator,
		Admins:  [][20]byte{creator},
	}
}

// IsAuthorized reports whether the candidate is the creator or appears in the
// admin set. The scan is linear; the set holds tens of entries at most.
func (s *ContractState) IsAuthorized(candidate [20]byte) bool {
	if s == nil {
		return false
	}
	if candidate == s.Creator {
		return true
	}
	for _, admin := range s.Admins {
		if admin == candidate {
			return true
		}
	}
	return false
}

// Authorize fails with ErrNotAuthorized when the candidate is not authorized.
func (s *ContractState) Authorize(candidate [20]byte) error {
	if !s.IsAuthorized(candidate) {
		return ErrNotAuthorized
	}
	return nil
}

// CanUpdate reports whether the sender may replace the contract program:
// creator or any admin.
func (s *ContractState) CanUpdate(sender [20]byte) bool {
	return s.IsAuthorized(sender)
}

// CanDelete reports whether the sender may delete the contract: creator only.
func (s *ContractState) CanDelete(sender [20]byte) bool {
	if s == nil {
		return false
	}
	return sender == s.Creator
}

// SetServiceAddress records the service contract's escrow account. Admin
// gated.
func (s *ContractState) SetServiceAddress(sender, address [20]byte) error {
	if err := s.Authorize(sender); err != nil {
		return err
	}
	s.ServiceAddress = address
	return nil
}

// Module bundles the authorization state with the contract's own escrow
// account and transfer gateway, providing the shared behaviour the engines
// build on.
type Module struct {
	State           *ContractState
	ContractAddress [20]byte

	transfers assets.TransferGateway
	feeSched  assets.FeeSchedule
}

// NewModule wires the shared authorization module.
func NewModule(state *ContractState, contractAddr [20]byte, transfers assets.TransferGateway, fees assets.FeeSchedule) *Module {
	return &Module{
		State:           state,
		ContractAddress: contractAddr,
		transfers:       transfers,
		feeSched:        fees.Normalise(),
	}
}

// OptContractIntoAsset registers the contract account for the asset so later
// escrowed transfers of it can land. Admin gated; implemented as a
// zero-amount self transfer.
func (m *Module) OptContractIntoAsset(sender [20]byte, assetID uint64) error {
	if m == nil || m.transfers == nil {
		return errors.New("auth: transfer gateway not configured")
	}
	if err := m.State.Authorize(sender); err != nil {
		return err
	}
	_, err := m.transfers.OptIn(assetID, m.feeSched.TransferFee)
	return err
}
