package types

// AssetTransferTxn captures the inbound escrowed transfer that accompanies an
// engine call. The execution substrate validates signatures and atomicity; the
// engines only see the already-verified transfer context.
type AssetTransferTxn struct {
	// ID is the substrate-assigned transaction identifier.
	ID string
	// Sender is the account that signed and funded the transfer.
	Sender [20]byte
	// Receiver is the account credited by the transfer.
	Receiver [20]byte
	// AssetID identifies the fungible asset being moved.
	AssetID uint64
	// Amount is the transferred quantity in integral asset units.
	Amount uint64
}
