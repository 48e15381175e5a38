package loan

// Type classifies the funding source of a loan and governs the recipient
// count constraint.
type Type string

const (
	TypeP2P      Type = "P2P"
	TypeDAO      Type = "DAO"
	TypeZaibatsu Type = "ZAIBATSU"
)

// Valid reports whether the loan type is one of the recognised variants.
func (t Type) Valid() bool {
	switch t {
	case TypeP2P, TypeDAO, TypeZaibatsu:
		return true
	}
	return false
}

// PaymentRecipient pairs a repayment share, in basis points of 10000, with
// the account receiving it.
type PaymentRecipient struct {
	// Percentage is the recipient's share in basis points.
	Percentage uint64
	// Address receives the share.
	Address [20]byte
}

// Details is the persisted loan record. All amounts are integral asset units;
// every mutation round-trips the whole record through storage.
type Details struct {
	LoanKey  string
	LoanType Type
	// Tenure is the agreed duration marker carried through from origination.
	Tenure            uint8
	PrincipalAssetID  uint64
	CollateralAssetID uint64
	// InterestAssetAmount is the total interest over the loan's life.
	InterestAssetAmount       uint64
	PrincipalAssetAmount      uint64
	CollateralAssetAmount     uint64
	EarlyPaymentPenaltyAmount uint64
	// PaymentRounds is the number of repayment installments.
	PaymentRounds uint8
	// PaymentCompletionTimestamp is the unix-seconds deadline for full
	// repayment; must lie in the future at initiation.
	PaymentCompletionTimestamp uint64
	// PaymentRecipients is the ordered disbursement split. Percentages sum
	// to at most 10000. P2P loans carry exactly one entry.
	PaymentRecipients []PaymentRecipient
	// CollateralPaid must be true before PrincipalPaid may become true.
	CollateralPaid bool
	PrincipalPaid  bool
	// CompletedPaymentRounds counts finished rounds; never exceeds
	// PaymentRounds.
	CompletedPaymentRounds uint8
	Borrower               [20]byte
	// NFT asset ids are zero until minted at purchase completion.
	LenderNFTAssetID   uint64
	BorrowerNFTAssetID uint64
}

// Copy returns a deep copy so stored state cannot be mutated through shared
// slices.
func (d *Details) Copy() *Details {
	if d == nil {
		return nil
	}
	clone := *d
	clone.PaymentRecipients = append([]PaymentRecipient(nil), d.PaymentRecipients...)
	return &clone
}

// PendingRoundPayment is the per-round repayment record. The recipient split
// is snapshotted from the loan at initiation time.
type PendingRoundPayment struct {
	RepaymentKey string
	// LoanKey back-references the loan being repaid.
	LoanKey string
	// RepaymentAmount is (principal + interest) / payment rounds, floored.
	RepaymentAmount uint64
	// PercentagePaid accumulates disbursed basis points toward 10000.
	PercentagePaid uint64
	Recipients     []PaymentRecipient
}

// Copy returns a deep copy of the repayment record.
func (p *PendingRoundPayment) Copy() *PendingRoundPayment {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Recipients = append([]PaymentRecipient(nil), p.Recipients...)
	return &clone
}

// CompletionArgs carries the NFT parameters supplied by the caller when a
// purchase completes.
type CompletionArgs struct {
	// LoanUnitName seeds the NFT unit and asset names: unit B<name>/L<name>,
	// asset #B-<name>/#L-<name>.
	LoanUnitName        string
	LenderNFTImageURL   string
	BorrowerNFTImageURL string
	// LoanHash is recorded as the metadata hash on both NFTs.
	LoanHash string
}

// ExecuteRepaymentResponse reports the round's progress after a recipient
// disbursement.
type ExecuteRepaymentResponse struct {
	// Complete is true once the round has disbursed the full 10000 bp.
	Complete       bool
	PercentagePaid uint64
}

// CleanUpResponse reports whether the cleanup retired the loan.
type CleanUpResponse struct {
	Complete bool
}
