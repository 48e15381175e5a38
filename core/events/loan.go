package events

import "zaibatsu/core/types"

const (
	// TypeLoanCollateralLocked is emitted when a borrower's collateral is
	// escrowed and the loan record created.
	TypeLoanCollateralLocked = "loan.collateral_locked"
	// TypeLoanPrincipalDisbursed is emitted when the principal reaches the
	// borrower and the position NFTs are minted.
	TypeLoanPrincipalDisbursed = "loan.principal_disbursed"
	// TypeLoanRepaymentExecuted is emitted per recipient disbursement within
	// a repayment round.
	TypeLoanRepaymentExecuted = "loan.repayment_executed"
	// TypeLoanClosed is emitted when the final round completes and the
	// collateral is released.
	TypeLoanClosed = "loan.closed"
)

type LoanCollateralLocked struct {
	LoanKey           string
	Borrower          [20]byte
	CollateralAssetID uint64
	Amount            uint64
}

func (LoanCollateralLocked) EventType() string { return TypeLoanCollateralLocked }

func (e LoanCollateralLocked) Event() *types.Event {
	return newEvent(TypeLoanCollateralLocked, map[string]string{
		"loanKey":           e.LoanKey,
		"borrower":          formatAddress(e.Borrower),
		"collateralAssetId": formatUint(e.CollateralAssetID),
		"amount":            formatUint(e.Amount),
	})
}

type LoanPrincipalDisbursed struct {
	LoanKey          string
	Borrower         [20]byte
	PrincipalAssetID uint64
	Amount           uint64
	BorrowerNFT      uint64
	LenderNFT        uint64
}

func (LoanPrincipalDisbursed) EventType() string { return TypeLoanPrincipalDisbursed }

func (e LoanPrincipalDisbursed) Event() *types.Event {
	return newEvent(TypeLoanPrincipalDisbursed, map[string]string{
		"loanKey":          e.LoanKey,
		"borrower":         formatAddress(e.Borrower),
		"principalAssetId": formatUint(e.PrincipalAssetID),
		"amount":           formatUint(e.Amount),
		"borrowerNft":      formatUint(e.BorrowerNFT),
		"lenderNft":        formatUint(e.LenderNFT),
	})
}

type LoanRepaymentExecuted struct {
	RepaymentKey   string
	LoanKey        string
	Recipient      [20]byte
	Amount         uint64
	PercentagePaid uint64
}

func (LoanRepaymentExecuted) EventType() string { return TypeLoanRepaymentExecuted }

func (e LoanRepaymentExecuted) Event() *types.Event {
	return newEvent(TypeLoanRepaymentExecuted, map[string]string{
		"repaymentKey":   e.RepaymentKey,
		"loanKey":        e.LoanKey,
		"recipient":      formatAddress(e.Recipient),
		"amount":         formatUint(e.Amount),
		"percentagePaid": formatUint(e.PercentagePaid),
	})
}

type LoanClosed struct {
	LoanKey            string
	Borrower           [20]byte
	CollateralReturned uint64
}

func (LoanClosed) EventType() string { return TypeLoanClosed }

func (e LoanClosed) Event() *types.Event {
	return newEvent(TypeLoanClosed, map[string]string{
		"loanKey":            e.LoanKey,
		"borrower":           formatAddress(e.Borrower),
		"collateralReturned": formatUint(e.CollateralReturned),
	})
}
