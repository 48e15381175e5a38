package loan

import (
	"errors"
	"fmt"
	"time"

	"zaibatsu/core/events"
	"zaibatsu/core/types"
	"zaibatsu/native/assets"
	nativecommon "zaibatsu/native/common"
	"zaibatsu/native/fees"
	"zaibatsu/native/oracle"
)

var (
	ErrNilState             = errors.New("loan engine: state not configured")
	ErrNilOracle            = errors.New("loan engine: price feed not configured")
	ErrNilGateway           = errors.New("loan engine: asset gateways not configured")
	ErrWrongReceiver        = errors.New("loan engine: the receiver must be the contract escrow account")
	ErrDuplicateLoanKey     = errors.New("loan engine: a loan purchase with this key has already been initiated")
	ErrLoanNotFound         = errors.New("loan engine: a loan with this key was not found")
	ErrInvalidLoanType      = errors.New("loan engine: the loan must be P2P, DAO or ZAIBATSU")
	ErrTooManyRecipients    = errors.New("loan engine: only one recipient is allowed in a P2P loan")
	ErrCollateralPaid       = errors.New("loan engine: the loan collateral must not be paid")
	ErrPrincipalPaid        = errors.New("loan engine: the principal must not have been paid")
	ErrCollateralNotPaid    = errors.New("loan engine: the loan collateral must have been paid by this point")
	ErrBorrowerMismatch     = errors.New("loan engine: the borrower does not match the loan record")
	ErrAssetMismatch        = errors.New("loan engine: the asset does not match the loan record")
	ErrInsufficientAmount   = errors.New("loan engine: insufficient txn amount, principal plus fees required")
	ErrTimestampNotFuture   = errors.New("loan engine: the payment completion timestamp must be in the future")
	ErrZeroPaymentRounds    = errors.New("loan engine: payment rounds must be positive")
	ErrDuplicateRepayment   = errors.New("loan engine: a repayment with this key already exists")
	ErrRepaymentNotFound    = errors.New("loan engine: a repayment with this key was not found")
	ErrRecipientMismatch    = errors.New("loan engine: the recipient account does not match the claim")
	ErrUnknownRecipient     = errors.New("loan engine: the claim does not name a recipient of this loan")
	ErrPercentageMismatch   = errors.New("loan engine: the claimed payment percentage is incorrect")
	ErrOverpayment          = errors.New("loan engine: the payment would push the round above 100%")
	ErrRecipientPercentages = errors.New("loan engine: recipient percentages exceed 100%")
)

const moduleName = "loan"

type engineState interface {
	LoanGet(key string) (*Details, bool, error)
	LoanPut(key string, details *Details) error
	LoanDelete(key string) error
	RepaymentGet(key string) (*PendingRoundPayment, bool, error)
	RepaymentPut(key string, payment *PendingRoundPayment) error
	RepaymentDelete(key string) error
}

// Engine drives the loan lifecycle: purchase initiation, completion,
// round-based repayment and cleanup.
type Engine struct {
	state         engineState
	escrowAddress [20]byte
	transfers     assets.TransferGateway
	minter        assets.MintGateway
	feed          oracle.PriceFeed
	feeSched      assets.FeeSchedule
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	nowFn         func() int64
}

// NewEngine constructs a loan engine bound to the contract's escrow account.
func NewEngine(escrowAddr [20]byte) *Engine {
	return &Engine{
		escrowAddress: escrowAddr,
		feeSched:      assets.DefaultFeeSchedule(),
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
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

// SetPriceFeed configures the collateral valuation oracle.
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

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
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
	if e.transfers == nil || e.minter == nil {
		return ErrNilGateway
	}
	return nil
}

// InitiateLoanPurchase validates the escrowed collateral transfer and creates
// the loan record with the collateral marked paid.
func (e *Engine) InitiateLoanPurchase(loanKey string, details *Details, txn types.AssetTransferTxn) (*Details, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.feed == nil {
		return nil, ErrNilOracle
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if txn.Receiver != e.escrowAddress {
		return nil, ErrWrongReceiver
	}
	if _, exists, err := e.state.LoanGet(loanKey); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicateLoanKey
	}

	collateralPrice, err := e.feed.UnitPrice(txn.AssetID)
	if err != nil {
		return nil, err
	}
	// A listed asset with a zero price cannot back a loan either.
	if collateralPrice == 0 {
		return nil, fmt.Errorf("%w: asset %d has no value", oracle.ErrUnsupportedAsset, txn.AssetID)
	}

	if !details.LoanType.Valid() {
		return nil, ErrInvalidLoanType
	}
	if details.LoanType == TypeP2P && len(details.PaymentRecipients) != 1 {
		return nil, ErrTooManyRecipients
	}
	if err := validateRecipients(details.PaymentRecipients); err != nil {
		return nil, err
	}
	if details.CollateralPaid {
		return nil, ErrCollateralPaid
	}
	if details.PrincipalPaid {
		return nil, ErrPrincipalPaid
	}
	if details.Borrower != txn.Sender {
		return nil, ErrBorrowerMismatch
	}
	if details.CollateralAssetID != txn.AssetID {
		return nil, ErrAssetMismatch
	}
	if txn.Amount < fees.AmountPlusFee(details.CollateralAssetAmount, 1) {
		return nil, ErrInsufficientAmount
	}
	if details.PaymentCompletionTimestamp <= uint64(e.now()) {
		return nil, ErrTimestampNotFuture
	}
	if details.PaymentRounds == 0 {
		return nil, ErrZeroPaymentRounds
	}

	stored := details.Copy()
	stored.LoanKey = loanKey
	stored.CollateralPaid = true
	if err := e.state.LoanPut(loanKey, stored); err != nil {
		return nil, err
	}

	e.emit(events.LoanCollateralLocked{
		LoanKey:           loanKey,
		Borrower:          stored.Borrower,
		CollateralAssetID: stored.CollateralAssetID,
		Amount:            stored.CollateralAssetAmount,
	})
	return stored.Copy(), nil
}

// CompleteP2PLoanPurchase settles a P2P purchase: the lender's escrowed
// principal transfer is verified before the principal is disbursed to the
// borrower and the position NFTs are minted.
func (e *Engine) CompleteP2PLoanPurchase(loanKey string, args CompletionArgs, principalAssetID uint64, borrower [20]byte, txn types.AssetTransferTxn) (*Details, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if txn.Receiver != e.escrowAddress {
		return nil, ErrWrongReceiver
	}
	details, err := e.loadForCompletion(loanKey, principalAssetID, borrower)
	if err != nil {
		return nil, err
	}
	if txn.AssetID != details.PrincipalAssetID {
		return nil, ErrAssetMismatch
	}
	if txn.Amount < fees.AmountPlusFee(details.PrincipalAssetAmount, 1) {
		return nil, ErrInsufficientAmount
	}
	return e.finishPurchase(loanKey, details, args)
}

// CompleteNonP2PLoanPurchase settles a DAO or ZAIBATSU purchase funded from
// pooled capital already held by the contract.
func (e *Engine) CompleteNonP2PLoanPurchase(loanKey string, args CompletionArgs, principalAssetID uint64, borrower [20]byte) (*Details, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	details, err := e.loadForCompletion(loanKey, principalAssetID, borrower)
	if err != nil {
		return nil, err
	}
	return e.finishPurchase(loanKey, details, args)
}

func (e *Engine) loadForCompletion(loanKey string, principalAssetID uint64, borrower [20]byte) (*Details, error) {
	details, exists, err := e.state.LoanGet(loanKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrLoanNotFound
	}
	if !details.CollateralPaid {
		return nil, ErrCollateralNotPaid
	}
	if details.PrincipalPaid {
		return nil, ErrPrincipalPaid
	}
	if borrower != details.Borrower {
		return nil, ErrBorrowerMismatch
	}
	if principalAssetID != details.PrincipalAssetID {
		return nil, ErrAssetMismatch
	}
	return details, nil
}

func (e *Engine) finishPurchase(loanKey string, details *Details, args CompletionArgs) (*Details, error) {
	if _, err := e.transfers.Transfer(details.PrincipalAssetID, details.PrincipalAssetAmount, details.Borrower, e.feeSched.TransferFee, ""); err != nil {
		return nil, err
	}

	details.PrincipalPaid = true
	details.CompletedPaymentRounds = 0

	borrowerNFT, err := e.mintPositionNFT(args.BorrowerNFTImageURL, "B"+args.LoanUnitName, "#B-"+args.LoanUnitName, args.LoanHash)
	if err != nil {
		return nil, err
	}
	lenderNFT, err := e.mintPositionNFT(args.LenderNFTImageURL, "L"+args.LoanUnitName, "#L-"+args.LoanUnitName, args.LoanHash)
	if err != nil {
		return nil, err
	}
	details.BorrowerNFTAssetID = borrowerNFT
	details.LenderNFTAssetID = lenderNFT

	if err := e.state.LoanPut(loanKey, details); err != nil {
		return nil, err
	}

	e.emit(events.LoanPrincipalDisbursed{
		LoanKey:          loanKey,
		Borrower:         details.Borrower,
		PrincipalAssetID: details.PrincipalAssetID,
		Amount:           details.PrincipalAssetAmount,
		BorrowerNFT:      borrowerNFT,
		LenderNFT:        lenderNFT,
	})
	return details.Copy(), nil
}

// mintPositionNFT creates a single-supply position token. Both NFTs of a loan
// carry the same metadata hash and are controlled by the contract.
func (e *Engine) mintPositionNFT(imageURL, unitName, assetName, loanHash string) (uint64, error) {
	return e.minter.CreateAsset(assets.AssetSpec{
		Total:        1,
		UnitName:     unitName,
		AssetName:    assetName,
		URL:          imageURL,
		MetadataHash: loanHash,
		Controller:   e.escrowAddress,
		Fee:          e.feeSched.AssetConfigFee,
	})
}

// InitiateLoanRepayment opens a repayment round: the escrowed installment is
// verified against the per-round amount plus per-recipient fees, and a
// pending record snapshotting the recipient split is created.
func (e *Engine) InitiateLoanRepayment(loanKey, repaymentKey string, txn types.AssetTransferTxn) (*PendingRoundPayment, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if txn.Receiver != e.escrowAddress {
		return nil, ErrWrongReceiver
	}
	details, exists, err := e.state.LoanGet(loanKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrLoanNotFound
	}
	if details.PaymentRounds == 0 {
		return nil, ErrZeroPaymentRounds
	}

	paymentAmount := (details.PrincipalAssetAmount + details.InterestAssetAmount) / uint64(details.PaymentRounds)
	if txn.Amount < fees.AmountPlusFee(paymentAmount, uint64(len(details.PaymentRecipients))) {
		return nil, ErrInsufficientAmount
	}
	if _, exists, err := e.state.RepaymentGet(repaymentKey); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicateRepayment
	}

	payment := &PendingRoundPayment{
		RepaymentKey:    repaymentKey,
		LoanKey:         loanKey,
		RepaymentAmount: paymentAmount,
		PercentagePaid:  0,
		Recipients:      append([]PaymentRecipient(nil), details.PaymentRecipients...),
	}
	if err := e.state.RepaymentPut(repaymentKey, payment); err != nil {
		return nil, err
	}
	return payment.Copy(), nil
}

// ExecuteLoanRepayment disburses one recipient's share of the round. The
// claim must match the snapshotted split exactly; first match by address
// wins.
func (e *Engine) ExecuteLoanRepayment(repaymentKey string, recipientAccount [20]byte, claim PaymentRecipient, principalAssetID uint64) (*ExecuteRepaymentResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	payment, exists, err := e.state.RepaymentGet(repaymentKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRepaymentNotFound
	}
	details, exists, err := e.state.LoanGet(payment.LoanKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrLoanNotFound
	}
	if claim.Address != recipientAccount {
		return nil, ErrRecipientMismatch
	}
	if principalAssetID != details.PrincipalAssetID {
		return nil, ErrAssetMismatch
	}

	found := false
	for _, recipient := range payment.Recipients {
		if recipient.Address == claim.Address {
			if recipient.Percentage != claim.Percentage {
				return nil, ErrPercentageMismatch
			}
			found = true
			break
		}
	}
	if !found {
		return nil, ErrUnknownRecipient
	}

	newPercentagePaid := payment.PercentagePaid + claim.Percentage
	if newPercentagePaid > fees.BasisPointDenominator {
		return nil, ErrOverpayment
	}

	share := fees.Percentage(payment.RepaymentAmount, claim.Percentage)
	if _, err := e.transfers.Transfer(details.PrincipalAssetID, share, recipientAccount, e.feeSched.TransferFee, ""); err != nil {
		return nil, err
	}

	payment.PercentagePaid = newPercentagePaid
	if err := e.state.RepaymentPut(repaymentKey, payment); err != nil {
		return nil, err
	}

	e.emit(events.LoanRepaymentExecuted{
		RepaymentKey:   repaymentKey,
		LoanKey:        payment.LoanKey,
		Recipient:      recipientAccount,
		Amount:         share,
		PercentagePaid: newPercentagePaid,
	})
	return &ExecuteRepaymentResponse{
		Complete:       newPercentagePaid == fees.BasisPointDenominator,
		PercentagePaid: newPercentagePaid,
	}, nil
}

// CleanUpLoanRepayment retires a repayment round. On the final round the
// collateral is released back to the borrower and the loan record deleted;
// the repayment record is deleted unconditionally, regardless of how much of
// the round was disbursed.
func (e *Engine) CleanUpLoanRepayment(repaymentKey string, borrowerAccount [20]byte) (*CleanUpResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	payment, exists, err := e.state.RepaymentGet(repaymentKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRepaymentNotFound
	}
	details, exists, err := e.state.LoanGet(payment.LoanKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrLoanNotFound
	}
	if details.Borrower != borrowerAccount {
		return nil, ErrBorrowerMismatch
	}

	response := &CleanUpResponse{}
	if details.CompletedPaymentRounds < details.PaymentRounds {
		details.CompletedPaymentRounds++
	}
	if details.CompletedPaymentRounds == details.PaymentRounds {
		if _, err := e.transfers.Transfer(details.CollateralAssetID, details.CollateralAssetAmount, borrowerAccount, e.feeSched.CollateralReleaseFee, "Collateral repayment on completed loan"); err != nil {
			return nil, err
		}
		if err := e.state.LoanDelete(payment.LoanKey); err != nil {
			return nil, err
		}
		response.Complete = true
		e.emit(events.LoanClosed{
			LoanKey:            payment.LoanKey,
			Borrower:           borrowerAccount,
			CollateralReturned: details.CollateralAssetAmount,
		})
	} else {
		if err := e.state.LoanPut(payment.LoanKey, details); err != nil {
			return nil, err
		}
	}

	if err := e.state.RepaymentDelete(repaymentKey); err != nil {
		return nil, err
	}
	return response, nil
}

// validateRecipients rejects splits whose percentages sum above 10000 bp.
func validateRecipients(recipients []PaymentRecipient) error {
	total := uint64(0)
	for _, recipient := range recipients {
		total += recipient.Percentage
		if total > fees.BasisPointDenominator {
			return ErrRecipientPercentages
		}
	}
	return nil
}
