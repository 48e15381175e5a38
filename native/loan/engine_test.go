package loan

import (
	"errors"
	"testing"

	"zaibatsu/core/types"
	"zaibatsu/native/assets"
	"zaibatsu/native/oracle"
)

type mockEngineState struct {
	loans      map[string]*Details
	repayments map[string]*PendingRoundPayment
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		loans:      make(map[string]*Details),
		repayments: make(map[string]*PendingRoundPayment),
	}
}

func (m *mockEngineState) LoanGet(key string) (*Details, bool, error) {
	details, ok := m.loans[key]
	if !ok {
		return nil, false, nil
	}
	return details.Copy(), true, nil
}

func (m *mockEngineState) LoanPut(key string, details *Details) error {
	m.loans[key] = details.Copy()
	return nil
}

func (m *mockEngineState) LoanDelete(key string) error {
	delete(m.loans, key)
	return nil
}

func (m *mockEngineState) RepaymentGet(key string) (*PendingRoundPayment, bool, error) {
	payment, ok := m.repayments[key]
	if !ok {
		return nil, false, nil
	}
	return payment.Copy(), true, nil
}

func (m *mockEngineState) RepaymentPut(key string, payment *PendingRoundPayment) error {
	m.repayments[key] = payment.Copy()
	return nil
}

func (m *mockEngineState) RepaymentDelete(key string) error {
	delete(m.repayments, key)
	return nil
}

func addr(last byte) [20]byte {
	var a [20]byte
	a[19] = last
	return a
}

const (
	principalAsset  = uint64(100)
	collateralAsset = uint64(200)
	collateralPrice = uint64(2)

	testNow = int64(1_700_000_000)
)

var (
	escrowAddr   = addr(0xE0)
	borrowerAddr = addr(0x01)
	lenderAddr   = addr(0x02)
)

func newTestEngine(t *testing.T) (*Engine, *mockEngineState, *assets.Ledger) {
	t.Helper()
	state := newMockEngineState()
	ledger := assets.NewLedger(escrowAddr)
	feed := oracle.NewManualFeed()
	feed.Set(collateralAsset, collateralPrice)

	engine := NewEngine(escrowAddr)
	engine.SetState(state)
	engine.SetGateways(ledger, ledger)
	engine.SetPriceFeed(feed)
	engine.SetNowFunc(func() int64 { return testNow })
	return engine, state, ledger
}

func p2pDetails() *Details {
	return &Details{
		LoanType:                   TypeP2P,
		Tenure:                     12,
		PrincipalAssetID:           principalAsset,
		CollateralAssetID:          collateralAsset,
		InterestAssetAmount:        4_000,
		PrincipalAssetAmount:       20_000,
		CollateralAssetAmount:      10_000,
		PaymentRounds:              2,
		PaymentCompletionTimestamp: uint64(testNow) + 86_400,
		PaymentRecipients: []PaymentRecipient{
			{Percentage: 10_000, Address: lenderAddr},
		},
		Borrower: borrowerAddr,
	}
}

func collateralTxn(amount uint64) types.AssetTransferTxn {
	return types.AssetTransferTxn{
		ID:       "txn-collateral",
		Sender:   borrowerAddr,
		Receiver: escrowAddr,
		AssetID:  collateralAsset,
		Amount:   amount,
	}
}

func principalTxn(amount uint64) types.AssetTransferTxn {
	return types.AssetTransferTxn{
		ID:       "txn-principal",
		Sender:   lenderAddr,
		Receiver: escrowAddr,
		AssetID:  principalAsset,
		Amount:   amount,
	}
}

func completionArgs() CompletionArgs {
	return CompletionArgs{
		LoanUnitName:        "ZL1",
		LenderNFTImageURL:   "ipfs://lender",
		BorrowerNFTImageURL: "ipfs://borrower",
		LoanHash:            "deadbeef",
	}
}

// initiateP2P runs a valid InitiateLoanPurchase and returns the stored record.
func initiateP2P(t *testing.T, engine *Engine) *Details {
	t.Helper()
	// 10000 collateral + 0.5% fee = 10050.
	stored, err := engine.InitiateLoanPurchase("loan-1", p2pDetails(), collateralTxn(10_050))
	if err != nil {
		t.Fatalf("initiate purchase: %v", err)
	}
	return stored
}

func completeP2P(t *testing.T, engine *Engine, ledger *assets.Ledger) *Details {
	t.Helper()
	ledger.Seed(principalAsset, escrowAddr, 100_000)
	// 20000 principal + 0.5% fee = 20100.
	details, err := engine.CompleteP2PLoanPurchase("loan-1", completionArgs(), principalAsset, borrowerAddr, principalTxn(20_100))
	if err != nil {
		t.Fatalf("complete purchase: %v", err)
	}
	return details
}

func TestInitiateLoanPurchase(t *testing.T) {
	engine, state, _ := newTestEngine(t)

	stored := initiateP2P(t, engine)
	if !stored.CollateralPaid {
		t.Fatalf("collateral not marked paid")
	}
	if stored.PrincipalPaid {
		t.Fatalf("principal must not be paid at initiation")
	}
	if stored.LoanKey != "loan-1" {
		t.Fatalf("loan key = %q", stored.LoanKey)
	}
	if _, exists, _ := state.LoanGet("loan-1"); !exists {
		t.Fatalf("loan record not persisted")
	}
}

func TestInitiateLoanPurchaseValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(details *Details, txn *types.AssetTransferTxn)
		wantErr error
	}{
		{
			name:    "wrong receiver",
			mutate:  func(_ *Details, txn *types.AssetTransferTxn) { txn.Receiver = addr(0x55) },
			wantErr: ErrWrongReceiver,
		},
		{
			name:    "invalid loan type",
			mutate:  func(details *Details, _ *types.AssetTransferTxn) { details.LoanType = Type("MARGIN") },
			wantErr: ErrInvalidLoanType,
		},
		{
			name: "p2p with two recipients",
			mutate: func(details *Details, _ *types.AssetTransferTxn) {
				details.PaymentRecipients = append(details.PaymentRecipients,
					PaymentRecipient{Percentage: 1, Address: addr(0x03)})
			},
			wantErr: ErrTooManyRecipients,
		},
		{
			name:    "collateral already paid",
			mutate:  func(details *Details, _ *types.AssetTransferTxn) { details.CollateralPaid = true },
			wantErr: ErrCollateralPaid,
		},
		{
			name:    "principal already paid",
			mutate:  func(details *Details, _ *types.AssetTransferTxn) { details.PrincipalPaid = true },
			wantErr: ErrPrincipalPaid,
		},
		{
			name:    "borrower mismatch",
			mutate:  func(_ *Details, txn *types.AssetTransferTxn) { txn.Sender = addr(0x77) },
			wantErr: ErrBorrowerMismatch,
		},
		{
			name: "asset mismatch",
			mutate: func(details *Details, _ *types.AssetTransferTxn) {
				details.CollateralAssetID = collateralAsset + 1
			},
			wantErr: ErrAssetMismatch,
		},
		{
			name:    "insufficient amount",
			mutate:  func(_ *Details, txn *types.AssetTransferTxn) { txn.Amount = 10_049 },
			wantErr: ErrInsufficientAmount,
		},
		{
			name: "completion timestamp not in the future",
			mutate: func(details *Details, _ *types.AssetTransferTxn) {
				details.PaymentCompletionTimestamp = uint64(testNow)
			},
			wantErr: ErrTimestampNotFuture,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, state, _ := newTestEngine(t)
			details := p2pDetails()
			txn := collateralTxn(10_050)
			tc.mutate(details, &txn)
			if _, err := engine.InitiateLoanPurchase("loan-1", details, txn); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if _, exists, _ := state.LoanGet("loan-1"); exists {
				t.Fatalf("failed initiation must not persist a record")
			}
		})
	}
}

func TestInitiateLoanPurchaseDuplicateKey(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	initiateP2P(t, engine)
	if _, err := engine.InitiateLoanPurchase("loan-1", p2pDetails(), collateralTxn(10_050)); !errors.Is(err, ErrDuplicateLoanKey) {
		t.Fatalf("expected ErrDuplicateLoanKey, got %v", err)
	}
}

func TestInitiateLoanPurchaseWorthlessCollateral(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	details := p2pDetails()
	details.CollateralAssetID = 999
	txn := collateralTxn(10_050)
	txn.AssetID = 999
	if _, err := engine.InitiateLoanPurchase("loan-1", details, txn); !errors.Is(err, oracle.ErrUnsupportedAsset) {
		t.Fatalf("expected ErrUnsupportedAsset, got %v", err)
	}

	// A listed asset priced at zero is rejected the same way.
	state := newMockEngineState()
	ledger := assets.NewLedger(escrowAddr)
	feed := oracle.NewManualFeed()
	feed.Set(collateralAsset, 0)
	zeroPriced := NewEngine(escrowAddr)
	zeroPriced.SetState(state)
	zeroPriced.SetGateways(ledger, ledger)
	zeroPriced.SetPriceFeed(feed)
	zeroPriced.SetNowFunc(func() int64 { return testNow })
	if _, err := zeroPriced.InitiateLoanPurchase("loan-1", p2pDetails(), collateralTxn(10_050)); !errors.Is(err, oracle.ErrUnsupportedAsset) {
		t.Fatalf("expected ErrUnsupportedAsset for zero price, got %v", err)
	}
}

func TestCompleteP2PLoanPurchase(t *testing.T) {
	engine, state, ledger := newTestEngine(t)
	initiateP2P(t, engine)
	details := completeP2P(t, engine, ledger)

	if !details.PrincipalPaid {
		t.Fatalf("principal not marked paid")
	}
	if details.CompletedPaymentRounds != 0 {
		t.Fatalf("completed rounds = %d, want 0", details.CompletedPaymentRounds)
	}
	if ledger.Balance(principalAsset, borrowerAddr) != 20_000 {
		t.Fatalf("borrower principal balance = %d, want 20000", ledger.Balance(principalAsset, borrowerAddr))
	}

	borrowerNFT, ok := ledger.AssetInfo(details.BorrowerNFTAssetID)
	if !ok || borrowerNFT.Total != 1 || borrowerNFT.UnitName != "BZL1" || borrowerNFT.AssetName != "#B-ZL1" {
		t.Fatalf("unexpected borrower NFT %+v", borrowerNFT)
	}
	lenderNFT, ok := ledger.AssetInfo(details.LenderNFTAssetID)
	if !ok || lenderNFT.Total != 1 || lenderNFT.UnitName != "LZL1" || lenderNFT.AssetName != "#L-ZL1" {
		t.Fatalf("unexpected lender NFT %+v", lenderNFT)
	}
	if borrowerNFT.MetadataHash != lenderNFT.MetadataHash {
		t.Fatalf("position NFTs must share the loan hash")
	}

	stored, _, _ := state.LoanGet("loan-1")
	if !stored.PrincipalPaid || stored.BorrowerNFTAssetID == 0 || stored.LenderNFTAssetID == 0 {
		t.Fatalf("completion not persisted: %+v", stored)
	}
}

func TestCompleteLoanPurchaseOrdering(t *testing.T) {
	engine, state, ledger := newTestEngine(t)

	// No record yet.
	if _, err := engine.CompleteP2PLoanPurchase("loan-1", completionArgs(), principalAsset, borrowerAddr, principalTxn(20_100)); !errors.Is(err, ErrLoanNotFound) {
		t.Fatalf("expected ErrLoanNotFound, got %v", err)
	}

	// Record present but collateral never escrowed.
	unpaid := p2pDetails()
	if err := state.LoanPut("loan-1", unpaid); err != nil {
		t.Fatalf("seed loan: %v", err)
	}
	if _, err := engine.CompleteP2PLoanPurchase("loan-1", completionArgs(), principalAsset, borrowerAddr, principalTxn(20_100)); !errors.Is(err, ErrCollateralNotPaid) {
		t.Fatalf("expected ErrCollateralNotPaid, got %v", err)
	}

	if err := state.LoanDelete("loan-1"); err != nil {
		t.Fatalf("reset loan: %v", err)
	}
	initiateP2P(t, engine)
	completeP2P(t, engine, ledger)

	// Second completion must fail.
	if _, err := engine.CompleteP2PLoanPurchase("loan-1", completionArgs(), principalAsset, borrowerAddr, principalTxn(20_100)); !errors.Is(err, ErrPrincipalPaid) {
		t.Fatalf("expected ErrPrincipalPaid, got %v", err)
	}
}

func TestCompleteP2PLoanPurchaseValidation(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	initiateP2P(t, engine)
	ledger.Seed(principalAsset, escrowAddr, 100_000)

	badReceiver := principalTxn(20_100)
	badReceiver.Receiver = addr(0x55)
	if _, err := engine.CompleteP2PLoanPurchase("loan-1", completionArgs(), principalAsset, borrowerAddr, badReceiver); !errors.Is(err, ErrWrongReceiver) {
		t.Fatalf("expected ErrWrongReceiver, got %v", err)
	}
	if _, err := engine.CompleteP2PLoanPurchase("loan-1", completionArgs(), principalAsset, addr(0x77), principalTxn(20_100)); !errors.Is(err, ErrBorrowerMismatch) {
		t.Fatalf("expected ErrBorrowerMismatch, got %v", err)
	}
	if _, err := engine.CompleteP2PLoanPurchase("loan-1", completionArgs(), principalAsset+1, borrowerAddr, principalTxn(20_100)); !errors.Is(err, ErrAssetMismatch) {
		t.Fatalf("expected ErrAssetMismatch, got %v", err)
	}
	badAsset := principalTxn(20_100)
	badAsset.AssetID = principalAsset + 1
	if _, err := engine.CompleteP2PLoanPurchase("loan-1", completionArgs(), principalAsset, borrowerAddr, badAsset); !errors.Is(err, ErrAssetMismatch) {
		t.Fatalf("expected ErrAssetMismatch for txn asset, got %v", err)
	}
	if _, err := engine.CompleteP2PLoanPurchase("loan-1", completionArgs(), principalAsset, borrowerAddr, principalTxn(20_099)); !errors.Is(err, ErrInsufficientAmount) {
		t.Fatalf("expected ErrInsufficientAmount, got %v", err)
	}
}

func TestCompleteNonP2PLoanPurchase(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	details := p2pDetails()
	details.LoanType = TypeDAO
	details.PaymentRecipients = []PaymentRecipient{
		{Percentage: 6_000, Address: lenderAddr},
		{Percentage: 4_000, Address: addr(0x03)},
	}
	if _, err := engine.InitiateLoanPurchase("loan-dao", details, collateralTxn(10_050)); err != nil {
		t.Fatalf("initiate purchase: %v", err)
	}
	ledger.Seed(principalAsset, escrowAddr, 100_000)

	completed, err := engine.CompleteNonP2PLoanPurchase("loan-dao", completionArgs(), principalAsset, borrowerAddr)
	if err != nil {
		t.Fatalf("complete purchase: %v", err)
	}
	if !completed.PrincipalPaid {
		t.Fatalf("principal not marked paid")
	}
	if ledger.Balance(principalAsset, borrowerAddr) != 20_000 {
		t.Fatalf("borrower principal balance = %d, want 20000", ledger.Balance(principalAsset, borrowerAddr))
	}
}

func activeLoan(t *testing.T, engine *Engine, ledger *assets.Ledger) {
	t.Helper()
	initiateP2P(t, engine)
	completeP2P(t, engine, ledger)
	// The collateral escrowed at initiation, held for release at cleanup.
	ledger.Seed(collateralAsset, escrowAddr, 10_050)
}

func repaymentTxn(amount uint64) types.AssetTransferTxn {
	return types.AssetTransferTxn{
		ID:       "txn-repay",
		Sender:   borrowerAddr,
		Receiver: escrowAddr,
		AssetID:  principalAsset,
		Amount:   amount,
	}
}

func TestInitiateLoanRepayment(t *testing.T) {
	engine, state, ledger := newTestEngine(t)
	activeLoan(t, engine, ledger)

	// (20000 + 4000) / 2 rounds = 12000 per round; one recipient so one fee
	// multiple: 12000 + 0.5% = 12060.
	payment, err := engine.InitiateLoanRepayment("loan-1", "repay-1", repaymentTxn(12_060))
	if err != nil {
		t.Fatalf("initiate repayment: %v", err)
	}
	if payment.RepaymentAmount != 12_000 {
		t.Fatalf("repayment amount = %d, want 12000", payment.RepaymentAmount)
	}
	if payment.PercentagePaid != 0 {
		t.Fatalf("fresh round must start at 0%%, got %d", payment.PercentagePaid)
	}
	if len(payment.Recipients) != 1 || payment.Recipients[0].Address != lenderAddr {
		t.Fatalf("recipient snapshot wrong: %+v", payment.Recipients)
	}
	if _, exists, _ := state.RepaymentGet("repay-1"); !exists {
		t.Fatalf("repayment record not persisted")
	}

	if _, err := engine.InitiateLoanRepayment("loan-1", "repay-1", repaymentTxn(12_060)); !errors.Is(err, ErrDuplicateRepayment) {
		t.Fatalf("expected ErrDuplicateRepayment, got %v", err)
	}
	if _, err := engine.InitiateLoanRepayment("loan-1", "repay-2", repaymentTxn(12_059)); !errors.Is(err, ErrInsufficientAmount) {
		t.Fatalf("expected ErrInsufficientAmount, got %v", err)
	}
	if _, err := engine.InitiateLoanRepayment("loan-missing", "repay-3", repaymentTxn(12_060)); !errors.Is(err, ErrLoanNotFound) {
		t.Fatalf("expected ErrLoanNotFound, got %v", err)
	}
}

func TestExecuteLoanRepaymentSingleRecipient(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	activeLoan(t, engine, ledger)
	if _, err := engine.InitiateLoanRepayment("loan-1", "repay-1", repaymentTxn(12_060)); err != nil {
		t.Fatalf("initiate repayment: %v", err)
	}

	before := ledger.Balance(principalAsset, lenderAddr)
	resp, err := engine.ExecuteLoanRepayment("repay-1", lenderAddr, PaymentRecipient{Percentage: 10_000, Address: lenderAddr}, principalAsset)
	if err != nil {
		t.Fatalf("execute repayment: %v", err)
	}
	if !resp.Complete || resp.PercentagePaid != 10_000 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got := ledger.Balance(principalAsset, lenderAddr) - before; got != 12_000 {
		t.Fatalf("lender received %d, want 12000", got)
	}
}

func TestExecuteLoanRepaymentSplitConservesAmount(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	details := p2pDetails()
	details.LoanType = TypeDAO
	recipientB := addr(0x03)
	details.PaymentRecipients = []PaymentRecipient{
		{Percentage: 6_000, Address: lenderAddr},
		{Percentage: 4_000, Address: recipientB},
	}
	if _, err := engine.InitiateLoanPurchase("loan-dao", details, collateralTxn(10_050)); err != nil {
		t.Fatalf("initiate purchase: %v", err)
	}
	ledger.Seed(principalAsset, escrowAddr, 100_000)
	if _, err := engine.CompleteNonP2PLoanPurchase("loan-dao", completionArgs(), principalAsset, borrowerAddr); err != nil {
		t.Fatalf("complete purchase: %v", err)
	}
	// Two recipients, two fee multiples: 12000 + 1% = 12120.
	if _, err := engine.InitiateLoanRepayment("loan-dao", "repay-1", repaymentTxn(12_120)); err != nil {
		t.Fatalf("initiate repayment: %v", err)
	}

	resp, err := engine.ExecuteLoanRepayment("repay-1", lenderAddr, PaymentRecipient{Percentage: 6_000, Address: lenderAddr}, principalAsset)
	if err != nil {
		t.Fatalf("execute first claim: %v", err)
	}
	if resp.Complete || resp.PercentagePaid != 6_000 {
		t.Fatalf("unexpected response after first claim %+v", resp)
	}
	resp, err = engine.ExecuteLoanRepayment("repay-1", recipientB, PaymentRecipient{Percentage: 4_000, Address: recipientB}, principalAsset)
	if err != nil {
		t.Fatalf("execute second claim: %v", err)
	}
	if !resp.Complete || resp.PercentagePaid != 10_000 {
		t.Fatalf("unexpected response after second claim %+v", resp)
	}

	// 60% and 40% of 12000 must add back up to the full round amount.
	lenderGot := ledger.Balance(principalAsset, lenderAddr)
	otherGot := ledger.Balance(principalAsset, recipientB)
	if lenderGot != 7_200 || otherGot != 4_800 {
		t.Fatalf("shares = %d/%d, want 7200/4800", lenderGot, otherGot)
	}

	// A repeat of the second claim would exceed 100%.
	if _, err := engine.ExecuteLoanRepayment("repay-1", recipientB, PaymentRecipient{Percentage: 4_000, Address: recipientB}, principalAsset); !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}
}

func TestExecuteLoanRepaymentValidation(t *testing.T) {
	engine, state, ledger := newTestEngine(t)
	activeLoan(t, engine, ledger)
	if _, err := engine.InitiateLoanRepayment("loan-1", "repay-1", repaymentTxn(12_060)); err != nil {
		t.Fatalf("initiate repayment: %v", err)
	}
	lenderBefore := ledger.Balance(principalAsset, lenderAddr)

	if _, err := engine.ExecuteLoanRepayment("repay-missing", lenderAddr, PaymentRecipient{Percentage: 10_000, Address: lenderAddr}, principalAsset); !errors.Is(err, ErrRepaymentNotFound) {
		t.Fatalf("expected ErrRepaymentNotFound, got %v", err)
	}
	if _, err := engine.ExecuteLoanRepayment("repay-1", addr(0x77), PaymentRecipient{Percentage: 10_000, Address: lenderAddr}, principalAsset); !errors.Is(err, ErrRecipientMismatch) {
		t.Fatalf("expected ErrRecipientMismatch, got %v", err)
	}
	if _, err := engine.ExecuteLoanRepayment("repay-1", lenderAddr, PaymentRecipient{Percentage: 10_000, Address: lenderAddr}, principalAsset+1); !errors.Is(err, ErrAssetMismatch) {
		t.Fatalf("expected ErrAssetMismatch, got %v", err)
	}
	stranger := addr(0x88)
	if _, err := engine.ExecuteLoanRepayment("repay-1", stranger, PaymentRecipient{Percentage: 10_000, Address: stranger}, principalAsset); !errors.Is(err, ErrUnknownRecipient) {
		t.Fatalf("expected ErrUnknownRecipient, got %v", err)
	}
	if _, err := engine.ExecuteLoanRepayment("repay-1", lenderAddr, PaymentRecipient{Percentage: 9_999, Address: lenderAddr}, principalAsset); !errors.Is(err, ErrPercentageMismatch) {
		t.Fatalf("expected ErrPercentageMismatch, got %v", err)
	}

	// None of the failed claims may move funds or the paid percentage.
	if got := ledger.Balance(principalAsset, lenderAddr); got != lenderBefore {
		t.Fatalf("failed claims moved funds: %d -> %d", lenderBefore, got)
	}
	payment, _, _ := state.RepaymentGet("repay-1")
	if payment.PercentagePaid != 0 {
		t.Fatalf("failed claims mutated the round: %d%%", payment.PercentagePaid)
	}
}

func TestCleanUpLoanRepaymentIntermediateRound(t *testing.T) {
	engine, state, ledger := newTestEngine(t)
	activeLoan(t, engine, ledger)
	if _, err := engine.InitiateLoanRepayment("loan-1", "repay-1", repaymentTxn(12_060)); err != nil {
		t.Fatalf("initiate repayment: %v", err)
	}
	if _, err := engine.ExecuteLoanRepayment("repay-1", lenderAddr, PaymentRecipient{Percentage: 10_000, Address: lenderAddr}, principalAsset); err != nil {
		t.Fatalf("execute repayment: %v", err)
	}

	resp, err := engine.CleanUpLoanRepayment("repay-1", borrowerAddr)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if resp.Complete {
		t.Fatalf("first of two rounds must not complete the loan")
	}
	if _, exists, _ := state.RepaymentGet("repay-1"); exists {
		t.Fatalf("repayment record must be deleted")
	}
	details, exists, _ := state.LoanGet("loan-1")
	if !exists {
		t.Fatalf("loan record must survive an intermediate round")
	}
	if details.CompletedPaymentRounds != 1 {
		t.Fatalf("completed rounds = %d, want 1", details.CompletedPaymentRounds)
	}
}

func TestCleanUpLoanRepaymentFinalRoundReleasesCollateral(t *testing.T) {
	engine, state, ledger := newTestEngine(t)
	activeLoan(t, engine, ledger)

	for round, key := range []string{"repay-1", "repay-2"} {
		if _, err := engine.InitiateLoanRepayment("loan-1", key, repaymentTxn(12_060)); err != nil {
			t.Fatalf("initiate round %d: %v", round, err)
		}
		if _, err := engine.ExecuteLoanRepayment(key, lenderAddr, PaymentRecipient{Percentage: 10_000, Address: lenderAddr}, principalAsset); err != nil {
			t.Fatalf("execute round %d: %v", round, err)
		}
		resp, err := engine.CleanUpLoanRepayment(key, borrowerAddr)
		if err != nil {
			t.Fatalf("cleanup round %d: %v", round, err)
		}
		if want := round == 1; resp.Complete != want {
			t.Fatalf("round %d complete = %v, want %v", round, resp.Complete, want)
		}
	}

	if _, exists, _ := state.LoanGet("loan-1"); exists {
		t.Fatalf("loan record must be deleted after the final round")
	}
	if _, exists, _ := state.RepaymentGet("repay-2"); exists {
		t.Fatalf("repayment record must be deleted after the final round")
	}
	// The exact escrowed collateral amount returns to the borrower.
	if got := ledger.Balance(collateralAsset, borrowerAddr); got != 10_000 {
		t.Fatalf("collateral returned = %d, want 10000", got)
	}
}

func TestCleanUpLoanRepaymentValidation(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	activeLoan(t, engine, ledger)
	if _, err := engine.InitiateLoanRepayment("loan-1", "repay-1", repaymentTxn(12_060)); err != nil {
		t.Fatalf("initiate repayment: %v", err)
	}

	if _, err := engine.CleanUpLoanRepayment("repay-missing", borrowerAddr); !errors.Is(err, ErrRepaymentNotFound) {
		t.Fatalf("expected ErrRepaymentNotFound, got %v", err)
	}
	if _, err := engine.CleanUpLoanRepayment("repay-1", addr(0x77)); !errors.Is(err, ErrBorrowerMismatch) {
		t.Fatalf("expected ErrBorrowerMismatch, got %v", err)
	}
}
