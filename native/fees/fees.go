// Package fees implements the integer percentage and fee arithmetic shared by
// the pool and loan engines. All percentages entering the engines are
// expressed in basis points (1% = 100 bp, 100% = 10000 bp); there is no
// fractional type anywhere in the accounting path.
package fees

import "math/big"

// BasisPointDenominator is the bp scale: 10000 bp = 100%.
const BasisPointDenominator = 10_000

// TransactionFeeBps is the platform fee charged per fee multiple on escrowed
// transfers: 50 bp (0.5%) per multiple.
const TransactionFeeBps = 50

var basisPoints = big.NewInt(BasisPointDenominator)

// Percentage returns floor(amount * bp / 10000).
//
// This is the canonical truncation order for the whole suite. The historical
// contracts mixed two orderings with different rounding; every call site here
// uses this single formula. Intermediates are computed with big.Int so
// amount * bp cannot overflow.
func Percentage(amount, bp uint64) uint64 {
	if amount == 0 || bp == 0 {
		return 0
	}
	product := new(big.Int).Mul(new(big.Int).SetUint64(amount), new(big.Int).SetUint64(bp))
	product.Quo(product, basisPoints)
	return product.Uint64()
}

// PercentageIncrease returns amount grown by bp basis points, floored.
func PercentageIncrease(amount, bp uint64) uint64 {
	return amount + Percentage(amount, bp)
}

// AmountPlusFee applies the platform transaction fee of 0.5% per multiple.
//
// The amount is scaled up by 10 before the percentage step and the result
// scaled back down afterwards, recovering one extra decimal of precision that
// plain bp arithmetic would truncate away. Both truncation points floor; the
// two-step sequence must stay exactly as written so recorded fee amounts
// reproduce bit for bit.
func AmountPlusFee(amount, multiples uint64) uint64 {
	feeBps := TransactionFeeBps * multiples
	scaled := new(big.Int).Mul(new(big.Int).SetUint64(amount), big.NewInt(10))
	fee := new(big.Int).Mul(scaled, new(big.Int).SetUint64(feeBps))
	fee.Quo(fee, basisPoints)
	total := new(big.Int).Add(scaled, fee)
	total.Quo(total, big.NewInt(10))
	return total.Uint64()
}
