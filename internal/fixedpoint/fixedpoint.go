// Package fixedpoint provides the integer multiply/divide helpers every
// pricing formula is built on.
//
// The rounding policy is truncation toward zero (round-down for
// non-negative operands), matching the contract's integer semantics.
// Results must be bit-for-bit reproducible, so no floating-point type
// appears anywhere in this package or its callers. Intermediates go
// through big.Int to rule out int64 overflow on a*b.
package fixedpoint

import (
	"errors"
	"math/big"
	"sync"
)

var (
	// ErrDivisionByZero is returned when the divisor is zero.
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")

	// ErrOverflow is returned when a quotient does not fit in int64.
	ErrOverflow = errors.New("fixedpoint: result overflows int64")
)

// bigPool recycles big.Int intermediates across quote computations.
var bigPool = sync.Pool{
	New: func() any { return new(big.Int) },
}

func getBig() *big.Int  { return bigPool.Get().(*big.Int) }
func putBig(v *big.Int) { v.SetInt64(0); bigPool.Put(v) }

// MulDiv returns trunc(a*b/den), truncating toward zero. The product a*b
// is computed in big.Int so it cannot overflow; only the final quotient
// must fit in int64.
func MulDiv(a, b, den int64) (int64, error) {
	if den == 0 {
		return 0, ErrDivisionByZero
	}

	prod := getBig()
	defer putBig(prod)
	d := getBig()
	defer putBig(d)

	prod.SetInt64(a)
	d.SetInt64(b)
	prod.Mul(prod, d)

	// Quo truncates toward zero, which is exactly the policy we want;
	// Div would floor toward negative infinity instead.
	d.SetInt64(den)
	prod.Quo(prod, d)

	if !prod.IsInt64() {
		return 0, ErrOverflow
	}
	return prod.Int64(), nil
}

// Div returns trunc(a/b), truncating toward zero.
func Div(a, b int64) (int64, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	// Go's integer division already truncates toward zero.
	return a / b, nil
}
