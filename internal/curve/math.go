package curve

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrUnderflow      = errors.New("arithmetic underflow")
	ErrDivisionByZero = errors.New("division by zero")
)

// MulDivFloor returns floor(a*b/d) with a 256-bit intermediate.
func MulDivFloor(a, b, d uint64) (uint64, error) {
	return mulDiv(a, b, d, false)
}

// MulDivCeil returns ceil(a*b/d) with a 256-bit intermediate.
func MulDivCeil(a, b, d uint64) (uint64, error) {
	return mulDiv(a, b, d, true)
}

func mulDiv(a, b, d uint64, roundUp bool) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	rem := new(uint256.Int)
	q, _ := new(uint256.Int).DivMod(product, uint256.NewInt(d), rem)
	if roundUp && !rem.IsZero() {
		q.AddUint64(q, 1)
	}
	if !q.IsUint64() {
		return 0, ErrOverflow
	}
	return q.Uint64(), nil
}

// Product returns a*b as a 256-bit integer.
func Product(a, b uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
}

// SqrtProduct returns floor(sqrt(a*b)).
func SqrtProduct(a, b uint64) uint64 {
	root := new(uint256.Int).Sqrt(Product(a, b))
	return root.Uint64()
}

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Pow10 returns 10^n as a 256-bit integer. n above 77 does not fit.
func Pow10(n uint8) (*uint256.Int, error) {
	if n > 77 {
		return nil, ErrOverflow
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n))), nil
}
