package engine

import (
	"errors"
	"fmt"
)

// ErrMoneyOverflow marks arithmetic that would corrupt a monetary total.
// It is terminal: the chain's engine halts rather than committing a wrapped
// value.
var ErrMoneyOverflow = errors.New("monetary overflow")

func addMoney(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, fmt.Errorf("%w: %d + %d", ErrMoneyOverflow, a, b)
	}
	return sum, nil
}

func subMoney(a, b int64) (int64, error) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, fmt.Errorf("%w: %d - %d", ErrMoneyOverflow, a, b)
	}
	return diff, nil
}

func mulMoney(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	prod := a * b
	if prod/b != a {
		return 0, fmt.Errorf("%w: %d * %d", ErrMoneyOverflow, a, b)
	}
	return prod, nil
}
