package eval

import (
	"errors"
	"fmt"

	"github.com/roach88/athena/internal/store"
)

const (
	// DefaultMaxPowersetCard bounds powerset input at 2^16 subsets.
	DefaultMaxPowersetCard = 16

	// DefaultMaxProductSize bounds the number of pairs in a product.
	DefaultMaxProductSize = 1 << 20
)

// Limits bound the cost of the two operators whose output can dwarf
// their input. They are checked before any object is created.
type Limits struct {
	// MaxPowersetCard is the largest operand '^' accepts. Zero means
	// DefaultMaxPowersetCard; values above store.MaxPowersetCard are
	// clamped to it.
	MaxPowersetCard int

	// MaxProductSize is the most pairs '@' may produce. Zero means no
	// limit beyond store.MaxBatchObjects and the store's capacity.
	MaxProductSize int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxPowersetCard: DefaultMaxPowersetCard,
		MaxProductSize:  DefaultMaxProductSize,
	}
}

func (l Limits) checkPowerset(card int) error {
	limit := l.MaxPowersetCard
	if limit <= 0 {
		limit = DefaultMaxPowersetCard
	}
	limit = min(limit, store.MaxPowersetCard)
	if card > limit {
		return &LimitError{Op: "powerset", Size: card, Limit: limit}
	}
	return nil
}

func (l Limits) checkProduct(left, right int) error {
	if l.MaxProductSize <= 0 {
		return nil
	}
	if left != 0 && right > l.MaxProductSize/left {
		return &LimitError{Op: "product", Size: left * right, Limit: l.MaxProductSize}
	}
	return nil
}

// LimitError is returned when an operator would exceed its configured
// bound. The evaluation is abandoned and its scratch objects discarded.
type LimitError struct {
	Op    string // "powerset" or "product"
	Size  int    // operand cardinality for powerset, pair count for product
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s of size %d exceeds limit %d", e.Op, e.Size, e.Limit)
}

// IsLimitError returns true if err is or wraps a LimitError.
func IsLimitError(err error) bool {
	var le *LimitError
	return errors.As(err, &le)
}

// SyntaxError reports malformed expression text.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

// IsSyntaxError returns true if err is or wraps a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

func syntaxErrorf(pos int, format string, args ...any) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
