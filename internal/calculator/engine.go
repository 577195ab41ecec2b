// Package calculator implements the desk calculator: an input-accumulation
// state machine over a running text expression, plus the arithmetic parser
// and the result formatter it uses.
//
// STATES:
//
//	ENTERING      building the expression from digits, points, parens, operators
//	RESULT_SHOWN  the last action produced a result; the next digit starts over
//	ERROR         evaluation failed; the result line shows "Error"
//
// Binary operators entered with SetOperator fold strictly left to right:
// "2 + 3 × 4 =" is (2+3)×4 = 20. A whole expression typed in one go
// (SetExpression) is parsed with the usual precedence: "2+3×4" is 14.
//
// An Engine is not safe for concurrent use; each operation runs to
// completion before the next one starts.
package calculator

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sakif/deskkit/internal/apperror"
)

// Mode is the engine's coarse state.
type Mode int

const (
	Entering Mode = iota
	ResultShown
	Error
)

func (m Mode) String() string {
	switch m {
	case Entering:
		return "ENTERING"
	case ResultShown:
		return "RESULT_SHOWN"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name in JSON.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Operator is a binary operator symbol as shown on the keypad.
type Operator string

const (
	Add      Operator = "+"
	Subtract Operator = "−"
	Multiply Operator = "×"
	Divide   Operator = "÷"
	Modulo   Operator = "%"
)

// ErrUnknownKey is returned for input the calculator has no key for.
var ErrUnknownKey = errors.New("calculator: unknown key")

// ParseOperator accepts keypad glyphs and their keyboard forms.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "+":
		return Add, nil
	case "−", "-":
		return Subtract, nil
	case "×", "*":
		return Multiply, nil
	case "÷", "/":
		return Divide, nil
	case "%":
		return Modulo, nil
	default:
		return "", fmt.Errorf("%w: operator %q", ErrUnknownKey, s)
	}
}

// apply performs a binary operation. ÷ by zero is 0; % is the floating
// point remainder of prev by cur.
func (op Operator) apply(prev, cur float64) float64 {
	switch op {
	case Add:
		return prev + cur
	case Subtract:
		return prev - cur
	case Multiply:
		return prev * cur
	case Divide:
		return divide(prev, cur)
	case Modulo:
		return math.Mod(prev, cur)
	default:
		return cur
	}
}

// State is a snapshot of the calculator.
type State struct {
	Expression         string   `json:"expression"`
	PreviousResult     float64  `json:"previousResult"`
	PendingOperator    Operator `json:"pendingOperator,omitempty"`
	AwaitingFreshInput bool     `json:"awaitingFreshInput"`
	Mode               Mode     `json:"mode"`

	// Display is the result line: the expression being typed, the formatted
	// result, or "Error".
	Display string `json:"display"`
	// History is the expression line: "<expression> = <result>" after an
	// evaluation, empty otherwise.
	History string `json:"history"`
}

// Engine holds one calculator's state.
type Engine struct {
	st State
}

// New returns an engine in its initial state.
func New() *Engine {
	e := &Engine{}
	e.Clear()
	return e
}

// State returns a snapshot of the current state.
func (e *Engine) State() State {
	return e.st
}

// ===== ENTRY =====

// AppendDigit adds one digit, or starts a new expression with it when a
// fresh operand is expected.
func (e *Engine) AppendDigit(d rune) error {
	if d < '0' || d > '9' {
		return fmt.Errorf("%w: digit %q", ErrUnknownKey, d)
	}
	if e.st.AwaitingFreshInput {
		e.st.Expression = string(d)
		e.st.AwaitingFreshInput = false
	} else {
		e.st.Expression += string(d)
	}
	e.edited()
	return nil
}

// AppendDecimalPoint adds a decimal point to the operand being typed.
//
// At most one point is allowed per operand, so "1.5+2" still accepts one.
// An operand with no digits yet gets a leading zero.
func (e *Engine) AppendDecimalPoint() {
	switch {
	case e.st.AwaitingFreshInput:
		e.st.Expression = "0."
		e.st.AwaitingFreshInput = false
	default:
		operand := lastOperand(e.st.Expression)
		if strings.Contains(operand, ".") {
			return
		}
		if operand == "" {
			e.st.Expression += "0."
		} else {
			e.st.Expression += "."
		}
	}
	e.edited()
}

// AppendParen adds "(" or ")". An opening paren starts a new expression when
// a fresh operand is expected.
func (e *Engine) AppendParen(open bool) {
	if !open {
		e.st.Expression += ")"
		e.edited()
		return
	}
	if e.st.AwaitingFreshInput {
		e.st.Expression = "("
	} else {
		e.st.Expression += "("
	}
	e.st.AwaitingFreshInput = false
	e.edited()
}

// SetExpression replaces the expression with raw text, e.g. pasted input.
// Only characters the parser understands are accepted.
func (e *Engine) SetExpression(raw string) error {
	for _, r := range raw {
		if !allowedInExpression(r) {
			return apperror.ValidationFailed("expression", fmt.Sprintf("unsupported character %q", r))
		}
	}
	e.st.Expression = raw
	e.st.AwaitingFreshInput = false
	e.edited()
	return nil
}

// ===== OPERATORS =====

// SetOperator records a binary operator.
//
// With an empty expression it does nothing. If an operator is already
// pending and an operand has been typed since, that operation is folded in
// first. The expression's value becomes the left operand and the engine
// waits for the right one.
func (e *Engine) SetOperator(op Operator) error {
	if e.st.Expression == "" {
		return nil
	}

	if e.st.PendingOperator != "" && !e.st.AwaitingFreshInput {
		if err := e.Evaluate(); err != nil {
			return err
		}
	}

	v, err := Evaluate(e.st.Expression)
	if err != nil {
		return e.fail(err)
	}

	e.st.PreviousResult = v
	e.st.PendingOperator = op
	e.st.Expression = ""
	e.st.AwaitingFreshInput = true
	e.st.Mode = Entering
	return nil
}

// Evaluate computes the result.
//
// With an operator pending and an operand typed, the result is
// previous ⟨op⟩ operand. Otherwise the whole expression is parsed. It does
// nothing when there is neither an expression nor a pending operator.
// On failure the engine enters ERROR, clears the expression and returns an
// apperror EvaluationFailed error.
func (e *Engine) Evaluate() error {
	if e.st.Expression == "" && e.st.PendingOperator == "" {
		return nil
	}

	var (
		result float64
		err    error
	)
	if e.st.PendingOperator != "" && e.st.Expression != "" {
		var cur float64
		cur, err = Evaluate(e.st.Expression)
		if err == nil {
			result = e.st.PendingOperator.apply(e.st.PreviousResult, cur)
		}
	} else {
		result, err = Evaluate(e.st.Expression)
	}
	if err != nil {
		return e.fail(err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return e.fail(apperror.EvaluationFailed(e.st.Expression, errNotFinite))
	}

	formatted := FormatResult(result)
	e.st.PreviousResult = result
	e.st.History = e.st.Expression + " = " + formatted
	e.st.Display = formatted
	e.st.Expression = numberString(result)
	e.st.PendingOperator = ""
	e.st.AwaitingFreshInput = true
	e.st.Mode = ResultShown
	return nil
}

// ===== IMMEDIATE FUNCTIONS =====

// SquareRoot replaces the expression with the square root of its value and
// shows it as a result. Negative values are an evaluation error. An empty
// expression is left alone.
func (e *Engine) SquareRoot() error {
	if e.st.Expression == "" {
		return nil
	}

	v, err := Evaluate(e.st.Expression)
	if err != nil {
		return e.fail(err)
	}
	if v < 0 {
		return e.fail(apperror.EvaluationFailed("√("+e.st.Expression+")", errNotFinite))
	}

	r := math.Sqrt(v)
	formatted := FormatResult(r)
	e.st.History = "√(" + e.st.Expression + ") = " + formatted
	e.st.Display = formatted
	e.st.Expression = numberString(r)
	e.st.AwaitingFreshInput = true
	e.st.Mode = ResultShown
	return nil
}

// Negate flips the sign of the expression's value. The fresh-input flag is
// kept, so negating a shown result and then typing still starts over.
func (e *Engine) Negate() error {
	if e.st.Expression == "" {
		return nil
	}

	v, err := Evaluate(e.st.Expression)
	if err != nil {
		return e.fail(err)
	}

	e.st.Expression = numberString(-v)
	e.st.Display = e.st.Expression
	if e.st.Mode == Error {
		e.st.Mode = Entering
	}
	return nil
}

// Recall ("ans") puts the previous result into the expression.
func (e *Engine) Recall() {
	e.st.Expression = numberString(e.st.PreviousResult)
	e.st.AwaitingFreshInput = true
	e.edited()
}

// Backspace removes the last character of the expression.
func (e *Engine) Backspace() {
	if e.st.Expression == "" {
		return
	}
	_, size := utf8.DecodeLastRuneInString(e.st.Expression)
	e.st.Expression = e.st.Expression[:len(e.st.Expression)-size]
	e.edited()
}

// Clear resets everything to the initial state.
func (e *Engine) Clear() {
	e.st = State{Mode: Entering, Display: "0"}
}

// ===== INTERNAL =====

// edited refreshes the result line after the expression changed by hand.
func (e *Engine) edited() {
	e.st.Mode = Entering
	e.st.Display = e.st.Expression
	if e.st.Display == "" {
		e.st.Display = "0"
	}
}

// fail moves to ERROR. The pending operator and previous result survive.
func (e *Engine) fail(err error) error {
	expr := e.st.Expression
	e.st.Mode = Error
	e.st.Display = "Error"
	e.st.Expression = ""

	if errors.Is(err, apperror.ErrEvaluation) {
		return err
	}
	return apperror.EvaluationFailed(expr, err)
}

// lastOperand returns the trailing run of digits and points.
func lastOperand(expr string) string {
	i := len(expr)
	for i > 0 && (isDigit(expr[i-1]) || expr[i-1] == '.') {
		i--
	}
	return expr[i:]
}

func allowedInExpression(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case strings.ContainsRune(".+-−*×/÷()√eE ", r):
		return true
	}
	return false
}
