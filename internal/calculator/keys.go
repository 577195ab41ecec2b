package calculator

import (
	"errors"
	"fmt"

	"github.com/sakif/deskkit/internal/apperror"
)

// Press applies one key by its keypad label or keyboard name.
//
//	0-9 .            digits and the decimal point
//	+ - − * × / ÷ %  binary operators
//	( )              parentheses
//	= Enter          evaluate
//	del Backspace    delete the last character
//	clear Escape C   clear
//	ans √ ±          recall, square root, negate
func (e *Engine) Press(key string) error {
	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
		return e.AppendDigit(rune(key[0]))
	}

	switch key {
	case ".":
		e.AppendDecimalPoint()
	case "(":
		e.AppendParen(true)
	case ")":
		e.AppendParen(false)
	case "=", "Enter":
		return e.Evaluate()
	case "del", "Backspace":
		e.Backspace()
	case "clear", "Escape", "C":
		e.Clear()
	case "ans":
		e.Recall()
	case "√":
		return e.SquareRoot()
	case "±":
		return e.Negate()
	default:
		op, err := ParseOperator(key)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
		return e.SetOperator(op)
	}
	return nil
}

// PressAll applies keys in order and stops at the first unknown key.
// Evaluation errors do not stop the sequence: the engine records them in its
// state, as a person pressing on after "Error" would.
func (e *Engine) PressAll(keys []string) error {
	for _, k := range keys {
		if err := e.Press(k); err != nil && !isEvaluationError(err) {
			return err
		}
	}
	return nil
}

func isEvaluationError(err error) bool {
	return errors.Is(err, apperror.ErrEvaluation)
}
