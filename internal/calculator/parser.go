package calculator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/deskkit/internal/apperror"
)

// ErrParse is wrapped by every syntax error the parser reports.
var ErrParse = errors.New("parse error")

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokNumber
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokSqrt
	tokLParen
	tokRParen
	tokInvalid
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

// lexer splits an expression into tokens. Both the keypad glyphs (− × ÷ √)
// and their ASCII forms (- * /) are accepted.
type lexer struct {
	s string
	i int
}

func (l *lexer) next() token {
	for l.i < len(l.s) {
		r, size := utf8.DecodeRuneInString(l.s[l.i:])
		if !unicode.IsSpace(r) {
			break
		}
		l.i += size
	}
	if l.i >= len(l.s) {
		return token{kind: tokEOF}
	}

	r, size := utf8.DecodeRuneInString(l.s[l.i:])
	switch r {
	case '+':
		l.i += size
		return token{kind: tokPlus, text: "+"}
	case '-', '−':
		l.i += size
		return token{kind: tokMinus, text: "−"}
	case '*', '×':
		l.i += size
		return token{kind: tokStar, text: "×"}
	case '/', '÷':
		l.i += size
		return token{kind: tokSlash, text: "÷"}
	case '√':
		l.i += size
		return token{kind: tokSqrt, text: "√"}
	case '(':
		l.i += size
		return token{kind: tokLParen, text: "("}
	case ')':
		l.i += size
		return token{kind: tokRParen, text: ")"}
	}

	if r == '.' || unicode.IsDigit(r) {
		start := l.i
		l.i = scanNumber(l.s, l.i)
		txt := l.s[start:l.i]
		f, err := strconv.ParseFloat(txt, 64)
		if err != nil {
			return token{kind: tokInvalid, text: txt}
		}
		return token{kind: tokNumber, text: txt, num: f}
	}

	l.i += size
	return token{kind: tokInvalid, text: string(r)}
}

// scanNumber returns the end of the numeric literal starting at i:
// digits, an optional fraction and an optional exponent ("1.5e-7").
func scanNumber(s string, i int) int {
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			i = k
		}
	}
	return i
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// parser is a recursive-descent evaluator:
//
//	sum     = product { ("+" | "−") product }
//	product = unary { ("×" | "÷") unary }
//	unary   = ("+" | "−" | "√") unary | primary
//	primary = number | "(" sum ")"
//
// It computes the value while parsing; there is no tree.
type parser struct {
	l   lexer
	cur token
}

func (p *parser) next() { p.cur = p.l.next() }

func (p *parser) parseSum() (float64, error) {
	left, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for p.cur.kind == tokPlus || p.cur.kind == tokMinus {
		op := p.cur.kind
		p.next()
		right, err := p.parseProduct()
		if err != nil {
			return 0, err
		}
		if op == tokPlus {
			left += right
		} else {
			left -= right
		}
	}
	return left, nil
}

func (p *parser) parseProduct() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for p.cur.kind == tokStar || p.cur.kind == tokSlash {
		op := p.cur.kind
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == tokStar {
			left *= right
		} else {
			left = divide(left, right)
		}
	}
	return left, nil
}

func (p *parser) parseUnary() (float64, error) {
	switch p.cur.kind {
	case tokPlus:
		p.next()
		return p.parseUnary()
	case tokMinus:
		p.next()
		x, err := p.parseUnary()
		return -x, err
	case tokSqrt:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Sqrt(x), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (float64, error) {
	switch p.cur.kind {
	case tokNumber:
		v := p.cur.num
		p.next()
		return v, nil
	case tokLParen:
		p.next()
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.cur.kind != tokRParen {
			return 0, fmt.Errorf("%w: expected ')'", ErrParse)
		}
		p.next()
		return v, nil
	case tokEOF:
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrParse)
	default:
		return 0, fmt.Errorf("%w: unexpected %q", ErrParse, p.cur.text)
	}
}

// Evaluate computes an arithmetic expression over numbers, + − × ÷,
// parentheses and the √ prefix, with the usual precedence.
//
// Division by zero yields 0. A syntax error, an empty expression or a
// result that is not a finite number is reported as an apperror
// EvaluationFailed error.
func Evaluate(expr string) (float64, error) {
	p := &parser{l: lexer{s: expr}}
	p.next()

	if p.cur.kind == tokEOF {
		return 0, apperror.EvaluationFailed(expr, fmt.Errorf("%w: empty expression", ErrParse))
	}

	v, err := p.parseSum()
	if err != nil {
		return 0, apperror.EvaluationFailed(expr, err)
	}
	if p.cur.kind != tokEOF {
		return 0, apperror.EvaluationFailed(expr, fmt.Errorf("%w: unexpected %q", ErrParse, p.cur.text))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperror.EvaluationFailed(expr, errNotFinite)
	}

	return v, nil
}

var errNotFinite = errors.New("result is not a finite number")

// divide is ÷ with the calculator's zero rule: x ÷ 0 = 0.
func divide(x, y float64) float64 {
	if y == 0 {
		return 0
	}
	return x / y
}
