// ABOUTME: Calculator tool with a restricted character set
// ABOUTME: Recursive-descent evaluator for + - * / ( ) with usual precedence

package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CalcTool evaluates arithmetic expressions. Only digits, the four basic
// operators, parentheses, dots, and spaces are accepted; anything else is
// rejected with a descriptive message rather than evaluated.
type CalcTool struct{}

// NewCalcTool creates the calculator tool.
func NewCalcTool() *CalcTool {
	return &CalcTool{}
}

func (t *CalcTool) Name() string { return "calc" }

func (t *CalcTool) Description() string {
	return "Evalúa expresiones aritméticas simples (+, -, *, /, paréntesis)."
}

func (t *CalcTool) Execute(_ context.Context, req Request) (string, error) {
	expr := strings.TrimSpace(req.Input)
	if expr == "" {
		return "No encontré ninguna expresión para calcular.", nil
	}
	if !validExpression(expr) {
		return "Solo puedo calcular expresiones con números, + - * / y paréntesis.", nil
	}

	value, err := evaluate(expr)
	if err != nil {
		return fmt.Sprintf("No pude calcular %q: %s.", expr, err), nil
	}

	return fmt.Sprintf("%s = %s", expr, formatNumber(value)), nil
}

// extractExpression pulls the arithmetic substring out of a message like
// "calcula 2+2*3". Used by the default intent rules.
func extractExpression(text, _ string) string {
	var b strings.Builder
	for _, r := range text {
		if isExprRune(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// validExpression reports whether the string contains only the allowed
// character set.
func validExpression(s string) bool {
	for _, r := range s {
		if !isExprRune(r) {
			return false
		}
	}
	return true
}

func isExprRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r == '+' || r == '-' || r == '*' || r == '/':
		return true
	case r == '(' || r == ')' || r == '.' || r == ' ':
		return true
	}
	return false
}

// formatNumber trims the trailing zeros floats pick up so "2+2*3" reads
// "8" and not "8.000000".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parser is a recursive-descent evaluator over the restricted grammar:
//
//	expr   = term   { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = number | "(" expr ")" | "-" factor
type parser struct {
	input []rune
	pos   int
}

var errDivideByZero = errors.New("división entre cero")

func evaluate(expr string) (float64, error) {
	p := &parser{input: []rune(expr)}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("carácter inesperado %q", string(p.input[p.pos]))
	}
	return value, nil
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) peek() (rune, bool) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *parser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '+' && op != '-') {
			return value, nil
		}
		p.pos++
		rhs, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			value += rhs
		} else {
			value -= rhs
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	value, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '*' && op != '/') {
			return value, nil
		}
		p.pos++
		rhs, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			value *= rhs
		} else {
			if rhs == 0 {
				return 0, errDivideByZero
			}
			value /= rhs
		}
	}
}

func (p *parser) parseFactor() (float64, error) {
	r, ok := p.peek()
	if !ok {
		return 0, errors.New("expresión incompleta")
	}

	if r == '-' {
		p.pos++
		value, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -value, nil
	}

	if r == '(' {
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		closing, ok := p.peek()
		if !ok || closing != ')' {
			return 0, errors.New("falta paréntesis de cierre")
		}
		p.pos++
		return value, nil
	}

	return p.parseNumber()
}

func (p *parser) parseNumber() (float64, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.input) {
		r := p.input[p.pos]
		if (r >= '0' && r <= '9') || r == '.' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return 0, errors.New("se esperaba un número")
	}

	value, err := strconv.ParseFloat(string(p.input[start:p.pos]), 64)
	if err != nil {
		return 0, fmt.Errorf("número inválido %q", string(p.input[start:p.pos]))
	}
	return value, nil
}
