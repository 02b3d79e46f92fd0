package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser parses tokens into an AST
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser creates a new parser over the given tokens
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseFormula converts formula text (without the leading '=') into an
// expression tree. Reference errors keep their *RefError type so the
// caller can distinguish them from plain syntax errors.
func ParseFormula(text string) (Expr, error) {
	lexer := NewLexer(text)
	tokens, err := lexer.Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (Expr, error) {
	if len(p.tokens) == 0 || p.tokens[0].Type == TokenEOF {
		return nil, NewParseError("empty formula")
	}

	node, err := p.parseConcatenation()
	if err != nil {
		return nil, err
	}

	// all tokens except EOF must be consumed
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type != TokenEOF {
		return nil, NewParseErrorAt(
			fmt.Sprintf("unexpected token after expression: %s", p.tokens[p.pos].Value),
			p.tokens[p.pos].Pos)
	}

	return node, nil
}

// parseConcatenation handles the string concatenation operator, the
// loosest-binding operator in the grammar
func (p *Parser) parseConcatenation() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp || tok.Value != "&" {
			break
		}

		p.pos++
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}

		left = &BinaryNode{
			Op:       OpConcat,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseComparison handles comparison operators
func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOperator
		switch tok.Value {
		case "=":
			op = OpEqual
		case "<>":
			op = OpNotEqual
		case "<":
			op = OpLess
		case "<=":
			op = OpLessEqual
		case ">":
			op = OpGreater
		case ">=":
			op = OpGreaterEqual
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}

		left = &BinaryNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (Expr, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOperator
		switch tok.Value {
		case "+":
			op = OpAdd
		case "-":
			op = OpSubtract
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}

		left = &BinaryNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (Expr, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOperator
		switch tok.Value {
		case "*":
			op = OpMultiply
		case "/":
			op = OpDivide
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}

		left = &BinaryNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parsePower handles exponentiation
func (p *Parser) parsePower() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	// right-associative
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenBinaryOp && p.tokens[p.pos].Value == "^" {
		p.pos++
		right, err := p.parsePower() // recursive for right-associativity
		if err != nil {
			return nil, err
		}

		return &BinaryNode{
			Op:       OpPower,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}, nil
	}

	return left, nil
}

// parseUnary handles prefix unary operators
func (p *Parser) parseUnary() (Expr, error) {
	if p.pos >= len(p.tokens) {
		return nil, NewParseError("unexpected end of expression")
	}

	tok := p.tokens[p.pos]
	if tok.Type == TokenUnaryPrefixOp {
		var op UnaryOperator
		switch tok.Value {
		case "+":
			op = OpPlus
		case "-":
			op = OpMinus
		default:
			return nil, NewParseErrorAt("unexpected operator: "+tok.Value, tok.Pos)
		}

		startPos := tok.Pos
		p.pos++
		operand, err := p.parseUnary() // recurse for chained unary operators
		if err != nil {
			return nil, err
		}

		return &UnaryNode{
			Op:       op,
			Operand:  operand,
			Position: NodePosition{Start: startPos, End: operand.GetPosition().End},
		}, nil
	}

	return p.parsePostfix()
}

// parsePostfix handles the postfix percent operator
func (p *Parser) parsePostfix() (Expr, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenUnaryPostfixOp && p.tokens[p.pos].Value == "%" {
		endPos := p.tokens[p.pos].Pos + 1
		p.pos++

		node = &UnaryNode{
			Op:       OpPercent,
			Operand:  node,
			Position: NodePosition{Start: node.GetPosition().Start, End: endPos},
		}
	}

	return node, nil
}

// parsePrimary handles primary expressions (literals, references,
// functions, parentheses)
func (p *Parser) parsePrimary() (Expr, error) {
	if p.pos >= len(p.tokens) {
		return nil, NewParseError("unexpected end of expression")
	}

	tok := p.tokens[p.pos]

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, NewParseErrorAt(fmt.Sprintf("invalid number: %s", tok.Value), tok.Pos)
		}
		return &LiteralNode{
			Value:    NumberValue(val),
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenString:
		p.pos++
		return &LiteralNode{
			Value:    StringValue(tok.Value),
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value) + 2}, // +2 for quotes
		}, nil

	case TokenBoolean:
		p.pos++
		return &LiteralNode{
			Value:    BoolValue(tok.Value == "TRUE"),
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenCell:
		p.pos++
		return p.parseCellToken(tok)

	case TokenRange:
		p.pos++
		return p.parseRangeToken(tok)

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseConcatenation()
		if err != nil {
			return nil, err
		}

		if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenRightParen {
			return nil, NewParseError("expected closing parenthesis")
		}
		p.pos++

		return node, nil

	case TokenIdentifier:
		return nil, NewParseErrorAt(fmt.Sprintf("unknown identifier: %s", tok.Value), tok.Pos)

	default:
		return nil, NewParseErrorAt(fmt.Sprintf("unexpected token: %s", tok.Value), tok.Pos)
	}
}

// parseCellToken converts a cell token into a RefNode, validating
// bounds through address construction
func (p *Parser) parseCellToken(tok Token) (Expr, error) {
	addr, absCol, absRow, err := ParseAddress(tok.Value)
	if err != nil {
		return nil, err // keeps *RefError identity
	}
	return &RefNode{
		Addr:     addr,
		AbsCol:   absCol,
		AbsRow:   absRow,
		Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
	}, nil
}

// parseRangeToken converts a range token into a RangeNode
func (p *Parser) parseRangeToken(tok Token) (Expr, error) {
	parts := strings.Split(tok.Value, ":")
	if len(parts) != 2 {
		return nil, NewRefError(fmt.Sprintf("invalid range format: %s", tok.Value))
	}

	start, absStartCol, absStartRow, err := ParseAddress(parts[0])
	if err != nil {
		return nil, err
	}
	end, absEndCol, absEndRow, err := ParseAddress(parts[1])
	if err != nil {
		return nil, err
	}

	return &RangeNode{
		Range:       CellRange{Start: start, End: end},
		AbsStartCol: absStartCol,
		AbsStartRow: absStartRow,
		AbsEndCol:   absEndCol,
		AbsEndRow:   absEndRow,
		Position:    NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
	}, nil
}

// parseFunctionCall parses a function call
func (p *Parser) parseFunctionCall() (Expr, error) {
	funcTok := p.tokens[p.pos]
	funcName := strings.ToUpper(funcTok.Value)
	startPos := funcTok.Pos
	p.pos++

	if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenLeftParen {
		return nil, NewParseError("expected '(' after function name")
	}
	p.pos++

	args := []Expr{}

	// empty argument list
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenRightParen {
		p.pos++
		return &CallNode{
			Name:     funcName,
			Args:     args,
			Position: NodePosition{Start: startPos, End: p.tokens[p.pos-1].Pos + 1},
		}, nil
	}

	for {
		arg, err := p.parseConcatenation()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if p.pos >= len(p.tokens) {
			return nil, NewParseError("unexpected end in function arguments")
		}

		if p.tokens[p.pos].Type == TokenRightParen {
			p.pos++
			break
		}

		if p.tokens[p.pos].Type != TokenComma {
			return nil, NewParseErrorAt("expected ',' or ')' in function arguments", p.tokens[p.pos].Pos)
		}
		p.pos++
	}

	return &CallNode{
		Name:     funcName,
		Args:     args,
		Position: NodePosition{Start: startPos, End: p.tokens[p.pos-1].Pos + 1},
	}, nil
}
