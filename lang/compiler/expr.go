package compiler

import (
	"strconv"

	"github.com/mna/lumen/lang/token"
)

// Precedence orders the binding power of infix operators, lowest first
// (§6's expression grammar).
type Precedence int

const (
	PREC_NONE       Precedence = iota
	PREC_ASSIGNMENT            // = += -=
	PREC_TERNARY               // ?:
	PREC_OR                    // or
	PREC_AND                   // and
	PREC_EQUALITY              // == !=
	PREC_COMPARISON            // < > <= >=
	PREC_TERM                  // + -
	PREC_FACTOR                // * /
	PREC_UNARY                 // ! -
	PREC_CALL                  // . () []
	PREC_PRIMARY
)

type parseFn func(c *compiler, canAssign bool)

type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   Precedence
}

var rules map[token.Kind]parseRule

func init() {
	rules = map[token.Kind]parseRule{
		token.LEFT_PAREN:         {prefix: (*compiler).grouping, infix: (*compiler).call, prec: PREC_CALL},
		token.LEFT_SQUARE_BRACE:  {prefix: (*compiler).arrayOrRange, infix: (*compiler).indexInfix, prec: PREC_CALL},
		token.LEFT_BRACE:         {prefix: (*compiler).dictLiteral},
		token.MINUS:              {prefix: (*compiler).unary, infix: (*compiler).binary, prec: PREC_TERM},
		token.PLUS:               {infix: (*compiler).binary, prec: PREC_TERM},
		token.SLASH:              {infix: (*compiler).binary, prec: PREC_FACTOR},
		token.STAR:               {infix: (*compiler).binary, prec: PREC_FACTOR},
		token.BANG:               {prefix: (*compiler).unary},
		token.BANG_EQUAL:         {infix: (*compiler).binary, prec: PREC_EQUALITY},
		token.EQUAL_EQUAL:        {infix: (*compiler).binary, prec: PREC_EQUALITY},
		token.GREATER:            {infix: (*compiler).binary, prec: PREC_COMPARISON},
		token.GREATER_EQUAL:      {infix: (*compiler).binary, prec: PREC_COMPARISON},
		token.LESS:               {infix: (*compiler).binary, prec: PREC_COMPARISON},
		token.LESS_EQUAL:         {infix: (*compiler).binary, prec: PREC_COMPARISON},
		token.QUESTION:           {infix: (*compiler).ternary, prec: PREC_TERNARY},
		token.IDENTIFIER:         {prefix: (*compiler).variable},
		token.STRING:             {prefix: (*compiler).stringLiteral},
		token.STRING_WITH_INTERP: {prefix: (*compiler).stringLiteral},
		token.STRING_INTERP_START: {prefix: (*compiler).stringLiteral},
		token.NUMBER:             {prefix: (*compiler).number},
		token.AND:                {infix: (*compiler).and_, prec: PREC_AND},
		token.OR:                 {infix: (*compiler).or_, prec: PREC_OR},
		token.FALSE:              {prefix: (*compiler).literal},
		token.TRUE:               {prefix: (*compiler).literal},
		token.NIL:                {prefix: (*compiler).literal},
		token.THIS:               {prefix: (*compiler).this_},
		token.SUPER:              {prefix: (*compiler).super_},
		token.LAMBDA:             {prefix: (*compiler).lambdaExpr},
		token.MATCH:              {prefix: (*compiler).matchExpr},
		token.DOT:                {infix: (*compiler).dot, prec: PREC_CALL},
	}
}

func (c *compiler) getRule(kind token.Kind) parseRule { return rules[kind] }

// expression parses and compiles a full expression (§6), leaving its value
// on top of the stack.
func (c *compiler) expression() { c.parsePrecedence(PREC_ASSIGNMENT) }

// parsePrecedence is the Pratt driver: it consumes a prefix expression then
// keeps folding in infix operators that bind at least as tightly as prec.
func (c *compiler) parsePrecedence(prec Precedence) {
	c.p.advance()
	rule := c.getRule(c.p.previous.Kind)
	if rule.prefix == nil {
		c.p.error("expect expression")
		return
	}
	canAssign := prec <= PREC_ASSIGNMENT
	rule.prefix(c, canAssign)

	for {
		rule = c.getRule(c.p.current.Kind)
		if prec > rule.prec {
			break
		}
		c.p.advance()
		rule.infix(c, canAssign)
	}

	if canAssign && (c.p.match(token.EQUAL) || c.p.check(token.PLUS_EQUAL) || c.p.check(token.MINUS_EQUAL)) {
		c.p.error("invalid assignment target")
	}
}

func (c *compiler) number(bool) {
	lit := c.p.lexeme(c.p.previous)
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		c.p.error("invalid number literal")
		return
	}
	c.emitConstant(v)
}

// stringLiteral handles plain strings and the interpolation chain produced
// by the scanner: STRING_INTERP_START segment, expression, repeat, then a
// closing STRING_WITH_INTERP segment. Interpolation is lowered to a chain of
// ADD instructions (§6).
func (c *compiler) stringLiteral(bool) {
	switch c.p.previous.Kind {
	case token.STRING:
		c.emitConstant(c.p.decoded)
		return
	case token.STRING_WITH_INTERP:
		// a bare closing segment with no preceding STRING_INTERP_START cannot
		// happen: the scanner only emits this kind to close an interpolation.
		c.emitConstant(c.p.decoded)
		return
	}

	// STRING_INTERP_START
	c.emitConstant(c.p.decoded)
	for {
		c.expression()
		c.emitOp(ADD)
		switch c.p.current.Kind {
		case token.STRING_INTERP_START:
			c.p.advance()
			c.emitConstant(c.p.decoded)
			c.emitOp(ADD)
			continue
		case token.STRING_WITH_INTERP:
			c.p.advance()
			c.emitConstant(c.p.decoded)
			c.emitOp(ADD)
			return
		default:
			c.p.errorAtCurrent("unterminated string interpolation")
			return
		}
	}
}

func (c *compiler) literal(bool) {
	switch c.p.previous.Kind {
	case token.FALSE:
		c.emitOp(FALSE)
	case token.TRUE:
		c.emitOp(TRUE)
	case token.NIL:
		c.emitOp(NIL)
	}
}

func (c *compiler) grouping(bool) {
	c.expression()
	c.p.consume(token.RIGHT_PAREN, "expect ')' after expression")
}

func (c *compiler) unary(bool) {
	opKind := c.p.previous.Kind
	c.parsePrecedence(PREC_UNARY)
	switch opKind {
	case token.MINUS:
		c.emitOp(NEGATE)
	case token.BANG:
		c.emitOp(NOT)
	}
}

func (c *compiler) binary(bool) {
	opKind := c.p.previous.Kind
	rule := c.getRule(opKind)
	c.parsePrecedence(rule.prec + 1)
	switch opKind {
	case token.BANG_EQUAL:
		c.emitOps(EQUAL, NOT)
	case token.EQUAL_EQUAL:
		c.emitOp(EQUAL)
	case token.GREATER:
		c.emitOp(GREATER)
	case token.GREATER_EQUAL:
		c.emitOps(LESS, NOT)
	case token.LESS:
		c.emitOp(LESS)
	case token.LESS_EQUAL:
		c.emitOps(GREATER, NOT)
	case token.PLUS:
		c.emitOp(ADD)
	case token.MINUS:
		c.emitOp(SUBTRACT)
	case token.STAR:
		c.emitOp(MULTIPLY)
	case token.SLASH:
		c.emitOp(DIVIDE)
	}
}

func (c *compiler) and_(bool) {
	endJump := c.emitJump(JUMP_IF_FALSE)
	c.emitOp(POP)
	c.parsePrecedence(PREC_AND)
	c.patchJump(endJump)
}

func (c *compiler) or_(bool) {
	elseJump := c.emitJump(JUMP_IF_FALSE)
	endJump := c.emitJump(JUMP)
	c.patchJump(elseJump)
	c.emitOp(POP)
	c.parsePrecedence(PREC_OR)
	c.patchJump(endJump)
}

// ternary compiles `cond ? then : else`, right-associative in the else arm
// so `a ? b : c ? d : e` parses as `a ? b : (c ? d : e)`.
func (c *compiler) ternary(bool) {
	thenJump := c.emitJump(JUMP_IF_FALSE)
	c.emitOp(POP)
	c.parsePrecedence(PREC_ASSIGNMENT)
	c.p.consume(token.COLON, "expect ':' in ternary expression")
	elseJump := c.emitJump(JUMP)
	c.patchJump(thenJump)
	c.emitOp(POP)
	c.parsePrecedence(PREC_TERNARY)
	c.patchJump(elseJump)
}

func (c *compiler) call(bool) {
	argc := c.argumentList()
	c.emitOpByte(CALL, argc)
}

// emitByteIndex writes op followed by a single-byte constant index,
// reporting a compile error if idx does not fit (property-name and method
// opcodes have no _LONG variant, §6).
func (c *compiler) emitByteIndex(op Opcode, idx uint32) {
	if idx > 0xff {
		c.p.error("too many constants in one chunk")
		return
	}
	c.emitOpByte(op, byte(idx))
}

func (c *compiler) dot(canAssign bool) {
	c.p.consume(token.IDENTIFIER, "expect property name after '.'")
	name := c.p.lexeme(c.p.previous)
	nameConst := c.identifierConstant(name)

	switch {
	case canAssign && c.p.match(token.EQUAL):
		c.expression()
		c.emitByteIndex(SET_PROPERTY, nameConst)
	case canAssign && (c.p.check(token.PLUS_EQUAL) || c.p.check(token.MINUS_EQUAL)):
		opKind := c.p.current.Kind
		c.p.advance()
		c.emitOpByte(PUSH_FROM, 0)
		c.emitByteIndex(GET_PROPERTY, nameConst)
		c.expression()
		if opKind == token.PLUS_EQUAL {
			c.emitOp(ADD)
		} else {
			c.emitOp(SUBTRACT)
		}
		c.emitByteIndex(SET_PROPERTY, nameConst)
	case c.p.match(token.LEFT_PAREN):
		argc := c.argumentList()
		c.emitByteIndex(INVOKE, nameConst)
		c.emitByte(argc)
	default:
		c.emitByteIndex(GET_PROPERTY, nameConst)
	}
}

func (c *compiler) this_(bool) {
	if c.cc == nil {
		c.p.error("cannot use 'this' outside of a class")
		return
	}
	c.variableNamed("this", false)
}

func (c *compiler) super_(bool) {
	if c.cc == nil {
		c.p.error("cannot use 'super' outside of a class")
	} else if !c.cc.hasSuperclass {
		c.p.error("cannot use 'super' in a class with no superclass")
	}
	c.p.consume(token.DOT, "expect '.' after 'super'")
	c.p.consume(token.IDENTIFIER, "expect superclass method name")
	name := c.p.lexeme(c.p.previous)
	nameConst := c.identifierConstant(name)
	c.variableNamed("this", false)
	c.variableNamed("super", false)
	c.emitByteIndex(GET_SUPER, nameConst)
}

// arrayOrRange compiles either a range literal `[a..b]` or an array literal
// `[e, ...]` (§6); both are introduced by the same '[' token.
func (c *compiler) arrayOrRange(bool) {
	if c.p.match(token.RIGHT_SQUARE_BRACE) {
		c.emitIndexed(ARRAY, 0)
		return
	}
	c.expression()
	if c.p.match(token.DOUBLE_DOTS) {
		c.expression()
		c.p.consume(token.RIGHT_SQUARE_BRACE, "expect ']' after range")
		c.emitOp(RANGE)
		return
	}
	count := uint32(1)
	for c.p.match(token.COMMA) {
		if c.p.check(token.RIGHT_SQUARE_BRACE) {
			break
		}
		c.expression()
		count++
	}
	c.p.consume(token.RIGHT_SQUARE_BRACE, "expect ']' after array literal")
	c.emitIndexed(ARRAY, count)
}

func (c *compiler) dictLiteral(bool) {
	count := uint32(0)
	if !c.p.check(token.RIGHT_BRACE) {
		for {
			c.expression()
			c.p.consume(token.COLON, "expect ':' after dict key")
			c.expression()
			count++
			if !c.p.match(token.COMMA) {
				break
			}
			if c.p.check(token.RIGHT_BRACE) {
				break
			}
		}
	}
	c.p.consume(token.RIGHT_BRACE, "expect '}' after dict literal")
	c.emitIndexed(MAP, count)
}

// matchExpr compiles `match e { p1 => e1, p2 => e2, ..., _ => eN }` (§6).
// The scrutinee is kept on the stack and compared, via a duplicate, against
// each pattern in turn; a bare `_` arm is the catch-all and skips the test.
func (c *compiler) matchExpr(bool) {
	c.expression()
	c.p.consume(token.LEFT_BRACE, "expect '{' after match expression")

	var endJumps []int
	matched := false
	for !c.p.check(token.RIGHT_BRACE) && !c.p.check(token.EOF) {
		if matched {
			c.p.error("unreachable match arm after '_'")
		}
		if c.p.check(token.IDENTIFIER) && c.p.lexeme(c.p.current) == "_" {
			c.p.advance()
			c.p.consume(token.MATCHES_TO, "expect '=>' after match pattern")
			c.emitOp(POP) // discard scrutinee
			c.expression()
			matched = true
		} else {
			c.emitOpByte(PUSH_FROM, 0)
			c.expression()
			c.emitOp(EQUAL)
			elseJump := c.emitJump(JUMP_IF_FALSE)
			c.emitOp(POP) // discard bool
			c.emitOp(POP) // discard scrutinee
			c.p.consume(token.MATCHES_TO, "expect '=>' after match pattern")
			c.expression()
			endJumps = append(endJumps, c.emitJump(JUMP))
			c.patchJump(elseJump)
			c.emitOp(POP) // discard bool, scrutinee remains for next arm
		}
		if !c.p.match(token.COMMA) {
			break
		}
	}
	c.p.consume(token.RIGHT_BRACE, "expect '}' after match arms")
	for _, j := range endJumps {
		c.patchJump(j)
	}
}

func (c *compiler) variable(canAssign bool) {
	c.variableNamed(c.p.lexeme(c.p.previous), canAssign)
}

// variableNamed resolves name to a local, upvalue or global and compiles
// either a plain read, a plain/compound assignment, or — when immediately
// followed by '[' — a full indexing chain rooted at the resolved variable
// (§6's "indexing against the resolved variable" fast path).
func (c *compiler) variableNamed(name string, canAssign bool) {
	var getOp, setOp, getElemOp, setElemOp Opcode
	var arg uint32

	if local := c.resolveLocal(c.fc, name); local != -1 {
		getOp, setOp = GET_LOCAL, SET_LOCAL
		getElemOp, setElemOp = GET_ELEMENT, SET_ELEMENT
		arg = uint32(local)
	} else if up := c.resolveUpvalue(c.fc, name); up != -1 {
		getOp, setOp = GET_UPVALUE, SET_UPVALUE
		getElemOp, setElemOp = GET_ELEMENT_UPVALUE, SET_ELEMENT_UPVALUE
		arg = uint32(up)
	} else {
		arg = c.identifierConstant(name)
		getOp, setOp = GET_GLOBAL, SET_GLOBAL
		getElemOp, setElemOp = GET_ELEMENT_GLOBAL, SET_ELEMENT_GLOBAL
	}

	if c.p.check(token.LEFT_SQUARE_BRACE) {
		c.indexChain(getElemOp, setElemOp, arg, canAssign)
		return
	}

	switch {
	case canAssign && c.p.match(token.EQUAL):
		c.expression()
		c.emitVarOp(setOp, arg)
	case canAssign && (c.p.check(token.PLUS_EQUAL) || c.p.check(token.MINUS_EQUAL)):
		opKind := c.p.current.Kind
		c.p.advance()
		c.emitVarOp(getOp, arg)
		c.expression()
		if opKind == token.PLUS_EQUAL {
			c.emitOp(ADD)
		} else {
			c.emitOp(SUBTRACT)
		}
		c.emitVarOp(setOp, arg)
	default:
		c.emitVarOp(getOp, arg)
	}
}

// emitVarOp writes a GET_/SET_ variable opcode: locals and upvalues always
// fit a single byte slot; globals use the short/long dual encoding.
func (c *compiler) emitVarOp(op Opcode, arg uint32) {
	switch op {
	case GET_GLOBAL, SET_GLOBAL:
		c.emitIndexed(op, arg)
	default:
		c.emitOpByte(op, byte(arg))
	}
}

func (c *compiler) emitElemGet(op Opcode, arg uint32) {
	if op == GET_ELEMENT_GLOBAL {
		c.emitIndexed(op, arg)
		return
	}
	c.emitOpByte(op, byte(arg))
}

func (c *compiler) emitElemSet(op Opcode, arg uint32) {
	if op == SET_ELEMENT_GLOBAL {
		c.emitIndexed(op, arg)
		return
	}
	c.emitOpByte(op, byte(arg))
}

// indexChain compiles `name[i1][i2]...[in]` plus an optional trailing
// assignment or compound assignment, rooted at a resolved variable (§6). The
// first level uses the base-relative GET_ELEMENT/SET_ELEMENT family; every
// further level operates on the container already left on the stack via
// GET_ELEMENT_FROM_TOP / INDIRECT_STORE.
func (c *compiler) indexChain(getElemOp, setElemOp Opcode, arg uint32, canAssign bool) {
	c.p.advance() // consume '['
	c.expression()
	c.p.consume(token.RIGHT_SQUARE_BRACE, "expect ']' after index")

	first := true
	for c.p.check(token.LEFT_SQUARE_BRACE) {
		if first {
			c.emitElemGet(getElemOp, arg)
			first = false
		} else {
			c.emitOp(GET_ELEMENT_FROM_TOP)
		}
		c.p.advance()
		c.expression()
		c.p.consume(token.RIGHT_SQUARE_BRACE, "expect ']' after index")
	}

	switch {
	case canAssign && c.p.match(token.EQUAL):
		c.expression()
		if first {
			c.emitElemSet(setElemOp, arg)
		} else {
			c.emitOp(INDIRECT_STORE)
		}
	case canAssign && (c.p.check(token.PLUS_EQUAL) || c.p.check(token.MINUS_EQUAL)):
		opKind := c.p.current.Kind
		c.p.advance()
		if first {
			c.emitOpByte(PUSH_FROM, 0)
			c.emitElemGet(getElemOp, arg)
		} else {
			c.emitOpByte(PUSH_FROM, 1)
			c.emitOpByte(PUSH_FROM, 1)
			c.emitOp(GET_ELEMENT_FROM_TOP)
		}
		c.expression()
		if opKind == token.PLUS_EQUAL {
			c.emitOp(ADD)
		} else {
			c.emitOp(SUBTRACT)
		}
		if first {
			c.emitElemSet(setElemOp, arg)
		} else {
			c.emitOp(INDIRECT_STORE)
		}
	default:
		if first {
			c.emitElemGet(getElemOp, arg)
		} else {
			c.emitOp(GET_ELEMENT_FROM_TOP)
		}
	}
}

// indexInfix is the generic fallback for indexing a container that is not a
// bare resolved variable (e.g. a call result): the container is already on
// the stack, so every level goes through GET_ELEMENT_FROM_TOP / INDIRECT_STORE.
func (c *compiler) indexInfix(canAssign bool) {
	c.expression()
	c.p.consume(token.RIGHT_SQUARE_BRACE, "expect ']' after index")

	for c.p.check(token.LEFT_SQUARE_BRACE) {
		c.emitOp(GET_ELEMENT_FROM_TOP)
		c.p.advance()
		c.expression()
		c.p.consume(token.RIGHT_SQUARE_BRACE, "expect ']' after index")
	}

	switch {
	case canAssign && c.p.match(token.EQUAL):
		c.expression()
		c.emitOp(INDIRECT_STORE)
	case canAssign && (c.p.check(token.PLUS_EQUAL) || c.p.check(token.MINUS_EQUAL)):
		opKind := c.p.current.Kind
		c.p.advance()
		c.emitOpByte(PUSH_FROM, 1)
		c.emitOpByte(PUSH_FROM, 1)
		c.emitOp(GET_ELEMENT_FROM_TOP)
		c.expression()
		if opKind == token.PLUS_EQUAL {
			c.emitOp(ADD)
		} else {
			c.emitOp(SUBTRACT)
		}
		c.emitOp(INDIRECT_STORE)
	default:
		c.emitOp(GET_ELEMENT_FROM_TOP)
	}
}
