package compiler

import "github.com/mna/lumen/lang/token"

func (c *compiler) fnDeclaration() {
	global, isLocal := c.parseVariable("expect function name")
	c.markInitialized()
	c.function(PlainFunc, c.p.lexeme(c.p.previous))
	c.defineVariable(global, isLocal, false)
}

// function compiles a function's parameter list and body, pushing a new
// funcCompiler and popping it back off when done, then emits the closure
// instruction into the *enclosing* chunk.
func (c *compiler) function(kind FuncKind, name string) {
	c.p.consume(token.LEFT_PAREN, "expect '(' after function name")
	c.functionFromOpenParen(kind, name)
}

// emitClosure writes the CLOSURE/CLOSURE_LONG instruction that creates a new
// closure over fn at runtime, followed by one {isLocal, index} pair per
// upvalue it captures (§6's instruction set).
func (c *compiler) emitClosure(fn *Funcode) {
	idx := c.makeConstant(fn)
	op := CLOSURE
	if idx > 0xff {
		op = CLOSURE_LONG
	}
	if op == CLOSURE {
		c.emitOpByte(op, byte(idx))
	} else {
		c.emitOp(op)
		c.emitByte(byte(idx))
		c.emitByte(byte(idx >> 8))
		c.emitByte(byte(idx >> 16))
	}
	for _, up := range fn.Upvalues {
		b := byte(0)
		if up.IsLocal {
			b = 1
		}
		c.emitByte(b)
		c.emitByte(up.Index)
	}
}

// lambdaExpr compiles `lambda(params){body}` as a primary expression and
// leaves the freshly-made closure on the stack.
func (c *compiler) lambdaExpr(bool) {
	c.p.consume(token.LEFT_PAREN, "expect '(' after 'lambda'")
	// function() expects to consume the '(' itself, so the shared body is
	// entered right after the '(' consumed above.
	c.functionFromOpenParen(LambdaFunc, "<lambda>")
}

// functionFromOpenParen is function() but the opening '(' of the parameter
// list has already been consumed by the caller.
func (c *compiler) functionFromOpenParen(kind FuncKind, name string) {
	c.fc = newFuncCompiler(c.fc, kind, name)
	c.beginScope()

	arity := 0
	if !c.p.check(token.RIGHT_PAREN) {
		for {
			arity++
			if arity > maxArgs {
				c.p.errorAtCurrent("cannot have more than 255 parameters")
			}
			paramGlobal, paramLocal := c.parseVariable("expect parameter name")
			c.defineVariable(paramGlobal, paramLocal, false)
			if !c.p.match(token.COMMA) {
				break
			}
		}
	}
	c.p.consume(token.RIGHT_PAREN, "expect ')' after parameters")
	c.p.consume(token.LEFT_BRACE, "expect '{' before function body")
	c.block()

	fn := c.endFunction()
	fn.Arity = arity
	c.emitClosure(fn)
}

func (c *compiler) argumentList() byte {
	argc := 0
	if !c.p.check(token.RIGHT_PAREN) {
		for {
			c.expression()
			if argc == maxArgs {
				c.p.error("cannot have more than 255 arguments")
			} else {
				argc++
			}
			if !c.p.match(token.COMMA) {
				break
			}
		}
	}
	c.p.consume(token.RIGHT_PAREN, "expect ')' after arguments")
	return byte(argc)
}
