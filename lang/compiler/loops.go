package compiler

import "github.com/mna/lumen/lang/token"

func (c *compiler) pushLoop() *loopCompiler {
	lc := &loopCompiler{enclosing: c.fc.loop, depth: c.fc.scopeDepth}
	c.fc.loop = lc
	return lc
}

func (c *compiler) popLoop() {
	lc := c.fc.loop
	for _, j := range lc.breakJumps {
		c.patchJump(j)
	}
	c.fc.loop = lc.enclosing
}

func (c *compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	lc := c.pushLoop()
	lc.start = loopStart

	c.p.consume(token.LEFT_PAREN, "expect '(' after 'while'")
	c.expression()
	c.p.consume(token.RIGHT_PAREN, "expect ')' after condition")

	exitJump := c.emitJump(JUMP_IF_FALSE)
	c.emitOp(POP)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(POP)
	c.popLoop()
}

// forOrForInStatement compiles both the C-style three-clause `for` and the
// `for x in e` form (§4.1 point 5). The two are disambiguated by whether
// '(' follows 'for' (classic) or an identifier does (for-in), per §6's
// grammar summary.
func (c *compiler) forOrForInStatement() {
	if c.p.check(token.LEFT_PAREN) {
		c.classicForStatement()
		return
	}
	c.forInStatement()
}

func (c *compiler) forInStatement() {
	c.beginScope()

	c.p.consume(token.IDENTIFIER, "expect loop variable name")
	varName := c.p.lexeme(c.p.previous)
	c.p.consume(token.IN, "expect 'in' after loop variable")
	c.expression() // the iterable

	if c.fc.forEachNesting >= maxForEachNesting {
		c.p.error("too many nested 'for in' loops")
	}
	c.fc.forEachNesting++
	c.emitOp(QUEUE)
	c.emitOp(INCREMENT_NESTING_LVL)

	loopStart := len(c.chunk().Code)
	lc := c.pushLoop()
	lc.start = loopStart

	c.emitOp(DEQUE)
	c.addLocal(varName)
	c.markInitialized()
	counterSlot := len(c.fc.locals) - 1
	c.emitOpByte(FOR_EACH, byte(counterSlot))
	exitJump := c.emitJump(JUMP_IF_FALSE)
	c.emitOp(POP)

	c.statement()

	c.emitOp(QUEUE_ADVANCE)
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(POP) // the boolean JUMP_IF_FALSE peeked
	c.emitOp(QUEUE_CLEAR)
	c.emitOp(DECREMENT_NESTING_LVL)
	c.fc.forEachNesting--

	c.popLoop()
	c.endScope()
}

func (c *compiler) classicForStatement() {
	c.beginScope()
	c.p.consume(token.LEFT_PAREN, "expect '(' after 'for'")

	switch {
	case c.p.match(token.SEMICOLON):
		// no initializer
	case c.p.match(token.VAR):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	lc := c.pushLoop()
	lc.start = loopStart

	exitJump := -1
	if !c.p.match(token.SEMICOLON) {
		c.expression()
		c.p.consume(token.SEMICOLON, "expect ';' after loop condition")
		exitJump = c.emitJump(JUMP_IF_FALSE)
		c.emitOp(POP)
	}

	if !c.p.check(token.RIGHT_PAREN) {
		bodyJump := c.emitJump(JUMP)
		incrStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(POP)
		c.p.consume(token.RIGHT_PAREN, "expect ')' after for clauses")

		c.emitLoop(loopStart)
		loopStart = incrStart
		lc.start = incrStart
		c.patchJump(bodyJump)
	} else {
		c.p.consume(token.RIGHT_PAREN, "expect ')' after for clauses")
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(POP)
	}

	c.popLoop()
	c.endScope()
}
