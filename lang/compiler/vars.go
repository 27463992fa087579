package compiler

import "github.com/mna/lumen/lang/token"

// identifierConstant interns name as a string constant, used by every
// global-variable and property-name opcode.
func (c *compiler) identifierConstant(name string) uint32 {
	return c.makeConstant(name)
}

func (c *compiler) addLocal(name string) {
	if len(c.fc.locals) >= maxLocals {
		c.p.error("too many local variables in function")
		return
	}
	c.fc.locals = append(c.fc.locals, localVar{name: name, depth: -1})
}

// declareVariable registers a local (global variables need no declaration
// step: they're looked up by name at runtime). Shadowing a local declared in
// the very same scope is an error (§4.1).
func (c *compiler) declareVariable(name string) {
	if c.fc.scopeDepth == 0 {
		return
	}
	for i := len(c.fc.locals) - 1; i >= 0; i-- {
		l := c.fc.locals[i]
		if l.depth != -1 && l.depth < c.fc.scopeDepth {
			break
		}
		if l.name == name {
			c.p.error("already a variable with this name in this scope")
		}
	}
	c.addLocal(name)
}

// parseVariable consumes an identifier and returns either 0 (for a local —
// the index is meaningless for locals) or the constant index of its name
// (for a global), alongside whether it resolved to a local.
func (c *compiler) parseVariable(errMsg string) (global uint32, isLocal bool) {
	c.p.consume(token.IDENTIFIER, errMsg)
	name := c.p.lexeme(c.p.previous)
	c.declareVariable(name)
	if c.fc.scopeDepth > 0 {
		return 0, true
	}
	return c.identifierConstant(name), false
}

func (c *compiler) markInitialized() {
	if c.fc.scopeDepth == 0 {
		return
	}
	c.fc.locals[len(c.fc.locals)-1].depth = c.fc.scopeDepth
}

// defineVariable completes a variable declaration: a local just needs its
// depth marked live; a global emits DEFINE_GLOBAL/DEFINE_CONST_GLOBAL.
func (c *compiler) defineVariable(global uint32, isLocal, isConst bool) {
	if isLocal {
		c.markInitialized()
		return
	}
	op := DEFINE_GLOBAL
	if isConst {
		op = DEFINE_CONST_GLOBAL
	}
	c.emitIndexed(op, global)
}

// resolveLocal searches fc's locals top-down; it reports a compile error if
// the name resolves to a local still being initialized (depth == -1, §4.1).
func (c *compiler) resolveLocal(fc *funcCompiler, name string) int {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			if fc.locals[i].depth == -1 {
				c.p.error("cannot read local variable in its own initializer")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue implements §4.1's upvalue resolution: walk the enclosing
// chain, marking captured locals along the way, propagating upvalue chains
// down through every intermediate function.
func (c *compiler) resolveUpvalue(fc *funcCompiler, name string) int {
	if fc.enclosing == nil {
		return -1
	}
	if local := c.resolveLocal(fc.enclosing, name); local != -1 {
		fc.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(fc, uint8(local), true)
	}
	if up := c.resolveUpvalue(fc.enclosing, name); up != -1 {
		return c.addUpvalue(fc, uint8(up), false)
	}
	return -1
}

func (c *compiler) addUpvalue(fc *funcCompiler, index uint8, isLocal bool) int {
	for i, up := range fc.fn.Upvalues {
		if up.Index == index && up.IsLocal == isLocal {
			return i
		}
	}
	if len(fc.fn.Upvalues) >= maxUpvalues {
		c.p.error("too many closure variables in function")
		return 0
	}
	fc.fn.Upvalues = append(fc.fn.Upvalues, UpvalueDesc{IsLocal: isLocal, Index: index})
	return len(fc.fn.Upvalues) - 1
}

func (c *compiler) varDeclaration() {
	global, isLocal := c.parseVariable("expect variable name")
	if c.p.match(token.EQUAL) {
		c.expression()
	} else {
		c.emitOp(NIL)
	}
	c.p.consume(token.SEMICOLON, "expect ';' after variable declaration")
	c.defineVariable(global, isLocal, false)
}

func (c *compiler) constDeclaration() {
	c.p.consume(token.VAR, "expect 'var' after 'const'")
	global, isLocal := c.parseVariable("expect variable name")
	c.p.consume(token.EQUAL, "const variable must be initialized")
	c.expression()
	c.p.consume(token.SEMICOLON, "expect ';' after variable declaration")
	if isLocal {
		c.p.error("'const' is only supported for global variables")
	}
	c.defineVariable(global, isLocal, true)
}
