package compiler

import "github.com/mna/lumen/lang/token"

// classDeclaration compiles `class C [expands P] { ... }` (§6): a class
// value is created, its methods and field defaults populated, single
// inheritance applied via INHERIT, then the class is bound to its name like
// any other declaration.
func (c *compiler) classDeclaration() {
	c.p.consume(token.IDENTIFIER, "expect class name")
	name := c.p.lexeme(c.p.previous)
	nameConst := c.identifierConstant(name)
	c.declareVariable(name)

	c.emitByteIndex(CLASS, nameConst)
	c.defineVariable(nameConst, c.fc.scopeDepth > 0, false)

	cc := &classCompiler{enclosing: c.cc}
	c.cc = cc

	if c.p.match(token.EXPANDS) {
		c.p.consume(token.IDENTIFIER, "expect superclass name")
		superName := c.p.lexeme(c.p.previous)
		if superName == name {
			c.p.error("a class cannot expand itself")
		}
		c.variableNamed(superName, false) // pushes superclass

		c.beginScope()
		c.addLocal("super")
		c.markInitialized() // "super" local occupies the superclass's stack slot

		c.variableNamed(name, false) // pushes subclass on top
		c.emitOp(INHERIT)            // copies methods, pops subclass
		cc.hasSuperclass = true
	}

	c.variableNamed(name, false)
	c.p.consume(token.LEFT_BRACE, "expect '{' before class body")
	for !c.p.check(token.RIGHT_BRACE) && !c.p.check(token.EOF) {
		c.classMember()
	}
	c.p.consume(token.RIGHT_BRACE, "expect '}' after class body")
	c.emitOp(POP) // the class value pushed for method/field attachment

	if cc.hasSuperclass {
		c.endScope()
	}
	c.cc = cc.enclosing
}

// classMember compiles one class-body member: a field declaration
// (`var`/`const var`) or a method (including `init`).
func (c *compiler) classMember() {
	switch {
	case c.p.match(token.VAR):
		c.fieldDeclaration(false)
	case c.p.match(token.CONST):
		c.p.consume(token.VAR, "expect 'var' after 'const'")
		c.fieldDeclaration(true)
	default:
		c.method()
	}
}

// fieldDeclaration compiles a field default-value slot: `var x;` or
// `const var x;` inside a class body, emitting DEFINE_PROPERTY so the
// class can stamp every new instance with its declared fields (a const
// field is flagged through DEFINE_PROPERTY's second operand). Fields have no
// initializer syntax; every declared field defaults to nil.
func (c *compiler) fieldDeclaration(isConst bool) {
	c.p.consume(token.IDENTIFIER, "expect field name")
	name := c.p.lexeme(c.p.previous)
	nameConst := c.identifierConstant(name)

	c.emitOp(NIL)
	c.p.consume(token.SEMICOLON, "expect ';' after field declaration")

	isConstByte := byte(0)
	if isConst {
		isConstByte = 1
	}
	c.emitByteIndex(DEFINE_PROPERTY, nameConst)
	c.emitByte(isConstByte)
}

func (c *compiler) method() {
	c.p.consume(token.IDENTIFIER, "expect method name")
	name := c.p.lexeme(c.p.previous)
	nameConst := c.identifierConstant(name)

	kind := MethodFunc
	if name == "init" {
		kind = InitializerFunc
	}
	c.function(kind, name)
	c.emitByteIndex(METHOD, nameConst)
}
