package machine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/lumen/lang/compiler"
	"github.com/mna/lumen/lang/gc"
)

// asm is a tiny chunk-builder used to hand-assemble bytecode for tests
// without going through the compiler, mirroring how the teacher's own
// opcode tests exercise the instruction set directly.
type asm struct {
	chunk *compiler.Chunk
	line  int
}

func newAsm() *asm { return &asm{chunk: &compiler.Chunk{}, line: 1} }

func (a *asm) op(op compiler.Opcode) *asm {
	a.chunk.WriteOp(op, a.line)
	return a
}

func (a *asm) byte(b byte) *asm {
	a.chunk.Write(b, a.line)
	return a
}

func (a *asm) constant(v any) *asm {
	idx := a.chunk.AddConstant(v)
	a.op(compiler.CONSTANT).byte(byte(idx))
	return a
}

func (a *asm) fn(name string) *compiler.Funcode {
	return &compiler.Funcode{Name: name, Kind: compiler.ScriptFunc, Chunk: *a.chunk}
}

func newTestThread() *Thread {
	return NewThread(gc.DefaultConfig())
}

func TestArithmeticAndPrint(t *testing.T) {
	a := newAsm()
	a.constant(2.0)
	a.constant(3.0)
	a.op(compiler.ADD)
	a.op(compiler.PRINT)
	a.op(compiler.NIL)
	a.op(compiler.RETURN)

	th := newTestThread()
	var out bytes.Buffer
	th.Stdout = &out
	require.NoError(t, th.Run(a.fn("main")))
	require.Equal(t, "5\n", out.String())
}

func TestStringConcatenation(t *testing.T) {
	a := newAsm()
	a.constant("foo")
	a.constant(1.0)
	a.op(compiler.ADD)
	a.op(compiler.PRINT)
	a.op(compiler.NIL)
	a.op(compiler.RETURN)

	th := newTestThread()
	var out bytes.Buffer
	th.Stdout = &out
	require.NoError(t, th.Run(a.fn("main")))
	require.Equal(t, "foo1\n", out.String())
}

func TestGlobalsDefineGetSet(t *testing.T) {
	a := newAsm()
	nameIdx := a.chunk.AddConstant("x")
	a.constant(10.0)
	a.op(compiler.DEFINE_GLOBAL).byte(byte(nameIdx))
	a.constant(20.0)
	a.op(compiler.SET_GLOBAL).byte(byte(nameIdx))
	a.op(compiler.GET_GLOBAL).byte(byte(nameIdx))
	a.op(compiler.PRINT)
	a.op(compiler.NIL)
	a.op(compiler.RETURN)

	th := newTestThread()
	var out bytes.Buffer
	th.Stdout = &out
	require.NoError(t, th.Run(a.fn("main")))
	require.Equal(t, "20\n", out.String())
}

func TestConstGlobalRejectsReassignment(t *testing.T) {
	a := newAsm()
	nameIdx := a.chunk.AddConstant("x")
	a.constant(10.0)
	a.op(compiler.DEFINE_CONST_GLOBAL).byte(byte(nameIdx))
	a.constant(20.0)
	a.op(compiler.SET_GLOBAL).byte(byte(nameIdx))
	a.op(compiler.NIL)
	a.op(compiler.RETURN)

	th := newTestThread()
	err := th.Run(a.fn("main"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "const")
}

func TestArrayHomogeneityEnforced(t *testing.T) {
	a := newAsm()
	a.constant(1.0)
	a.constant("oops")
	a.op(compiler.ARRAY).byte(2)
	a.op(compiler.RETURN)

	th := newTestThread()
	err := th.Run(a.fn("main"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "kind")
}

func TestArrayIndexRoundTrip(t *testing.T) {
	a := newAsm()
	a.constant(1.0)
	a.constant(2.0)
	a.constant(3.0)
	a.op(compiler.ARRAY).byte(3)
	a.op(compiler.SET_LOCAL).byte(1)
	a.constant(1.0)
	a.op(compiler.GET_ELEMENT).byte(1)
	a.op(compiler.PRINT)
	a.op(compiler.NIL)
	a.op(compiler.RETURN)

	fn := a.fn("main")
	th := newTestThread()
	var out bytes.Buffer
	th.Stdout = &out
	require.NoError(t, th.Run(fn))
	require.Equal(t, "2\n", out.String())
}

func TestDictAddGetViaNativeMethod(t *testing.T) {
	a := newAsm()
	a.op(compiler.MAP).byte(0)
	a.op(compiler.SET_LOCAL).byte(1)
	addIdx := a.chunk.AddConstant("add")
	a.op(compiler.GET_LOCAL).byte(1)
	a.constant("k")
	a.constant(42.0)
	a.op(compiler.INVOKE).byte(byte(addIdx)).byte(2)
	a.op(compiler.POP)

	a.op(compiler.GET_LOCAL).byte(1)
	getIdx := a.chunk.AddConstant("get")
	a.constant("k")
	a.op(compiler.INVOKE).byte(byte(getIdx)).byte(1)
	a.op(compiler.PRINT)
	a.op(compiler.NIL)
	a.op(compiler.RETURN)

	th := newTestThread()
	var out bytes.Buffer
	th.Stdout = &out
	require.NoError(t, th.Run(a.fn("main")))
	require.Equal(t, "42\n", out.String())
}

func TestDivisionByZero(t *testing.T) {
	a := newAsm()
	a.constant(1.0)
	a.constant(0.0)
	a.op(compiler.DIVIDE)
	a.op(compiler.RETURN)

	th := newTestThread()
	err := th.Run(a.fn("main"))
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	require.Contains(t, rerr.Message, "division by zero")
	require.NotEmpty(t, rerr.Trace)
}

func TestClassInstanceFieldDefault(t *testing.T) {
	a := newAsm()
	classNameIdx := a.chunk.AddConstant("Point")
	a.op(compiler.CLASS).byte(byte(classNameIdx))
	a.op(compiler.SET_LOCAL).byte(1)

	fieldNameIdx := a.chunk.AddConstant("x")
	a.constant(0.0)
	a.op(compiler.DEFINE_PROPERTY).byte(byte(fieldNameIdx)).byte(0)

	a.op(compiler.GET_LOCAL).byte(1)
	a.op(compiler.CALL).byte(0)
	a.op(compiler.SET_LOCAL).byte(2)

	a.op(compiler.GET_LOCAL).byte(2)
	a.op(compiler.GET_PROPERTY).byte(byte(fieldNameIdx))
	a.op(compiler.PRINT)
	a.op(compiler.NIL)
	a.op(compiler.RETURN)

	th := newTestThread()
	var out bytes.Buffer
	th.Stdout = &out
	require.NoError(t, th.Run(a.fn("main")))
	require.Equal(t, "0\n", out.String())
}

func TestEqualityAndComparison(t *testing.T) {
	a := newAsm()
	a.constant(1.0)
	a.constant(1.0)
	a.op(compiler.EQUAL)
	a.op(compiler.PRINT)
	a.constant(1.0)
	a.constant(2.0)
	a.op(compiler.LESS)
	a.op(compiler.PRINT)
	a.op(compiler.NIL)
	a.op(compiler.RETURN)

	th := newTestThread()
	var out bytes.Buffer
	th.Stdout = &out
	require.NoError(t, th.Run(a.fn("main")))
	require.Equal(t, "true\ntrue\n", out.String())
}

func TestStringInterningGivesSameRef(t *testing.T) {
	th := newTestThread()
	a := th.InternedString("hello")
	b := th.InternedString("hello")
	require.Equal(t, a.Ref, b.Ref)
	require.True(t, Equal(a, b))
}
