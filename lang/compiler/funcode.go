package compiler

// FuncKind distinguishes the handful of compiler-record kinds that need
// slightly different slot-0 and implicit-return behavior (§4.1).
type FuncKind int

const (
	ScriptFunc FuncKind = iota
	PlainFunc
	MethodFunc
	InitializerFunc
	LambdaFunc
)

// A Funcode is the compiled code of one function: its chunk plus the static
// metadata the VM needs to set up a call frame (§3's Function type, minus
// the runtime Module/upvalue wiring which belongs to machine.Closure).
type Funcode struct {
	Name         string
	Arity        int
	UpvalueCount int
	Kind         FuncKind
	Chunk        Chunk

	// Upvalues describes, in order, how each of this function's upvalues is
	// captured by a CLOSURE instruction in the *enclosing* function:
	// IsLocal true means "capture enclosing local slot Index", false means
	// "capture enclosing upvalue Index" (§4.1 upvalue resolution).
	Upvalues []UpvalueDesc
}

type UpvalueDesc struct {
	IsLocal bool
	Index   uint8
}
