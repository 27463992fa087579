// Package compiler turns lumen source into bytecode chunks: it owns the
// on-disk/in-memory instruction representation (Opcode, Chunk, Funcode) and
// the single-pass Pratt compiler that emits directly into a chunk without
// ever building an AST.
package compiler

// Opcode is a single bytecode instruction. Every opcode is one byte; operand
// shapes are fixed per opcode (see the comment beside each constant).
type Opcode byte

//nolint:revive
const (
	CONSTANT      Opcode = iota // CONSTANT<b>          - -> value
	CONSTANT_LONG               // CONSTANT_LONG<l>     - -> value
	NIL                         // NIL                  - -> nil
	TRUE                        // TRUE                 - -> true
	FALSE                       // FALSE                - -> false
	RANGE                       // RANGE                start end -> range

	POP        // POP            x -> -
	PUSH       // PUSH           x -> x x (duplicate of top)
	SAVE_VALUE // SAVE_VALUE     x -> x  (marker only: the VM leaves the value in place)
	REVERSE_N  // REVERSE_N<b>   x1..xn -> xn..x1
	PUSH_FROM  // PUSH_FROM<b>   - -> stack[b] (duplicate of slot b from top)
	SWAP       // SWAP<b><b>     swaps the two indicated stack slots

	GET_LOCAL // GET_LOCAL<b>   - -> local[b]
	SET_LOCAL // SET_LOCAL<b>   x -> x  (local[b] = x)

	GET_GLOBAL          // GET_GLOBAL<b>
	GET_GLOBAL_LONG     // GET_GLOBAL_LONG<l>
	SET_GLOBAL          // SET_GLOBAL<b>
	SET_GLOBAL_LONG     // SET_GLOBAL_LONG<l>
	DEFINE_GLOBAL       // DEFINE_GLOBAL<b>
	DEFINE_GLOBAL_LONG  // DEFINE_GLOBAL_LONG<l>
	DEFINE_CONST_GLOBAL // DEFINE_CONST_GLOBAL<b>
	DEFINE_CONST_GLOBAL_LONG

	GET_UPVALUE   // GET_UPVALUE<b>
	SET_UPVALUE   // SET_UPVALUE<b>
	CLOSE_UPVALUE // CLOSE_UPVALUE   x -> -

	ARRAY          // ARRAY<b>        x1..xn -> array
	ARRAY_LONG     // ARRAY_LONG<l>
	MAP            // MAP<b>          k1 v1 .. kn vn -> map
	MAP_LONG       // MAP_LONG<l>
	GET_ELEMENT    // GET_ELEMENT<b>            idx -> elem   (b: resolved local/global var slot info, see compiler)
	SET_ELEMENT    // SET_ELEMENT<b>        idx val -> val
	GET_ELEMENT_GLOBAL
	GET_ELEMENT_GLOBAL_LONG
	SET_ELEMENT_GLOBAL
	SET_ELEMENT_GLOBAL_LONG
	GET_ELEMENT_UPVALUE
	SET_ELEMENT_UPVALUE
	GET_ELEMENT_FROM_TOP // GET_ELEMENT_FROM_TOP   container idx -> elem
	INDIRECT_STORE       // INDIRECT_STORE         container idx val -> val
	CHECK_TYPE           // CHECK_TYPE<b>          - -> -  (reserved: the VM skips b and checks nothing)

	FOR_EACH               // FOR_EACH<b>            advances iteration, writes loop variable local b, pushes continue bool
	QUEUE                  // QUEUE                  iterable -> -
	DEQUE                  // DEQUE                  - -> iterable (fresh read of top of queue)
	QUEUE_REWIND           // QUEUE_REWIND           - -> -
	QUEUE_ADVANCE          // QUEUE_ADVANCE          - -> -
	QUEUE_CLEAR            // QUEUE_CLEAR            - -> -
	INCREMENT_NESTING_LVL  // INCREMENT_NESTING_LVL  - -> -
	DECREMENT_NESTING_LVL  // DECREMENT_NESTING_LVL  - -> -

	JUMP          // JUMP<w>            - -> -
	JUMP_IF_FALSE // JUMP_IF_FALSE<w>   cond -> cond  (peeks, does not pop)
	LOOP          // LOOP<w>            - -> -  (subtractive)

	EQUAL       // EQUAL       x y -> bool
	EQUAL_AND   // EQUAL_AND   x y -> bool
	LESS        // LESS        x y -> bool
	GREATER     // GREATER     x y -> bool
	ADD         // ADD         x y -> z
	SUBTRACT    // SUBTRACT    x y -> z
	MULTIPLY    // MULTIPLY    x y -> z
	DIVIDE      // DIVIDE      x y -> z
	NOT         // NOT         x -> bool
	NEGATE      // NEGATE      x -> -x
	PRINT       // PRINT       x -> -

	CALL         // CALL<b>            callee arg1..argn -> result
	CLOSURE      // CLOSURE<b>  {isLocal u8, index u8} * upvalueCount    funcode-const -> closure
	CLOSURE_LONG // CLOSURE_LONG<l>    same, long constant index
	RETURN       // RETURN      x -> (unwind frame)

	CLASS            // CLASS<b>                 - -> class
	METHOD           // METHOD<b>                class closure -> class
	INHERIT          // INHERIT                  superclass subclass -> superclass  (copies methods, pops subclass; superclass stays as the 'super' local slot)
	GET_SUPER        // GET_SUPER<b>             this super -> bound-method
	DEFINE_PROPERTY  // DEFINE_PROPERTY<b><b>    class default -> class   (name, isConst)
	GET_PROPERTY     // GET_PROPERTY<b>          recv -> value
	SET_PROPERTY     // SET_PROPERTY<b>          recv val -> val
	INVOKE           // INVOKE<b><b>             recv arg1..argn -> result  (name, argc)

	maxOpcode
)

// names used for disassembly and tracing.
var names = [maxOpcode]string{
	CONSTANT:                 "CONSTANT",
	CONSTANT_LONG:            "CONSTANT_LONG",
	NIL:                      "NIL",
	TRUE:                     "TRUE",
	FALSE:                    "FALSE",
	RANGE:                    "RANGE",
	POP:                      "POP",
	PUSH:                     "PUSH",
	SAVE_VALUE:               "SAVE_VALUE",
	REVERSE_N:                "REVERSE_N",
	PUSH_FROM:                "PUSH_FROM",
	SWAP:                     "SWAP",
	GET_LOCAL:                "GET_LOCAL",
	SET_LOCAL:                "SET_LOCAL",
	GET_GLOBAL:               "GET_GLOBAL",
	GET_GLOBAL_LONG:          "GET_GLOBAL_LONG",
	SET_GLOBAL:               "SET_GLOBAL",
	SET_GLOBAL_LONG:          "SET_GLOBAL_LONG",
	DEFINE_GLOBAL:            "DEFINE_GLOBAL",
	DEFINE_GLOBAL_LONG:       "DEFINE_GLOBAL_LONG",
	DEFINE_CONST_GLOBAL:      "DEFINE_CONST_GLOBAL",
	DEFINE_CONST_GLOBAL_LONG: "DEFINE_CONST_GLOBAL_LONG",
	GET_UPVALUE:              "GET_UPVALUE",
	SET_UPVALUE:              "SET_UPVALUE",
	CLOSE_UPVALUE:            "CLOSE_UPVALUE",
	ARRAY:                    "ARRAY",
	ARRAY_LONG:               "ARRAY_LONG",
	MAP:                      "MAP",
	MAP_LONG:                 "MAP_LONG",
	GET_ELEMENT:              "GET_ELEMENT",
	SET_ELEMENT:              "SET_ELEMENT",
	GET_ELEMENT_GLOBAL:       "GET_ELEMENT_GLOBAL",
	GET_ELEMENT_GLOBAL_LONG:  "GET_ELEMENT_GLOBAL_LONG",
	SET_ELEMENT_GLOBAL:       "SET_ELEMENT_GLOBAL",
	SET_ELEMENT_GLOBAL_LONG:  "SET_ELEMENT_GLOBAL_LONG",
	GET_ELEMENT_UPVALUE:      "GET_ELEMENT_UPVALUE",
	SET_ELEMENT_UPVALUE:      "SET_ELEMENT_UPVALUE",
	GET_ELEMENT_FROM_TOP:     "GET_ELEMENT_FROM_TOP",
	INDIRECT_STORE:           "INDIRECT_STORE",
	CHECK_TYPE:               "CHECK_TYPE",
	FOR_EACH:                 "FOR_EACH",
	QUEUE:                    "QUEUE",
	DEQUE:                    "DEQUE",
	QUEUE_REWIND:             "QUEUE_REWIND",
	QUEUE_ADVANCE:            "QUEUE_ADVANCE",
	QUEUE_CLEAR:              "QUEUE_CLEAR",
	INCREMENT_NESTING_LVL:    "INCREMENT_NESTING_LVL",
	DECREMENT_NESTING_LVL:    "DECREMENT_NESTING_LVL",
	JUMP:                     "JUMP",
	JUMP_IF_FALSE:            "JUMP_IF_FALSE",
	LOOP:                     "LOOP",
	EQUAL:                    "EQUAL",
	EQUAL_AND:                "EQUAL_AND",
	LESS:                     "LESS",
	GREATER:                  "GREATER",
	ADD:                      "ADD",
	SUBTRACT:                 "SUBTRACT",
	MULTIPLY:                 "MULTIPLY",
	DIVIDE:                   "DIVIDE",
	NOT:                      "NOT",
	NEGATE:                   "NEGATE",
	PRINT:                    "PRINT",
	CALL:                     "CALL",
	CLOSURE:                  "CLOSURE",
	CLOSURE_LONG:             "CLOSURE_LONG",
	RETURN:                   "RETURN",
	CLASS:                    "CLASS",
	METHOD:                   "METHOD",
	INHERIT:                  "INHERIT",
	GET_SUPER:                "GET_SUPER",
	DEFINE_PROPERTY:          "DEFINE_PROPERTY",
	GET_PROPERTY:             "GET_PROPERTY",
	SET_PROPERTY:             "SET_PROPERTY",
	INVOKE:                   "INVOKE",
}

func (op Opcode) String() string {
	if int(op) < len(names) && names[op] != "" {
		return names[op]
	}
	return "UNKNOWN_OPCODE"
}

// longVariant maps a short constant/global opcode to its 24-bit "_LONG"
// counterpart, used when an index no longer fits a single byte (§4.1).
var longVariant = map[Opcode]Opcode{
	CONSTANT:            CONSTANT_LONG,
	GET_GLOBAL:          GET_GLOBAL_LONG,
	SET_GLOBAL:          SET_GLOBAL_LONG,
	DEFINE_GLOBAL:       DEFINE_GLOBAL_LONG,
	DEFINE_CONST_GLOBAL: DEFINE_CONST_GLOBAL_LONG,
	ARRAY:               ARRAY_LONG,
	MAP:                 MAP_LONG,
	GET_ELEMENT_GLOBAL:  GET_ELEMENT_GLOBAL_LONG,
	SET_ELEMENT_GLOBAL:  SET_ELEMENT_GLOBAL_LONG,
	CLOSURE:             CLOSURE_LONG,
}

// LongVariant returns the long-operand form of a short opcode, if any.
func LongVariant(op Opcode) (Opcode, bool) {
	v, ok := longVariant[op]
	return v, ok
}
