package machine

import (
	"fmt"

	"github.com/mna/lumen/lang/compiler"
	"github.com/mna/lumen/lang/gc"
)

// Run wraps fn in a top-level closure, calls it with no arguments, and
// drives the bytecode loop to completion (§6's driver contract).
func (t *Thread) Run(fn *compiler.Funcode) error {
	t.registerGlobalNatives()
	closureRef := t.makeClosure(fn, nil)
	t.push(ObjectValue(closureRef))
	if err := t.callValue(0); err != nil {
		t.Stack = t.Stack[:0]
		t.Frames = t.Frames[:0]
		return err
	}
	return t.run()
}

func (t *Thread) makeClosure(fn *compiler.Funcode, upvalues []gc.Ref) gc.Ref {
	return t.allocObject(&ObjClosure{Fn: fn, Upvalues: upvalues}, KindClosureObj, uint32(32+8*len(upvalues)))
}

func (t *Thread) frame() *Frame { return &t.Frames[len(t.Frames)-1] }

func (t *Thread) closureOf(f *Frame) *ObjClosure {
	return t.Heap.Deref(f.Closure).(*ObjClosure)
}

func (t *Thread) readByte(f *Frame) byte {
	b := t.closureOf(f).Fn.Chunk.Code[f.IP]
	f.IP++
	return b
}

func (t *Thread) readWord(f *Frame) uint16 {
	hi := t.readByte(f)
	lo := t.readByte(f)
	return uint16(hi)<<8 | uint16(lo)
}

func (t *Thread) readLong(f *Frame) uint32 {
	b0 := t.readByte(f)
	b1 := t.readByte(f)
	b2 := t.readByte(f)
	return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16
}

func (t *Thread) readConstantRaw(f *Frame, idx uint32) any {
	return t.closureOf(f).Fn.Chunk.Constants[idx]
}

// readConstant resolves a constant-pool entry to a runtime Value,
// interning string literals on the fly (§3's "CONSTANT" handling).
func (t *Thread) readConstant(f *Frame, idx uint32) Value {
	switch v := t.readConstantRaw(f, idx).(type) {
	case float64:
		return NumberValue(v)
	case string:
		return t.InternedString(v)
	default:
		return Nil
	}
}

// readName resolves a constant-pool entry used as an identifier (global,
// property, method, or class name) to its raw Go string.
func (t *Thread) readName(f *Frame, idx uint32) string {
	return t.readConstantRaw(f, idx).(string)
}

func (t *Thread) readFuncode(f *Frame, idx uint32) *compiler.Funcode {
	return t.readConstantRaw(f, idx).(*compiler.Funcode)
}

// run is the single bytecode dispatch loop (§4.2): it executes until the
// outermost frame returns or an opcode raises a runtime error.
func (t *Thread) run() error {
	for {
		f := t.frame()
		if t.TraceOut != nil {
			compiler.DisassembleInstruction(t.TraceOut, t.closureOf(f).Fn, f.IP)
		}
		op := compiler.Opcode(t.readByte(f))

		switch op {
		case compiler.CONSTANT:
			t.push(t.readConstant(f, uint32(t.readByte(f))))
		case compiler.CONSTANT_LONG:
			t.push(t.readConstant(f, t.readLong(f)))
		case compiler.NIL:
			t.push(Nil)
		case compiler.TRUE:
			t.push(BoolValue(true))
		case compiler.FALSE:
			t.push(BoolValue(false))
		case compiler.RANGE:
			end := t.pop()
			start := t.pop()
			if start.Kind != KindNumber || end.Kind != KindNumber {
				return t.runtimeError("Operands must be numbers.")
			}
			ref := t.allocObject(&ObjRange{Current: start.Num, Start: start.Num, End: end.Num}, KindRangeObj, 32)
			t.push(ObjectValue(ref))

		case compiler.POP:
			t.pop()
		case compiler.PUSH, compiler.PUSH_FROM:
			dist := 0
			if op == compiler.PUSH_FROM {
				dist = int(t.readByte(f))
			}
			t.push(t.peek(dist))
		case compiler.SAVE_VALUE:
			// no-op marker: the value is simply left in place for a later
			// REVERSE_N, neither of which the compiler currently emits.
		case compiler.REVERSE_N:
			n := int(t.readByte(f))
			top := len(t.Stack)
			for i, j := top-n, top-1; i < j; i, j = i+1, j-1 {
				t.Stack[i], t.Stack[j] = t.Stack[j], t.Stack[i]
			}
		case compiler.SWAP:
			a := int(t.readByte(f))
			b := int(t.readByte(f))
			top := len(t.Stack) - 1
			t.Stack[top-a], t.Stack[top-b] = t.Stack[top-b], t.Stack[top-a]

		case compiler.GET_LOCAL:
			t.push(t.getLocal(f, int(t.readByte(f))))
		case compiler.SET_LOCAL:
			t.setLocal(f, int(t.readByte(f)), t.peek(0))

		case compiler.GET_GLOBAL, compiler.GET_GLOBAL_LONG:
			name := t.readName(f, t.constOperand(f, op))
			v, ok := t.Globals[name]
			if !ok {
				return t.runtimeError("undefined global '%s'", name)
			}
			t.push(v)
		case compiler.SET_GLOBAL, compiler.SET_GLOBAL_LONG:
			name := t.readName(f, t.constOperand(f, op))
			if _, ok := t.Globals[name]; !ok {
				return t.runtimeError("undefined global '%s'", name)
			}
			if t.GlobalConst[name] {
				return t.runtimeError("'%s' is const", name)
			}
			t.Globals[name] = t.peek(0)
		case compiler.DEFINE_GLOBAL, compiler.DEFINE_GLOBAL_LONG:
			name := t.readName(f, t.constOperand(f, op))
			t.Globals[name] = t.pop()
			delete(t.GlobalConst, name)
		case compiler.DEFINE_CONST_GLOBAL, compiler.DEFINE_CONST_GLOBAL_LONG:
			name := t.readName(f, t.constOperand(f, op))
			t.Globals[name] = t.pop()
			t.GlobalConst[name] = true

		case compiler.GET_UPVALUE:
			up := t.Heap.Deref(t.closureOf(f).Upvalues[t.readByte(f)]).(*ObjUpvalue)
			if up.Open {
				t.push(t.Stack[up.Location])
			} else {
				t.push(up.Closed)
			}
		case compiler.SET_UPVALUE:
			upRef := t.closureOf(f).Upvalues[t.readByte(f)]
			up := t.Heap.Deref(upRef).(*ObjUpvalue)
			if up.Open {
				t.Stack[up.Location] = t.peek(0)
			} else {
				v := t.peek(0)
				up.Closed = v
				if v.Kind == KindObject {
					t.Heap.WriteBarrier(upRef, v.Ref)
				}
			}
		case compiler.CLOSE_UPVALUE:
			t.closeUpvalues(len(t.Stack) - 1)
			t.pop()

		case compiler.ARRAY, compiler.ARRAY_LONG:
			n := int(t.constOperand(f, op))
			arr := &ObjArray{}
			if n > 0 {
				arr.Values = append([]Value(nil), t.Stack[len(t.Stack)-n:]...)
				arr.ElemSet = true
				arr.ElemKind = arr.Values[0].Kind
				for _, v := range arr.Values {
					if v.Kind != arr.ElemKind {
						return t.runtimeError("array elements must share one kind")
					}
				}
			}
			t.Stack = t.Stack[:len(t.Stack)-n]
			ref := t.allocObject(arr, KindArrayObj, uint32(24+16*n))
			t.push(ObjectValue(ref))
		case compiler.MAP, compiler.MAP_LONG:
			n := int(t.constOperand(f, op))
			d := NewObjDict()
			base := len(t.Stack) - 2*n
			for i := 0; i < n; i++ {
				k := t.Stack[base+2*i]
				v := t.Stack[base+2*i+1]
				if k.Kind != KindObject {
					return t.runtimeError("dict keys must be strings")
				}
				ks, ok := t.Heap.Deref(k.Ref).(*ObjString)
				if !ok {
					return t.runtimeError("dict keys must be strings")
				}
				d.Set(ks.Data, v)
			}
			t.Stack = t.Stack[:base]
			ref := t.allocObject(d, KindDictObj, uint32(32+24*n))
			t.push(ObjectValue(ref))

		case compiler.GET_ELEMENT:
			idx := t.pop()
			v := t.getLocal(f, int(t.readByte(f)))
			elem, err := t.index(v, idx)
			if err != nil {
				return err
			}
			t.push(elem)
		case compiler.SET_ELEMENT:
			val := t.pop()
			idx := t.pop()
			v := t.getLocal(f, int(t.readByte(f)))
			if err := t.setIndex(v, idx, val); err != nil {
				return err
			}
			t.push(val)
		case compiler.GET_ELEMENT_GLOBAL, compiler.GET_ELEMENT_GLOBAL_LONG:
			idx := t.pop()
			name := t.readName(f, t.constOperand(f, op))
			v, ok := t.Globals[name]
			if !ok {
				return t.runtimeError("undefined global '%s'", name)
			}
			elem, err := t.index(v, idx)
			if err != nil {
				return err
			}
			t.push(elem)
		case compiler.SET_ELEMENT_GLOBAL, compiler.SET_ELEMENT_GLOBAL_LONG:
			val := t.pop()
			idx := t.pop()
			name := t.readName(f, t.constOperand(f, op))
			v, ok := t.Globals[name]
			if !ok {
				return t.runtimeError("undefined global '%s'", name)
			}
			if err := t.setIndex(v, idx, val); err != nil {
				return err
			}
			t.push(val)
		case compiler.GET_ELEMENT_UPVALUE:
			idx := t.pop()
			up := t.Heap.Deref(t.closureOf(f).Upvalues[t.readByte(f)]).(*ObjUpvalue)
			v := t.upvalueValue(up)
			elem, err := t.index(v, idx)
			if err != nil {
				return err
			}
			t.push(elem)
		case compiler.SET_ELEMENT_UPVALUE:
			val := t.pop()
			idx := t.pop()
			up := t.Heap.Deref(t.closureOf(f).Upvalues[t.readByte(f)]).(*ObjUpvalue)
			v := t.upvalueValue(up)
			if err := t.setIndex(v, idx, val); err != nil {
				return err
			}
			t.push(val)
		case compiler.GET_ELEMENT_FROM_TOP:
			idx := t.pop()
			container := t.pop()
			elem, err := t.index(container, idx)
			if err != nil {
				return err
			}
			t.push(elem)
		case compiler.INDIRECT_STORE:
			val := t.pop()
			idx := t.pop()
			container := t.pop()
			if err := t.setIndex(container, idx, val); err != nil {
				return err
			}
			t.push(val)
		case compiler.CHECK_TYPE:
			// reserved: no array/dict-typed literal syntax exists yet to
			// exercise this opcode; treated as a no-op if ever emitted.
			t.readByte(f)

		case compiler.FOR_EACH:
			if err := t.forEach(f, int(t.readByte(f))); err != nil {
				return err
			}
		case compiler.QUEUE:
			v := t.pop()
			t.queued[t.nestingLevel+1] = v
			t.cursor[t.nestingLevel+1] = 0
		case compiler.DEQUE:
			t.push(t.queued[t.nestingLevel])
		case compiler.QUEUE_REWIND:
			if t.cursor[t.nestingLevel] > 0 {
				t.cursor[t.nestingLevel]--
			}
		case compiler.QUEUE_ADVANCE:
			t.cursor[t.nestingLevel]++
		case compiler.QUEUE_CLEAR:
			t.queued[t.nestingLevel] = Value{}
			t.cursor[t.nestingLevel] = 0
		case compiler.INCREMENT_NESTING_LVL:
			t.nestingLevel++
		case compiler.DECREMENT_NESTING_LVL:
			t.nestingLevel--

		case compiler.JUMP:
			offset := t.readWord(f)
			f.IP += int(offset)
		case compiler.JUMP_IF_FALSE:
			offset := t.readWord(f)
			if !t.peek(0).Truthy() {
				f.IP += int(offset)
			}
		case compiler.LOOP:
			offset := t.readWord(f)
			f.IP -= int(offset)

		case compiler.EQUAL:
			b := t.pop()
			a := t.pop()
			t.push(BoolValue(Equal(a, b)))
		case compiler.EQUAL_AND:
			// reserved: no multi-pattern match-arm syntax exists to emit this.
			// Boolean operands AND; anything else falls back to equality.
			b := t.pop()
			a := t.pop()
			if a.Kind == KindBool && b.Kind == KindBool {
				t.push(BoolValue(a.Bool && b.Bool))
			} else {
				t.push(BoolValue(Equal(a, b)))
			}
		case compiler.LESS, compiler.GREATER:
			b := t.pop()
			a := t.pop()
			if a.Kind != KindNumber || b.Kind != KindNumber {
				return t.runtimeError("Operands must be numbers.")
			}
			if op == compiler.LESS {
				t.push(BoolValue(a.Num < b.Num))
			} else {
				t.push(BoolValue(a.Num > b.Num))
			}
		case compiler.ADD:
			if err := t.add(); err != nil {
				return err
			}
		case compiler.SUBTRACT, compiler.MULTIPLY, compiler.DIVIDE:
			b := t.pop()
			a := t.pop()
			if a.Kind != KindNumber || b.Kind != KindNumber {
				return t.runtimeError("Operands must be numbers.")
			}
			switch op {
			case compiler.SUBTRACT:
				t.push(NumberValue(a.Num - b.Num))
			case compiler.MULTIPLY:
				t.push(NumberValue(a.Num * b.Num))
			case compiler.DIVIDE:
				if b.Num == 0 {
					return t.runtimeError("division by zero")
				}
				t.push(NumberValue(a.Num / b.Num))
			}
		case compiler.NOT:
			t.push(BoolValue(!t.pop().Truthy()))
		case compiler.NEGATE:
			v := t.pop()
			if v.Kind != KindNumber {
				return t.runtimeError("Operand must be a number.")
			}
			t.push(NumberValue(-v.Num))
		case compiler.PRINT:
			fmt.Fprintln(t.Stdout, ToDisplayString(t.Heap, t.pop()))

		case compiler.CALL:
			argc := int(t.readByte(f))
			if err := t.callValue(argc); err != nil {
				return err
			}
		case compiler.CLOSURE, compiler.CLOSURE_LONG:
			fn := t.readFuncode(f, t.constOperand(f, op))
			ups := make([]gc.Ref, fn.UpvalueCount)
			for i := range ups {
				isLocal := t.readByte(f)
				index := t.readByte(f)
				if isLocal != 0 {
					ups[i] = t.captureUpvalue(f.Slots + int(index))
				} else {
					ups[i] = t.closureOf(f).Upvalues[index]
				}
			}
			t.push(ObjectValue(t.makeClosure(fn, ups)))
		case compiler.RETURN:
			result := t.pop()
			t.closeUpvalues(f.Slots)
			t.Frames = t.Frames[:len(t.Frames)-1]
			if len(t.Frames) == 0 {
				return nil
			}
			t.Stack = t.Stack[:f.Slots]
			t.push(result)

		case compiler.CLASS:
			name := t.readName(f, uint32(t.readByte(f)))
			ref := t.allocObject(NewObjClass(name), KindClassObj, 64)
			t.push(ObjectValue(ref))
		case compiler.METHOD:
			name := t.readName(f, uint32(t.readByte(f)))
			closure := t.pop()
			classRef := t.peek(0).Ref
			cls := t.Heap.Deref(classRef).(*ObjClass)
			cls.Methods[name] = closure.Ref
			t.Heap.WriteBarrier(classRef, closure.Ref)
		case compiler.INHERIT:
			subclass := t.pop()
			super, ok := t.Heap.Deref(t.peek(0).Ref).(*ObjClass)
			if !ok {
				return t.runtimeError("superclass must be a class")
			}
			sub := t.Heap.Deref(subclass.Ref).(*ObjClass)
			for name, m := range super.Methods {
				sub.Methods[name] = m
				t.Heap.WriteBarrier(subclass.Ref, m)
			}
			for name, v := range super.Fields {
				sub.Fields[name] = v
				if v.Kind == KindObject {
					t.Heap.WriteBarrier(subclass.Ref, v.Ref)
				}
			}
			for name, c := range super.ConstFields {
				sub.ConstFields[name] = c
			}
		case compiler.GET_SUPER:
			name := t.readName(f, uint32(t.readByte(f)))
			super := t.pop()
			this := t.pop()
			cls := t.Heap.Deref(super.Ref).(*ObjClass)
			methodRef, ok := cls.Methods[name]
			if !ok {
				return t.runtimeError("undefined property '%s'", name)
			}
			bound := t.allocObject(&ObjBoundMethod{Receiver: this, Method: methodRef}, KindBoundMethodObj, 32)
			t.push(ObjectValue(bound))
		case compiler.DEFINE_PROPERTY:
			name := t.readName(f, uint32(t.readByte(f)))
			isConst := t.readByte(f)
			def := t.pop()
			classRef := t.peek(0).Ref
			cls := t.Heap.Deref(classRef).(*ObjClass)
			cls.Fields[name] = def
			if def.Kind == KindObject {
				t.Heap.WriteBarrier(classRef, def.Ref)
			}
			if isConst != 0 {
				cls.ConstFields[name] = true
			}
		case compiler.GET_PROPERTY:
			name := t.readName(f, uint32(t.readByte(f)))
			recv := t.pop()
			v, err := t.getProperty(recv, name)
			if err != nil {
				return err
			}
			t.push(v)
		case compiler.SET_PROPERTY:
			name := t.readName(f, uint32(t.readByte(f)))
			val := t.pop()
			recv := t.pop()
			if err := t.setProperty(recv, name, val); err != nil {
				return err
			}
			t.push(val)
		case compiler.INVOKE:
			name := t.readName(f, uint32(t.readByte(f)))
			argc := int(t.readByte(f))
			if err := t.invoke(name, argc); err != nil {
				return err
			}

		default:
			return t.runtimeError("unimplemented opcode %s", op)
		}
	}
}

// constOperand reads the right-sized constant-pool index for a short or
// long opcode variant (§4.1's dual short/24-bit-long encoding).
func (t *Thread) constOperand(f *Frame, op compiler.Opcode) uint32 {
	switch op {
	case compiler.CONSTANT_LONG, compiler.GET_GLOBAL_LONG, compiler.SET_GLOBAL_LONG,
		compiler.DEFINE_GLOBAL_LONG, compiler.DEFINE_CONST_GLOBAL_LONG,
		compiler.ARRAY_LONG, compiler.MAP_LONG,
		compiler.GET_ELEMENT_GLOBAL_LONG, compiler.SET_ELEMENT_GLOBAL_LONG,
		compiler.CLOSURE_LONG:
		return t.readLong(f)
	default:
		return uint32(t.readByte(f))
	}
}
