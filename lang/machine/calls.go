package machine

import "github.com/mna/lumen/lang/gc"

// callValue dispatches CALL argc against whatever object sits at
// stackTop-argc-1, per §4.2's per-kind call contract.
func (t *Thread) callValue(argc int) error {
	calleeIdx := len(t.Stack) - argc - 1
	callee := t.Stack[calleeIdx]
	if callee.Kind != KindObject {
		return t.runtimeError("callee must be callable")
	}
	switch o := t.Heap.Deref(callee.Ref).(type) {
	case *ObjClosure:
		return t.callClosure(callee.Ref, o, argc, calleeIdx)
	case *ObjNative:
		args := append([]Value(nil), t.Stack[calleeIdx+1:]...)
		result, err := o.Fn(t, o.Recv, args)
		if err != nil {
			return err
		}
		t.Stack = t.Stack[:calleeIdx]
		t.push(result)
		return nil
	case *ObjClass:
		instRef := t.allocObject(&ObjInstance{Class: callee.Ref}, KindInstanceObj, 48)
		inst := t.Heap.Deref(instRef).(*ObjInstance)
		inst.Fields = t.instanceFields(instRef, o)
		t.Stack[calleeIdx] = ObjectValue(instRef)
		if initRef, ok := o.Methods["init"]; ok {
			initClosure := t.Heap.Deref(initRef).(*ObjClosure)
			return t.callClosure(initRef, initClosure, argc, calleeIdx)
		}
		if argc != 0 {
			return t.runtimeError("class %s takes no arguments", o.Name)
		}
		return nil
	case *ObjBoundMethod:
		t.Stack[calleeIdx] = o.Receiver
		closure := t.Heap.Deref(o.Method).(*ObjClosure)
		return t.callClosure(o.Method, closure, argc, calleeIdx)
	default:
		return t.runtimeError("callee must be callable")
	}
}

func (t *Thread) callClosure(ref gc.Ref, c *ObjClosure, argc, slotsBase int) error {
	if argc != c.Fn.Arity {
		return t.runtimeError("expected %d arguments but got %d", c.Fn.Arity, argc)
	}
	if len(t.Frames) >= t.MaxFrames {
		return t.runtimeError("stack overflow")
	}
	t.Frames = append(t.Frames, Frame{Closure: ref, Slots: slotsBase})
	return nil
}

// instanceFields seeds a new instance's field map from its class: field
// defaults, plus a bound method per class method so INVOKE's
// field-holds-a-callable fast path can reach methods directly (§3:
// "both class field defaults and class methods are copied into the
// instance's field map"; §4.2's INVOKE).
func (t *Thread) instanceFields(instRef gc.Ref, cls *ObjClass) map[string]Value {
	fields := make(map[string]Value, len(cls.Fields)+len(cls.Methods))
	for k, v := range cls.Fields {
		fields[k] = v
	}
	for name, methodRef := range cls.Methods {
		bound := t.allocObject(&ObjBoundMethod{Receiver: ObjectValue(instRef), Method: methodRef}, KindBoundMethodObj, 32)
		fields[name] = ObjectValue(bound)
	}
	return fields
}

// getProperty implements GET_PROPERTY (§4.2): on an instance, class
// methods take priority over same-named fields; on a builtin
// array/dict it binds a native method.
func (t *Thread) getProperty(recv Value, name string) (Value, error) {
	if recv.Kind != KindObject {
		return Nil, t.runtimeError("only instances and builtins have properties")
	}
	switch o := t.Heap.Deref(recv.Ref).(type) {
	case *ObjInstance:
		cls := t.Heap.Deref(o.Class).(*ObjClass)
		if methodRef, ok := cls.Methods[name]; ok {
			bound := t.allocObject(&ObjBoundMethod{Receiver: recv, Method: methodRef}, KindBoundMethodObj, 32)
			return ObjectValue(bound), nil
		}
		if v, ok := o.Fields[name]; ok {
			return v, nil
		}
		return Nil, t.runtimeError("undefined property '%s'", name)
	default:
		if v, ok := t.bindBuiltinMethod(recv, name); ok {
			return v, nil
		}
		return Nil, t.runtimeError("undefined property '%s'", name)
	}
}

// setProperty implements SET_PROPERTY (§4.2): refuses a write to a
// field the class declared const.
func (t *Thread) setProperty(recv Value, name string, val Value) error {
	if recv.Kind != KindObject {
		return t.runtimeError("only instances have settable properties")
	}
	inst, ok := t.Heap.Deref(recv.Ref).(*ObjInstance)
	if !ok {
		return t.runtimeError("only instances have settable properties")
	}
	cls := t.Heap.Deref(inst.Class).(*ObjClass)
	if cls.ConstFields[name] {
		return t.runtimeError("field '%s' is const", name)
	}
	inst.Fields[name] = val
	if val.Kind == KindObject {
		t.Heap.WriteBarrier(recv.Ref, val.Ref)
	}
	return nil
}

// invoke fuses a property fetch and call (§4.2's INVOKE): a callable
// field wins over the class's method table.
func (t *Thread) invoke(name string, argc int) error {
	recv := t.peek(argc)
	if recv.Kind != KindObject {
		return t.runtimeError("only instances and builtins have methods")
	}
	if inst, ok := t.Heap.Deref(recv.Ref).(*ObjInstance); ok {
		if field, ok := inst.Fields[name]; ok && field.Kind == KindObject {
			if _, isCallable := t.Heap.Deref(field.Ref).(*ObjClosure); isCallable {
				t.Stack[len(t.Stack)-argc-1] = field
				return t.callValue(argc)
			}
			if _, isCallable := t.Heap.Deref(field.Ref).(*ObjBoundMethod); isCallable {
				t.Stack[len(t.Stack)-argc-1] = field
				return t.callValue(argc)
			}
		}
		cls := t.Heap.Deref(inst.Class).(*ObjClass)
		methodRef, ok := cls.Methods[name]
		if !ok {
			return t.runtimeError("undefined property '%s'", name)
		}
		closure := t.Heap.Deref(methodRef).(*ObjClosure)
		return t.callClosure(methodRef, closure, argc, len(t.Stack)-argc-1)
	}
	bound, ok := t.bindBuiltinMethod(recv, name)
	if !ok {
		return t.runtimeError("undefined property '%s'", name)
	}
	t.Stack[len(t.Stack)-argc-1] = bound
	return t.callValue(argc)
}
