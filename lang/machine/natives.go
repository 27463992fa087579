package machine

import "time"

// processStart anchors clock(), mirroring clox's CLOCKS_PER_SEC-relative
// reading with a monotonic Go equivalent.
var processStart = time.Now()

// registerGlobalNatives installs the VM's global native functions
// (§6: "Global native: clock() -> seconds").
func (t *Thread) registerGlobalNatives() {
	t.defineNative("clock", func(t *Thread, _ Value, args []Value) (Value, error) {
		if len(args) != 0 {
			return Nil, t.runtimeError("clock() takes no arguments")
		}
		return NumberValue(time.Since(processStart).Seconds()), nil
	})
}

func (t *Thread) defineNative(name string, fn NativeFn) {
	ref := t.allocObject(&ObjNative{Name: name, Fn: fn}, KindNativeObj, 32)
	t.Globals[name] = ObjectValue(ref)
}

// bindBuiltinMethod resolves name against the builtin methods of an
// array or dict receiver, returning a freshly bound native (§4.2:
// "on a builtin array/dictionary it binds a native method from the
// appropriate built-in class"), or ok=false if there is no such method.
func (t *Thread) bindBuiltinMethod(recv Value, name string) (Value, bool) {
	obj := t.Heap.Deref(recv.Ref)
	var fn NativeFn
	switch obj.(type) {
	case *ObjArray:
		fn = arrayMethods[name]
	case *ObjDict:
		fn = dictMethods[name]
	default:
		return Nil, false
	}
	if fn == nil {
		return Nil, false
	}
	ref := t.allocObject(&ObjNative{Name: name, Recv: recv, Fn: fn}, KindNativeObj, 40)
	return ObjectValue(ref), true
}

// arrayMethods implements §6's "Array: add(v), set(i,v), get(i), pop()".
var arrayMethods = map[string]NativeFn{
	"add": func(t *Thread, recv Value, args []Value) (Value, error) {
		arr := t.Heap.Deref(recv.Ref).(*ObjArray)
		if len(args) != 1 {
			return Nil, t.runtimeError("add() takes exactly one argument")
		}
		v := args[0]
		if arr.ElemSet && v.Kind != arr.ElemKind {
			return Nil, t.runtimeError("array element kind mismatch")
		}
		if !arr.ElemSet {
			arr.ElemSet = true
			arr.ElemKind = v.Kind
		}
		arr.Values = append(arr.Values, v)
		if v.Kind == KindObject {
			t.Heap.WriteBarrier(recv.Ref, v.Ref)
		}
		return recv, nil
	},
	"set": func(t *Thread, recv Value, args []Value) (Value, error) {
		arr := t.Heap.Deref(recv.Ref).(*ObjArray)
		if len(args) != 2 || args[0].Kind != KindNumber {
			return Nil, t.runtimeError("set(i, v) expects an index and a value")
		}
		i := int(args[0].Num)
		if i < 0 || i >= len(arr.Values) {
			return Nil, t.runtimeError("array index %d out of range", i)
		}
		if arr.ElemSet && args[1].Kind != arr.ElemKind {
			return Nil, t.runtimeError("array element kind mismatch")
		}
		arr.Values[i] = args[1]
		if args[1].Kind == KindObject {
			t.Heap.WriteBarrier(recv.Ref, args[1].Ref)
		}
		return args[1], nil
	},
	"get": func(t *Thread, recv Value, args []Value) (Value, error) {
		arr := t.Heap.Deref(recv.Ref).(*ObjArray)
		if len(args) != 1 || args[0].Kind != KindNumber {
			return Nil, t.runtimeError("get(i) expects an index")
		}
		i := int(args[0].Num)
		if i < 0 || i >= len(arr.Values) {
			return Nil, t.runtimeError("array index %d out of range", i)
		}
		return arr.Values[i], nil
	},
	"pop": func(t *Thread, recv Value, args []Value) (Value, error) {
		arr := t.Heap.Deref(recv.Ref).(*ObjArray)
		if len(args) != 0 {
			return Nil, t.runtimeError("pop() takes no arguments")
		}
		if len(arr.Values) == 0 {
			return Nil, t.runtimeError("pop() on empty array")
		}
		v := arr.Values[len(arr.Values)-1]
		arr.Values = arr.Values[:len(arr.Values)-1]
		return v, nil
	},
}

// dictMethods implements §6's "Dictionary: add(k,v) (fails if key
// exists), set(k,v), get(k)".
var dictMethods = map[string]NativeFn{
	"add": func(t *Thread, recv Value, args []Value) (Value, error) {
		d := t.Heap.Deref(recv.Ref).(*ObjDict)
		if len(args) != 2 || args[0].Kind != KindObject {
			return Nil, t.runtimeError("add(k, v) expects a string key and a value")
		}
		key := t.Heap.Deref(args[0].Ref).(*ObjString).Data
		if _, exists := d.Get(key); exists {
			return Nil, t.runtimeError("key %q already exists", key)
		}
		d.Set(key, args[1])
		if args[1].Kind == KindObject {
			t.Heap.WriteBarrier(recv.Ref, args[1].Ref)
		}
		return recv, nil
	},
	"set": func(t *Thread, recv Value, args []Value) (Value, error) {
		d := t.Heap.Deref(recv.Ref).(*ObjDict)
		if len(args) != 2 || args[0].Kind != KindObject {
			return Nil, t.runtimeError("set(k, v) expects a string key and a value")
		}
		key := t.Heap.Deref(args[0].Ref).(*ObjString).Data
		d.Set(key, args[1])
		if args[1].Kind == KindObject {
			t.Heap.WriteBarrier(recv.Ref, args[1].Ref)
		}
		return args[1], nil
	},
	"get": func(t *Thread, recv Value, args []Value) (Value, error) {
		d := t.Heap.Deref(recv.Ref).(*ObjDict)
		if len(args) != 1 || args[0].Kind != KindObject {
			return Nil, t.runtimeError("get(k) expects a string key")
		}
		key := t.Heap.Deref(args[0].Ref).(*ObjString).Data
		v, ok := d.Get(key)
		if !ok {
			return Nil, t.runtimeError("key %q not found", key)
		}
		return v, nil
	},
}
