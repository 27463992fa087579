package machine

// index implements GET_ELEMENT*'s element lookup against an array
// (numeric index) or dict (string key); §4.2.
func (t *Thread) index(container, idx Value) (Value, error) {
	if container.Kind != KindObject {
		return Nil, t.runtimeError("value is not indexable")
	}
	switch o := t.Heap.Deref(container.Ref).(type) {
	case *ObjArray:
		if idx.Kind != KindNumber {
			return Nil, t.runtimeError("array index must be a number")
		}
		i := int(idx.Num)
		if i < 0 || i >= len(o.Values) {
			return Nil, t.runtimeError("array index %d out of range", i)
		}
		return o.Values[i], nil
	case *ObjDict:
		key, err := t.requireStringKey(idx)
		if err != nil {
			return Nil, err
		}
		v, ok := o.Get(key)
		if !ok {
			return Nil, t.runtimeError("key %q not found", key)
		}
		return v, nil
	default:
		return Nil, t.runtimeError("value is not indexable")
	}
}

// setIndex implements SET_ELEMENT*/INDIRECT_STORE's element write.
func (t *Thread) setIndex(container, idx, val Value) error {
	if container.Kind != KindObject {
		return t.runtimeError("value is not indexable")
	}
	switch o := t.Heap.Deref(container.Ref).(type) {
	case *ObjArray:
		if idx.Kind != KindNumber {
			return t.runtimeError("array index must be a number")
		}
		i := int(idx.Num)
		if i < 0 || i >= len(o.Values) {
			return t.runtimeError("array index %d out of range", i)
		}
		if o.ElemSet && val.Kind != o.ElemKind {
			return t.runtimeError("array element kind mismatch")
		}
		o.Values[i] = val
		if val.Kind == KindObject {
			t.Heap.WriteBarrier(container.Ref, val.Ref)
		}
		return nil
	case *ObjDict:
		key, err := t.requireStringKey(idx)
		if err != nil {
			return err
		}
		o.Set(key, val)
		if val.Kind == KindObject {
			t.Heap.WriteBarrier(container.Ref, val.Ref)
		}
		return nil
	default:
		return t.runtimeError("value is not indexable")
	}
}

func (t *Thread) requireStringKey(idx Value) (string, error) {
	if idx.Kind != KindObject {
		return "", t.runtimeError("dict key must be a string")
	}
	s, ok := t.Heap.Deref(idx.Ref).(*ObjString)
	if !ok {
		return "", t.runtimeError("dict key must be a string")
	}
	return s.Data, nil
}

func (t *Thread) upvalueValue(up *ObjUpvalue) Value {
	if up.Open {
		return t.Stack[up.Location]
	}
	return up.Closed
}

// forEach implements FOR_EACH<slot> (§4.1 point 5, §4.2): it reads the
// iterable queued for the current nesting level, advances it by one
// step, writes the produced element into the loop variable's slot (on
// the first pass, the slot DEQUE's placeholder value occupies; on later
// passes that placeholder sits above the slot and is dropped), and pushes a
// continuation bool. Array and dict progress through a per-level cursor
// (they are not consumable and may be iterated again elsewhere); a
// range's progress lives in the range object itself, since a range is
// specified as a finite, consumable, non-restartable iterable.
func (t *Thread) forEach(f *Frame, slot int) error {
	if len(t.Stack) > f.Slots+slot+1 {
		t.pop() // discard DEQUE's placeholder value; the real source is t.queued
	}
	level := t.nestingLevel
	iterable := t.queued[level]
	if iterable.Kind != KindObject {
		return t.runtimeError("value is not iterable")
	}
	switch o := t.Heap.Deref(iterable.Ref).(type) {
	case *ObjRange:
		if o.Current >= o.End {
			t.push(BoolValue(false))
			return nil
		}
		t.setLocal(f, slot, NumberValue(o.Current))
		o.Current++
		t.push(BoolValue(true))
	case *ObjArray:
		idx := t.cursor[level]
		if idx >= len(o.Values) {
			t.push(BoolValue(false))
			return nil
		}
		t.setLocal(f, slot, o.Values[idx])
		t.push(BoolValue(true))
	case *ObjDict:
		idx := t.cursor[level]
		if idx >= len(o.Order) {
			t.push(BoolValue(false))
			return nil
		}
		t.setLocal(f, slot, t.InternedString(o.Order[idx]))
		t.push(BoolValue(true))
	default:
		return t.runtimeError("value is not iterable")
	}
	return nil
}

// add implements ADD (§4.2): numeric addition, or string concatenation
// with every operand coerced to its display form first.
func (t *Thread) add() error {
	b := t.pop()
	a := t.pop()
	if a.Kind == KindNumber && b.Kind == KindNumber {
		t.push(NumberValue(a.Num + b.Num))
		return nil
	}
	s := ToDisplayString(t.Heap, a) + ToDisplayString(t.Heap, b)
	t.push(t.InternedString(s))
	return nil
}
