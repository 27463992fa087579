package compiler

import (
	"fmt"
	"io"
)

// Disassemble writes a human-readable dump of fn's chunk (and, recursively,
// every nested Funcode reachable through its constant pool) to w, one
// instruction per line, in the labelled-offset style of a bytecode
// disassembler: offset, source line (or "|" when unchanged from the
// previous instruction), opcode name, and resolved operand.
func Disassemble(w io.Writer, fn *Funcode) {
	fmt.Fprintf(w, "== %s ==\n", displayName(fn))
	c := &fn.Chunk
	prevLine := -1
	offset := 0
	for offset < len(c.Code) {
		offset, prevLine = disasmInstruction(w, c, offset, prevLine)
	}
	for _, k := range c.Constants {
		if nested, ok := k.(*Funcode); ok {
			fmt.Fprintln(w)
			Disassemble(w, nested)
		}
	}
}

// DisassembleInstruction writes a single instruction dump for fn's chunk at
// the given byte offset, for opcode-level execution tracing, and returns
// the offset of the next instruction.
func DisassembleInstruction(w io.Writer, fn *Funcode, offset int) int {
	next, _ := disasmInstruction(w, &fn.Chunk, offset, -1)
	return next
}

func displayName(fn *Funcode) string {
	if fn == nil || fn.Name == "" {
		return "script"
	}
	return fn.Name
}

func disasmInstruction(w io.Writer, c *Chunk, offset, prevLine int) (int, int) {
	line := c.LineFor(offset)
	if line == prevLine {
		fmt.Fprintf(w, "%04d    | ", offset)
	} else {
		fmt.Fprintf(w, "%04d %4d ", offset, line)
	}

	op := Opcode(c.Code[offset])
	switch op {
	case CLOSURE:
		return closureInstruction(w, c, offset, false), line
	case CLOSURE_LONG:
		return closureInstruction(w, c, offset, true), line
	case CONSTANT, GET_GLOBAL, SET_GLOBAL, DEFINE_GLOBAL, DEFINE_CONST_GLOBAL,
		GET_ELEMENT_GLOBAL, SET_ELEMENT_GLOBAL:
		return constantInstruction(w, op, c, offset), line
	case CONSTANT_LONG, GET_GLOBAL_LONG, SET_GLOBAL_LONG, DEFINE_GLOBAL_LONG,
		DEFINE_CONST_GLOBAL_LONG,
		GET_ELEMENT_GLOBAL_LONG, SET_ELEMENT_GLOBAL_LONG:
		return longConstantInstruction(w, op, c, offset), line
	case ARRAY_LONG, MAP_LONG:
		n := uint32(c.Code[offset+1]) | uint32(c.Code[offset+2])<<8 | uint32(c.Code[offset+3])<<16
		fmt.Fprintf(w, "%-24s %4d\n", op, n)
		return offset + 4, line
	case ARRAY, MAP, GET_LOCAL, SET_LOCAL, GET_UPVALUE, SET_UPVALUE, PUSH_FROM,
		REVERSE_N, FOR_EACH, CALL, GET_ELEMENT, SET_ELEMENT,
		GET_ELEMENT_UPVALUE, SET_ELEMENT_UPVALUE, CHECK_TYPE,
		CLASS, METHOD, GET_SUPER, GET_PROPERTY, SET_PROPERTY:
		return byteInstruction(w, op, c, offset), line
	case SWAP, DEFINE_PROPERTY, INVOKE:
		return twoByteInstruction(w, op, c, offset), line
	case JUMP, JUMP_IF_FALSE, LOOP:
		return jumpInstruction(w, op, c, offset), line
	default:
		fmt.Fprintln(w, op)
		return offset + 1, line
	}
}

// closureInstruction accounts for CLOSURE's variable-length tail: one
// {isLocal, index} byte pair per upvalue the referenced Funcode captures.
func closureInstruction(w io.Writer, c *Chunk, offset int, long bool) int {
	var idx uint32
	next := offset + 1
	if long {
		idx = uint32(c.Code[next]) | uint32(c.Code[next+1])<<8 | uint32(c.Code[next+2])<<16
		next += 3
	} else {
		idx = uint32(c.Code[next])
		next++
	}
	fn, _ := c.Constants[idx].(*Funcode)
	fmt.Fprintf(w, "%-24s %4d '%v'\n", CLOSURE, idx, displayName(fn))
	if fn != nil {
		for i := 0; i < fn.UpvalueCount; i++ {
			isLocal := c.Code[next]
			index := c.Code[next+1]
			kind := "upvalue"
			if isLocal != 0 {
				kind = "local"
			}
			fmt.Fprintf(w, "%04d      |                     %s %d\n", next, kind, index)
			next += 2
		}
	}
	return next
}

func constantInstruction(w io.Writer, op Opcode, c *Chunk, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(w, "%-24s %4d '%v'\n", op, idx, c.Constants[idx])
	return offset + 2
}

func longConstantInstruction(w io.Writer, op Opcode, c *Chunk, offset int) int {
	idx := uint32(c.Code[offset+1]) | uint32(c.Code[offset+2])<<8 | uint32(c.Code[offset+3])<<16
	fmt.Fprintf(w, "%-24s %4d '%v'\n", op, idx, c.Constants[idx])
	return offset + 4
}

func byteInstruction(w io.Writer, op Opcode, c *Chunk, offset int) int {
	fmt.Fprintf(w, "%-24s %4d\n", op, c.Code[offset+1])
	return offset + 2
}

func twoByteInstruction(w io.Writer, op Opcode, c *Chunk, offset int) int {
	fmt.Fprintf(w, "%-24s %4d %4d\n", op, c.Code[offset+1], c.Code[offset+2])
	return offset + 3
}

func jumpInstruction(w io.Writer, op Opcode, c *Chunk, offset int) int {
	word := uint16(c.Code[offset+1])<<8 | uint16(c.Code[offset+2])
	target := offset + 3
	if op == LOOP {
		target -= int(word)
	} else {
		target += int(word)
	}
	fmt.Fprintf(w, "%-24s %4d -> %d\n", op, offset, target)
	return offset + 3
}
