package machine

import (
	"fmt"
	"strings"
)

// RuntimeError is returned by Thread.Run when bytecode execution fails
// (§7: "runtime errors... unwind the entire call stack, print a
// '[line N] in <name>' trace from innermost to outermost frame").
type RuntimeError struct {
	Message string
	Trace   []string
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, line := range e.Trace {
		b.WriteByte('\n')
		b.WriteString(line)
	}
	return b.String()
}

// runtimeError builds a RuntimeError carrying a trace of every active
// frame, innermost first, each mapped through its chunk's line RLE.
func (t *Thread) runtimeError(format string, args ...any) *RuntimeError {
	msg := fmt.Sprintf(format, args...)
	trace := make([]string, 0, len(t.Frames))
	for i := len(t.Frames) - 1; i >= 0; i-- {
		f := &t.Frames[i]
		closure, _ := t.Heap.Deref(f.Closure).(*ObjClosure)
		name := "script"
		line := 0
		if closure != nil {
			if closure.Fn.Name != "" {
				name = closure.Fn.Name
			}
			// IP already advanced past the failing instruction's opcode byte
			// by the time an error is raised; back up one to report the
			// instruction that actually failed.
			offset := f.IP - 1
			if offset < 0 {
				offset = 0
			}
			line = closure.Fn.Chunk.LineFor(offset)
		}
		trace = append(trace, fmt.Sprintf("[line %d] in %s", line, name))
	}
	return &RuntimeError{Message: msg, Trace: trace}
}
