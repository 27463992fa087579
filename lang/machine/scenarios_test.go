package machine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/lumen/lang/compiler"
	"github.com/mna/lumen/lang/gc"
)

// run compiles src through the real Pratt compiler and executes it,
// returning everything written to stdout. These are the literal
// end-to-end scenarios the language is specified against.
func run(t *testing.T, src string) string {
	t.Helper()
	fn, err := compiler.Compile([]byte(src))
	require.NoError(t, err)

	th := NewThread(gc.DefaultConfig())
	var out bytes.Buffer
	th.Stdout = &out
	require.NoError(t, th.Run(fn))
	return out.String()
}

func TestScenarioFibonacciBaseline(t *testing.T) {
	src := `fn fib(n){ if(n<2) return n; return fib(n-1)+fib(n-2); } print fib(10);`
	require.Equal(t, "55\n", run(t, src))
}

func TestScenarioClosureCapturesMutableLocal(t *testing.T) {
	src := `fn make(){ var c=0; fn inc(){ c=c+1; return c; } return inc; }
var f = make(); print f(); print f(); print f();`
	require.Equal(t, "1\n2\n3\n", run(t, src))
}

func TestScenarioClassInheritanceAndSuper(t *testing.T) {
	src := `class A { speak(){ print "A"; } }
class B expands A { speak(){ super.speak(); print "B"; } }
B().speak();`
	require.Equal(t, "A\nB\n", run(t, src))
}

func TestScenarioArrayAndDictIterationInsertionOrder(t *testing.T) {
	src := `var a=[1,2,3]; for x in a print x;
var d={"k1":10,"k2":20}; for k in d print k;`
	require.Equal(t, "1\n2\n3\nk1\nk2\n", run(t, src))
}

func TestScenarioConstGlobalRejection(t *testing.T) {
	src := `const var PI = 3; PI = 4;`
	fn, err := compiler.Compile([]byte(src))
	if err != nil {
		require.Contains(t, err.Error(), "PI")
		return
	}
	th := NewThread(gc.DefaultConfig())
	runErr := th.Run(fn)
	require.Error(t, runErr)
	require.Contains(t, runErr.Error(), "PI")
}

func TestScenarioNestedForEachPreservesOuterIterable(t *testing.T) {
	src := `var A=[1,2]; var B=["a","b"];
for x in A { for y in B { print x; print y; } }`
	require.Equal(t, "1\na\n1\nb\n2\na\n2\nb\n", run(t, src))
}
