// Package callback derives comparable identities for func values so the same
// callback can be recognised when it is registered twice.
//
// Go func values are not comparable. Two references to the same top-level
// function or non-capturing literal share one static closure, so comparing
// closure addresses works for them. A method value (recv.Method) is
// different: every evaluation allocates a fresh closure around the receiver.
// For those the identity is the method wrapper plus the receiver word, so
// p.OnPing evaluated twice on the same *P yields one Key.
//
// Capturing closure literals keep per-evaluation identity: two evaluations
// are two callbacks even when they capture the same variables.
package callback

import (
	"reflect"
	"runtime"
	"strings"
	"sync"
	"unsafe"
)

// Key identifies a callback. The zero Key identifies nil.
type Key struct {
	code   uintptr
	// data is the closure address, or the receiver word of a method value.
	data   uintptr
	method bool
}

// IsZero reports whether k identifies nothing.
func (k Key) IsZero() bool { return k == Key{} }

// Method reports whether k was derived from a method value.
func (k Key) Method() bool { return k.method }

// Of returns the identity of fn. F must be a func type; any other type or a
// nil func yields the zero Key.
//
// The receiver word of a method value is the receiver pointer for pointer
// receivers and the first word of the copied receiver for value receivers.
func Of[F any](fn F) Key {
	if v := reflect.ValueOf(fn); v.Kind() != reflect.Func || v.IsNil() {
		return Key{}
	}

	closure := *(*unsafe.Pointer)(unsafe.Pointer(&fn))
	code := *(*uintptr)(closure)
	if isMethodValue(code) {
		receiver := *(*uintptr)(unsafe.Add(closure, unsafe.Sizeof(code)))
		return Key{code: code, data: receiver, method: true}
	}

	return Key{code: code, data: uintptr(closure)}
}

var wrappers sync.Map // code pointer -> bool

// isMethodValue reports whether code is a compiler-generated method value
// wrapper. The toolchain names those "<method>-fm".
func isMethodValue(code uintptr) bool {
	if known, ok := wrappers.Load(code); ok {
		return known.(bool)
	}

	fn := runtime.FuncForPC(code)
	method := fn != nil && strings.HasSuffix(fn.Name(), "-fm")
	wrappers.Store(code, method)
	return method
}
