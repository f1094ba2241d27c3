package script

import (
	"errors"
	"fmt"

	"github.com/andreyvit/docstore"
	lua "github.com/yuin/gopher-lua"
)

type ErrorKind int

const (
	// UsageError means the call had the wrong number or types of arguments.
	UsageError ErrorKind = iota + 1
	// EngineError carries a failure reported by the storage engine.
	EngineError
	// NotFound means an index lookup found nothing.
	NotFound
	// TypeMismatch means a handle of the wrong kind was passed.
	TypeMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case UsageError:
		return "UsageError"
	case EngineError:
		return "EngineError"
	case NotFound:
		return "NotFound"
	case TypeMismatch:
		return "TypeMismatch"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is raised into scripts as a couch.error userdata. Scripts can
// inspect err.kind and err.message after pcall.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + docstore.Describe(e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func usageErrorf(op, format string, args ...any) *Error {
	return &Error{Kind: UsageError, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// engineError classifies a docstore failure. Lookups that found nothing
// become NotFound, everything else is an EngineError.
func engineError(op, msg string, err error) *Error {
	kind := EngineError
	if errors.Is(err, docstore.ErrNotFound) {
		kind = NotFound
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// AsError extracts the *Error raised by a binding from an error returned by
// the interpreter, or returns nil if the script failed for another reason.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		if ud, ok := apiErr.Object.(*lua.LUserData); ok {
			if e, ok := ud.Value.(*Error); ok {
				return e
			}
		}
	}
	return nil
}

const errorTypeName = "couch.error"

func (reg *registry) initErrorType(L *lua.LState) {
	mt := L.NewTypeMetatable(errorTypeName)
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		e := L.CheckUserData(1).Value.(*Error)
		L.Push(lua.LString(e.Kind.String() + ": " + e.Error()))
		return 1
	}))
	L.SetField(mt, "__index", L.NewFunction(func(L *lua.LState) int {
		e := L.CheckUserData(1).Value.(*Error)
		switch L.CheckString(2) {
		case "kind":
			L.Push(lua.LString(e.Kind.String()))
		case "message":
			L.Push(lua.LString(e.Error()))
		case "op":
			L.Push(lua.LString(e.Op))
		default:
			L.Push(lua.LNil)
		}
		return 1
	}))
	reg.errorMeta = mt
}

// raise aborts the current Go function and unwinds into the script with e
// as the error value. It does not return.
func (reg *registry) raise(L *lua.LState, e *Error) {
	ud := L.NewUserData()
	ud.Value = e
	L.SetMetatable(ud, reg.errorMeta)
	L.Error(ud, 1)
}
