// Package script exposes docstore databases to Lua scripts.
//
// A script sees a global couch table with couch.open, which returns a
// database handle with save, get, delete, changes and local document
// methods. Failures are raised as couch.error values carrying a kind
// (UsageError, EngineError, NotFound or TypeMismatch) and a message.
package script

import (
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/andreyvit/docstore"
)

type Options struct {
	// Logger receives callback failures and warnings about leaked handles.
	// Defaults to the standard logrus logger.
	Logger logrus.FieldLogger

	// DB is passed to docstore.Open for every couch.open call. When
	// DB.Logf is nil, engine traces go to Logger at debug level.
	DB docstore.Options
}

// Env is a Lua interpreter with the couch bindings installed. It is not safe
// for concurrent use.
type Env struct {
	L      *lua.LState
	reg    *registry
	closed bool
}

func New(opt Options) *Env {
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	if opt.DB.Logf == nil {
		opt.DB.Logf = opt.Logger.Debugf
	}

	L := lua.NewState()
	return &Env{
		L:   L,
		reg: newRegistry(L, opt.Logger, opt.DB),
	}
}

// DoFile runs a script file. Errors raised by the bindings are returned as
// *Error.
func (env *Env) DoFile(path string) error {
	return translate(env.L.DoFile(path))
}

func (env *Env) DoString(source string) error {
	return translate(env.L.DoString(source))
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if e := AsError(err); e != nil {
		return e
	}
	return err
}

// LiveHandles returns the number of open databases and live docinfos.
func (env *Env) LiveHandles() (dbs, docInfos int) {
	return len(env.reg.dbs), len(env.reg.docInfos)
}

// Close frees every handle the script did not release and shuts down the
// interpreter. Databases left open lose their uncommitted writes.
func (env *Env) Close() {
	if env.closed {
		return
	}
	env.closed = true
	env.reg.closeAll()
	env.L.Close()
}
