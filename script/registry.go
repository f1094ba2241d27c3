package script

import (
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/andreyvit/docstore"
)

const (
	dbTypeName      = "couch"
	docInfoTypeName = "docinfo"
)

// registry owns every handle handed to a script. It is created once per Env
// and passed to every binding.
type registry struct {
	log    logrus.FieldLogger
	dbOpts docstore.Options

	dbs      map[*dbHandle]struct{}
	docInfos map[*docInfoHandle]struct{}

	dbMeta      *lua.LTable
	docInfoMeta *lua.LTable
	errorMeta   *lua.LTable
}

type dbHandle struct {
	db        *docstore.DB
	path      string
	inChanges bool
}

type docInfoHandle struct {
	info *docstore.DocInfo
}

func newRegistry(L *lua.LState, log logrus.FieldLogger, dbOpts docstore.Options) *registry {
	reg := &registry{
		log:      log,
		dbOpts:   dbOpts,
		dbs:      make(map[*dbHandle]struct{}),
		docInfos: make(map[*docInfoHandle]struct{}),
	}
	reg.initErrorType(L)
	reg.initDBType(L)
	reg.initDocInfoType(L)

	couch := L.NewTable()
	L.SetField(couch, "open", L.NewFunction(reg.open))
	L.SetGlobal("couch", couch)
	return reg
}

func (reg *registry) pushDB(L *lua.LState, h *dbHandle) {
	reg.dbs[h] = struct{}{}
	ud := L.NewUserData()
	ud.Value = h
	L.SetMetatable(ud, reg.dbMeta)
	L.Push(ud)
}

// closeDB releases the database. The handle is unregistered even if the
// engine reports a failure, since the engine has already torn it down.
func (reg *registry) closeDB(h *dbHandle) error {
	delete(reg.dbs, h)
	db := h.db
	h.db = nil
	return db.Close()
}

// newDocInfo wraps info into a userdata. The registry owns info from now on.
func (reg *registry) newDocInfo(L *lua.LState, info *docstore.DocInfo) *lua.LUserData {
	h := &docInfoHandle{info: info}
	reg.docInfos[h] = struct{}{}
	ud := L.NewUserData()
	ud.Value = h
	L.SetMetatable(ud, reg.docInfoMeta)
	return ud
}

// finalizeDocInfo frees the underlying DocInfo. Later calls are no-ops, so
// the engine's Free runs at most once per handle.
func (reg *registry) finalizeDocInfo(h *docInfoHandle) {
	if h.info == nil {
		return
	}
	delete(reg.docInfos, h)
	info := h.info
	h.info = nil
	info.Free()
}

// checkDB returns the open database passed at position n.
func (reg *registry) checkDB(L *lua.LState, n int, op string) *dbHandle {
	ud, ok := L.Get(n).(*lua.LUserData)
	if !ok {
		reg.raise(L, &Error{Kind: TypeMismatch, Op: op, Msg: "expected " + dbTypeName + ", got " + L.Get(n).Type().String()})
	}
	h, ok := ud.Value.(*dbHandle)
	if !ok {
		reg.raise(L, &Error{Kind: TypeMismatch, Op: op, Msg: "expected " + dbTypeName + ", got " + handleTypeName(ud)})
	}
	if h.db == nil {
		reg.raise(L, usageErrorf(op, "%s: database is closed", op))
	}
	return h
}

// checkDocInfo returns the live docinfo passed at position n.
func (reg *registry) checkDocInfo(L *lua.LState, n int, op string) *docInfoHandle {
	ud, ok := L.Get(n).(*lua.LUserData)
	if !ok {
		reg.raise(L, &Error{Kind: TypeMismatch, Op: op, Msg: "expected " + docInfoTypeName + ", got " + L.Get(n).Type().String()})
	}
	h, ok := ud.Value.(*docInfoHandle)
	if !ok {
		reg.raise(L, &Error{Kind: TypeMismatch, Op: op, Msg: "expected " + docInfoTypeName + ", got " + handleTypeName(ud)})
	}
	if h.info == nil {
		reg.raise(L, usageErrorf(op, "%s: docinfo has been freed", op))
	}
	return h
}

func handleTypeName(ud *lua.LUserData) string {
	switch ud.Value.(type) {
	case *dbHandle:
		return dbTypeName
	case *docInfoHandle:
		return docInfoTypeName
	case *Error:
		return errorTypeName
	default:
		return "userdata"
	}
}

// closeAll finalizes whatever the script left behind.
func (reg *registry) closeAll() {
	if n := len(reg.docInfos); n > 0 {
		reg.log.WithField("count", n).Debug("Freeing docinfos left by script")
	}
	for h := range reg.docInfos {
		reg.finalizeDocInfo(h)
	}
	for h := range reg.dbs {
		reg.log.WithField("path", h.path).Warn("Database was not closed by script, uncommitted changes discarded")
		if err := reg.closeDB(h); err != nil {
			reg.log.WithField("path", h.path).WithError(err).Error("Error closing database")
		}
	}
}
