package script

import (
	"math"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/andreyvit/docstore"
)

// db:changes(since, function(db, docinfo) ... end)
//
// The callback runs once per document changed after since, in db_seq order.
// An error raised by the callback is logged and the scan moves on to the
// next record. Every docinfo passed to the callback belongs to the registry
// until the script frees it or the Env is closed.
func (reg *registry) changes(L *lua.LState) int {
	const op = "couch:changes"
	h := reg.checkDB(L, 1, op)
	if L.GetTop() < 3 {
		reg.raise(L, usageErrorf(op, "couch:changes takes two arguments: since, function(db, docinfo)..."))
	}
	since := reg.argUint(L, 2, op, "since", math.MaxUint64)
	cb := reg.captureCallback(L, 3, op)
	if h.inChanges {
		reg.raise(L, usageErrorf(op, "couch:changes is already running on this database"))
	}
	self := L.Get(1)

	h.inChanges = true
	err := h.db.ChangesSince(since, 0, func(db *docstore.DB, info *docstore.DocInfo) (docstore.ChangesAction, error) {
		seq, id := info.DBSeq, string(info.ID)
		ud := reg.newDocInfo(L, info)
		err := L.CallByParam(lua.P{Fn: cb, NRet: 0, Protect: true}, self, ud)
		if err != nil {
			reg.log.WithFields(logrus.Fields{
				"db_seq": seq,
				"id":     id,
			}).WithError(callbackError(err)).Error("Error running function")
		}
		return docstore.KeepDocInfo, nil
	})
	h.inChanges = false

	if err != nil {
		reg.raise(L, engineError(op, "error iterating", err))
	}
	return 0
}

// captureCallback resolves the callback once for the whole scan. Only script
// functions can be captured; the captured function keeps its upvalues, which
// are the only state shared between records.
func (reg *registry) captureCallback(L *lua.LState, n int, op string) *lua.LFunction {
	fn, ok := L.Get(n).(*lua.LFunction)
	if !ok {
		reg.raise(L, usageErrorf(op, "I need a function to iterate over, got %s", L.Get(n).Type().String()))
	}
	if fn.IsG {
		reg.raise(L, usageErrorf(op, "cannot capture a native function as a changes callback"))
	}
	return fn
}

// callbackError makes errors raised by bindings readable in logs; the
// interpreter would otherwise print them as bare userdata.
func callbackError(err error) error {
	if e := AsError(err); e != nil {
		return e
	}
	return err
}
