package script

import (
	"math"

	lua "github.com/yuin/gopher-lua"

	"github.com/andreyvit/docstore"
	"github.com/andreyvit/docstore/revmeta"
)

func (reg *registry) initDBType(L *lua.LState) {
	mt := L.NewTypeMetatable(dbTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"save":             reg.save,
		"delete":           reg.delete,
		"get":              reg.get,
		"get_from_docinfo": reg.getFromDocInfo,
		"changes":          reg.changes,
		"save_local":       reg.saveLocal,
		"delete_local":     reg.deleteLocal,
		"get_local":        reg.getLocal,
		"commit":           reg.commit,
		"close":            reg.close,
		"info":             reg.info,
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		h := L.CheckUserData(1).Value.(*dbHandle)
		if h.db == nil {
			L.Push(lua.LString("couch: closed"))
		} else {
			L.Push(lua.LString("couch: " + h.path))
		}
		return 1
	}))
	reg.dbMeta = mt
}

// couch.open(path [, create])
func (reg *registry) open(L *lua.LState) int {
	const op = "couch.open"
	if L.GetTop() < 1 {
		reg.raise(L, usageErrorf(op, `couch.open takes at least one argument: "pathname" [shouldCreate]`))
	}
	path := reg.argString(L, 1, op, "pathname")

	var flags docstore.OpenFlags
	switch v := L.Get(2).(type) {
	case *lua.LNilType:
	case lua.LBool:
		if v {
			flags |= docstore.OpenCreate
		}
	default:
		reg.raise(L, usageErrorf(op, "second arg must be a boolean, true if allowed to create databases"))
	}

	db, err := docstore.Open(path, flags, reg.dbOpts)
	if err != nil {
		reg.raise(L, &Error{Kind: EngineError, Op: op, Msg: "error opening DB", Err: err})
	}
	reg.pushDB(L, &dbHandle{db: db, path: path})
	return 1
}

// db:close()
func (reg *registry) close(L *lua.LState) int {
	const op = "couch:close"
	h := reg.checkDB(L, 1, op)
	if h.inChanges {
		reg.raise(L, usageErrorf(op, "couch:close cannot be called from a changes callback"))
	}
	if err := reg.closeDB(h); err != nil {
		reg.raise(L, &Error{Kind: EngineError, Op: op, Msg: "error closing database", Err: err})
	}
	return 0
}

// db:commit()
func (reg *registry) commit(L *lua.LState) int {
	const op = "couch:commit"
	h := reg.checkDB(L, 1, op)
	if err := h.db.Commit(); err != nil {
		reg.raise(L, &Error{Kind: EngineError, Op: op, Msg: "error committing", Err: err})
	}
	return 0
}

// db:save(key, value, content_meta [, rev_seq [, cas [, exp [, flags]]]])
//
// Optional arguments are positional: each one may only be given if all the
// ones before it are.
func (reg *registry) save(L *lua.LState) int {
	const op = "couch:save"
	h := reg.checkDB(L, 1, op)
	if L.GetTop() < 4 {
		reg.raise(L, usageErrorf(op, `couch:save takes at least three arguments: "key" "value" meta_flags [rev_seq] [cas] [exp] [flags]`))
	}
	key := reg.argString(L, 2, op, "key")
	value := reg.argString(L, 3, op, "value")
	contentMeta := reg.argUint(L, 4, op, "content_meta", math.MaxUint8)

	names := [...]string{"rev_seq", "cas", "exp", "flags"}
	limits := [...]uint64{math.MaxUint64, math.MaxUint64, math.MaxUint32, math.MaxUint32}
	var vals [len(names)]uint64
	var given [len(names)]bool
	missing := ""
	for i, name := range names {
		n := 5 + i
		if L.Get(n) == lua.LNil {
			if missing == "" {
				missing = name
			}
			continue
		}
		if missing != "" {
			reg.raise(L, usageErrorf(op, "couch:save: %s given without %s", name, missing))
		}
		vals[i] = reg.argUint(L, n, op, name, limits[i])
		given[i] = true
	}

	info := &docstore.DocInfo{
		ID:          []byte(key),
		RevSeq:      vals[0],
		ContentMeta: uint8(contentMeta),
	}
	if given[1] || given[2] || given[3] {
		info.RevMeta = revmeta.Encode(vals[1], uint32(vals[2]), uint32(vals[3]))
	}
	doc := &docstore.Doc{ID: info.ID, Data: []byte(value)}

	if err := h.db.SaveDoc(doc, info, docstore.CompressBodies); err != nil {
		reg.raise(L, engineError(op, "error storing document", err))
	}
	return 0
}

// db:delete(key [, rev_seq])
func (reg *registry) delete(L *lua.LState) int {
	const op = "couch:delete"
	h := reg.checkDB(L, 1, op)
	if L.GetTop() < 2 {
		reg.raise(L, usageErrorf(op, `couch:delete takes at least one argument: "key" [rev_seq]`))
	}
	key := reg.argString(L, 2, op, "key")
	info := &docstore.DocInfo{ID: []byte(key), Deleted: true}
	if L.Get(3) != lua.LNil {
		info.RevSeq = reg.argUint(L, 3, op, "rev_seq", math.MaxUint64)
	}

	if err := h.db.SaveDoc(&docstore.Doc{ID: info.ID}, info, 0); err != nil {
		reg.raise(L, engineError(op, "error deleting document", err))
	}
	return 0
}

// db:get(key) -> body, docinfo
func (reg *registry) get(L *lua.LState) int {
	const op = "couch:get"
	h := reg.checkDB(L, 1, op)
	if L.GetTop() < 2 {
		reg.raise(L, usageErrorf(op, `couch:get takes one argument: "key"`))
	}
	key := reg.argString(L, 2, op, "key")

	info, err := h.db.DocInfoByID([]byte(key))
	if err != nil {
		reg.raise(L, engineError(op, "error get docinfo", err))
	}
	doc, err := h.db.OpenDocWithDocInfo(info, docstore.DecompressBodies)
	if err != nil {
		info.Free()
		reg.raise(L, engineError(op, "error get doc by docinfo", err))
	}
	L.Push(lua.LString(doc.Data))
	doc.Free()
	L.Push(reg.newDocInfo(L, info))
	return 2
}

// db:get_from_docinfo(docinfo) -> body
//
// On failure the docinfo is freed before the error is raised.
func (reg *registry) getFromDocInfo(L *lua.LState) int {
	const op = "couch:get_from_docinfo"
	h := reg.checkDB(L, 1, op)
	if L.GetTop() < 2 {
		reg.raise(L, usageErrorf(op, `couch:get_from_docinfo takes one argument: "docinfo"`))
	}
	dh := reg.checkDocInfo(L, 2, op)

	doc, err := h.db.OpenDocWithDocInfo(dh.info, docstore.DecompressBodies)
	if err != nil {
		reg.finalizeDocInfo(dh)
		reg.raise(L, engineError(op, "error getting doc by docinfo", err))
	}
	L.Push(lua.LString(doc.Data))
	doc.Free()
	return 1
}

// db:save_local(key, value)
func (reg *registry) saveLocal(L *lua.LState) int {
	const op = "couch:save_local"
	h := reg.checkDB(L, 1, op)
	if L.GetTop() < 3 {
		reg.raise(L, usageErrorf(op, `couch:save_local takes two arguments: "key" "value"`))
	}
	key := reg.argString(L, 2, op, "key")
	value := reg.argString(L, 3, op, "value")

	err := h.db.SaveLocalDoc(&docstore.LocalDoc{ID: []byte(key), JSON: []byte(value)})
	if err != nil {
		reg.raise(L, engineError(op, "error storing local document", err))
	}
	return 0
}

// db:delete_local(key)
func (reg *registry) deleteLocal(L *lua.LState) int {
	const op = "couch:delete_local"
	h := reg.checkDB(L, 1, op)
	if L.GetTop() < 2 {
		reg.raise(L, usageErrorf(op, `couch:delete_local takes one argument: "key"`))
	}
	key := reg.argString(L, 2, op, "key")

	err := h.db.SaveLocalDoc(&docstore.LocalDoc{ID: []byte(key), Deleted: true})
	if err != nil {
		reg.raise(L, engineError(op, "error deleting local document", err))
	}
	return 0
}

// db:get_local(key) -> value
func (reg *registry) getLocal(L *lua.LState) int {
	const op = "couch:get_local"
	h := reg.checkDB(L, 1, op)
	if L.GetTop() < 2 {
		reg.raise(L, usageErrorf(op, `couch:get_local takes one argument: "key"`))
	}
	key := reg.argString(L, 2, op, "key")

	doc, err := h.db.OpenLocalDoc([]byte(key))
	if err != nil {
		reg.raise(L, engineError(op, "error getting local doc", err))
	}
	L.Push(lua.LString(doc.JSON))
	doc.Free()
	return 1
}

// db:info() -> table
func (reg *registry) info(L *lua.LState) int {
	const op = "couch:info"
	h := reg.checkDB(L, 1, op)
	dbi, err := h.db.Info()
	if err != nil {
		reg.raise(L, engineError(op, "error getting database info", err))
	}
	t := L.NewTable()
	t.RawSetString("filename", lua.LString(dbi.FileName))
	t.RawSetString("last_sequence", lua.LNumber(dbi.LastSequence))
	t.RawSetString("doc_count", lua.LNumber(dbi.DocCount))
	t.RawSetString("deleted_count", lua.LNumber(dbi.DeletedCount))
	t.RawSetString("space_used", lua.LNumber(dbi.SpaceUsed))
	t.RawSetString("pending", lua.LBool(dbi.Pending))
	L.Push(t)
	return 1
}

// argString accepts strings and numbers, the same as Lua's own string
// functions do.
func (reg *registry) argString(L *lua.LState, n int, op, name string) string {
	switch v := L.Get(n).(type) {
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return v.String()
	default:
		reg.raise(L, usageErrorf(op, "%s: %s must be a string, got %s", op, name, v.Type().String()))
		return ""
	}
}

// argUint accepts a non-negative integral number not exceeding limit.
func (reg *registry) argUint(L *lua.LState, n int, op, name string, limit uint64) uint64 {
	v, ok := L.Get(n).(lua.LNumber)
	if !ok {
		reg.raise(L, usageErrorf(op, "%s: %s must be a number, got %s", op, name, L.Get(n).Type().String()))
	}
	f := float64(v)
	// float64(math.MaxUint64) rounds up to 2^64, so compare against 2^64
	// directly before converting.
	if f < 0 || f != math.Trunc(f) || f >= 0x1p64 || uint64(f) > limit {
		reg.raise(L, usageErrorf(op, "%s: %s must be an integer between 0 and %d, got %v", op, name, limit, v))
	}
	return uint64(f)
}
