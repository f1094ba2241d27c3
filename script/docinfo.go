package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/andreyvit/docstore/revmeta"
)

func (reg *registry) initDocInfoType(L *lua.LState) {
	mt := L.NewTypeMetatable(docInfoTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"id":           reg.docInfoID,
		"rev":          reg.docInfoRev,
		"db_seq":       reg.docInfoDBSeq,
		"cas":          reg.docInfoCAS,
		"exp":          reg.docInfoExp,
		"flags":        reg.docInfoFlags,
		"deleted":      reg.docInfoDeleted,
		"content_meta": reg.docInfoContentMeta,
		"size":         reg.docInfoSize,
		"rev_meta":     reg.docInfoRevMeta,
		"free":         reg.docInfoFree,
	}))
	L.SetField(mt, "__len", L.NewFunction(reg.docInfoSize))
	L.SetField(mt, "__tostring", L.NewFunction(reg.docInfoString))
	reg.docInfoMeta = mt
}

func (reg *registry) docInfoID(L *lua.LState) int {
	h := reg.checkDocInfo(L, 1, "docinfo:id")
	L.Push(lua.LString(h.info.ID))
	return 1
}

func (reg *registry) docInfoRev(L *lua.LState) int {
	h := reg.checkDocInfo(L, 1, "docinfo:rev")
	L.Push(lua.LNumber(h.info.RevSeq))
	return 1
}

func (reg *registry) docInfoDBSeq(L *lua.LState) int {
	h := reg.checkDocInfo(L, 1, "docinfo:db_seq")
	L.Push(lua.LNumber(h.info.DBSeq))
	return 1
}

func (reg *registry) docInfoCAS(L *lua.LState) int {
	h := reg.checkDocInfo(L, 1, "docinfo:cas")
	L.Push(lua.LNumber(revmeta.Decode(h.info.RevMeta).CAS))
	return 1
}

func (reg *registry) docInfoExp(L *lua.LState) int {
	h := reg.checkDocInfo(L, 1, "docinfo:exp")
	L.Push(lua.LNumber(revmeta.Decode(h.info.RevMeta).Expiration))
	return 1
}

func (reg *registry) docInfoFlags(L *lua.LState) int {
	h := reg.checkDocInfo(L, 1, "docinfo:flags")
	L.Push(lua.LNumber(revmeta.Decode(h.info.RevMeta).Flags))
	return 1
}

func (reg *registry) docInfoDeleted(L *lua.LState) int {
	h := reg.checkDocInfo(L, 1, "docinfo:deleted")
	if h.info.Deleted {
		L.Push(lua.LNumber(1))
	} else {
		L.Push(lua.LNumber(0))
	}
	return 1
}

func (reg *registry) docInfoContentMeta(L *lua.LState) int {
	h := reg.checkDocInfo(L, 1, "docinfo:content_meta")
	L.Push(lua.LNumber(h.info.ContentMeta))
	return 1
}

func (reg *registry) docInfoSize(L *lua.LState) int {
	h := reg.checkDocInfo(L, 1, "docinfo:size")
	L.Push(lua.LNumber(h.info.Size))
	return 1
}

func (reg *registry) docInfoRevMeta(L *lua.LState) int {
	h := reg.checkDocInfo(L, 1, "docinfo:rev_meta")
	L.Push(lua.LString(h.info.RevMeta))
	return 1
}

// docinfo:free() releases the docinfo early. Freeing twice is harmless.
func (reg *registry) docInfoFree(L *lua.LState) int {
	ud, ok := L.Get(1).(*lua.LUserData)
	if !ok {
		reg.raise(L, &Error{Kind: TypeMismatch, Op: "docinfo:free", Msg: "expected " + docInfoTypeName + ", got " + L.Get(1).Type().String()})
	}
	h, ok := ud.Value.(*docInfoHandle)
	if !ok {
		reg.raise(L, &Error{Kind: TypeMismatch, Op: "docinfo:free", Msg: "expected " + docInfoTypeName + ", got " + handleTypeName(ud)})
	}
	reg.finalizeDocInfo(h)
	return 0
}

func (reg *registry) docInfoString(L *lua.LState) int {
	h := L.CheckUserData(1).Value.(*docInfoHandle)
	if h.info == nil {
		L.Push(lua.LString("docinfo: freed"))
		return 1
	}
	var deleted string
	if h.info.Deleted {
		deleted = " deleted"
	}
	L.Push(lua.LString(fmt.Sprintf("docinfo: %q seq=%d rev=%d%s", h.info.ID, h.info.DBSeq, h.info.RevSeq, deleted)))
	return 1
}
