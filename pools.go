package docstore

import "sync"

var keyBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 64)
	},
}

// docInfoBytesPool backs the ID and RevMeta of decoded DocInfo values.
// DocInfo.Free returns the buffer here.
var docInfoBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 256)
	},
}

var recordBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 1024)
	},
}

var bodyBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 65536)
	},
}

// maxPooledBody keeps the pool from pinning huge documents.
const maxPooledBody = 1 << 20

func releaseBodyBytes(b []byte) {
	if cap(b) <= maxPooledBody {
		bodyBytesPool.Put(b[:0])
	}
}
