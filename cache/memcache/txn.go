package memcache

import "github.com/objcache/cachemgr/protocol"

// pendingWrite accumulates a write transaction's bytes until CommitTxn
// makes them visible as an object.
type pendingWrite struct {
	id   protocol.ObjectID
	info protocol.ObjectInfo
	buf  []byte
}

func (m *Memory) StartTxn(id protocol.ObjectID, tid protocol.TransactionID, info protocol.ObjectInfo) protocol.Status {
	m.txns.Store(tid, &pendingWrite{id: id, info: info})
	return protocol.StatusOK
}

func (m *Memory) WriteTxn(tid protocol.TransactionID, data []byte) protocol.Status {
	pw, ok := m.txns.Load(tid)
	if !ok {
		return protocol.StatusNotFound
	}
	pw.buf = append(pw.buf, data...)
	return protocol.StatusOK
}

func (m *Memory) CommitTxn(tid protocol.TransactionID) protocol.Status {
	pw, ok := m.txns.LoadAndDelete(tid)
	if !ok {
		return protocol.StatusNotFound
	}
	info := pw.info
	info.ID = pw.id
	info.Size = uint64(len(pw.buf))
	m.objects.Store(pw.id.Key(), &object{info: info, data: pw.buf})
	m.usedBytes.Add(int64(len(pw.buf)))
	return protocol.StatusOK
}

func (m *Memory) AbortTxn(tid protocol.TransactionID) protocol.Status {
	if _, ok := m.txns.LoadAndDelete(tid); !ok {
		return protocol.StatusNotFound
	}
	return protocol.StatusOK
}
