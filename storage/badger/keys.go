package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for different data types
const (
	atomRecordPrefix   = "atomrec"
	queuePendingPrefix = "jobqp"
	queueLeasePrefix   = "jobql"
	queueSeqName       = "jobqseq"
)

// makeAtomKey generates a key for an atom record by its atom_id.
func makeAtomKey(atomID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", atomRecordPrefix, atomID))
}

// makePendingKey generates a queue key for a pending message.
// The sequence number is written BigEndian so lexicographic iteration order
// is FIFO order.
func makePendingKey(seq uint64) []byte {
	prefix := queuePendingPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeLeaseKey generates a queue key for a leased message.
func makeLeaseKey(seq uint64) []byte {
	prefix := queueLeasePrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// seqFromKey recovers the sequence number from a pending or lease key.
func seqFromKey(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
