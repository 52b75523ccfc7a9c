package document

import "crypto/sha1"

// Document is the in-memory representation of one open file: a
// mutable byte buffer shared between the cache and every session that
// has it open.
type Document struct {
	ID       int32
	Name     string
	Contents []byte

	// openerCount is the number of sessions that have an outstanding
	// OPEN/ACTIVATE reference to this document. The cache removes the
	// entry when this drops to 0.
	openerCount int
}

// Hash returns the SHA-1 digest of the document's current contents,
// used to decide whether DOC_ACTIVATE needs to stream the contents.
func (d *Document) Hash() [20]byte {
	return sha1.Sum(d.Contents)
}

// Len returns the current length of the document's contents in bytes.
func (d *Document) Len() int { return len(d.Contents) }

// Insert splices b into the document at pos. Callers (the message
// handler) are responsible for validating 0 <= pos <= len first.
func (d *Document) Insert(pos int32, b []byte) {
	i := int(pos)
	grown := make([]byte, 0, len(d.Contents)+len(b))
	grown = append(grown, d.Contents[:i]...)
	grown = append(grown, b...)
	grown = append(grown, d.Contents[i:]...)
	d.Contents = grown
}

// Delete removes length bytes starting at pos. Callers are responsible
// for validating 0 <= pos, pos+length <= len first.
func (d *Document) Delete(pos, length int32) {
	i, n := int(pos), int(length)
	d.Contents = append(d.Contents[:i], d.Contents[i+n:]...)
}
