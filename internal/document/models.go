package document

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// IDSize is the length in bytes of a document identifier (a SHA-256 digest).
const IDSize = sha256.Size

var ErrInvalidID = errors.New("invalid document id")

// ID is the content-derived identifier of a document: the SHA-256 digest of
// its UTF-8 text. Two documents share an ID exactly when their content matches.
type ID [IDSize]byte

// IDFor computes the identifier for the given content. Metadata never
// contributes to identity.
func IDFor(content string) ID {
	return ID(sha256.Sum256([]byte(content)))
}

// ParseID decodes a lowercase or uppercase hex string into an ID.
func ParseID(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	if len(b) != IDSize {
		return id, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidID, IDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String renders the ID as lowercase hex, the form used on the wire.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns a copy of the raw digest.
func (id ID) Bytes() []byte {
	b := make([]byte, IDSize)
	copy(b, id[:])
	return b
}

// Record is the stored value for a document.
type Record struct {
	Content string    `json:"content" bson:"content"`
	Created time.Time `json:"created" bson:"created"`
}

// ID returns the identifier the record is stored under.
func (r *Record) ID() ID {
	return IDFor(r.Content)
}
