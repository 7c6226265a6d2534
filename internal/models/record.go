package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/healthvault/internal/common"
	"github.com/dmitrijs2005/healthvault/internal/cryptox"
)

var (
	// ErrUnknownTag is returned when a tag outside the closed registry is used.
	ErrUnknownTag = errors.New("unknown type tag")

	// ErrTypeMismatch is returned by Unwrap when the record's tag does not
	// match the type the caller asked for.
	ErrTypeMismatch = errors.New("type tag mismatch")

	// ErrDecode is returned when the opened payload does not decode cleanly
	// into the expected shape. It matches common.ErrCorruptRecord: a payload
	// that authenticated but does not parse is corrupt stored data.
	ErrDecode = fmt.Errorf("%w: payload decode failed", common.ErrCorruptRecord)
)

// Record is a type-erased health-data value: the JSON serialization of
// exactly one concrete struct matching TypeTag, sealed with the device key.
// Decoding requires the caller to name the expected concrete type via Unwrap.
type Record struct {
	TypeTag TypeTag `json:"type_tag"`
	ID      string  `json:"id"`
	Sealed  []byte  `json:"sealed"`
}

// Wrap serializes v and seals it under key.
func Wrap[T Typed](key []byte, id string, v T) (Record, error) {
	tag := v.Tag()
	if !tag.Valid() {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}

	plaintext, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("serializing %s: %w", tag, err)
	}
	sealed, err := cryptox.Seal(plaintext, key)
	if err != nil {
		return Record{}, err
	}
	return Record{TypeTag: tag, ID: id, Sealed: sealed}, nil
}

// Unwrap opens the record and decodes it into T. The record's tag must match
// T's tag (ErrTypeMismatch otherwise) and the payload must decode with no
// unknown fields (ErrDecode otherwise); a zero or partially populated T is
// never returned alongside a nil error.
func Unwrap[T Typed](key []byte, r Record) (T, error) {
	var v T
	if want := v.Tag(); r.TypeTag != want {
		return v, fmt.Errorf("%w: record is %q, requested %q", ErrTypeMismatch, r.TypeTag, want)
	}

	plaintext, err := cryptox.Open(r.Sealed, key)
	if err != nil {
		return v, fmt.Errorf("%w: %w", common.ErrCorruptRecord, err)
	}

	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return v, nil
}
