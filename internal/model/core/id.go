// internal/model/core/id.go
package core

import (
	"strings"

	"github.com/google/uuid"
)

// TempIDPrefix namespaces locally generated placeholder ids so they can never
// collide with ids issued by the collaborative store.
const TempIDPrefix = "local-"

// ID identifies an annotation or comment. It is either a confirmed id issued
// by the collaborative store, or a temporary local id minted at creation time
// and swapped for the confirmed one when the store acknowledges the write.
// The two spaces never compare equal.
type ID struct {
	value string
}

// NewTemporaryID mints a placeholder id for an item pending store confirmation.
func NewTemporaryID() ID {
	return ID{value: TempIDPrefix + uuid.New().String()}
}

// ConfirmedID wraps an id issued by the collaborative store. Raw values that
// carry the temporary prefix are treated as a programming error upstream; here
// they are accepted as-is so that reconciliation can still classify them.
func ConfirmedID(raw string) ID {
	return ID{value: raw}
}

// IsTemporary reports whether the id is a local placeholder.
func (id ID) IsTemporary() bool {
	return strings.HasPrefix(id.value, TempIDPrefix)
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id.value == ""
}

func (id ID) String() string {
	return id.value
}

// MarshalText implements encoding.TextMarshaler for JSON transport.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	id.value = string(b)
	return nil
}
