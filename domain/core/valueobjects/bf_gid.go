package valueobjects

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// BfGid is the global identifier of a stored item. Nodes, edges and
// organisations all share the same id space.
type BfGid string

// NewBfGid generates a fresh random id
func NewBfGid() BfGid {
	return BfGid(uuid.New().String())
}

// ParseBfGid validates an externally supplied id. Ids created by other
// tools are not required to be UUIDs, only non-blank.
func ParseBfGid(s string) (BfGid, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("bfGid cannot be empty")
	}
	return BfGid(s), nil
}

// MustParseBfGid is ParseBfGid for literals in tests and fixtures.
func MustParseBfGid(s string) BfGid {
	id, err := ParseBfGid(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id BfGid) String() string {
	return string(id)
}

// IsZero checks if the id is unset
func (id BfGid) IsZero() bool {
	return id == ""
}

// IsUUID reports whether the id was generated by NewBfGid
func (id BfGid) IsUUID() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

// BfGidsToStrings converts a slice of ids for transport layers
func BfGidsToStrings(ids []BfGid) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
