package ports

import (
	"slices"

	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
)

// SortOrder is the direction of a query over sort values
type SortOrder string

const (
	SortAscending  SortOrder = "ASC"
	SortDescending SortOrder = "DESC"
)

// MetadataFilter constrains metadata fields; nil fields are unconstrained.
type MetadataFilter struct {
	BfGid        *valueobjects.BfGid
	BfOid        *valueobjects.BfGid
	ClassName    *string
	BfCid        *valueobjects.BfGid
	BfSid        *valueobjects.BfGid
	BfSClassName *string
	BfTid        *valueobjects.BfGid
	BfTClassName *string
}

// Ptr returns a pointer to v, for building filters inline
func Ptr[T any](v T) *T {
	return &v
}

// Matches reports whether md satisfies every set field
func (f MetadataFilter) Matches(md entities.Metadata) bool {
	switch {
	case f.BfGid != nil && md.BfGid != *f.BfGid:
		return false
	case f.BfOid != nil && md.BfOid != *f.BfOid:
		return false
	case f.ClassName != nil && md.ClassName != *f.ClassName:
		return false
	case f.BfCid != nil && md.BfCid != *f.BfCid:
		return false
	case f.BfSid != nil && md.BfSid != *f.BfSid:
		return false
	case f.BfSClassName != nil && md.BfSClassName != *f.BfSClassName:
		return false
	case f.BfTid != nil && md.BfTid != *f.BfTid:
		return false
	case f.BfTClassName != nil && md.BfTClassName != *f.BfTClassName:
		return false
	}
	return true
}

// SortKey is a position in sort order. Items sharing a sort value are
// ordered by gid.
type SortKey struct {
	SortValue int64
	BfGid     valueobjects.BfGid
}

// KeyOf returns the position of md in sort order
func KeyOf(md entities.Metadata) SortKey {
	return SortKey{SortValue: md.SortValue, BfGid: md.BfGid}
}

// ItemQuery selects stored items.
type ItemQuery struct {
	Metadata MetadataFilter
	Props    valueobjects.Props

	// BfGids restricts the result to these ids when non-empty
	BfGids []valueobjects.BfGid

	// Order defaults to ascending
	Order SortOrder

	// Cursor is an exclusive start bound: results sort strictly after it
	// in Order's direction
	Cursor *SortKey

	// Until is an exclusive end bound: results sort strictly before it in
	// Order's direction
	Until *SortKey

	// Limit caps the result; zero means unlimited
	Limit int
}

// Descending reports whether the query runs newest first
func (q ItemQuery) Descending() bool {
	return q.Order == SortDescending
}

// Matches applies every filter of q except ordering and paging
func (q ItemQuery) Matches(item entities.Item) bool {
	if !q.Metadata.Matches(item.Metadata) {
		return false
	}
	if len(q.BfGids) > 0 && !slices.Contains(q.BfGids, item.Metadata.BfGid) {
		return false
	}
	key := KeyOf(item.Metadata)
	if q.Cursor != nil && !q.precedes(*q.Cursor, key) {
		return false
	}
	if q.Until != nil && !q.precedes(key, *q.Until) {
		return false
	}
	return item.Props.Matches(q.Props)
}

// Less orders two items the way q wants them returned
func (q ItemQuery) Less(a, b entities.Metadata) bool {
	return q.precedes(KeyOf(a), KeyOf(b))
}

func (q ItemQuery) precedes(a, b SortKey) bool {
	if q.Descending() {
		a, b = b, a
	}
	if a.SortValue != b.SortValue {
		return a.SortValue < b.SortValue
	}
	return a.BfGid < b.BfGid
}
