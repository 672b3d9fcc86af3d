package entities

import (
	"time"

	"bfdb/domain/core/valueobjects"
)

// Metadata is the system-managed part of every stored item. The four
// edge fields stay empty for plain nodes.
type Metadata struct {
	BfGid       valueobjects.BfGid `json:"bfGid" dynamodbav:"bfGid"`
	BfOid       valueobjects.BfGid `json:"bfOid" dynamodbav:"bfOid"`
	ClassName   string             `json:"className" dynamodbav:"className"`
	SortValue   int64              `json:"sortValue" dynamodbav:"sortValue"`
	BfCid       valueobjects.BfGid `json:"bfCid" dynamodbav:"bfCid"`
	CreatedAt   time.Time          `json:"createdAt" dynamodbav:"createdAt"`
	LastUpdated time.Time          `json:"lastUpdated" dynamodbav:"lastUpdated"`

	BfSid        valueobjects.BfGid `json:"bfSid,omitempty" dynamodbav:"bfSid,omitempty"`
	BfSClassName string             `json:"bfSClassName,omitempty" dynamodbav:"bfSClassName,omitempty"`
	BfTid        valueobjects.BfGid `json:"bfTid,omitempty" dynamodbav:"bfTid,omitempty"`
	BfTClassName string             `json:"bfTClassName,omitempty" dynamodbav:"bfTClassName,omitempty"`
}

// IsEdge reports whether the metadata carries source and target ids
func (m Metadata) IsEdge() bool {
	return !m.BfSid.IsZero() && !m.BfTid.IsZero()
}

// applyOverrides copies every non-zero field of o onto m
func (m *Metadata) applyOverrides(o *Metadata) {
	if o == nil {
		return
	}
	if !o.BfGid.IsZero() {
		m.BfGid = o.BfGid
	}
	if !o.BfOid.IsZero() {
		m.BfOid = o.BfOid
	}
	if o.ClassName != "" {
		m.ClassName = o.ClassName
	}
	if o.SortValue != 0 {
		m.SortValue = o.SortValue
	}
	if !o.BfCid.IsZero() {
		m.BfCid = o.BfCid
	}
	if !o.CreatedAt.IsZero() {
		m.CreatedAt = o.CreatedAt
	}
	if !o.LastUpdated.IsZero() {
		m.LastUpdated = o.LastUpdated
	}
	if !o.BfSid.IsZero() {
		m.BfSid = o.BfSid
	}
	if o.BfSClassName != "" {
		m.BfSClassName = o.BfSClassName
	}
	if !o.BfTid.IsZero() {
		m.BfTid = o.BfTid
	}
	if o.BfTClassName != "" {
		m.BfTClassName = o.BfTClassName
	}
}

// Item is the storage row: props plus metadata
type Item struct {
	Props    valueobjects.Props `json:"props"`
	Metadata Metadata           `json:"metadata"`
}

// Clone returns a deep copy of the item
func (i Item) Clone() Item {
	return Item{Props: i.Props.Clone(), Metadata: i.Metadata}
}
