package events

import (
	"time"

	"bfdb/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

const (
	TypeNodeCreated = "node.created"
	TypeNodeUpdated = "node.updated"
	TypeNodeDeleted = "node.deleted"
	TypeEdgeCreated = "edge.created"
	TypeEdgeDeleted = "edge.deleted"
)

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
	OrgBfOid    string    `json:"org_bf_oid"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(id, oid valueobjects.BfGid, eventType string, ts time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: id.String(),
		EventType:   eventType,
		Timestamp:   ts,
		Version:     1,
		OrgBfOid:    oid.String(),
	}
}

// NodeCreated is raised when a node is first saved
type NodeCreated struct {
	BaseEvent
	ClassName string `json:"class_name"`
	CreatedBy string `json:"created_by"`
}

func NewNodeCreated(gid, oid valueobjects.BfGid, className string, createdBy valueobjects.BfGid, ts time.Time) NodeCreated {
	return NodeCreated{
		BaseEvent: newBase(gid, oid, TypeNodeCreated, ts),
		ClassName: className,
		CreatedBy: createdBy.String(),
	}
}

// NodeUpdated is raised when an existing node is saved again
type NodeUpdated struct {
	BaseEvent
	ClassName   string   `json:"class_name"`
	ChangedKeys []string `json:"changed_keys,omitempty"`
}

func NewNodeUpdated(gid, oid valueobjects.BfGid, className string, changed []string, ts time.Time) NodeUpdated {
	return NodeUpdated{
		BaseEvent:   newBase(gid, oid, TypeNodeUpdated, ts),
		ClassName:   className,
		ChangedKeys: changed,
	}
}

// NodeDeleted is raised when a node is removed from storage
type NodeDeleted struct {
	BaseEvent
	ClassName string `json:"class_name"`
}

func NewNodeDeleted(gid, oid valueobjects.BfGid, className string, ts time.Time) NodeDeleted {
	return NodeDeleted{
		BaseEvent: newBase(gid, oid, TypeNodeDeleted, ts),
		ClassName: className,
	}
}

// EdgeCreated is raised when an edge between two nodes is saved
type EdgeCreated struct {
	BaseEvent
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Role     string `json:"role"`
}

func NewEdgeCreated(gid, oid, sid, tid valueobjects.BfGid, role string, ts time.Time) EdgeCreated {
	return EdgeCreated{
		BaseEvent: newBase(gid, oid, TypeEdgeCreated, ts),
		SourceID:  sid.String(),
		TargetID:  tid.String(),
		Role:      role,
	}
}

// EdgeDeleted is raised when an edge is removed
type EdgeDeleted struct {
	BaseEvent
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

func NewEdgeDeleted(gid, oid, sid, tid valueobjects.BfGid, ts time.Time) EdgeDeleted {
	return EdgeDeleted{
		BaseEvent: newBase(gid, oid, TypeEdgeDeleted, ts),
		SourceID:  sid.String(),
		TargetID:  tid.String(),
	}
}
