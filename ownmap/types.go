package ownmap

import "fmt"

type ObjectType int

const (
	ObjectTypeUnknown  ObjectType = 0
	ObjectTypeNode     ObjectType = 1
	ObjectTypeWay      ObjectType = 2
	ObjectTypeRelation ObjectType = 3
)

var objectTypeNames = []string{
	"unknown",
	"node",
	"way",
	"relation",
}

func (t ObjectType) String() string {
	if t < 0 || int(t) >= len(objectTypeNames) {
		return fmt.Sprintf("ObjectType(%d)", int(t))
	}
	return objectTypeNames[t]
}

// ElementKey uniquely identifies an element on the remote database (or, with a negative ID,
// an element that has only been created locally so far)
type ElementKey struct {
	Type ObjectType `json:"type"`
	ID   int64      `json:"id"`
}

func (k ElementKey) String() string {
	return fmt.Sprintf("%s/%d", k.Type, k.ID)
}

// IsPlaceholderID reports whether an id was assigned locally and has not been assigned by the remote yet
func IsPlaceholderID(id int64) bool {
	return id < 0
}

type Element interface {
	ElementKey() ElementKey
	GetVersion() int
	GetTags() TagMap
	IsDeleted() bool
	CopyElement() Element
}

type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Node struct {
	ID      int64   `json:"id"`
	Version int     `json:"version"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Tags    TagMap  `json:"tags,omitempty"`
	Deleted bool    `json:"deleted,omitempty"`
}

func (n *Node) ElementKey() ElementKey {
	return ElementKey{ObjectTypeNode, n.ID}
}

func (n *Node) GetVersion() int {
	return n.Version
}

func (n *Node) GetTags() TagMap {
	return n.Tags
}

func (n *Node) IsDeleted() bool {
	return n.Deleted
}

func (n *Node) Position() Position {
	return Position{Lat: n.Lat, Lon: n.Lon}
}

func (n *Node) Copy() *Node {
	c := *n
	c.Tags = n.Tags.Copy()
	return &c
}

func (n *Node) CopyElement() Element {
	return n.Copy()
}

type Way struct {
	ID      int64   `json:"id"`
	Version int     `json:"version"`
	NodeIDs []int64 `json:"nodeIds"`
	Tags    TagMap  `json:"tags,omitempty"`
	Deleted bool    `json:"deleted,omitempty"`
}

func (w *Way) ElementKey() ElementKey {
	return ElementKey{ObjectTypeWay, w.ID}
}

func (w *Way) GetVersion() int {
	return w.Version
}

func (w *Way) GetTags() TagMap {
	return w.Tags
}

func (w *Way) IsDeleted() bool {
	return w.Deleted
}

func (w *Way) Copy() *Way {
	c := *w
	c.Tags = w.Tags.Copy()
	c.NodeIDs = append([]int64(nil), w.NodeIDs...)
	return &c
}

func (w *Way) CopyElement() Element {
	return w.Copy()
}

type RelationMember struct {
	Type ObjectType `json:"type"`
	Ref  int64      `json:"ref"`
	Role string     `json:"role"`
}

type Relation struct {
	ID      int64             `json:"id"`
	Version int               `json:"version"`
	Members []*RelationMember `json:"members"`
	Tags    TagMap            `json:"tags,omitempty"`
	Deleted bool              `json:"deleted,omitempty"`
}

func (r *Relation) ElementKey() ElementKey {
	return ElementKey{ObjectTypeRelation, r.ID}
}

func (r *Relation) GetVersion() int {
	return r.Version
}

func (r *Relation) GetTags() TagMap {
	return r.Tags
}

func (r *Relation) IsDeleted() bool {
	return r.Deleted
}

func (r *Relation) Copy() *Relation {
	c := *r
	c.Tags = r.Tags.Copy()
	c.Members = nil
	for _, member := range r.Members {
		m := *member
		c.Members = append(c.Members, &m)
	}
	return &c
}

func (r *Relation) CopyElement() Element {
	return r.Copy()
}

type TagMap map[string]string

// Copy returns an independent copy. A nil map stays nil.
func (m TagMap) Copy() TagMap {
	if m == nil {
		return nil
	}
	c := make(TagMap, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
