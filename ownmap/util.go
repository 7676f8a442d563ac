package ownmap

import (
	"sort"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/paulmach/osm"
)

func GetWholeWorldBounds() osm.Bounds {
	return osm.Bounds{
		MaxLat: 90,
		MinLat: -90,
		MaxLon: 180,
		MinLon: -180,
	}
}

// IsInBounds tests if a position is inside a container. Positions on the edge are inside.
func IsInBounds(bounds osm.Bounds, position Position) bool {
	isInLatBounds := position.Lat <= bounds.MaxLat && position.Lat >= bounds.MinLat
	if !isInLatBounds {
		return false
	}

	return position.Lon <= bounds.MaxLon && position.Lon >= bounds.MinLon
}

func TagMapFromOSMTags(osmTags osm.Tags) TagMap {
	if len(osmTags) == 0 {
		return nil
	}

	m := make(TagMap, len(osmTags))
	for _, tag := range osmTags {
		m[tag.Key] = tag.Value
	}
	return m
}

// ToOSMTags converts the map into a list of tags, sorted by key so that documents built from it are stable
func (m TagMap) ToOSMTags() osm.Tags {
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var tags osm.Tags
	for _, k := range keys {
		tags = append(tags, osm.Tag{Key: k, Value: m[k]})
	}
	return tags
}

func ObjectTypeFromOSMType(t osm.Type) (ObjectType, errorsx.Error) {
	switch t {
	case osm.TypeNode:
		return ObjectTypeNode, nil
	case osm.TypeWay:
		return ObjectTypeWay, nil
	case osm.TypeRelation:
		return ObjectTypeRelation, nil
	default:
		return ObjectTypeUnknown, errorsx.Errorf("couldn't understand OSM type: %q", t)
	}
}

func (t ObjectType) ToOSMType() osm.Type {
	switch t {
	case ObjectTypeNode:
		return osm.TypeNode
	case ObjectTypeWay:
		return osm.TypeWay
	case ObjectTypeRelation:
		return osm.TypeRelation
	default:
		return osm.Type(t.String())
	}
}

func NodeFromOSM(obj *osm.Node) *Node {
	return &Node{
		ID:      int64(obj.ID),
		Version: obj.Version,
		Lat:     obj.Lat,
		Lon:     obj.Lon,
		Tags:    TagMapFromOSMTags(obj.Tags),
		Deleted: !obj.Visible,
	}
}

func WayFromOSM(obj *osm.Way) *Way {
	var nodeIDs []int64
	for _, wayNode := range obj.Nodes {
		nodeIDs = append(nodeIDs, int64(wayNode.ID))
	}

	return &Way{
		ID:      int64(obj.ID),
		Version: obj.Version,
		NodeIDs: nodeIDs,
		Tags:    TagMapFromOSMTags(obj.Tags),
		Deleted: !obj.Visible,
	}
}

func RelationFromOSM(obj *osm.Relation) (*Relation, errorsx.Error) {
	var members []*RelationMember
	for _, member := range obj.Members {
		memberType, err := ObjectTypeFromOSMType(member.Type)
		if err != nil {
			return nil, errorsx.Wrap(err, "relationID", obj.ID)
		}

		members = append(members, &RelationMember{
			Type: memberType,
			Ref:  member.Ref,
			Role: member.Role,
		})
	}

	return &Relation{
		ID:      int64(obj.ID),
		Version: obj.Version,
		Members: members,
		Tags:    TagMapFromOSMTags(obj.Tags),
		Deleted: !obj.Visible,
	}, nil
}

// ElementFromOSM converts a node, way or relation from the osm package
func ElementFromOSM(obj osm.Object) (Element, errorsx.Error) {
	switch o := obj.(type) {
	case *osm.Node:
		return NodeFromOSM(o), nil
	case *osm.Way:
		return WayFromOSM(o), nil
	case *osm.Relation:
		return RelationFromOSM(o)
	default:
		return nil, errorsx.Errorf("unsupported osm object: %T", obj)
	}
}

func (n *Node) ToOSM() *osm.Node {
	return &osm.Node{
		ID:      osm.NodeID(n.ID),
		Version: n.Version,
		Lat:     n.Lat,
		Lon:     n.Lon,
		Tags:    n.Tags.ToOSMTags(),
		Visible: !n.Deleted,
	}
}

func (w *Way) ToOSM() *osm.Way {
	var wayNodes osm.WayNodes
	for _, nodeID := range w.NodeIDs {
		wayNodes = append(wayNodes, osm.WayNode{ID: osm.NodeID(nodeID)})
	}

	return &osm.Way{
		ID:      osm.WayID(w.ID),
		Version: w.Version,
		Nodes:   wayNodes,
		Tags:    w.Tags.ToOSMTags(),
		Visible: !w.Deleted,
	}
}

func (r *Relation) ToOSM() *osm.Relation {
	var members osm.Members
	for _, member := range r.Members {
		members = append(members, osm.Member{
			Type: member.Type.ToOSMType(),
			Ref:  member.Ref,
			Role: member.Role,
		})
	}

	return &osm.Relation{
		ID:      osm.RelationID(r.ID),
		Version: r.Version,
		Members: members,
		Tags:    r.Tags.ToOSMTags(),
		Visible: !r.Deleted,
	}
}
