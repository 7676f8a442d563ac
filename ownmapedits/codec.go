package ownmapedits

import (
	"github.com/gogo/protobuf/proto"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
)

// Persisted form of actions and element snapshots. Field numbers must never be reused.

type positionRecord struct {
	Lat float64 `protobuf:"fixed64,1,opt,name=lat,proto3"`
	Lon float64 `protobuf:"fixed64,2,opt,name=lon,proto3"`
}

func (m *positionRecord) Reset()         { *m = positionRecord{} }
func (m *positionRecord) String() string { return proto.CompactTextString(m) }
func (*positionRecord) ProtoMessage()    {}

type tagChangeRecord struct {
	Kind        int32  `protobuf:"varint,1,opt,name=kind,proto3"`
	Key         string `protobuf:"bytes,2,opt,name=key,proto3"`
	Value       string `protobuf:"bytes,3,opt,name=value,proto3"`
	ValueBefore string `protobuf:"bytes,4,opt,name=value_before,json=valueBefore,proto3"`
}

func (m *tagChangeRecord) Reset()         { *m = tagChangeRecord{} }
func (m *tagChangeRecord) String() string { return proto.CompactTextString(m) }
func (*tagChangeRecord) ProtoMessage()    {}

type actionRecord struct {
	Type     string             `protobuf:"bytes,1,opt,name=type,proto3"`
	Changes  []*tagChangeRecord `protobuf:"bytes,2,rep,name=changes,proto3"`
	Position *positionRecord    `protobuf:"bytes,3,opt,name=position,proto3"`
	Tags     map[string]string  `protobuf:"bytes,4,rep,name=tags,proto3" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
}

func (m *actionRecord) Reset()         { *m = actionRecord{} }
func (m *actionRecord) String() string { return proto.CompactTextString(m) }
func (*actionRecord) ProtoMessage()    {}

type memberRecord struct {
	Type int32  `protobuf:"varint,1,opt,name=type,proto3"`
	Ref  int64  `protobuf:"varint,2,opt,name=ref,proto3"`
	Role string `protobuf:"bytes,3,opt,name=role,proto3"`
}

func (m *memberRecord) Reset()         { *m = memberRecord{} }
func (m *memberRecord) String() string { return proto.CompactTextString(m) }
func (*memberRecord) ProtoMessage()    {}

type elementRecord struct {
	Type    int32             `protobuf:"varint,1,opt,name=type,proto3"`
	ID      int64             `protobuf:"varint,2,opt,name=id,proto3"`
	Version int64             `protobuf:"varint,3,opt,name=version,proto3"`
	Lat     float64           `protobuf:"fixed64,4,opt,name=lat,proto3"`
	Lon     float64           `protobuf:"fixed64,5,opt,name=lon,proto3"`
	Tags    map[string]string `protobuf:"bytes,6,rep,name=tags,proto3" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
	NodeIDs []int64           `protobuf:"varint,7,rep,packed,name=node_ids,json=nodeIds,proto3"`
	Members []*memberRecord   `protobuf:"bytes,8,rep,name=members,proto3"`
	Deleted bool              `protobuf:"varint,9,opt,name=deleted,proto3"`
}

func (m *elementRecord) Reset()         { *m = elementRecord{} }
func (m *elementRecord) String() string { return proto.CompactTextString(m) }
func (*elementRecord) ProtoMessage()    {}

func changesToRecords(changes StringMapChanges) []*tagChangeRecord {
	var records []*tagChangeRecord
	for _, change := range changes {
		records = append(records, &tagChangeRecord{
			Kind:        int32(change.Kind),
			Key:         change.Key,
			Value:       change.Value,
			ValueBefore: change.ValueBefore,
		})
	}
	return records
}

func changesFromRecords(records []*tagChangeRecord) StringMapChanges {
	var changes StringMapChanges
	for _, record := range records {
		changes = append(changes, StringMapEntryChange{
			Kind:        StringMapEntryChangeKind(record.Kind),
			Key:         record.Key,
			Value:       record.Value,
			ValueBefore: record.ValueBefore,
		})
	}
	return changes
}

func positionToRecord(position ownmap.Position) *positionRecord {
	return &positionRecord{Lat: position.Lat, Lon: position.Lon}
}

func positionFromRecord(record *positionRecord) ownmap.Position {
	if record == nil {
		return ownmap.Position{}
	}
	return ownmap.Position{Lat: record.Lat, Lon: record.Lon}
}

// MarshalAction encodes an action for storage
func MarshalAction(action EditAction) ([]byte, errorsx.Error) {
	record := &actionRecord{Type: string(action.ActionType())}

	switch a := action.(type) {
	case DeletePoiNodeAction, RevertCreateNodeAction:
		// no payload
	case UpdateElementTagsAction:
		record.Changes = changesToRecords(a.Changes)
	case RevertUpdateElementTagsAction:
		record.Changes = changesToRecords(a.Changes)
	case MoveNodeAction:
		record.Position = positionToRecord(a.Position)
	case RevertMoveNodeAction:
		record.Position = positionToRecord(a.Position)
	case CreateNodeAction:
		record.Position = positionToRecord(a.Position)
		record.Tags = a.Tags
	default:
		return nil, errorsx.Errorf("unknown edit action: %T", action)
	}

	b, err := proto.Marshal(record)
	if err != nil {
		return nil, errorsx.Wrap(err, "actionType", record.Type)
	}

	return b, nil
}

// UnmarshalAction decodes an action encoded with MarshalAction
func UnmarshalAction(b []byte) (EditAction, errorsx.Error) {
	record := new(actionRecord)
	err := proto.Unmarshal(b, record)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	switch ActionType(record.Type) {
	case ActionTypeDeletePoiNode:
		return DeletePoiNodeAction{}, nil
	case ActionTypeUpdateElementTags:
		return UpdateElementTagsAction{Changes: changesFromRecords(record.Changes)}, nil
	case ActionTypeRevertUpdateElementTags:
		return RevertUpdateElementTagsAction{Changes: changesFromRecords(record.Changes)}, nil
	case ActionTypeMoveNode:
		return MoveNodeAction{Position: positionFromRecord(record.Position)}, nil
	case ActionTypeRevertMoveNode:
		return RevertMoveNodeAction{Position: positionFromRecord(record.Position)}, nil
	case ActionTypeCreateNode:
		var tags ownmap.TagMap
		if len(record.Tags) != 0 {
			tags = ownmap.TagMap(record.Tags)
		}
		return CreateNodeAction{Position: positionFromRecord(record.Position), Tags: tags}, nil
	case ActionTypeRevertCreateNode:
		return RevertCreateNodeAction{}, nil
	default:
		return nil, errorsx.Errorf("unknown edit action type: %q", record.Type)
	}
}

// MarshalElement encodes an element snapshot for storage
func MarshalElement(element ownmap.Element) ([]byte, errorsx.Error) {
	key := element.ElementKey()
	record := &elementRecord{
		Type:    int32(key.Type),
		ID:      key.ID,
		Version: int64(element.GetVersion()),
		Tags:    element.GetTags(),
		Deleted: element.IsDeleted(),
	}

	switch e := element.(type) {
	case *ownmap.Node:
		record.Lat = e.Lat
		record.Lon = e.Lon
	case *ownmap.Way:
		record.NodeIDs = e.NodeIDs
	case *ownmap.Relation:
		for _, member := range e.Members {
			record.Members = append(record.Members, &memberRecord{
				Type: int32(member.Type),
				Ref:  member.Ref,
				Role: member.Role,
			})
		}
	default:
		return nil, errorsx.Errorf("unsupported element: %T", element)
	}

	b, err := proto.Marshal(record)
	if err != nil {
		return nil, errorsx.Wrap(err, "element", key.String())
	}

	return b, nil
}

// UnmarshalElement decodes an element encoded with MarshalElement
func UnmarshalElement(b []byte) (ownmap.Element, errorsx.Error) {
	record := new(elementRecord)
	err := proto.Unmarshal(b, record)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	var tags ownmap.TagMap
	if len(record.Tags) != 0 {
		tags = ownmap.TagMap(record.Tags)
	}

	switch ownmap.ObjectType(record.Type) {
	case ownmap.ObjectTypeNode:
		return &ownmap.Node{
			ID:      record.ID,
			Version: int(record.Version),
			Lat:     record.Lat,
			Lon:     record.Lon,
			Tags:    tags,
			Deleted: record.Deleted,
		}, nil
	case ownmap.ObjectTypeWay:
		return &ownmap.Way{
			ID:      record.ID,
			Version: int(record.Version),
			NodeIDs: record.NodeIDs,
			Tags:    tags,
			Deleted: record.Deleted,
		}, nil
	case ownmap.ObjectTypeRelation:
		var members []*ownmap.RelationMember
		for _, member := range record.Members {
			members = append(members, &ownmap.RelationMember{
				Type: ownmap.ObjectType(member.Type),
				Ref:  member.Ref,
				Role: member.Role,
			})
		}
		return &ownmap.Relation{
			ID:      record.ID,
			Version: int(record.Version),
			Members: members,
			Tags:    tags,
			Deleted: record.Deleted,
		}, nil
	default:
		return nil, errorsx.Errorf("unknown element type in record: %d", record.Type)
	}
}
