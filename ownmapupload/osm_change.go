package ownmapupload

import (
	"encoding/xml"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/paulmach/osm"
)

// appendElement adds the element to the osm document with a type switch.
// osm.OSM.Append can't be used, it derives the type from the packed id and placeholder ids are negative.
func appendElement(o *osm.OSM, element ownmap.Element, changesetID int64) errorsx.Error {
	switch e := element.(type) {
	case *ownmap.Node:
		node := e.ToOSM()
		node.ChangesetID = osm.ChangesetID(changesetID)
		o.Nodes = append(o.Nodes, node)
	case *ownmap.Way:
		way := e.ToOSM()
		way.ChangesetID = osm.ChangesetID(changesetID)
		o.Ways = append(o.Ways, way)
	case *ownmap.Relation:
		relation := e.ToOSM()
		relation.ChangesetID = osm.ChangesetID(changesetID)
		o.Relations = append(o.Relations, relation)
	default:
		return errorsx.Errorf("unsupported element: %T", element)
	}
	return nil
}

// buildOSMChange sorts the elements into creations (placeholder ids), deletions and modifications
func buildOSMChange(changesetID int64, elements []ownmap.Element, generator string) (*osm.Change, errorsx.Error) {
	change := &osm.Change{
		Version:   0.6,
		Generator: generator,
	}

	for _, element := range elements {
		var target **osm.OSM
		switch {
		case ownmap.IsPlaceholderID(element.ElementKey().ID):
			if element.IsDeleted() {
				return nil, errorsx.Errorf("cannot delete %s, it has not been created yet", element.ElementKey())
			}
			target = &change.Create
		case element.IsDeleted():
			target = &change.Delete
		default:
			target = &change.Modify
		}

		if *target == nil {
			*target = &osm.OSM{}
		}

		err := appendElement(*target, element, changesetID)
		if err != nil {
			return nil, err
		}
	}

	return change, nil
}

type diffResultElement struct {
	OldID      int64  `xml:"old_id,attr"`
	NewID      *int64 `xml:"new_id,attr"`
	NewVersion *int   `xml:"new_version,attr"`
}

type diffResultDoc struct {
	XMLName   xml.Name             `xml:"diffResult"`
	Nodes     []*diffResultElement `xml:"node"`
	Ways      []*diffResultElement `xml:"way"`
	Relations []*diffResultElement `xml:"relation"`
}

func parseDiffResult(b []byte) ([]*DiffResultEntry, errorsx.Error) {
	doc := new(diffResultDoc)
	err := xml.Unmarshal(b, doc)
	if err != nil {
		return nil, errorsx.Wrap(err, "body", string(b))
	}

	var entries []*DiffResultEntry
	for _, typedElements := range []struct {
		objectType ownmap.ObjectType
		elements   []*diffResultElement
	}{
		{ownmap.ObjectTypeNode, doc.Nodes},
		{ownmap.ObjectTypeWay, doc.Ways},
		{ownmap.ObjectTypeRelation, doc.Relations},
	} {
		for _, element := range typedElements.elements {
			entry := &DiffResultEntry{
				ElementType: typedElements.objectType,
				OldID:       element.OldID,
			}
			if element.NewID != nil {
				entry.NewID = *element.NewID
			}
			if element.NewVersion != nil {
				entry.NewVersion = *element.NewVersion
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
