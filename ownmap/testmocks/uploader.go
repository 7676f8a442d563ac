package testmocks

import (
	"context"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
)

type MockEditUploader struct {
	UploadFunc func(ctx context.Context, edit *ownmapedits.Edit, getIDProvider ownmapedits.GetIDProviderFunc) (*ownmapedits.MapDataUpdates, errorsx.Error)
}

func (u *MockEditUploader) Upload(ctx context.Context, edit *ownmapedits.Edit, getIDProvider ownmapedits.GetIDProviderFunc) (*ownmapedits.MapDataUpdates, errorsx.Error) {
	return u.UploadFunc(ctx, edit, getIDProvider)
}

type ListenerEvent struct {
	Discarded bool
	EditType  string
	Position  ownmap.Position
}

// RecordingListener records the outcome of every edit
type RecordingListener struct {
	Events []ListenerEvent
}

func (l *RecordingListener) OnUploaded(editType string, position ownmap.Position) {
	l.Events = append(l.Events, ListenerEvent{false, editType, position})
}

func (l *RecordingListener) OnDiscarded(editType string, position ownmap.Position) {
	l.Events = append(l.Events, ListenerEvent{true, editType, position})
}
