package ownmapupload

import (
	"context"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapdal"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
	"github.com/jamesrr39/semaphore"
)

// Listener is notified of the outcome of every edit, before the next edit is uploaded
type Listener interface {
	OnUploaded(editType string, position ownmap.Position)
	OnDiscarded(editType string, position ownmap.Position)
}

type noopListener struct{}

func (noopListener) OnUploaded(editType string, position ownmap.Position)  {}
func (noopListener) OnDiscarded(editType string, position ownmap.Position) {}

type ElementEditsUploaderConfig struct {
	// Listener may be nil
	Listener Listener
}

// UploadResult counts what happened to the edits during one drain of the queue
type UploadResult struct {
	Uploaded  int `json:"uploaded"`
	Discarded int `json:"discarded"`
}

// ElementEditsUploader drains the edit queue, oldest edit first.
//
// Only one drain runs at a time. Edits that conflict with the remote are marked as failed and skipped;
// any other error stops the drain, and the edit stays pending to be retried by the next drain.
type ElementEditsUploader struct {
	logger         *logpkg.Logger
	editQueue      ownmapdal.EditQueue
	noteEdits      ownmapdal.NoteEditsStore
	mapData        ownmapdal.MapDataCache
	singleUploader SingleEditUploader
	statistics     ownmapdal.StatisticsStore
	listener       Listener
	drainSema      *semaphore.Semaphore
}

func NewElementEditsUploader(
	logger *logpkg.Logger,
	editQueue ownmapdal.EditQueue,
	noteEdits ownmapdal.NoteEditsStore,
	mapData ownmapdal.MapDataCache,
	singleUploader SingleEditUploader,
	statistics ownmapdal.StatisticsStore,
	config *ElementEditsUploaderConfig,
) *ElementEditsUploader {
	var listener Listener = noopListener{}
	if config != nil && config.Listener != nil {
		listener = config.Listener
	}

	return &ElementEditsUploader{
		logger:         logger,
		editQueue:      editQueue,
		noteEdits:      noteEdits,
		mapData:        mapData,
		singleUploader: singleUploader,
		statistics:     statistics,
		listener:       listener,
		drainSema:      semaphore.NewSemaphore(1),
	}
}

// Upload uploads pending edits until there are none left.
// A cancelled ctx stops the drain before the next edit, never while an edit is being uploaded.
func (u *ElementEditsUploader) Upload(ctx context.Context) (*UploadResult, errorsx.Error) {
	u.drainSema.Add()
	defer u.drainSema.Done()

	result := new(UploadResult)
	for {
		if ctx.Err() != nil {
			return result, errorsx.Wrap(ctx.Err())
		}

		// an edit, once started, is brought to a known state
		editCtx := context.WithoutCancel(ctx)

		edit, err := u.editQueue.GetOldestPending(editCtx)
		if err != nil {
			return result, err
		}

		if edit == nil {
			u.logger.Info("upload finished. %d edits uploaded, %d discarded", result.Uploaded, result.Discarded)
			return result, nil
		}

		err = u.uploadEdit(editCtx, edit, result)
		if err != nil {
			return result, err
		}
	}
}

func (u *ElementEditsUploader) uploadEdit(ctx context.Context, edit *ownmapedits.Edit, result *UploadResult) errorsx.Error {
	getIDProvider := func() (*ownmapedits.IDProvider, errorsx.Error) {
		return u.editQueue.GetIDProvider(ctx, edit.ID)
	}

	updates, err := u.singleUploader.Upload(ctx, edit, getIDProvider)
	if err != nil {
		if !ownmapedits.IsConflict(err) {
			return errorsx.Wrap(err, "editID", edit.ID)
		}

		u.logger.Debug("dropped a %q edit (edit ID %d): %s", edit.Type, edit.ID, err.Error())
		u.listener.OnDiscarded(edit.Type, edit.Position)

		err = u.editQueue.MarkSyncFailed(ctx, edit)
		if err != nil {
			return err
		}

		result.Discarded++
		return nil
	}

	u.logger.Debug("uploaded a %q edit (edit ID %d)", edit.Type, edit.ID)
	u.listener.OnUploaded(edit.Type, edit.Position)

	err = u.editQueue.MarkSynced(ctx, edit, updates.IDUpdates)
	if err != nil {
		return err
	}

	err = u.mapData.UpdateAll(ctx, updates)
	if err != nil {
		return err
	}

	err = u.noteEdits.UpdateElementIDs(ctx, updates.IDUpdates)
	if err != nil {
		return err
	}

	if ownmapedits.IsRevertAction(edit.Action) {
		err = u.statistics.SubtractOne(ctx, edit.Type, edit.Position)
	} else {
		err = u.statistics.AddOne(ctx, edit.Type, edit.Position)
	}
	if err != nil {
		return err
	}

	result.Uploaded++
	return nil
}
