package parquetdb

import (
	"context"
	"runtime"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	parquetwriter "github.com/xitongsys/parquet-go/writer"
)

const DefaultRowGroupSize = 128 * 1024 * 1024 //128M

// EditLogRow is one edit in the exported edit history
type EditLogRow struct {
	ID          int64   `parquet:"name=id, type=INT64"`
	EditType    string  `parquet:"name=edit_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ActionType  string  `parquet:"name=action_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ElementType string  `parquet:"name=element_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ElementID   int64   `parquet:"name=element_id, type=INT64"`
	Lat         float64 `parquet:"name=lat, type=DOUBLE"`
	Lon         float64 `parquet:"name=lon, type=DOUBLE"`
	CreatedAtMs int64   `parquet:"name=created_at_ms, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	State       string  `parquet:"name=state, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

type EditLister interface {
	GetAll(ctx context.Context) ([]*ownmapedits.Edit, errorsx.Error)
}

func editLogRowFromEdit(edit *ownmapedits.Edit) EditLogRow {
	return EditLogRow{
		ID:          edit.ID,
		EditType:    edit.Type,
		ActionType:  string(edit.Action.ActionType()),
		ElementType: edit.ElementType.String(),
		ElementID:   edit.ElementID,
		Lat:         edit.Position.Lat,
		Lon:         edit.Position.Lon,
		CreatedAtMs: edit.CreatedAt.UnixNano() / int64(time.Millisecond),
		State:       edit.State.String(),
	}
}

// ExportEditLog writes every edit in the queue, whatever its state, to a parquet file.
// It returns the amount of edits written.
func ExportEditLog(ctx context.Context, edits EditLister, filePath string, rowGroupSize int64) (int, errorsx.Error) {
	allEdits, errx := edits.GetAll(ctx)
	if errx != nil {
		return 0, errx
	}

	f, err := local.NewLocalFileWriter(filePath)
	if err != nil {
		return 0, errorsx.Wrap(err, "filePath", filePath)
	}
	defer f.Close()

	pw, err := parquetwriter.NewParquetWriter(f, new(EditLogRow), int64(runtime.NumCPU()))
	if err != nil {
		return 0, errorsx.Wrap(err, "filePath", filePath)
	}
	pw.RowGroupSize = rowGroupSize
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, edit := range allEdits {
		err = pw.Write(editLogRowFromEdit(edit))
		if err != nil {
			return 0, errorsx.Wrap(err, "editID", edit.ID)
		}
	}

	err = pw.WriteStop()
	if err != nil {
		return 0, errorsx.Wrap(err, "filePath", filePath)
	}

	return len(allEdits), nil
}
