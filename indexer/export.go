package indexer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type fulfillmentRow struct {
	User       string `parquet:"name=user, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Collection string `parquet:"name=collection, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Item       string `parquet:"name=item, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Tier       int32  `parquet:"name=tier, type=INT32"`
	TargetTier int32  `parquet:"name=target_tier, type=INT32"`
	DrawIndex  int32  `parquet:"name=draw_index, type=INT32"`
	CreatedAt  string `parquet:"name=created_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// ExportFulfillments writes the fulfillments recorded at or after since to w
// as a snappy-compressed parquet file, oldest first. It returns the number of
// rows written.
func (m *Mirror) ExportFulfillments(ctx context.Context, w io.Writer, since time.Time) (int, error) {
	var rows []Fulfillment
	if err := m.db.WithContext(ctx).Where("created_at >= ?", since.UTC()).
		Order("created_at").Order("draw_index").Find(&rows).Error; err != nil {
		return 0, err
	}

	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(w), new(fulfillmentRow), 1)
	if err != nil {
		return 0, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		if err := pw.Write(&fulfillmentRow{
			User:       row.User,
			Collection: row.Collection,
			Item:       row.Item,
			Tier:       int32(row.Tier),
			TargetTier: int32(row.TargetTier),
			DrawIndex:  int32(row.DrawIndex),
			CreatedAt:  row.CreatedAt.UTC().Format(time.RFC3339Nano),
		}); err != nil {
			return 0, fmt.Errorf("indexer: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return 0, fmt.Errorf("indexer: parquet flush: %w", err)
	}
	return len(rows), nil
}
