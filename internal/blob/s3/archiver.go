package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// Uploader is the narrow object-store surface the archiver needs.
type Uploader interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Archiver writes end-of-day fill and settlement records to the object
// store as newline-delimited JSON, one object per record type per UTC day.
// Records stay in the primary store; the archive is a durable copy, not a
// migration.
type Archiver struct {
	uploader    Uploader
	fills       domain.FillStore
	settlements domain.SettlementStore
	logger      *slog.Logger
}

// NewArchiver creates an Archiver reading from the given stores.
func NewArchiver(uploader Uploader, fills domain.FillStore, settlements domain.SettlementStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		uploader:    uploader,
		fills:       fills,
		settlements: settlements,
		logger:      logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveDay uploads all fills and settlements for the UTC day containing
// the given time. Empty days produce no objects. It returns the total
// number of records archived.
func (a *Archiver) ArchiveDay(ctx context.Context, day time.Time) (int64, error) {
	var total int64

	fills, err := a.fills.ListByDay(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills query: %w", err)
	}
	if len(fills) > 0 {
		buf, err := marshalJSONL(fills)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive fills marshal: %w", err)
		}
		path := archivePath("fills", day)
		if err := a.uploader.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
			return 0, fmt.Errorf("s3blob: archive fills upload: %w", err)
		}
		total += int64(len(fills))
		a.logger.Info("fills archived",
			slog.String("path", path),
			slog.Int("count", len(fills)),
		)
	}

	settlements, err := a.settlements.ListByDay(ctx, day)
	if err != nil {
		return total, fmt.Errorf("s3blob: archive settlements query: %w", err)
	}
	if len(settlements) > 0 {
		buf, err := marshalJSONL(settlements)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive settlements marshal: %w", err)
		}
		path := archivePath("settlements", day)
		if err := a.uploader.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive settlements upload: %w", err)
		}
		total += int64(len(settlements))
		a.logger.Info("settlements archived",
			slog.String("path", path),
			slog.Int("count", len(settlements)),
		)
	}

	return total, nil
}

// Run archives the previous UTC day shortly after each midnight until the
// context is cancelled. Failures are logged and retried at the next tick.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		next := nextRunAt(time.Now().UTC())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		prevDay := next.Add(-24 * time.Hour)
		if _, err := a.ArchiveDay(ctx, prevDay); err != nil {
			a.logger.Error("daily archive failed",
				slog.String("day", prevDay.Format("2006-01-02")),
				slog.String("error", err.Error()),
			)
		}
	}
}

// nextRunAt returns 00:05 UTC of the next day, leaving a margin for
// settlements closed right at the boundary to land in the store.
func nextRunAt(now time.Time) time.Time {
	midnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	return midnight.Add(5 * time.Minute)
}

// archivePath builds the object key, partitioned by UTC day.
//
//	archive/fills/2026-08-29.jsonl
//	archive/settlements/2026-08-29.jsonl
func archivePath(kind string, day time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, day.UTC().Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
