package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// objectPutter is the one upload method the archiver needs.
type objectPutter interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
}

// Archiver persists hedge records evicted from a position's capped history.
// Each Archive call writes one JSONL object keyed by position address and
// eviction time, so successive evictions never overwrite each other.
type Archiver struct {
	writer objectPutter
	prefix string
	now    func() time.Time
}

// NewArchiver creates an Archiver writing under the given key prefix,
// e.g. "hedges".
func NewArchiver(writer *Writer, prefix string) *Archiver {
	return &Archiver{writer: writer, prefix: prefix, now: time.Now}
}

// Archive uploads the evicted records as newline-delimited JSON. An empty
// batch is a no-op.
func (a *Archiver) Archive(ctx context.Context, positionAddress string, records []domain.HedgeSwapRecord) error {
	if len(records) == 0 {
		return nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return fmt.Errorf("s3blob: marshal hedge records for %s: %w", positionAddress, err)
	}

	key := a.key(positionAddress)
	if err := a.writer.Put(ctx, key, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive hedge history for %s: %w", positionAddress, err)
	}
	return nil
}

func (a *Archiver) key(positionAddress string) string {
	return fmt.Sprintf("%s/%s/%s.jsonl",
		a.prefix, positionAddress, a.now().UTC().Format("20060102T150405.000000000Z"))
}

// marshalJSONL serialises records as one compact JSON object per line.
func marshalJSONL(records []domain.HedgeSwapRecord) ([]byte, error) {
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

// Compile-time interface check.
var _ domain.HistoryArchiver = (*Archiver)(nil)
