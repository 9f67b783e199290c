package repo

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"shiptrack/internal/entities"
	"shiptrack/pkg/trm"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// seqWidth is the zero-padded digit width of business identifiers. With a
// fixed width the lexicographic MAX over the column equals the numeric max.
const seqWidth = 8

// sequences mints order numbers and shipment tracking identifiers by
// scanning the current maximum inside the caller's transaction. The scan and
// the subsequent insert are serialized by a per-prefix advisory lock held
// until that transaction ends, so concurrent creators cannot mint the same
// value.
type sequences struct {
	store
}

func NewSequences(db *sqlx.DB) *sequences {
	return &sequences{store: newStore(db)}
}

func (s *sequences) NextOrderNumber(ctx context.Context) (string, error) {
	return s.next(ctx, "orders", "number", entities.OrderNumberPrefix)
}

func (s *sequences) NextShipmentTracking(ctx context.Context) (string, error) {
	return s.next(ctx, "shipments", "tracking", entities.TrackingPrefix)
}

func (s *sequences) next(ctx context.Context, table, column, prefix string) (string, error) {
	tx := trm.ExtractTx(ctx)
	if tx == nil {
		return "", errors.New("identifier generation requires a transaction")
	}

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", lockKey(prefix)); err != nil {
		return "", fmt.Errorf("failed to lock sequence %q: %w", prefix, err)
	}

	// Deleted rows keep their identifiers, so the scan covers every row.
	query, args := s.qb.Select(fmt.Sprintf("COALESCE(MAX(%s), '')", column)).
		From(table).
		Where(sq.Like{column: prefix + "%"}).
		MustSql()

	var max string
	if err := tx.GetContext(ctx, &max, query, args...); err != nil {
		return "", fmt.Errorf("failed to scan max %s: %w", column, err)
	}

	return nextInSequence(max, prefix)
}

// nextInSequence increments the numeric suffix of max, or starts the
// sequence at 1 when max is empty.
func nextInSequence(max, prefix string) (string, error) {
	if max == "" {
		return formatIdentifier(prefix, 1), nil
	}

	digits, ok := strings.CutPrefix(max, prefix)
	if !ok {
		return "", fmt.Errorf("max identifier %q lacks prefix %q: %w", max, prefix, entities.ErrCorruptSequence)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return "", fmt.Errorf("max identifier %q has no numeric suffix: %w", max, entities.ErrCorruptSequence)
	}

	return formatIdentifier(prefix, n+1), nil
}

func formatIdentifier(prefix string, n int64) string {
	return fmt.Sprintf("%s%0*d", prefix, seqWidth, n)
}

func lockKey(prefix string) int64 {
	h := fnv.New64a()
	h.Write([]byte(prefix))
	return int64(h.Sum64())
}
