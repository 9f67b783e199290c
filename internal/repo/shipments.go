package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shiptrack/internal/entities"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type shipmentRepo struct {
	store
}

func NewShipmentRepo(db *sqlx.DB) *shipmentRepo {
	return &shipmentRepo{store: newStore(db)}
}

var shipmentColumns = []string{
	"id", "tracking", "carrier", "kind", "cost", "dispatch_date", "estimated_date", "status",
}

func (r *shipmentRepo) selectShipments() sq.SelectBuilder {
	return r.qb.Select(shipmentColumns...).
		From("shipments").
		Where(sq.Eq{"deleted": false})
}

func (r *shipmentRepo) Insert(ctx context.Context, s entities.Shipment) (int64, error) {
	query, args := r.qb.Insert("shipments").
		Columns("tracking", "carrier", "kind", "cost", "dispatch_date", "estimated_date", "status").
		Values(
			s.Tracking, string(s.Carrier), string(s.Kind), s.Cost,
			ptrToNullTime(s.DispatchDate), ptrToNullTime(s.EstimatedDate), string(s.Status),
		).
		Suffix("RETURNING id").
		MustSql()

	var id int64
	err := r.getContext(ctx, &id, query, args...)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("tracking %q: %w", s.Tracking, entities.ErrConstraintViolation)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert shipment: %w", err)
	}
	return id, nil
}

// Update rewrites the mutable shipment fields. Tracking is immutable and
// absent from the SET list.
func (r *shipmentRepo) Update(ctx context.Context, s entities.Shipment) error {
	query, args := r.qb.Update("shipments").
		Set("carrier", string(s.Carrier)).
		Set("kind", string(s.Kind)).
		Set("cost", s.Cost).
		Set("dispatch_date", ptrToNullTime(s.DispatchDate)).
		Set("estimated_date", ptrToNullTime(s.EstimatedDate)).
		Set("status", string(s.Status)).
		Where(sq.Eq{"id": s.ID, "deleted": false}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update shipment: %w", err)
	}
	return checkAffected(res, entities.ErrShipmentNotFound)
}

func (r *shipmentRepo) SoftDelete(ctx context.Context, id int64) error {
	query, args := r.qb.Update("shipments").
		Set("deleted", true).
		Where(sq.Eq{"id": id, "deleted": false}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to soft-delete shipment: %w", err)
	}
	return checkAffected(res, entities.ErrShipmentNotFound)
}

func (r *shipmentRepo) FindByID(ctx context.Context, id int64) (entities.Shipment, error) {
	query, args := r.selectShipments().Where(sq.Eq{"id": id}).MustSql()
	return r.getShipment(ctx, query, args...)
}

func (r *shipmentRepo) FindByIDForUpdate(ctx context.Context, id int64) (entities.Shipment, error) {
	query, args := r.selectShipments().
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		MustSql()
	return r.getShipment(ctx, query, args...)
}

func (r *shipmentRepo) FindByTracking(ctx context.Context, tracking string) (entities.Shipment, error) {
	query, args := r.selectShipments().Where(sq.Eq{"tracking": tracking}).MustSql()
	return r.getShipment(ctx, query, args...)
}

func (r *shipmentRepo) FindByTrackingForUpdate(ctx context.Context, tracking string) (entities.Shipment, error) {
	query, args := r.selectShipments().
		Where(sq.Eq{"tracking": tracking}).
		Suffix("FOR UPDATE").
		MustSql()
	return r.getShipment(ctx, query, args...)
}

func (r *shipmentRepo) getShipment(ctx context.Context, query string, args ...any) (entities.Shipment, error) {
	var row Shipment
	err := r.getContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Shipment{}, entities.ErrShipmentNotFound
	}
	if err != nil {
		return entities.Shipment{}, fmt.Errorf("failed to get shipment: %w", err)
	}
	return ShipmentToEntity(row), nil
}

func (r *shipmentRepo) FindPage(ctx context.Context, pageSize, pageNumber int) ([]entities.Shipment, error) {
	query, args := r.selectShipments().
		OrderBy("id ASC").
		Limit(uint64(pageSize)).
		Offset(uint64(pageNumber-1) * uint64(pageSize)).
		MustSql()

	var rows []Shipment
	if err := r.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select shipments page: %w", err)
	}

	shipments := make([]entities.Shipment, 0, len(rows))
	for _, row := range rows {
		shipments = append(shipments, ShipmentToEntity(row))
	}
	return shipments, nil
}

func (r *shipmentRepo) Count(ctx context.Context) (int64, error) {
	query, args := r.qb.Select("COUNT(*)").
		From("shipments").
		Where(sq.Eq{"deleted": false}).
		MustSql()

	var count int64
	if err := r.getContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count shipments: %w", err)
	}
	return count, nil
}
