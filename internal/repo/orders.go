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

type orderRepo struct {
	store
}

func NewOrderRepo(db *sqlx.DB) *orderRepo {
	return &orderRepo{store: newStore(db)}
}

var orderColumns = []string{
	"o.id", "o.number", "o.order_date", "o.customer_name", "o.total", "o.status", "o.shipment_id",
	"s.id AS ship_id", "s.tracking AS ship_tracking", "s.carrier AS ship_carrier",
	"s.kind AS ship_kind", "s.cost AS ship_cost", "s.dispatch_date AS ship_dispatch_date",
	"s.estimated_date AS ship_estimated_date", "s.status AS ship_status",
}

// selectOrders builds the base read query: active orders with their linked
// non-deleted shipment joined in the same round trip.
func (r *orderRepo) selectOrders() sq.SelectBuilder {
	return r.qb.Select(orderColumns...).
		From("orders o").
		LeftJoin("shipments s ON s.id = o.shipment_id AND s.deleted = false").
		Where(sq.Eq{"o.deleted": false})
}

func (r *orderRepo) Insert(ctx context.Context, o entities.Order) (int64, error) {
	query, args := r.qb.Insert("orders").
		Columns("number", "order_date", "customer_name", "total", "status").
		Values(o.Number, o.Date, o.CustomerName, o.Total, string(o.Status)).
		Suffix("RETURNING id").
		MustSql()

	var id int64
	err := r.getContext(ctx, &id, query, args...)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("order number %q: %w", o.Number, entities.ErrConstraintViolation)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert order: %w", err)
	}
	return id, nil
}

// Update rewrites the mutable order fields. The business number is immutable
// and deliberately absent from the SET list.
func (r *orderRepo) Update(ctx context.Context, o entities.Order) error {
	query, args := r.qb.Update("orders").
		Set("order_date", o.Date).
		Set("customer_name", o.CustomerName).
		Set("total", o.Total).
		Set("status", string(o.Status)).
		Where(sq.Eq{"id": o.ID, "deleted": false}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return checkAffected(res, entities.ErrOrderNotFound)
}

// SetShipmentRef claims shipmentID for the order. It only matches an active
// unlinked order, so a lost race surfaces as ErrAlreadyLinked; a concurrent
// claim of the same shipment by another order trips the unique constraint.
func (r *orderRepo) SetShipmentRef(ctx context.Context, orderID, shipmentID int64) error {
	query, args := r.qb.Update("orders").
		Set("shipment_id", shipmentID).
		Where(sq.Eq{"id": orderID, "deleted": false, "shipment_id": nil}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("shipment %d is already claimed: %w", shipmentID, entities.ErrConstraintViolation)
	}
	if err != nil {
		return fmt.Errorf("failed to set shipment reference: %w", err)
	}
	return checkAffected(res, entities.ErrAlreadyLinked)
}

func (r *orderRepo) ClearShipmentRef(ctx context.Context, orderID int64) error {
	query, args := r.qb.Update("orders").
		Set("shipment_id", nil).
		Where(sq.And{
			sq.Eq{"id": orderID, "deleted": false},
			sq.NotEq{"shipment_id": nil},
		}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to clear shipment reference: %w", err)
	}
	return checkAffected(res, entities.ErrNotLinked)
}

func (r *orderRepo) SoftDelete(ctx context.Context, id int64) error {
	query, args := r.qb.Update("orders").
		Set("deleted", true).
		Where(sq.Eq{"id": id, "deleted": false}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to soft-delete order: %w", err)
	}
	return checkAffected(res, entities.ErrOrderNotFound)
}

func (r *orderRepo) FindByID(ctx context.Context, id int64) (entities.Order, error) {
	query, args := r.selectOrders().Where(sq.Eq{"o.id": id}).MustSql()
	return r.getOrder(ctx, query, args...)
}

// FindByIDForUpdate locks the order row for the rest of the transaction.
// Only the orders side is locked; FOR UPDATE cannot span the nullable side
// of the shipment join.
func (r *orderRepo) FindByIDForUpdate(ctx context.Context, id int64) (entities.Order, error) {
	query, args := r.selectOrders().
		Where(sq.Eq{"o.id": id}).
		Suffix("FOR UPDATE OF o").
		MustSql()
	return r.getOrder(ctx, query, args...)
}

// FindByShipmentID returns the active order claiming the shipment, if any.
func (r *orderRepo) FindByShipmentID(ctx context.Context, shipmentID int64) (entities.Order, error) {
	query, args := r.selectOrders().Where(sq.Eq{"o.shipment_id": shipmentID}).MustSql()
	return r.getOrder(ctx, query, args...)
}

func (r *orderRepo) FindByNumber(ctx context.Context, number string) (entities.Order, error) {
	query, args := r.selectOrders().Where(sq.Eq{"o.number": number}).MustSql()
	return r.getOrder(ctx, query, args...)
}

func (r *orderRepo) getOrder(ctx context.Context, query string, args ...any) (entities.Order, error) {
	var row Order
	err := r.getContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order: %w", err)
	}
	return OrderToEntity(row), nil
}

// FindPage returns the pageNumber-th page (1-indexed) of active orders in
// ascending id order.
func (r *orderRepo) FindPage(ctx context.Context, pageSize, pageNumber int) ([]entities.Order, error) {
	query, args := r.selectOrders().
		OrderBy("o.id ASC").
		Limit(uint64(pageSize)).
		Offset(uint64(pageNumber-1) * uint64(pageSize)).
		MustSql()

	var rows []Order
	if err := r.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select orders page: %w", err)
	}

	orders := make([]entities.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, OrderToEntity(row))
	}
	return orders, nil
}

func (r *orderRepo) Count(ctx context.Context) (int64, error) {
	query, args := r.qb.Select("COUNT(*)").
		From("orders").
		Where(sq.Eq{"deleted": false}).
		MustSql()

	var count int64
	if err := r.getContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

func checkAffected(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return missing
	}
	return nil
}
