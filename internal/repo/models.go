package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"shiptrack/internal/entities"
	"shiptrack/pkg/trm"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Order struct {
	ID           int64         `db:"id"`
	Number       string        `db:"number"`
	Date         time.Time     `db:"order_date"`
	CustomerName string        `db:"customer_name"`
	Total        float64       `db:"total"`
	Status       string        `db:"status"`
	ShipmentID   sql.NullInt64 `db:"shipment_id"`

	// Joined columns of the linked non-deleted shipment, all nullable.
	ShipID       sql.NullInt64   `db:"ship_id"`
	ShipTracking sql.NullString  `db:"ship_tracking"`
	ShipCarrier  sql.NullString  `db:"ship_carrier"`
	ShipKind     sql.NullString  `db:"ship_kind"`
	ShipCost     sql.NullFloat64 `db:"ship_cost"`
	ShipDispatch sql.NullTime    `db:"ship_dispatch_date"`
	ShipEstimate sql.NullTime    `db:"ship_estimated_date"`
	ShipStatus   sql.NullString  `db:"ship_status"`
}

type Shipment struct {
	ID            int64        `db:"id"`
	Tracking      string       `db:"tracking"`
	Carrier       string       `db:"carrier"`
	Kind          string       `db:"kind"`
	Cost          float64      `db:"cost"`
	DispatchDate  sql.NullTime `db:"dispatch_date"`
	EstimatedDate sql.NullTime `db:"estimated_date"`
	Status        string       `db:"status"`
}

func OrderToEntity(o Order) entities.Order {
	order := entities.Order{
		ID:           o.ID,
		Number:       o.Number,
		Date:         o.Date,
		CustomerName: o.CustomerName,
		Total:        o.Total,
		Status:       entities.OrderStatus(o.Status),
	}

	if o.ShipID.Valid {
		order.Shipment = &entities.Shipment{
			ID:            o.ShipID.Int64,
			Tracking:      o.ShipTracking.String,
			Carrier:       entities.Carrier(o.ShipCarrier.String),
			Kind:          entities.ShipmentKind(o.ShipKind.String),
			Cost:          o.ShipCost.Float64,
			DispatchDate:  nullTimeToPtr(o.ShipDispatch),
			EstimatedDate: nullTimeToPtr(o.ShipEstimate),
			Status:        entities.ShipmentStatus(o.ShipStatus.String),
		}
	}

	return order
}

func ShipmentToEntity(s Shipment) entities.Shipment {
	return entities.Shipment{
		ID:            s.ID,
		Tracking:      s.Tracking,
		Carrier:       entities.Carrier(s.Carrier),
		Kind:          entities.ShipmentKind(s.Kind),
		Cost:          s.Cost,
		DispatchDate:  nullTimeToPtr(s.DispatchDate),
		EstimatedDate: nullTimeToPtr(s.EstimatedDate),
		Status:        entities.ShipmentStatus(s.Status),
	}
}

func nullTimeToPtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func ptrToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// store provides statement helpers that run on the transaction carried by
// ctx when present, and on the pool otherwise.
type store struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

func newStore(db *sqlx.DB) store {
	return store{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s store) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func (s store) getContext(ctx context.Context, dest any, query string, args ...any) error {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return s.db.GetContext(ctx, dest, query, args...)
}

func (s store) selectContext(ctx context.Context, dest any, query string, args ...any) error {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.SelectContext(ctx, dest, query, args...)
	}
	return s.db.SelectContext(ctx, dest, query, args...)
}
