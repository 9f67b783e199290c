package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shiptrack/internal/entities"
	"shiptrack/pkg/pager"
	"shiptrack/pkg/trm"
	"shiptrack/pkg/utils"
)

type OrderRepo interface {
	Insert(ctx context.Context, o entities.Order) (int64, error)
	Update(ctx context.Context, o entities.Order) error
	SetShipmentRef(ctx context.Context, orderID, shipmentID int64) error
	ClearShipmentRef(ctx context.Context, orderID int64) error
	SoftDelete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (entities.Order, error)
	FindByIDForUpdate(ctx context.Context, id int64) (entities.Order, error)
	FindByNumber(ctx context.Context, number string) (entities.Order, error)
	FindByShipmentID(ctx context.Context, shipmentID int64) (entities.Order, error)
	FindPage(ctx context.Context, pageSize, pageNumber int) ([]entities.Order, error)
	Count(ctx context.Context) (int64, error)
}

type ShipmentRepo interface {
	Insert(ctx context.Context, s entities.Shipment) (int64, error)
	Update(ctx context.Context, s entities.Shipment) error
	SoftDelete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (entities.Shipment, error)
	FindByIDForUpdate(ctx context.Context, id int64) (entities.Shipment, error)
	FindByTracking(ctx context.Context, tracking string) (entities.Shipment, error)
	FindByTrackingForUpdate(ctx context.Context, tracking string) (entities.Shipment, error)
	FindPage(ctx context.Context, pageSize, pageNumber int) ([]entities.Shipment, error)
	Count(ctx context.Context) (int64, error)
}

// Sequences mints business identifiers. Implementations must only be called
// inside a transaction opened by the manager, the mint and the insert have
// to commit together.
type Sequences interface {
	NextOrderNumber(ctx context.Context) (string, error)
	NextShipmentTracking(ctx context.Context) (string, error)
}

type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
}

type TrackingService struct {
	logger    *slog.Logger
	txManager trm.Manager
	orders    OrderRepo
	shipments ShipmentRepo
	seq       Sequences
	cache     Cache
}

func NewTrackingService(
	logger *slog.Logger,
	txManager trm.Manager,
	orders OrderRepo,
	shipments ShipmentRepo,
	seq Sequences,
	cache Cache,
) *TrackingService {
	return &TrackingService{
		logger:    logger.With(slog.String("service", "tracking")),
		txManager: txManager,
		orders:    orders,
		shipments: shipments,
		seq:       seq,
		cache:     cache,
	}
}

func orderKey(number string) string {
	return "order:" + number
}

// CreateOrder mints the next order number and inserts the order, both inside
// one transaction.
func (s *TrackingService) CreateOrder(ctx context.Context, draft entities.OrderDraft) (entities.Order, error) {
	if err := draft.Validate(); err != nil {
		return entities.Order{}, err
	}
	if draft.Status == "" {
		draft.Status = entities.OrderStatusNew
	}

	var order entities.Order
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		number, err := s.seq.NextOrderNumber(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate order number: %w", err)
		}

		order = entities.Order{
			Number:       number,
			Date:         draft.Date,
			CustomerName: draft.CustomerName,
			Total:        draft.Total,
			Status:       draft.Status,
		}
		order.ID, err = s.orders.Insert(ctx, order)
		return err
	})
	if err != nil {
		return entities.Order{}, err
	}

	s.logger.Debug("order created", slog.String("number", order.Number))
	return order, nil
}

// CreateShipment creates a standalone shipment, not linked to any order.
func (s *TrackingService) CreateShipment(ctx context.Context, draft entities.ShipmentDraft) (entities.Shipment, error) {
	if err := draft.Validate(); err != nil {
		return entities.Shipment{}, err
	}
	if draft.Status == "" {
		draft.Status = entities.ShipmentStatusPreparing
	}

	var shipment entities.Shipment
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		tracking, err := s.seq.NextShipmentTracking(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate tracking: %w", err)
		}

		shipment = draftToShipment(tracking, draft)
		shipment.ID, err = s.shipments.Insert(ctx, shipment)
		return err
	})
	if err != nil {
		return entities.Shipment{}, err
	}

	s.logger.Debug("shipment created", slog.String("tracking", shipment.Tracking))
	return shipment, nil
}

// CreateLinkedShipment atomically creates a shipment for the order: mint
// tracking, insert the shipment, claim it on the order row and mark the
// order shipped. Fails with ErrAlreadyLinked while an active link exists.
// Returns the new shipment's tracking identifier.
func (s *TrackingService) CreateLinkedShipment(ctx context.Context, orderID int64, draft entities.ShipmentDraft) (string, error) {
	if err := draft.Validate(); err != nil {
		return "", err
	}
	if draft.Status == "" {
		draft.Status = entities.ShipmentStatusPreparing
	}

	var (
		tracking    string
		orderNumber string
	)
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		orderNumber = order.Number
		if order.Shipment != nil {
			return fmt.Errorf("order %s: %w", order.Number, entities.ErrAlreadyLinked)
		}

		tracking, err = s.seq.NextShipmentTracking(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate tracking: %w", err)
		}

		shipment := draftToShipment(tracking, draft)
		shipmentID, err := s.shipments.Insert(ctx, shipment)
		if err != nil {
			return err
		}
		if err := s.orders.SetShipmentRef(ctx, order.ID, shipmentID); err != nil {
			return err
		}

		order.Status = entities.OrderStatusShipped
		return s.orders.Update(ctx, order)
	})
	if err != nil {
		return "", err
	}

	s.cache.Delete(orderKey(orderNumber))
	s.logger.Debug("linked shipment created",
		slog.Int64("order_id", orderID), slog.String("tracking", tracking))
	return tracking, nil
}

// UpdateShipmentStatus moves the shipment to status. DELIVERED is terminal:
// any transition out of it is rejected, any transition into it is allowed.
func (s *TrackingService) UpdateShipmentStatus(ctx context.Context, shipmentID int64, status entities.ShipmentStatus) error {
	return s.updateStatus(ctx, status, func(ctx context.Context) (entities.Shipment, error) {
		return s.shipments.FindByIDForUpdate(ctx, shipmentID)
	})
}

// UpdateShipmentStatusByTracking is the carrier-feed entry point. Transient
// store failures are retried, the taxonomy errors are not.
func (s *TrackingService) UpdateShipmentStatusByTracking(ctx context.Context, tracking string, status entities.ShipmentStatus) error {
	fn := func() error {
		return s.updateStatus(ctx, status, func(ctx context.Context) (entities.Shipment, error) {
			return s.shipments.FindByTrackingForUpdate(ctx, tracking)
		})
	}

	cfg := utils.RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxAttempts:  5,
		Multiplier:   2,
	}
	return utils.Retry(cfg, fn, entities.ErrShipmentNotFound, entities.ErrIllegalTransition)
}

func (s *TrackingService) updateStatus(
	ctx context.Context,
	status entities.ShipmentStatus,
	find func(ctx context.Context) (entities.Shipment, error),
) error {
	if !status.Valid() {
		return fmt.Errorf("unknown shipment status %q: %w", status, entities.ErrIllegalTransition)
	}

	var linkedNumber string
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		shipment, err := find(ctx)
		if err != nil {
			return err
		}
		if shipment.Status.Terminal() {
			return fmt.Errorf("shipment %s is delivered: %w", shipment.Tracking, entities.ErrIllegalTransition)
		}

		shipment.Status = status
		if err := s.shipments.Update(ctx, shipment); err != nil {
			return err
		}

		// A cached order embeds its shipment, so the linked order goes stale.
		if order, err := s.orders.FindByShipmentID(ctx, shipment.ID); err == nil {
			linkedNumber = order.Number
		}
		return nil
	})
	if err != nil {
		return err
	}

	if linkedNumber != "" {
		s.cache.Delete(orderKey(linkedNumber))
	}
	return nil
}

// UnlinkAndDeleteShipment is the safe deletion path: the order's reference
// is cleared before the shipment is soft-deleted, so no transaction ever
// observes an active order pointing at a deleted shipment. Both steps commit
// together.
func (s *TrackingService) UnlinkAndDeleteShipment(ctx context.Context, orderID int64) error {
	var orderNumber string
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		orderNumber = order.Number
		if order.Shipment == nil {
			return fmt.Errorf("order %s: %w", order.Number, entities.ErrNotLinked)
		}
		if order.Shipment.Status.Terminal() {
			return fmt.Errorf("shipment %s is delivered: %w", order.Shipment.Tracking, entities.ErrIllegalTransition)
		}

		if err := s.orders.ClearShipmentRef(ctx, order.ID); err != nil {
			return err
		}
		return s.shipments.SoftDelete(ctx, order.Shipment.ID)
	})
	if err != nil {
		return err
	}

	s.cache.Delete(orderKey(orderNumber))
	s.logger.Debug("shipment unlinked and deleted", slog.Int64("order_id", orderID))
	return nil
}

// DeleteShipmentDirect soft-deletes a shipment without touching any order
// that references it, leaving that order with a dangling link. Administrative
// use only; every normal caller wants UnlinkAndDeleteShipment. A delivered
// shipment is still refused.
func (s *TrackingService) DeleteShipmentDirect(ctx context.Context, shipmentID int64) error {
	var orderNumber string
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		shipment, err := s.shipments.FindByIDForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if shipment.Status.Terminal() {
			return fmt.Errorf("shipment %s is delivered: %w", shipment.Tracking, entities.ErrIllegalTransition)
		}

		if order, err := s.orders.FindByShipmentID(ctx, shipmentID); err == nil {
			orderNumber = order.Number
			s.logger.Warn("direct delete leaves a dangling reference",
				slog.String("order", order.Number), slog.String("tracking", shipment.Tracking))
		}

		return s.shipments.SoftDelete(ctx, shipmentID)
	})
	if err != nil {
		return err
	}

	if orderNumber != "" {
		s.cache.Delete(orderKey(orderNumber))
	}
	return nil
}

// DeleteOrder soft-deletes the order only. A linked shipment deliberately
// outlives it, shipment history is preserved.
func (s *TrackingService) DeleteOrder(ctx context.Context, orderID int64) error {
	var orderNumber string
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		orderNumber = order.Number
		return s.orders.SoftDelete(ctx, orderID)
	})
	if err != nil {
		return err
	}

	s.cache.Delete(orderKey(orderNumber))
	s.logger.Debug("order deleted", slog.String("number", orderNumber))
	return nil
}

func (s *TrackingService) GetOrderByID(ctx context.Context, orderID int64) (entities.Order, error) {
	return s.orders.FindByID(ctx, orderID)
}

func (s *TrackingService) GetOrderByNumber(ctx context.Context, number string) (entities.Order, error) {
	if data, ok := s.cache.Get(orderKey(number)); ok {
		var order entities.Order
		if err := order.Unmarshal(data); err == nil {
			return order, nil
		}
		s.cache.Delete(orderKey(number))
	}

	order, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return entities.Order{}, err
	}

	if data, err := order.Marshal(); err == nil {
		s.cache.Set(orderKey(number), data)
	}
	return order, nil
}

func (s *TrackingService) GetShipmentByTracking(ctx context.Context, tracking string) (entities.Shipment, error) {
	return s.shipments.FindByTracking(ctx, tracking)
}

func (s *TrackingService) ListOrders(ctx context.Context, pageSize, pageNumber int) ([]entities.Order, error) {
	if err := validatePage(pageSize, pageNumber); err != nil {
		return nil, err
	}
	return s.orders.FindPage(ctx, pageSize, pageNumber)
}

func (s *TrackingService) ListShipments(ctx context.Context, pageSize, pageNumber int) ([]entities.Shipment, error) {
	if err := validatePage(pageSize, pageNumber); err != nil {
		return nil, err
	}
	return s.shipments.FindPage(ctx, pageSize, pageNumber)
}

func (s *TrackingService) CountOrders(ctx context.Context) (int64, error) {
	return s.orders.Count(ctx)
}

func (s *TrackingService) CountShipments(ctx context.Context) (int64, error) {
	return s.shipments.Count(ctx)
}

// ForEachOrder pages through every active order in id order, handing each
// page to fn.
func (s *TrackingService) ForEachOrder(ctx context.Context, pageSize int, fn func(orders []entities.Order) error) error {
	total, err := s.orders.Count(ctx)
	if err != nil {
		return err
	}
	return pager.Paginate(ctx, total, pageSize, s.orders.FindPage, fn)
}

var errWarmUpDone = errors.New("warm-up done")

const warmUpPageSize = 100

// WarmUpCache preloads up to count orders into the cache at startup.
func (s *TrackingService) WarmUpCache(ctx context.Context, count int) error {
	if count <= 0 {
		return nil
	}

	warmed := 0
	err := s.ForEachOrder(ctx, warmUpPageSize, func(orders []entities.Order) error {
		for _, order := range orders {
			if warmed >= count {
				return errWarmUpDone
			}
			if data, err := order.Marshal(); err == nil {
				s.cache.Set(orderKey(order.Number), data)
				warmed++
			}
		}
		return nil
	})
	if errors.Is(err, errWarmUpDone) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("failed to warm up cache: %w", err)
	}

	s.logger.Info("cache warmed up", slog.Int("orders", warmed))
	return nil
}

func draftToShipment(tracking string, draft entities.ShipmentDraft) entities.Shipment {
	return entities.Shipment{
		Tracking:      tracking,
		Carrier:       draft.Carrier,
		Kind:          draft.Kind,
		Cost:          draft.Cost,
		DispatchDate:  draft.DispatchDate,
		EstimatedDate: draft.EstimatedDate,
		Status:        draft.Status,
	}
}

func validatePage(pageSize, pageNumber int) error {
	if pageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	if pageNumber < 1 {
		return fmt.Errorf("page number is 1-indexed, got %d", pageNumber)
	}
	return nil
}
