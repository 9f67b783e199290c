package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"shiptrack/internal/entities"
	"shiptrack/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type TrackingService interface {
	CreateOrder(ctx context.Context, draft entities.OrderDraft) (entities.Order, error)
	CreateShipment(ctx context.Context, draft entities.ShipmentDraft) (entities.Shipment, error)
	CreateLinkedShipment(ctx context.Context, orderID int64, draft entities.ShipmentDraft) (string, error)
	UpdateShipmentStatus(ctx context.Context, shipmentID int64, status entities.ShipmentStatus) error
	UnlinkAndDeleteShipment(ctx context.Context, orderID int64) error
	DeleteShipmentDirect(ctx context.Context, shipmentID int64) error
	DeleteOrder(ctx context.Context, orderID int64) error
	GetOrderByNumber(ctx context.Context, number string) (entities.Order, error)
	GetShipmentByTracking(ctx context.Context, tracking string) (entities.Shipment, error)
	ListOrders(ctx context.Context, pageSize, pageNumber int) ([]entities.Order, error)
	ListShipments(ctx context.Context, pageSize, pageNumber int) ([]entities.Shipment, error)
	CountOrders(ctx context.Context) (int64, error)
	CountShipments(ctx context.Context) (int64, error)
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	svc      TrackingService
}

func NewHTTPHandler(logger *slog.Logger, svc TrackingService) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger.With(slog.String("handler", "http")),
		validate: validator.New(),
		svc:      svc,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{number}", h.GetOrderByNumber)
		r.Delete("/{id}", h.DeleteOrder)
		r.Post("/{id}/shipment", h.CreateLinkedShipment)
		r.Delete("/{id}/shipment", h.UnlinkAndDeleteShipment)
	})
	r.Route("/shipments", func(r chi.Router) {
		r.Post("/", h.CreateShipment)
		r.Get("/", h.ListShipments)
		r.Get("/{tracking}", h.GetShipmentByTracking)
		r.Patch("/{id}/status", h.UpdateShipmentStatus)
	})
	// The direct path bypasses the unlink step and can leave an order with a
	// dangling reference. Kept off the normal /shipments tree on purpose.
	r.Delete("/admin/shipments/{id}", h.DeleteShipmentDirect)
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), req.ToDraft())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusCreated)
}

func (h *HTTPHandler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	order, err := h.svc.GetOrderByNumber(r.Context(), number)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	size, page, ok := h.pageParams(w, r)
	if !ok {
		return
	}

	orders, err := h.svc.ListOrders(r.Context(), size, page)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	total, err := h.svc.CountOrders(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]Order, 0, len(orders))
	for _, o := range orders {
		items = append(items, OrderEntityToJSON(o))
	}
	utils.WriteJSON(w, ListResponse[Order]{Items: items, Page: page, Size: size, Total: total}, http.StatusOK)
}

func (h *HTTPHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteOrder(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	var req CreateShipmentRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	shipment, err := h.svc.CreateShipment(r.Context(), req.ToDraft())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, ShipmentEntityToJSON(shipment), http.StatusCreated)
}

func (h *HTTPHandler) GetShipmentByTracking(w http.ResponseWriter, r *http.Request) {
	tracking := chi.URLParam(r, "tracking")

	shipment, err := h.svc.GetShipmentByTracking(r.Context(), tracking)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, ShipmentEntityToJSON(shipment), http.StatusOK)
}

func (h *HTTPHandler) ListShipments(w http.ResponseWriter, r *http.Request) {
	size, page, ok := h.pageParams(w, r)
	if !ok {
		return
	}

	shipments, err := h.svc.ListShipments(r.Context(), size, page)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	total, err := h.svc.CountShipments(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]Shipment, 0, len(shipments))
	for _, s := range shipments {
		items = append(items, ShipmentEntityToJSON(s))
	}
	utils.WriteJSON(w, ListResponse[Shipment]{Items: items, Page: page, Size: size, Total: total}, http.StatusOK)
}

func (h *HTTPHandler) CreateLinkedShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	var req CreateShipmentRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	tracking, err := h.svc.CreateLinkedShipment(r.Context(), id, req.ToDraft())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, CreateLinkedShipmentResponse{Tracking: tracking}, http.StatusCreated)
}

func (h *HTTPHandler) UpdateShipmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	var req UpdateShipmentStatusRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	if err := h.svc.UpdateShipmentStatus(r.Context(), id, entities.ShipmentStatus(req.Status)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) UnlinkAndDeleteShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.UnlinkAndDeleteShipment(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) DeleteShipmentDirect(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteShipmentDirect(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteError(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (h *HTTPHandler) pageParams(w http.ResponseWriter, r *http.Request) (size, page int, ok bool) {
	size, page = defaultPageSize, 1

	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxPageSize {
			utils.WriteError(w, "invalid page size", http.StatusBadRequest)
			return 0, 0, false
		}
		size = n
	}
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			utils.WriteError(w, "invalid page number", http.StatusBadRequest)
			return 0, 0, false
		}
		page = n
	}
	return size, page, true
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, entities.ErrOrderNotFound):
		utils.WriteError(w, "order not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrShipmentNotFound):
		utils.WriteError(w, "shipment not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrAlreadyLinked):
		utils.WriteError(w, "order already has a shipment", http.StatusConflict)
	case errors.Is(err, entities.ErrNotLinked):
		utils.WriteError(w, "order has no shipment", http.StatusConflict)
	case errors.Is(err, entities.ErrConstraintViolation):
		utils.WriteError(w, "conflicting identifier", http.StatusConflict)
	case errors.Is(err, entities.ErrIllegalTransition):
		utils.WriteError(w, "illegal shipment status transition", http.StatusUnprocessableEntity)
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}
