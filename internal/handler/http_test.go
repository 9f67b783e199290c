package handler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shiptrack/internal/entities"
	"shiptrack/internal/handler"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService implements handler.TrackingService through overridable funcs.
type stubService struct {
	createOrder          func(ctx context.Context, draft entities.OrderDraft) (entities.Order, error)
	createLinkedShipment func(ctx context.Context, orderID int64, draft entities.ShipmentDraft) (string, error)
	updateStatus         func(ctx context.Context, shipmentID int64, status entities.ShipmentStatus) error
	unlinkAndDelete      func(ctx context.Context, orderID int64) error
	deleteDirect         func(ctx context.Context, shipmentID int64) error
	getOrderByNumber     func(ctx context.Context, number string) (entities.Order, error)
	listOrders           func(ctx context.Context, pageSize, pageNumber int) ([]entities.Order, error)
}

func (s *stubService) CreateOrder(ctx context.Context, draft entities.OrderDraft) (entities.Order, error) {
	return s.createOrder(ctx, draft)
}

func (s *stubService) CreateShipment(context.Context, entities.ShipmentDraft) (entities.Shipment, error) {
	return entities.Shipment{}, nil
}

func (s *stubService) CreateLinkedShipment(ctx context.Context, orderID int64, draft entities.ShipmentDraft) (string, error) {
	return s.createLinkedShipment(ctx, orderID, draft)
}

func (s *stubService) UpdateShipmentStatus(ctx context.Context, shipmentID int64, status entities.ShipmentStatus) error {
	return s.updateStatus(ctx, shipmentID, status)
}

func (s *stubService) UnlinkAndDeleteShipment(ctx context.Context, orderID int64) error {
	return s.unlinkAndDelete(ctx, orderID)
}

func (s *stubService) DeleteShipmentDirect(ctx context.Context, shipmentID int64) error {
	return s.deleteDirect(ctx, shipmentID)
}

func (s *stubService) DeleteOrder(context.Context, int64) error { return nil }

func (s *stubService) GetOrderByNumber(ctx context.Context, number string) (entities.Order, error) {
	return s.getOrderByNumber(ctx, number)
}

func (s *stubService) GetShipmentByTracking(context.Context, string) (entities.Shipment, error) {
	return entities.Shipment{}, nil
}

func (s *stubService) ListOrders(ctx context.Context, pageSize, pageNumber int) ([]entities.Order, error) {
	return s.listOrders(ctx, pageSize, pageNumber)
}

func (s *stubService) ListShipments(context.Context, int, int) ([]entities.Shipment, error) {
	return nil, nil
}

func (s *stubService) CountOrders(context.Context) (int64, error)    { return 0, nil }
func (s *stubService) CountShipments(context.Context) (int64, error) { return 0, nil }

func serve(t *testing.T, svc handler.TrackingService, method, target, body string) *http.Response {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handler.NewHTTPHandler(logger, svc)

	r := chi.NewRouter()
	h.Init(r)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	return rr.Result()
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHTTPHandler_GetOrderByNumber(t *testing.T) {
	validOrder := entities.Order{
		ID:     1,
		Number: "PED-00000001",
		Date:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Status: entities.OrderStatusNew,
	}

	testCases := []struct {
		name       string
		number     string
		stub       func(ctx context.Context, number string) (entities.Order, error)
		wantStatus int
		wantBody   string
	}{
		{
			name:   "success",
			number: "PED-00000001",
			stub: func(_ context.Context, number string) (entities.Order, error) {
				assert.Equal(t, "PED-00000001", number)
				return validOrder, nil
			},
			wantStatus: http.StatusOK,
			wantBody:   `"number":"PED-00000001"`,
		},
		{
			name:   "not found",
			number: "PED-99999999",
			stub: func(context.Context, string) (entities.Order, error) {
				return entities.Order{}, entities.ErrOrderNotFound
			},
			wantStatus: http.StatusNotFound,
			wantBody:   `"order not found"`,
		},
		{
			name:   "internal error",
			number: "PED-00000001",
			stub: func(context.Context, string) (entities.Order, error) {
				return entities.Order{}, errors.New("db error")
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `"internal server error"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{getOrderByNumber: tc.stub}

			res := serve(t, svc, http.MethodGet, "/orders/"+tc.number, "")

			assert.Equal(t, tc.wantStatus, res.StatusCode)
			assert.Contains(t, readBody(t, res), tc.wantBody)
		})
	}
}

func TestHTTPHandler_CreateOrder(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		stub       func(ctx context.Context, draft entities.OrderDraft) (entities.Order, error)
		wantStatus int
	}{
		{
			name: "created",
			body: `{"customer_name":"ACME Corp","total":12.5}`,
			stub: func(_ context.Context, draft entities.OrderDraft) (entities.Order, error) {
				assert.Equal(t, "ACME Corp", draft.CustomerName)
				return entities.Order{ID: 1, Number: "PED-00000001", CustomerName: draft.CustomerName}, nil
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing customer name",
			body:       `{"total":12.5}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negative total",
			body:       `{"customer_name":"ACME Corp","total":-1}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{createOrder: tc.stub}

			res := serve(t, svc, http.MethodPost, "/orders/", tc.body)
			defer res.Body.Close()

			assert.Equal(t, tc.wantStatus, res.StatusCode)
		})
	}
}

func TestHTTPHandler_CreateLinkedShipment(t *testing.T) {
	body := `{"carrier":"CARRIER_A","kind":"EXPRESS","cost":20}`

	t.Run("created", func(t *testing.T) {
		svc := &stubService{
			createLinkedShipment: func(_ context.Context, orderID int64, draft entities.ShipmentDraft) (string, error) {
				assert.Equal(t, int64(5), orderID)
				assert.Equal(t, entities.CarrierA, draft.Carrier)
				return "TRK-00000001", nil
			},
		}

		res := serve(t, svc, http.MethodPost, "/orders/5/shipment", body)

		assert.Equal(t, http.StatusCreated, res.StatusCode)
		assert.Contains(t, readBody(t, res), `"tracking":"TRK-00000001"`)
	})

	t.Run("already linked", func(t *testing.T) {
		svc := &stubService{
			createLinkedShipment: func(context.Context, int64, entities.ShipmentDraft) (string, error) {
				return "", entities.ErrAlreadyLinked
			},
		}

		res := serve(t, svc, http.MethodPost, "/orders/5/shipment", body)
		defer res.Body.Close()

		assert.Equal(t, http.StatusConflict, res.StatusCode)
	})

	t.Run("invalid order id", func(t *testing.T) {
		res := serve(t, &stubService{}, http.MethodPost, "/orders/abc/shipment", body)
		defer res.Body.Close()

		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestHTTPHandler_UpdateShipmentStatus(t *testing.T) {
	t.Run("delivered is terminal", func(t *testing.T) {
		svc := &stubService{
			updateStatus: func(context.Context, int64, entities.ShipmentStatus) error {
				return entities.ErrIllegalTransition
			},
		}

		res := serve(t, svc, http.MethodPatch, "/shipments/3/status", `{"status":"IN_TRANSIT"}`)
		defer res.Body.Close()

		assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	})

	t.Run("unknown status rejected before the service", func(t *testing.T) {
		res := serve(t, &stubService{}, http.MethodPatch, "/shipments/3/status", `{"status":"LOST"}`)
		defer res.Body.Close()

		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestHTTPHandler_UnlinkAndDeleteShipment(t *testing.T) {
	t.Run("no content", func(t *testing.T) {
		svc := &stubService{
			unlinkAndDelete: func(_ context.Context, orderID int64) error {
				assert.Equal(t, int64(7), orderID)
				return nil
			},
		}

		res := serve(t, svc, http.MethodDelete, "/orders/7/shipment", "")
		defer res.Body.Close()

		assert.Equal(t, http.StatusNoContent, res.StatusCode)
	})

	t.Run("not linked", func(t *testing.T) {
		svc := &stubService{
			unlinkAndDelete: func(context.Context, int64) error {
				return entities.ErrNotLinked
			},
		}

		res := serve(t, svc, http.MethodDelete, "/orders/7/shipment", "")
		defer res.Body.Close()

		assert.Equal(t, http.StatusConflict, res.StatusCode)
	})
}

func TestHTTPHandler_DeleteShipmentDirect(t *testing.T) {
	svc := &stubService{
		deleteDirect: func(context.Context, int64) error {
			return entities.ErrIllegalTransition
		},
	}

	res := serve(t, svc, http.MethodDelete, "/admin/shipments/2", "")
	defer res.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}

func TestHTTPHandler_ListOrders(t *testing.T) {
	t.Run("passes page params", func(t *testing.T) {
		svc := &stubService{
			listOrders: func(_ context.Context, pageSize, pageNumber int) ([]entities.Order, error) {
				assert.Equal(t, 5, pageSize)
				assert.Equal(t, 2, pageNumber)
				return []entities.Order{{Number: "PED-00000006"}}, nil
			},
		}

		res := serve(t, svc, http.MethodGet, "/orders/?size=5&page=2", "")

		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, readBody(t, res), `"number":"PED-00000006"`)
	})

	t.Run("invalid page size", func(t *testing.T) {
		res := serve(t, &stubService{}, http.MethodGet, "/orders/?size=0", "")
		defer res.Body.Close()

		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}
