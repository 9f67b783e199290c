package handler

import (
	"time"

	"shiptrack/internal/entities"
)

type Order struct {
	ID           int64     `json:"id"`
	Number       string    `json:"number"`
	Date         time.Time `json:"date"`
	CustomerName string    `json:"customer_name"`
	Total        float64   `json:"total"`
	Status       string    `json:"status"`
	Shipment     *Shipment `json:"shipment,omitempty"`
}

type Shipment struct {
	ID            int64      `json:"id"`
	Tracking      string     `json:"tracking"`
	Carrier       string     `json:"carrier"`
	Kind          string     `json:"kind"`
	Cost          float64    `json:"cost"`
	DispatchDate  *time.Time `json:"dispatch_date,omitempty"`
	EstimatedDate *time.Time `json:"estimated_date,omitempty"`
	Status        string     `json:"status"`
}

type CreateOrderRequest struct {
	Date         time.Time `json:"date"`
	CustomerName string    `json:"customer_name" validate:"required"`
	Total        float64   `json:"total" validate:"gte=0"`
	Status       string    `json:"status" validate:"omitempty,oneof=NEW INVOICED SHIPPED"`
}

type CreateShipmentRequest struct {
	Carrier       string     `json:"carrier" validate:"required,oneof=NATIONAL_POST CARRIER_A CARRIER_B"`
	Kind          string     `json:"kind" validate:"required,oneof=STANDARD EXPRESS"`
	Cost          float64    `json:"cost" validate:"gte=0"`
	DispatchDate  *time.Time `json:"dispatch_date"`
	EstimatedDate *time.Time `json:"estimated_date"`
	Status        string     `json:"status" validate:"omitempty,oneof=PREPARING IN_TRANSIT DELIVERED"`
}

type UpdateShipmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PREPARING IN_TRANSIT DELIVERED"`
}

type CreateLinkedShipmentResponse struct {
	Tracking string `json:"tracking"`
}

type ListResponse[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

func OrderEntityToJSON(o entities.Order) Order {
	order := Order{
		ID:           o.ID,
		Number:       o.Number,
		Date:         o.Date,
		CustomerName: o.CustomerName,
		Total:        o.Total,
		Status:       string(o.Status),
	}
	if o.Shipment != nil {
		shipment := ShipmentEntityToJSON(*o.Shipment)
		order.Shipment = &shipment
	}
	return order
}

func ShipmentEntityToJSON(s entities.Shipment) Shipment {
	return Shipment{
		ID:            s.ID,
		Tracking:      s.Tracking,
		Carrier:       string(s.Carrier),
		Kind:          string(s.Kind),
		Cost:          s.Cost,
		DispatchDate:  s.DispatchDate,
		EstimatedDate: s.EstimatedDate,
		Status:        string(s.Status),
	}
}

func (r CreateOrderRequest) ToDraft() entities.OrderDraft {
	date := r.Date
	if date.IsZero() {
		date = time.Now()
	}
	return entities.OrderDraft{
		Date:         date,
		CustomerName: r.CustomerName,
		Total:        r.Total,
		Status:       entities.OrderStatus(r.Status),
	}
}

func (r CreateShipmentRequest) ToDraft() entities.ShipmentDraft {
	return entities.ShipmentDraft{
		Carrier:       entities.Carrier(r.Carrier),
		Kind:          entities.ShipmentKind(r.Kind),
		Cost:          r.Cost,
		DispatchDate:  r.DispatchDate,
		EstimatedDate: r.EstimatedDate,
		Status:        entities.ShipmentStatus(r.Status),
	}
}
