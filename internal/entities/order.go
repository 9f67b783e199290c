package entities

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusInvoiced OrderStatus = "INVOICED"
	OrderStatusShipped  OrderStatus = "SHIPPED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusInvoiced, OrderStatusShipped:
		return true
	}
	return false
}

// OrderNumberPrefix prefixes every order business number (PED-00000042).
const OrderNumberPrefix = "PED-"

type Order struct {
	ID           int64
	Number       string
	Date         time.Time
	CustomerName string
	Total        float64
	Status       OrderStatus
	Deleted      bool

	// Shipment is the eagerly loaded linked shipment, nil when the order is
	// unlinked or the shipment itself has been soft-deleted.
	Shipment *Shipment
}

// OrderDraft carries the caller-supplied fields of a new order. Identity and
// business number are assigned by the store at creation time.
type OrderDraft struct {
	Date         time.Time
	CustomerName string
	Total        float64
	Status       OrderStatus
}

func (d OrderDraft) Validate() error {
	if d.CustomerName == "" {
		return fmt.Errorf("customer name is required")
	}
	if d.Total < 0 {
		return fmt.Errorf("total must be non-negative, got %v", d.Total)
	}
	if d.Status != "" && !d.Status.Valid() {
		return fmt.Errorf("unknown order status %q", d.Status)
	}
	return nil
}

func (o *Order) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(o); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Order) Unmarshal(data []byte) error {
	return gob.NewDecoder(bytes.NewBuffer(data)).Decode(o)
}

func init() {
	gob.Register(Order{})
	gob.Register(Shipment{})
}
