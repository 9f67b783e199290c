package entities

import (
	"fmt"
	"time"
)

type Carrier string

const (
	CarrierNationalPost Carrier = "NATIONAL_POST"
	CarrierA            Carrier = "CARRIER_A"
	CarrierB            Carrier = "CARRIER_B"
)

func (c Carrier) Valid() bool {
	switch c {
	case CarrierNationalPost, CarrierA, CarrierB:
		return true
	}
	return false
}

type ShipmentKind string

const (
	ShipmentKindStandard ShipmentKind = "STANDARD"
	ShipmentKindExpress  ShipmentKind = "EXPRESS"
)

func (k ShipmentKind) Valid() bool {
	return k == ShipmentKindStandard || k == ShipmentKindExpress
}

type ShipmentStatus string

const (
	ShipmentStatusPreparing ShipmentStatus = "PREPARING"
	ShipmentStatusInTransit ShipmentStatus = "IN_TRANSIT"
	ShipmentStatusDelivered ShipmentStatus = "DELIVERED"
)

func (s ShipmentStatus) Valid() bool {
	switch s {
	case ShipmentStatusPreparing, ShipmentStatusInTransit, ShipmentStatusDelivered:
		return true
	}
	return false
}

// Terminal reports whether no further transition or deletion is permitted.
// DELIVERED is the only terminal status.
func (s ShipmentStatus) Terminal() bool {
	return s == ShipmentStatusDelivered
}

// TrackingPrefix prefixes every shipment business identifier (TRK-00000042).
const TrackingPrefix = "TRK-"

type Shipment struct {
	ID            int64
	Tracking      string
	Carrier       Carrier
	Kind          ShipmentKind
	Cost          float64
	DispatchDate  *time.Time
	EstimatedDate *time.Time
	Status        ShipmentStatus
	Deleted       bool
}

// ShipmentDraft carries the caller-supplied fields of a new shipment.
// Identity and tracking number are assigned by the store at creation time.
type ShipmentDraft struct {
	Carrier       Carrier
	Kind          ShipmentKind
	Cost          float64
	DispatchDate  *time.Time
	EstimatedDate *time.Time
	Status        ShipmentStatus
}

func (d ShipmentDraft) Validate() error {
	if !d.Carrier.Valid() {
		return fmt.Errorf("unknown carrier %q", d.Carrier)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("unknown shipment kind %q", d.Kind)
	}
	if d.Cost < 0 {
		return fmt.Errorf("cost must be non-negative, got %v", d.Cost)
	}
	if d.Status != "" && !d.Status.Valid() {
		return fmt.Errorf("unknown shipment status %q", d.Status)
	}
	return nil
}
