package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OrderType string

const (
	OrderTypeDINEIN   OrderType = "DINE_IN"
	OrderTypeTAKEAWAY OrderType = "TAKEAWAY"
	OrderTypeDELIVERY OrderType = "DELIVERY"
)

type OrderStatus string

const (
	OrderStatusPENDING   OrderStatus = "PENDING"
	OrderStatusCONFIRMED OrderStatus = "CONFIRMED"
	OrderStatusPREPARING OrderStatus = "PREPARING"
	OrderStatusREADY     OrderStatus = "READY"
	OrderStatusSERVED    OrderStatus = "SERVED"
	OrderStatusBILLED    OrderStatus = "BILLED"
	OrderStatusPAID      OrderStatus = "PAID"
	OrderStatusCANCELLED OrderStatus = "CANCELLED"
)

type NullOrderStatus struct {
	OrderStatus OrderStatus
	Valid       bool
}

type OrderItemStatus string

const (
	OrderItemStatusPENDING       OrderItemStatus = "PENDING"
	OrderItemStatusSENTTOKITCHEN OrderItemStatus = "SENT_TO_KITCHEN"
	OrderItemStatusPREPARING     OrderItemStatus = "PREPARING"
	OrderItemStatusREADY         OrderItemStatus = "READY"
	OrderItemStatusSERVED        OrderItemStatus = "SERVED"
	OrderItemStatusCANCELLED     OrderItemStatus = "CANCELLED"
)

// KotStatus is shared by tickets and their items; the two state machines
// mirror each other.
type KotStatus string

const (
	KotStatusPENDING   KotStatus = "PENDING"
	KotStatusACCEPTED  KotStatus = "ACCEPTED"
	KotStatusPREPARING KotStatus = "PREPARING"
	KotStatusREADY     KotStatus = "READY"
	KotStatusSERVED    KotStatus = "SERVED"
	KotStatusCANCELLED KotStatus = "CANCELLED"
)

type InvoiceStatus string

const (
	InvoiceStatusGENERATED InvoiceStatus = "GENERATED"
	InvoiceStatusPAID      InvoiceStatus = "PAID"
	InvoiceStatusCANCELLED InvoiceStatus = "CANCELLED"
)

type TableStatus string

const (
	TableStatusAVAILABLE TableStatus = "AVAILABLE"
	TableStatusOCCUPIED  TableStatus = "OCCUPIED"
)

type StationType string

const (
	StationTypeKITCHEN  StationType = "KITCHEN"
	StationTypeBAR      StationType = "BAR"
	StationTypeDESSERT  StationType = "DESSERT"
	StationTypeMOCKTAIL StationType = "MOCKTAIL"
)

type DiscountType string

const (
	DiscountTypePERCENTAGE DiscountType = "PERCENTAGE"
	DiscountTypeFLAT       DiscountType = "FLAT"
)

type PrintJobType string

const (
	PrintJobTypeKOTTICKET  PrintJobType = "KOT_TICKET"
	PrintJobTypeBILL       PrintJobType = "BILL"
	PrintJobTypeCANCELSLIP PrintJobType = "CANCEL_SLIP"
)

type CancelScope string

const (
	CancelScopeFULLITEM    CancelScope = "full_item"
	CancelScopePARTIALITEM CancelScope = "partial_item"
)

type User struct {
	ID             uuid.UUID
	OutletID       uuid.UUID
	FullName       string
	Email          string
	HashedPassword string
	Pin            pgtype.Text
	Role           string
	CreatedAt      time.Time
}

type Outlet struct {
	ID                   uuid.UUID
	Name                 string
	Interstate           bool
	ServiceChargeMode    pgtype.Text
	ServiceChargeValue   pgtype.Numeric
	ServiceChargeTaxable bool
	CreatedAt            time.Time
}

type Station struct {
	ID          uuid.UUID
	OutletID    uuid.UUID
	Name        string
	StationType StationType
	CreatedAt   time.Time
}

type RestaurantTable struct {
	ID       uuid.UUID
	OutletID uuid.UUID
	Label    string
	Status   TableStatus
}

type TableSession struct {
	ID       uuid.UUID
	TableID  uuid.UUID
	OutletID uuid.UUID
	OrderID  pgtype.UUID
	OpenedBy uuid.UUID
	OpenedAt time.Time
	ClosedAt pgtype.Timestamptz
}

type MenuItem struct {
	ID         uuid.UUID
	OutletID   uuid.UUID
	Name       string
	BasePrice  pgtype.Numeric
	StationID  pgtype.UUID
	TaxGroupID pgtype.UUID
}

type MenuVariant struct {
	ID            uuid.UUID
	MenuItemID    uuid.UUID
	Name          string
	PriceOverride pgtype.Numeric
}

type MenuAddon struct {
	ID         uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	Price      pgtype.Numeric
}

type TaxComponent struct {
	ID         uuid.UUID
	TaxGroupID uuid.UUID
	Code       string
	Rate       pgtype.Numeric
}

type Order struct {
	ID             uuid.UUID
	OutletID       uuid.UUID
	OrderNumber    string
	OrderType      OrderType
	Status         OrderStatus
	TableSessionID pgtype.UUID
	Subtotal       pgtype.Numeric
	DiscountTotal  pgtype.Numeric
	TaxTotal       pgtype.Numeric
	ServiceCharge  pgtype.Numeric
	RoundOff       pgtype.Numeric
	GrandTotal     pgtype.Numeric
	TaxBreakup     []byte
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type OrderItem struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	MenuItemID   uuid.UUID
	VariantID    pgtype.UUID
	Name         string
	Quantity     int32
	UnitPrice    pgtype.Numeric
	LineTotal    pgtype.Numeric
	TaxDetail    []byte
	Status       OrderItemStatus
	StationID    pgtype.UUID
	Instructions pgtype.Text
	CreatedAt    time.Time
}

type OrderItemAddon struct {
	ID          uuid.UUID
	OrderItemID uuid.UUID
	AddonID     uuid.UUID
	Name        string
	Quantity    int32
	UnitPrice   pgtype.Numeric
}

type OrderDiscount struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	OrderItemID  pgtype.UUID
	DiscountType DiscountType
	Value        pgtype.Numeric
	Amount       pgtype.Numeric
	Reason       pgtype.Text
	Cancelled    bool
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
}

type KotTicket struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	OutletID     uuid.UUID
	StationID    uuid.UUID
	TicketNumber string
	SequenceNo   int32
	Status       KotStatus
	Priority     bool
	AcceptedAt   pgtype.Timestamptz
	ReadyAt      pgtype.Timestamptz
	ServedAt     pgtype.Timestamptz
	CreatedAt    time.Time
}

// KotItem points back to one OrderItem and carries a denormalized snapshot
// for station display and ticket printing.
type KotItem struct {
	ID           uuid.UUID
	TicketID     uuid.UUID
	OrderItemID  uuid.UUID
	Name         string
	Quantity     int32
	Instructions pgtype.Text
	Status       KotStatus
}

type Invoice struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	OutletID        uuid.UUID
	InvoiceNumber   string
	Status          InvoiceStatus
	Subtotal        pgtype.Numeric
	DiscountTotal   pgtype.Numeric
	TaxTotal        pgtype.Numeric
	ServiceCharge   pgtype.Numeric
	PackagingCharge pgtype.Numeric
	DeliveryCharge  pgtype.Numeric
	RoundOff        pgtype.Numeric
	GrandTotal      pgtype.Numeric
	TaxBreakup      []byte
	AmountInWords   string
	GeneratedBy     uuid.UUID
	CreatedAt       time.Time
	PaidAt          pgtype.Timestamptz
	CancelledAt     pgtype.Timestamptz
}

type CancelLog struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	OrderItemID pgtype.UUID
	Scope       CancelScope
	Reason      pgtype.Text
	CancelledBy uuid.UUID
	ApprovedBy  pgtype.UUID
	CreatedAt   time.Time
}

type PrintJob struct {
	ID        uuid.UUID
	OutletID  uuid.UUID
	JobType   PrintJobType
	StationID pgtype.UUID
	Payload   []byte
	CreatedAt time.Time
}
