package events

import "time"

// TypeLowStockV1 is emitted when a stock movement leaves a product at or
// below its minimum level.
const TypeLowStockV1 = "inventory.low_stock.v1"

type LowStockV1 struct {
	ClinicID     string    `json:"clinic_id"`
	ProductID    string    `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Unit         string    `json:"unit,omitempty"`
	CurrentStock int       `json:"current_stock"`
	MinStock     int       `json:"min_stock"`
	MovementID   string    `json:"movement_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func (LowStockV1) EventType() string {
	return TypeLowStockV1
}
