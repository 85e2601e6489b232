package domain

import "time"

// InventoryItem is a tracked material in the STEM center inventory.
type InventoryItem struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	Description   string     `json:"description,omitempty"`
	Quantity      float64    `json:"quantity"`
	Unit          string     `json:"unit"`
	MinQuantity   float64    `json:"min_quantity"`
	Location      string     `json:"location,omitempty"`
	LastRestocked *time.Time `json:"last_restocked,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsLow reports whether the item is at or below its minimum threshold.
func (i InventoryItem) IsLow() bool { return i.Quantity <= i.MinQuantity }

// IsCritical reports whether the item has fallen below half its minimum
// threshold.
func (i InventoryItem) IsCritical() bool { return i.Quantity < i.MinQuantity*0.5 }

// Status returns "adequate", "low", or "critical" for fact payloads.
func (i InventoryItem) Status() string {
	switch {
	case i.IsCritical():
		return "critical"
	case i.IsLow():
		return "low"
	default:
		return "adequate"
	}
}

// InventoryTransaction is one entry in an item's append-only movement log.
// Mutations never overwrite history; every quantity change appends a record
// carrying the delta and the resulting total.
type InventoryTransaction struct {
	ID             int64     `json:"id"`
	ItemID         int64     `json:"item_id"`
	Type           string    `json:"transaction_type"` // add | remove | adjustment | order
	QuantityChange float64   `json:"quantity_change"`
	QuantityAfter  float64   `json:"quantity_after"`
	UserID         *int64    `json:"user_id,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Supplier is a vendor record associated with an item by name.
type Supplier struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ItemName     string    `json:"item_name"`
	ContactInfo  string    `json:"contact_info,omitempty"`
	OrderURL     string    `json:"order_url,omitempty"`
	PricePerUnit float64   `json:"price_per_unit,omitempty"`
	LeadTimeDays int       `json:"lead_time_days,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
