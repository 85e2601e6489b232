package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stemchat/internal/domain"
)

const itemColumns = `id, name, category, COALESCE(description, ''), quantity, unit,
	min_quantity, COALESCE(location, ''), last_restocked, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (domain.InventoryItem, error) {
	var it domain.InventoryItem
	err := row.Scan(&it.ID, &it.Name, &it.Category, &it.Description, &it.Quantity,
		&it.Unit, &it.MinQuantity, &it.Location, &it.LastRestocked, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func (s *Session) queryItems(ctx context.Context, query string, args ...any) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InventoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SearchItems finds items whose name or category contains q, case-insensitive.
func (s *Session) SearchItems(ctx context.Context, q string) ([]domain.InventoryItem, error) {
	pattern := "%" + q + "%"
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM inventory_items
		 WHERE name LIKE ? COLLATE NOCASE OR category LIKE ? COLLATE NOCASE
		 ORDER BY name`, pattern, pattern)
}

func (s *Session) AllItems(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.queryItems(ctx, `SELECT `+itemColumns+` FROM inventory_items ORDER BY category, name`)
}

// LowStockItems returns items at or below their minimum threshold.
func (s *Session) LowStockItems(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM inventory_items WHERE quantity <= min_quantity ORDER BY name`)
}

func (s *Session) GetItem(ctx context.Context, id int64) (*domain.InventoryItem, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateItem inserts a new item and its initial "add" transaction record in
// one transaction.
func (s *Session) CreateItem(ctx context.Context, item domain.InventoryItem, reason string, userID *int64) (domain.InventoryItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO inventory_items (name, category, description, quantity, unit, min_quantity, location, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Name, item.Category, item.Description, item.Quantity, item.Unit,
		item.MinQuantity, item.Location, now, now,
	)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.InventoryItem{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO inventory_transactions (item_id, transaction_type, quantity_change, quantity_after, user_id, reason, created_at)
		 VALUES (?, 'add', ?, ?, ?, ?, ?)`,
		id, item.Quantity, item.Quantity, userID, reason, now,
	)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.InventoryItem{}, err
	}

	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return item, nil
}

// AdjustQuantity applies a delta to an item's quantity and appends a
// transaction record carrying the delta and the resulting total. The log is
// append-only: history is never rewritten.
func (s *Session) AdjustQuantity(ctx context.Context, itemID int64, delta float64, txType, reason string, userID *int64) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var current float64
	if err := tx.QueryRowContext(ctx,
		`SELECT quantity FROM inventory_items WHERE id = ?`, itemID).Scan(&current); err != nil {
		return 0, fmt.Errorf("item %d: %w", itemID, err)
	}

	now := time.Now().UTC()
	newQty := current + delta
	if _, err := tx.ExecContext(ctx,
		`UPDATE inventory_items SET quantity = ?, updated_at = ? WHERE id = ?`,
		newQty, now, itemID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO inventory_transactions (item_id, transaction_type, quantity_change, quantity_after, user_id, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		itemID, txType, delta, newQty, userID, reason, now); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newQty, nil
}

// ItemTransactions returns the movement log for an item, oldest first.
func (s *Session) ItemTransactions(ctx context.Context, itemID int64) ([]domain.InventoryTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, transaction_type, quantity_change, quantity_after, user_id, COALESCE(reason, ''), created_at
		 FROM inventory_transactions WHERE item_id = ? ORDER BY id`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InventoryTransaction
	for rows.Next() {
		var t domain.InventoryTransaction
		if err := rows.Scan(&t.ID, &t.ItemID, &t.Type, &t.QuantityChange, &t.QuantityAfter, &t.UserID, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SuppliersForItem finds suppliers whose item_name contains the given name,
// case-insensitive.
func (s *Session) SuppliersForItem(ctx context.Context, itemName string) ([]domain.Supplier, error) {
	return s.querySuppliers(ctx,
		`SELECT id, name, item_name, COALESCE(contact_info, ''), COALESCE(order_url, ''),
		        COALESCE(price_per_unit, 0), COALESCE(lead_time_days, 0), COALESCE(notes, ''), created_at
		 FROM suppliers WHERE item_name LIKE ? COLLATE NOCASE ORDER BY name`,
		"%"+itemName+"%")
}

func (s *Session) AllSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.querySuppliers(ctx,
		`SELECT id, name, item_name, COALESCE(contact_info, ''), COALESCE(order_url, ''),
		        COALESCE(price_per_unit, 0), COALESCE(lead_time_days, 0), COALESCE(notes, ''), created_at
		 FROM suppliers ORDER BY name`)
}

func (s *Session) querySuppliers(ctx context.Context, query string, args ...any) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Supplier
	for rows.Next() {
		var sp domain.Supplier
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.ItemName, &sp.ContactInfo, &sp.OrderURL,
			&sp.PricePerUnit, &sp.LeadTimeDays, &sp.Notes, &sp.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *Session) CreateSupplier(ctx context.Context, sp domain.Supplier) (domain.Supplier, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO suppliers (name, item_name, contact_info, order_url, price_per_unit, lead_time_days, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.Name, sp.ItemName, sp.ContactInfo, sp.OrderURL, sp.PricePerUnit, sp.LeadTimeDays, sp.Notes, now,
	)
	if err != nil {
		return domain.Supplier{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Supplier{}, err
	}
	sp.ID = id
	sp.CreatedAt = now
	return sp, nil
}
