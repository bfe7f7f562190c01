package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/repository"
)

var _ repository.OrderRepository = (*DB)(nil)

// CreateOrder inserts a new order with a generated ID. Optional fields are
// stored as NULL via nullable() to keep the persisted shape minimal.
func (db *DB) CreateOrder(ctx context.Context, order *model.Order) error {
	order.ID = xid.New().String()
	if order.Timestamp.IsZero() {
		order.Timestamp = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO orders (id, name, user_id, user_photo_url, drink,
			food_category, food_item, food_order, special_request, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.Name,
		order.UserID,
		nullable(order.UserPhotoURL),
		nullable(order.Drink),
		nullable(order.FoodCategory),
		nullable(order.FoodItem),
		nullable(order.FoodOrder),
		nullable(order.SpecialRequest),
		order.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating order: %w", err)
	}

	return nil
}

func (db *DB) scanOrder(row interface {
	Scan(dest ...any) error
}) (*model.Order, error) {
	var o model.Order
	var photoURL, drink, foodCategory, foodItem, foodOrder, specialRequest sql.NullString

	err := row.Scan(
		&o.ID, &o.Name, &o.UserID, &photoURL, &drink,
		&foodCategory, &foodItem, &foodOrder, &specialRequest, &o.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	o.UserPhotoURL = photoURL.String
	o.Drink = drink.String
	o.FoodCategory = foodCategory.String
	o.FoodItem = foodItem.String
	o.FoodOrder = foodOrder.String
	o.SpecialRequest = specialRequest.String

	return &o, nil
}

const orderColumns = `id, name, user_id, user_photo_url, drink,
	food_category, food_item, food_order, special_request, timestamp`

// GetOrderByID retrieves a single order.
func (db *DB) GetOrderByID(ctx context.Context, id string) (*model.Order, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id,
	)

	o, err := db.scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("order", id)
		}
		return nil, fmt.Errorf("sqlite: getting order %s: %w", id, err)
	}

	return o, nil
}

// ListOrders returns every stored order, oldest first — the board shows
// orders in the sequence they were placed.
func (db *DB) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY timestamp ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := db.scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating orders: %w", err)
	}

	return orders, nil
}

// DeleteOrder removes one order; NotFound when the id doesn't exist.
func (db *DB) DeleteOrder(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting order %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("order", id)
	}

	return nil
}

// DeleteAllOrders is the admin wipe.
func (db *DB) DeleteAllOrders(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM orders`); err != nil {
		return fmt.Errorf("sqlite: clearing orders: %w", err)
	}
	return nil
}
