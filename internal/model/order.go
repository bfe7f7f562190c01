package model

import "time"

// Order is a single member's drink/food order for the after-run pub stop.
//
// All of Drink, FoodCategory, FoodItem, FoodOrder and SpecialRequest are
// optional; empty ones are stripped before persisting so the stored shape
// stays minimal. An order must carry at least a drink, a food item, or a
// freeform food note — the service rejects anything else.
//
// Invariant: at most one Order per UserID among currently stored orders.
// The store does not enforce this; the service does, before every insert.
type Order struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	UserID         string    `json:"userId"`
	UserPhotoURL   string    `json:"userPhotoURL,omitempty"`
	Drink          string    `json:"drink,omitempty"`
	FoodCategory   string    `json:"foodCategory,omitempty"`
	FoodItem       string    `json:"foodItem,omitempty"`
	FoodOrder      string    `json:"foodOrder,omitempty"` // freeform note used instead of a menu item
	SpecialRequest string    `json:"specialRequest,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// HasFood reports whether the order includes anything to eat.
func (o Order) HasFood() bool {
	return o.FoodItem != "" || o.FoodOrder != ""
}
