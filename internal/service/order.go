package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/realtime"
	"github.com/sakif/runclub/internal/repository"
)

// Menu is the pub's fixed offering, served read-only for the order form.
type Menu struct {
	Drinks []string            `json:"drinks"`
	Food   map[string][]string `json:"food"`
}

var menu = Menu{
	Drinks: []string{
		"Beer 0.5L",
		"Beer 0.4L",
		"Wine (Red)",
		"Wine (White)",
		"Cider",
		"Soft Drink",
		"Water",
	},
	Food: map[string][]string{
		"Burgers":    {"Classic Burger", "Cheeseburger", "Bacon Burger", "Veggie Burger", "Double Burger"},
		"Sandwiches": {"Club Sandwich", "BLT", "Grilled Cheese", "Chicken Sandwich", "Veggie Sandwich"},
		"Sides":      {"French Fries", "Sweet Potato Fries", "Onion Rings", "Side Salad", "Coleslaw"},
		"Salads":     {"Caesar Salad", "Greek Salad", "Chicken Salad", "Garden Salad"},
		"Snacks":     {"Chicken Wings", "Nachos", "Mozzarella Sticks", "Garlic Bread"},
	},
}

// OrderService runs the after-run pub order board.
type OrderService struct {
	repo   repository.OrderRepository
	gate   *auth.SecretGate
	events EventPublisher
	logger *slog.Logger

	// mu serializes Submit's check-then-insert so two tabs can't both pass
	// the one-order-per-member check.
	mu sync.Mutex
}

func NewOrderService(repo repository.OrderRepository, gate *auth.SecretGate, events EventPublisher, logger *slog.Logger) *OrderService {
	return &OrderService{
		repo:   repo,
		gate:   gate,
		events: events,
		logger: logger,
	}
}

// Menu returns the fixed drink and food offering.
func (s *OrderService) Menu() Menu { return menu }

// List returns every stored order, oldest first.
func (s *OrderService) List(ctx context.Context) ([]model.Order, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// Submit validates and stores the member's order.
//
// A member has at most one live order: the check scans the stored orders
// fresh on every submit, matching by userId or name, because the existing
// order may have been placed before userIds were recorded. An order must
// carry a drink, a menu food item, or a freeform food note; empty optional
// fields are stripped so the stored shape stays minimal.
func (s *OrderService) Submit(ctx context.Context, profile *model.UserProfile, order *model.Order) (*model.Order, error) {
	order.Drink = strings.TrimSpace(order.Drink)
	order.FoodCategory = strings.TrimSpace(order.FoodCategory)
	order.FoodItem = strings.TrimSpace(order.FoodItem)
	order.FoodOrder = strings.TrimSpace(order.FoodOrder)
	order.SpecialRequest = strings.TrimSpace(order.SpecialRequest)

	if order.Drink == "" && order.FoodItem == "" && order.FoodOrder == "" {
		return nil, apperror.ValidationFailed("order", "add a drink or a food order first")
	}
	// A category without an item is meaningless on its own.
	if order.FoodItem == "" {
		order.FoodCategory = ""
	}

	order.Name = profile.DisplayName
	order.UserID = profile.UID
	order.UserPhotoURL = profile.PhotoURL
	order.Timestamp = time.Now()
	order.ID = ""

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking existing orders: %w", err)
	}
	for _, o := range existing {
		if o.UserID == profile.UID || o.Name == profile.DisplayName {
			return nil, apperror.Conflict("order",
				"you already have an active order; remove it before placing a new one")
		}
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		s.logger.Error("failed to store order",
			slog.String("userID", profile.UID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("storing order: %w", err)
	}

	s.logger.Info("order placed", slog.String("id", order.ID), slog.String("userID", order.UserID))
	s.events.Publish(realtime.Event{Topic: TopicOrders, Type: "created", Payload: order})
	return order, nil
}

// Remove deletes an order; only its owner may do that.
func (s *OrderService) Remove(ctx context.Context, orderID, userID string) error {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return apperror.Forbidden("you can only remove your own order")
	}

	if err := s.repo.DeleteOrder(ctx, orderID); err != nil {
		return fmt.Errorf("removing order: %w", err)
	}

	s.events.Publish(realtime.Event{Topic: TopicOrders, Type: "removed", Payload: orderID})
	return nil
}

// ClearAll wipes the whole board. Gated by the shared clear secret — a
// deliberately low bar, the board resets every pub night anyway.
func (s *OrderService) ClearAll(ctx context.Context, secret string) error {
	if !s.gate.Check(secret) {
		return apperror.Forbidden("wrong secret")
	}

	if err := s.repo.DeleteAllOrders(ctx); err != nil {
		return fmt.Errorf("clearing orders: %w", err)
	}

	s.logger.Info("order board cleared")
	s.events.Publish(realtime.Event{Topic: TopicOrders, Type: "cleared"})
	return nil
}

// ExportText renders the board as the text summary posted to the pub's
// staff: a drink tally, per-person food lines, then a detailed section.
// Output is deterministic — drinks sort by count descending, name
// ascending on ties — so exporting twice gives identical text.
func (s *OrderService) ExportText(ctx context.Context, now time.Time) (string, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return "", fmt.Errorf("listing orders for export: %w", err)
	}
	if len(orders) == 0 {
		return "No orders to export.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🍻 MRC Oslo Orders Summary (%s)\n\n", now.Format("02.01.2006 15:04"))

	tally := map[string]int{}
	for _, o := range orders {
		if o.Drink != "" {
			tally[o.Drink]++
		}
	}
	if len(tally) > 0 {
		names := make([]string, 0, len(tally))
		for name := range tally {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if tally[names[i]] != tally[names[j]] {
				return tally[names[i]] > tally[names[j]]
			}
			return names[i] < names[j]
		})

		b.WriteString("🥤 DRINKS:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "%dx %s\n", tally[name], name)
		}
		b.WriteString("\n")
	}

	var hasFood bool
	for _, o := range orders {
		if o.HasFood() {
			hasFood = true
			break
		}
	}
	if hasFood {
		b.WriteString("🍔 FOOD:\n")
		for _, o := range orders {
			if !o.HasFood() {
				continue
			}
			fmt.Fprintf(&b, "- %s: ", o.Name)
			if o.FoodItem != "" {
				fmt.Fprintf(&b, "%s - %s", o.FoodCategory, o.FoodItem)
			} else {
				b.WriteString(o.FoodOrder)
			}
			if o.SpecialRequest != "" {
				fmt.Fprintf(&b, " (%s)", o.SpecialRequest)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("📝 DETAILED ORDERS:\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "\n%s:\n", o.Name)
		if o.Drink != "" {
			fmt.Fprintf(&b, "- Drink: %s\n", o.Drink)
		}
		if o.FoodItem != "" {
			fmt.Fprintf(&b, "- Food: %s - %s\n", o.FoodCategory, o.FoodItem)
		}
		if o.FoodOrder != "" {
			fmt.Fprintf(&b, "- Special Food Order: %s\n", o.FoodOrder)
		}
		if o.SpecialRequest != "" {
			fmt.Fprintf(&b, "- Special Request: %s\n", o.SpecialRequest)
		}
	}

	return b.String(), nil
}
