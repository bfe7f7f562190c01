package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/model"
)

func newTestOrderService(t *testing.T) (*OrderService, *mockOrderRepo, *recordPublisher) {
	t.Helper()
	repo := newMockOrderRepo()
	events := &recordPublisher{}
	gate, err := auth.NewSecretGate("letmein")
	if err != nil {
		t.Fatalf("creating test gate: %v", err)
	}
	svc := NewOrderService(repo, gate, events, testLogger())
	return svc, repo, events
}

func TestSubmit(t *testing.T) {
	svc, _, events := newTestOrderService(t)

	order, err := svc.Submit(context.Background(), testProfile("fb-1", "Kari"), &model.Order{Drink: "Beer 0.5L"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if order.ID == "" {
		t.Error("Submit() did not assign an ID")
	}
	if order.Name != "Kari" || order.UserID != "fb-1" {
		t.Errorf("Submit() owner = %s/%s, want Kari/fb-1", order.Name, order.UserID)
	}
	if len(events.byTopic(TopicOrders)) != 1 {
		t.Error("Submit() did not publish an orders event")
	}
}

func TestSubmit_RejectsEmptyOrder(t *testing.T) {
	svc, _, _ := newTestOrderService(t)

	_, err := svc.Submit(context.Background(), testProfile("fb-1", "Kari"), &model.Order{
		SpecialRequest: "extra napkins", // a request alone is not an order
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Submit() empty order: error = %v, want ErrValidation", err)
	}
}

func TestSubmit_SecondOrderRejected(t *testing.T) {
	svc, _, _ := newTestOrderService(t)
	ctx := context.Background()
	profile := testProfile("fb-1", "Kari")

	if _, err := svc.Submit(ctx, profile, &model.Order{Drink: "Beer 0.5L"}); err != nil {
		t.Fatalf("Submit() first order: %v", err)
	}

	_, err := svc.Submit(ctx, profile, &model.Order{Drink: "Cider"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Submit() second order: error = %v, want ErrConflict", err)
	}

	orders, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("store holds %d orders, want 1", len(orders))
	}
}

func TestSubmit_MatchesExistingOrderByName(t *testing.T) {
	svc, repo, _ := newTestOrderService(t)
	ctx := context.Background()

	// An order placed before userIds were recorded carries only a name.
	if err := repo.CreateOrder(ctx, &model.Order{Name: "Kari", Drink: "Wine (Red)"}); err != nil {
		t.Fatalf("seeding legacy order: %v", err)
	}

	_, err := svc.Submit(ctx, testProfile("fb-1", "Kari"), &model.Order{Drink: "Cider"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Submit() with legacy order present: error = %v, want ErrConflict", err)
	}
}

func TestSubmit_StripsDanglingCategory(t *testing.T) {
	svc, _, _ := newTestOrderService(t)

	order, err := svc.Submit(context.Background(), testProfile("fb-1", "Kari"), &model.Order{
		Drink:        "Water",
		FoodCategory: "Burgers", // category chosen but no item picked
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if order.FoodCategory != "" {
		t.Errorf("FoodCategory = %q, want it stripped", order.FoodCategory)
	}
}

func TestRemove_OwnerOnly(t *testing.T) {
	svc, _, _ := newTestOrderService(t)
	ctx := context.Background()

	order, err := svc.Submit(ctx, testProfile("fb-1", "Kari"), &model.Order{Drink: "Beer 0.4L"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := svc.Remove(ctx, order.ID, "fb-2"); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Remove() by non-owner: error = %v, want ErrForbidden", err)
	}
	if err := svc.Remove(ctx, order.ID, "fb-1"); err != nil {
		t.Errorf("Remove() by owner: error = %v", err)
	}
}

func TestClearAll(t *testing.T) {
	svc, _, _ := newTestOrderService(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, testProfile("fb-1", "Kari"), &model.Order{Drink: "Cider"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := svc.ClearAll(ctx, "wrong"); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("ClearAll() wrong secret: error = %v, want ErrForbidden", err)
	}
	if err := svc.ClearAll(ctx, "letmein"); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}

	orders, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("board holds %d orders after clear, want 0", len(orders))
	}
}

func TestExportText_Empty(t *testing.T) {
	svc, _, _ := newTestOrderService(t)

	text, err := svc.ExportText(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ExportText() error = %v", err)
	}
	if text != "No orders to export." {
		t.Errorf("ExportText() = %q", text)
	}
}

func TestExportText_TallyAndSections(t *testing.T) {
	svc, repo, _ := newTestOrderService(t)
	ctx := context.Background()

	seed := []model.Order{
		{Name: "Kari", UserID: "fb-1", Drink: "Beer 0.5L"},
		{Name: "Ola", UserID: "fb-2", Drink: "Beer 0.5L", FoodCategory: "Burgers", FoodItem: "Cheeseburger", SpecialRequest: "no onion"},
		{Name: "Per", UserID: "fb-3", Drink: "Cider", FoodOrder: "anything vegetarian"},
		{Name: "Anne", UserID: "fb-4", Drink: "Water"},
	}
	for i := range seed {
		if err := repo.CreateOrder(ctx, &seed[i]); err != nil {
			t.Fatalf("seeding order: %v", err)
		}
	}

	text, err := svc.ExportText(ctx, time.Date(2026, 5, 7, 19, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ExportText() error = %v", err)
	}

	// Drink tally: counts descending, names ascending on equal counts.
	wantLines := []string{
		"2x Beer 0.5L",
		"1x Cider",
		"1x Water",
	}
	pos := 0
	for _, line := range wantLines {
		i := strings.Index(text[pos:], line)
		if i < 0 {
			t.Fatalf("export missing or misordered tally line %q:\n%s", line, text)
		}
		pos += i
	}

	if !strings.Contains(text, "- Ola: Burgers - Cheeseburger (no onion)") {
		t.Errorf("export missing menu food line:\n%s", text)
	}
	if !strings.Contains(text, "- Per: anything vegetarian") {
		t.Errorf("export missing freeform food line:\n%s", text)
	}
	if !strings.Contains(text, "DETAILED ORDERS:") {
		t.Errorf("export missing detailed section:\n%s", text)
	}

	// Determinism: a second export of the same board is byte-identical.
	again, err := svc.ExportText(ctx, time.Date(2026, 5, 7, 19, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ExportText() second call: %v", err)
	}
	if text != again {
		t.Error("two exports of the same board differ")
	}
}

func TestMenu(t *testing.T) {
	svc, _, _ := newTestOrderService(t)

	m := svc.Menu()
	if len(m.Drinks) == 0 {
		t.Error("menu has no drinks")
	}
	if len(m.Food["Burgers"]) == 0 {
		t.Error("menu has no burgers")
	}
}
