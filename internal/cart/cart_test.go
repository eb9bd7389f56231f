package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"voice-ordering-service/internal/catalog"
)

func TestCart_AddUnits(t *testing.T) {
	c := New(catalog.Default())
	ctx := context.Background()

	if err := c.AddUnits(ctx, "choco-corn", 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.AddUnits(ctx, "mint-lemonade", 1)
	c.AddUnits(ctx, "choco-corn", 1)

	if got := c.Quantity("choco-corn"); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}

	lines := c.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].ItemID != "choco-corn" || lines[0].Name != "Chocolate Corn Delight" {
		t.Errorf("unexpected first line %+v", lines[0])
	}
	if want := 3*4.50 + 2.50; c.Total() != want {
		t.Errorf("expected total %v, got %v", want, c.Total())
	}
}

func TestCart_AddUnits_Invalid(t *testing.T) {
	c := New(catalog.Default())
	ctx := context.Background()

	if err := c.AddUnits(ctx, "pizza", 1); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got %v", err)
	}
	if err := c.AddUnits(ctx, "choco-corn", 0); !errors.Is(err, ErrInvalidCount) {
		t.Errorf("expected ErrInvalidCount, got %v", err)
	}
	if len(c.Lines()) != 0 {
		t.Error("expected empty cart")
	}
}

func TestCart_AddBatch_AllOrNothing(t *testing.T) {
	c := New(catalog.Default())

	err := c.AddBatch(context.Background(), []Addition{
		{ItemID: "choco-corn", Count: 2},
		{ItemID: "pizza", Count: 2},
	})
	if !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	if got := c.Quantity("choco-corn"); got != 0 {
		t.Errorf("expected no partial batch applied, got %d", got)
	}
}

func TestCart_AddBatch_CancelledContext(t *testing.T) {
	c := New(catalog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.AddBatch(ctx, []Addition{{ItemID: "choco-corn", Count: 1}}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if c.Quantity("choco-corn") != 0 {
		t.Error("expected nothing added")
	}
}

func TestCart_Clear(t *testing.T) {
	c := New(catalog.Default())
	c.AddUnits(context.Background(), "cold-coffee", 1)
	c.Clear()

	if len(c.Lines()) != 0 || c.Quantity("cold-coffee") != 0 {
		t.Error("expected empty cart after clear")
	}
}

func TestCart_ConcurrentWriters(t *testing.T) {
	c := New(catalog.Default())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.AddUnits(context.Background(), "butter-corn", 1)
		}()
	}
	wg.Wait()

	if got := c.Quantity("butter-corn"); got != 20 {
		t.Errorf("expected 20, got %d", got)
	}
}
