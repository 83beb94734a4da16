package book

import (
	"testing"

	"github.com/efreitasn/clearsim/internal/domain"
)

func TestSide_String(t *testing.T) {
	if Buy.String() != "buy" {
		t.Errorf("Buy.String() = %q, want buy", Buy.String())
	}
	if Sell.String() != "sell" {
		t.Errorf("Sell.String() = %q, want sell", Sell.String())
	}
}

func TestOrder_Execute(t *testing.T) {
	o := NewOrder("h", Buy, 10, 5)
	if o.Size() != 10 || o.OpenSize() != 10 {
		t.Fatalf("new order size = %v/%v, want 10/10", o.Size(), o.OpenSize())
	}

	if err := o.Execute(6); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.OpenSize() != 4 {
		t.Errorf("OpenSize = %v, want 4", o.OpenSize())
	}
	if o.Closed() {
		t.Error("order with open size must not be closed")
	}

	if err := o.Execute(4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !o.Closed() {
		t.Error("fully filled order must be closed")
	}
}

func TestOrder_Execute_ExceedsOpenSize(t *testing.T) {
	o := NewOrder("h", Buy, 10, 5)
	err := o.Execute(11)
	if !domain.IsFatal(err) {
		t.Fatalf("expected InvariantError, got %v", err)
	}
	if o.OpenSize() != 10 {
		t.Errorf("OpenSize = %v after rejected execution, want 10", o.OpenSize())
	}
}

func TestOrder_Execute_NegativeVolume(t *testing.T) {
	o := NewOrder("h", Buy, 10, 5)
	if err := o.Execute(-1); !domain.IsFatal(err) {
		t.Errorf("expected InvariantError, got %v", err)
	}
}

func TestOrder_Execute_FloatResidueClampsToZero(t *testing.T) {
	o := NewOrder("h", Buy, 0.3, 1)
	if err := o.Execute(0.1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Execute(0.2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.OpenSize() != 0 {
		t.Errorf("OpenSize = %v, want exactly 0", o.OpenSize())
	}
}

func TestOrder_AddQuantityAndUpdatePrice(t *testing.T) {
	o := NewOrder("f", Sell, 5, 4)
	if err := o.Execute(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	o.AddQuantityAndUpdatePrice(3, 6)
	if o.Size() != 8 {
		t.Errorf("Size = %v, want 8", o.Size())
	}
	if o.OpenSize() != 6 {
		t.Errorf("OpenSize = %v, want 6", o.OpenSize())
	}
	if o.Price != 6 {
		t.Errorf("Price = %v, want 6", o.Price)
	}
}
