package market

import (
	"math"
	"testing"

	"github.com/efreitasn/clearsim/internal/agent"
	"github.com/efreitasn/clearsim/internal/domain"
	"github.com/efreitasn/clearsim/internal/matching"
)

func newTestGoodsMarket() *GoodsMarket {
	return NewGoodsMarket("goods", matching.NewCallAuction(), 50, 1e-10, nil)
}

func TestGoodsMarket_AddOrder_Validation(t *testing.T) {
	m := newTestGoodsMarket()
	buyer := agent.New("h", 100)
	m.RegisterBuyer(buyer)

	if err := m.AddOrder("h", "bread", -5, -1); err == nil {
		t.Error("negative price must be rejected")
	}
	if err := m.AddOrder("h", "bread", 0, 2); err == nil {
		t.Error("zero quantity must be rejected")
	}
	if err := m.AddOrder("stranger", "bread", -5, 2); err == nil {
		t.Error("unregistered buyer must be rejected")
	}
	if err := m.AddOrder("h", "bread", 5, 2); err == nil {
		t.Error("unregistered seller must be rejected")
	}
}

func TestGoodsMarket_SellOrderShrinksToInventory(t *testing.T) {
	m := newTestGoodsMarket()
	seller := agent.New("f", 0)
	seller.AddGoods("bread", 4)
	m.RegisterSeller(seller)

	if err := m.AddOrder("f", "bread", 10, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ins, _ := m.Instrument("bread")
	ask, ok := ins.AskFor("f")
	if !ok || ask.Size() != 4 {
		t.Errorf("ask size = %v, want shrunk to 4", ask.Size())
	}

	// The whole inventory is now reserved; a fresh order allocates zero.
	seller2 := agent.New("empty", 0)
	m.RegisterSeller(seller2)
	err := m.AddOrder("empty", "bread", 5, 2)
	if _, ok := err.(*domain.AllocationError); !ok {
		t.Errorf("expected AllocationError, got %v", err)
	}
}

func TestGoodsMarket_BuyOrderShrinksToCash(t *testing.T) {
	m := newTestGoodsMarket()
	buyer := agent.New("h", 30)
	m.RegisterBuyer(buyer)

	if err := m.AddOrder("h", "bread", -10, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ins, _ := m.Instrument("bread")
	bid, ok := ins.BidFor("h")
	if !ok || bid.Size() != 6 {
		t.Errorf("bid size = %v, want 30 cash / 5 price = 6", bid.Size())
	}
	if buyer.UnallocatedCash() != 0 {
		t.Errorf("UnallocatedCash = %v, want 0", buyer.UnallocatedCash())
	}
}

func TestGoodsMarket_ResubmittedOrderMerges(t *testing.T) {
	m := newTestGoodsMarket()
	seller := agent.New("f", 0)
	seller.AddGoods("bread", 100)
	m.RegisterSeller(seller)

	if err := m.AddOrder("f", "bread", 6, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.AddOrder("f", "bread", 4, 5); err != nil {
		t.Fatalf("resubmission must merge, got %v", err)
	}

	ins, _ := m.Instrument("bread")
	ask, _ := ins.AskFor("f")
	if ask.Size() != 10 || ask.Price != 5 {
		t.Errorf("merged ask = %v@%v, want 10@5", ask.Size(), ask.Price)
	}
}

func TestGoodsMarket_ResubmittedBuyReservesAtMergedPrice(t *testing.T) {
	m := newTestGoodsMarket()
	buyer := agent.New("h", 1000)
	m.RegisterBuyer(buyer)

	if err := m.AddOrder("h", "bread", -10, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.AddOrder("h", "bread", -10, 2); err != nil {
		t.Fatalf("resubmission must merge, got %v", err)
	}

	// The merge re-prices the whole order, so the reservation is the
	// merged open size at the new price, not the sum of the slices.
	ins, _ := m.Instrument("bread")
	bid, _ := ins.BidFor("h")
	if bid.OpenSize() != 20 || bid.Price != 2 {
		t.Errorf("merged bid = %v@%v, want 20@2", bid.OpenSize(), bid.Price)
	}
	if buyer.UnallocatedCash() != 960 {
		t.Errorf("UnallocatedCash = %v, want 960 (40 reserved)", buyer.UnallocatedCash())
	}

	m.CancelAllOrders()
	if buyer.UnallocatedCash() != 1000 {
		t.Errorf("UnallocatedCash = %v after cancel, want 1000", buyer.UnallocatedCash())
	}
}

func TestGoodsMarket_ResubmittedBuyShrinksToCashAtNewPrice(t *testing.T) {
	m := newTestGoodsMarket()
	buyer := agent.New("h", 50)
	m.RegisterBuyer(buyer)

	if err := m.AddOrder("h", "bread", -10, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.AddOrder("h", "bread", -10, 4); err != nil {
		t.Fatalf("resubmission must merge, got %v", err)
	}

	// 20 units at the new price of 4 would need 80; only 50 cash
	// exists, so the merged order shrinks to 12.5 with all of it
	// reserved.
	ins, _ := m.Instrument("bread")
	bid, _ := ins.BidFor("h")
	if bid.OpenSize() != 12.5 || bid.Price != 4 {
		t.Errorf("merged bid = %v@%v, want 12.5@4", bid.OpenSize(), bid.Price)
	}
	if buyer.UnallocatedCash() != 0 {
		t.Errorf("UnallocatedCash = %v, want 0", buyer.UnallocatedCash())
	}

	m.CancelAllOrders()
	if buyer.UnallocatedCash() != 50 {
		t.Errorf("UnallocatedCash = %v after cancel, want 50", buyer.UnallocatedCash())
	}
}

func TestGoodsMarket_ProcessSettlesAndLeavesRemainderOpen(t *testing.T) {
	m := newTestGoodsMarket()
	seller := agent.New("f", 0)
	seller.AddGoods("bread", 500)
	buyer := agent.New("h", 1000)
	m.RegisterSeller(seller)
	m.RegisterBuyer(buyer)

	if err := m.AddOrder("f", "bread", 6, 4.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.AddOrder("h", "bread", -10, 5.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Process(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The call auction clears 6 units at the 4.5 midpoint.
	trades := m.Trades()
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	if trades[0].Volume != 6 || trades[0].Price != 4.5 {
		t.Errorf("trade = %v@%v, want 6@4.5", trades[0].Volume, trades[0].Price)
	}

	if math.Abs(buyer.Cash()-973) > 1e-9 {
		t.Errorf("buyer cash = %v, want 1000 - 27 = 973", buyer.Cash())
	}
	if buyer.GoodsOwned("bread") != 6 {
		t.Errorf("buyer bread = %v, want 6", buyer.GoodsOwned("bread"))
	}
	if math.Abs(seller.Cash()-27) > 1e-9 {
		t.Errorf("seller cash = %v, want 27", seller.Cash())
	}
	if seller.GoodsOwned("bread") != 494 {
		t.Errorf("seller bread = %v, want 494", seller.GoodsOwned("bread"))
	}

	// The buyer keeps 4 units open; the seller's ask is gone.
	ins, _ := m.Instrument("bread")
	bid, ok := ins.BidFor("h")
	if !ok || math.Abs(bid.OpenSize()-4) > 1e-9 {
		t.Errorf("bid open = %v, want 4", bid.OpenSize())
	}
	if _, ok := ins.AskFor("f"); ok {
		t.Error("filled ask should have left the book")
	}

	// Cancellation releases the remaining reservation in full.
	m.CancelAllOrders()
	if math.Abs(buyer.UnallocatedCash()-buyer.Cash()) > 1e-9 {
		t.Errorf("buyer has %v still reserved after cancellation",
			buyer.Cash()-buyer.UnallocatedCash())
	}
	if seller.GoodsOwned("bread") != 494 {
		t.Errorf("seller bread = %v after cancel, want 494", seller.GoodsOwned("bread"))
	}
}

func TestGoodsMarket_CancelReleasesReservations(t *testing.T) {
	m := newTestGoodsMarket()
	seller := agent.New("f", 0)
	seller.AddGoods("bread", 100)
	buyer := agent.New("h", 1000)
	m.RegisterSeller(seller)
	m.RegisterBuyer(buyer)

	_ = m.AddOrder("f", "bread", 20, 4)
	_ = m.AddOrder("h", "bread", -10, 3) // uncrossed: bid below ask

	if err := m.Process(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.CancelAllOrders()

	if buyer.UnallocatedCash() != 1000 {
		t.Errorf("buyer unallocated = %v, want 1000", buyer.UnallocatedCash())
	}
	if got := seller.AllocateGoods("bread", 100); got != 100 {
		t.Errorf("seller reallocatable inventory = %v, want the full 100", got)
	}

	ins, _ := m.Instrument("bread")
	if ins.BidCount() != 0 || ins.AskCount() != 0 {
		t.Error("book should be empty after cancellation")
	}
}

func TestGoodsMarket_InstrumentKeysInCreationOrder(t *testing.T) {
	m := newTestGoodsMarket()
	seller := agent.New("f", 0)
	seller.AddGoods("bread", 10)
	seller.AddGoods("milk", 10)
	m.RegisterSeller(seller)

	_ = m.AddOrder("f", "milk", 1, 1)
	_ = m.AddOrder("f", "bread", 1, 1)

	keys := m.InstrumentKeys()
	if len(keys) != 2 || keys[0] != "milk" || keys[1] != "bread" {
		t.Errorf("keys = %v, want creation order [milk bread]", keys)
	}
	if _, ok := m.InstrumentByKey("milk"); !ok {
		t.Error("expected milk instrument by key")
	}
	if _, ok := m.InstrumentByKey("ghost"); ok {
		t.Error("unknown key must not resolve")
	}
}
