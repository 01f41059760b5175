package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/flows"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/inventory"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/orders"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/shared"
)

// fakeStock mirrors the inventory service's verify and reserve semantics
// over in-memory items.
type fakeStock struct {
	mu    sync.Mutex
	items map[string][]inventory.Item
	fail  error
}

func newFakeStock() *fakeStock {
	return &fakeStock{items: map[string][]inventory.Item{}}
}

func (f *fakeStock) DefaultInventoryID() string { return inventory.CollectionGarments }

func (f *fakeStock) Verify(ctx context.Context, lines []inventory.LineItem, inventoryID string) (inventory.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return inventory.Verification{}, f.fail
	}
	return f.verifyLocked(lines, inventoryID), nil
}

func (f *fakeStock) verifyLocked(lines []inventory.LineItem, inventoryID string) inventory.Verification {
	items := f.items[inventoryID]
	v := inventory.Verification{InventoryID: inventoryID}
	if len(items) == 0 {
		v.Reason = inventory.ReasonInventoryEmpty
		return v
	}
	if len(lines) == 0 {
		v.Reason = inventory.ReasonNoLineItems
		return v
	}
	for i := range lines {
		line := lines[i]
		item := inventory.Match(items, line)
		if item == nil {
			v.Reason = inventory.ReasonItemNotFound
			v.Missing = &line
			return v
		}
		qty := line.Quantity
		if qty <= 0 {
			qty = 1
		}
		if item.QuantityOnHand < qty {
			v.Reason = inventory.ReasonInsufficientStock
			v.Missing = &line
			return v
		}
	}
	v.Available = true
	v.Reason = inventory.ReasonOK
	return v
}

func (f *fakeStock) Reserve(ctx context.Context, input inventory.ReserveInput) (inventory.ReserveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return inventory.ReserveResult{}, f.fail
	}
	v := f.verifyLocked(input.Lines, input.InventoryID)
	result := inventory.ReserveResult{Verification: v}
	if !v.Available {
		result.Message = fmt.Sprintf("insufficient stock: %s", v.Reason)
		return result, nil
	}
	items := f.items[input.InventoryID]
	for _, line := range input.Lines {
		item := inventory.Match(items, line)
		qty := line.Quantity
		if qty <= 0 {
			qty = 1
		}
		item.QuantityOnHand -= qty
		item.QuantityOut += qty
		result.ItemsUpdated++
	}
	result.Reserved = true
	return result, nil
}

type fakeOrders struct {
	mu       sync.Mutex
	docs     map[string][]byte
	failNext error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{docs: map[string][]byte{}}
}

func (r *fakeOrders) put(o *orders.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.Version == 0 {
		o.Version = 1
	}
	doc, _ := json.Marshal(o)
	r.docs[o.ID] = doc
}

func (r *fakeOrders) Get(ctx context.Context, id string) (*orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, fmt.Errorf("orders: %s: %w", id, shared.ErrNotFound)
	}
	var o orders.Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *fakeOrders) Create(ctx context.Context, o *orders.Order) error {
	r.put(o)
	return nil
}

func (r *fakeOrders) Update(ctx context.Context, o *orders.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	doc, ok := r.docs[o.ID]
	if !ok {
		return fmt.Errorf("orders: %s: %w", o.ID, shared.ErrNotFound)
	}
	var current orders.Order
	if err := json.Unmarshal(doc, &current); err != nil {
		return err
	}
	if current.Version != o.Version {
		return fmt.Errorf("orders: %s: %w", o.ID, shared.ErrStaleOrder)
	}
	o.Version++
	next, _ := json.Marshal(o)
	r.docs[o.ID] = next
	return nil
}

func (r *fakeOrders) List(ctx context.Context, filter orders.ListFilter) ([]orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []orders.Order{}
	for _, doc := range r.docs {
		var o orders.Order
		if err := json.Unmarshal(doc, &o); err != nil {
			return nil, err
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.OverallState != "" && o.OverallState != filter.OverallState {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *fakeOrders) NextID(ctx context.Context) (string, error) {
	return fmt.Sprintf("%04d", len(r.docs)+1), nil
}

type fakeFlows struct {
	flow   flows.Flow
	stages []flows.Stage
}

func (f *fakeFlows) GetFlow(ctx context.Context, id string) (*flows.Flow, error) {
	if id != f.flow.ID {
		return nil, fmt.Errorf("flows: %s: %w", id, shared.ErrNotFound)
	}
	flow := f.flow
	return &flow, nil
}

func (f *fakeFlows) ListStages(ctx context.Context, flowID string) ([]flows.Stage, error) {
	return append([]flows.Stage{}, f.stages...), nil
}

func (f *fakeFlows) GetStage(ctx context.Context, id string) (*flows.Stage, error) {
	for i := range f.stages {
		if f.stages[i].ID == id {
			stage := f.stages[i]
			return &stage, nil
		}
	}
	return nil, fmt.Errorf("flows: stage %s: %w", id, shared.ErrNotFound)
}

type noopLocks struct{}

func (noopLocks) Acquire(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

type nopAudit struct{}

func (nopAudit) Record(ctx context.Context, log shared.AuditLog) error { return nil }

// billingStockCondition attaches a stock gate to the billing stage.
func billingStockCondition(stages []flows.Stage, inventoryID string) {
	for i := range stages {
		if stages[i].PermissionModule == "billing" {
			stages[i].ExitConditions = append(stages[i].ExitConditions, flows.Condition{
				ID:       "condition-billing-stock",
				Kind:     flows.KindStockAvailable,
				Required: true,
				Params:   flows.Params{InventoryID: inventoryID},
			})
		}
	}
}

func newTestEngine(t *testing.T, repo *fakeOrders, stock *fakeStock, cfgStages []flows.Stage) *Engine {
	t.Helper()
	flow, stages := flows.DefaultFlow(time.Now().UTC())
	if cfgStages != nil {
		stages = cfgStages
	}
	eval := NewEvaluator(stock, slog.Default(), orders.DefaultInstallments)
	return NewEngine(repo, &fakeFlows{flow: flow, stages: stages}, stock, eval, noopLocks{}, nopAudit{}, slog.Default(), EngineConfig{FlowID: flow.ID})
}

func billingOrder(id string) *orders.Order {
	now := time.Now().UTC().Add(-2 * time.Hour)
	o := &orders.Order{
		ID:           id,
		CustomerName: "Ana Torres",
		TotalAmount:  150,
		SizeSpec:     "Polera Negro (M)",
		Status:       orders.StageBilling,
		OverallState: orders.StateInBilling,
	}
	o.Billing.EnteredAt = &now
	return o
}

func TestAdvanceBlockedByMissingConditions(t *testing.T) {
	repo := newFakeOrders()
	now := time.Now().UTC()
	o := &orders.Order{ID: "0001", Status: orders.StageDesign, OverallState: orders.StateInDesign}
	o.Design.EnteredAt = &now
	repo.put(o)
	engine := newTestEngine(t, repo, newFakeStock(), nil)

	result, err := engine.AdvanceStage(context.Background(), "0001", "tester")
	require.NoError(t, err)
	require.False(t, result.Advanced)
	require.Equal(t, []string{"Image URL Set", "Sizes Set"}, result.Missing)

	// no mutation happened
	stored, err := repo.Get(context.Background(), "0001")
	require.NoError(t, err)
	require.Equal(t, orders.StageDesign, stored.Status)
	require.Empty(t, stored.History)
	require.EqualValues(t, 1, stored.Version)
}

func TestAdvanceDesignWithConditionsMet(t *testing.T) {
	repo := newFakeOrders()
	now := time.Now().UTC()
	o := &orders.Order{ID: "0001", Status: orders.StageDesign, OverallState: orders.StateInDesign, SizeSpec: "Polera Negro (M)"}
	o.Design.EnteredAt = &now
	o.Design.ImageURL = "https://img/1.png"
	repo.put(o)
	engine := newTestEngine(t, repo, newFakeStock(), nil)

	result, err := engine.AdvanceStage(context.Background(), "0001", "tester")
	require.NoError(t, err)
	require.True(t, result.Advanced)
	require.Equal(t, orders.StageBilling, result.ToStage)
	require.Equal(t, orders.StateInBilling, result.NewState)

	stored, _ := repo.Get(context.Background(), "0001")
	require.NotNil(t, stored.Design.ExitedAt)
	require.True(t, stored.Design.DurationHours >= 0)
	require.True(t, stored.Billing.Open())
	require.Len(t, stored.History, 1)
}

func TestAdvanceBillingNoInventoryConfigured(t *testing.T) {
	repo := newFakeOrders()
	repo.put(billingOrder("0001"))
	stock := newFakeStock()
	stock.items[inventory.CollectionGarments] = []inventory.Item{
		{ID: "i1", GarmentType: "Polera", Color: "Negro", Size: "M", QuantityOnHand: 99},
	}
	_, stages := flows.DefaultFlow(time.Now().UTC())
	billingStockCondition(stages, "") // stock kind present, inventory blank
	engine := newTestEngine(t, repo, stock, stages)

	result, err := engine.AdvanceStage(context.Background(), "0001", "tester")
	require.NoError(t, err)
	require.True(t, result.Advanced)
	require.True(t, result.OnHold)
	require.False(t, result.Reserved)
	require.Contains(t, result.Message, "no inventory configured")

	stored, _ := repo.Get(context.Background(), "0001")
	require.Equal(t, orders.StagePreparation, stored.Status)
	require.Equal(t, orders.StateOnHoldStock, stored.OverallState)
	require.Equal(t, orders.StageStateOnHold, stored.Preparation.State)
	// stock untouched
	require.Equal(t, 99, stock.items[inventory.CollectionGarments][0].QuantityOnHand)
}

func TestAdvanceBillingReservesStock(t *testing.T) {
	repo := newFakeOrders()
	repo.put(billingOrder("0001"))
	stock := newFakeStock()
	stock.items[inventory.CollectionGarments] = []inventory.Item{
		{ID: "i1", GarmentType: "Polera", Color: "Negro", Size: "M", QuantityOnHand: 3},
	}
	_, stages := flows.DefaultFlow(time.Now().UTC())
	billingStockCondition(stages, inventory.CollectionGarments)
	engine := newTestEngine(t, repo, stock, stages)

	result, err := engine.AdvanceStage(context.Background(), "0001", "tester")
	require.NoError(t, err)
	require.True(t, result.Advanced)
	require.True(t, result.Reserved)
	require.False(t, result.OnHold)

	stored, _ := repo.Get(context.Background(), "0001")
	require.Equal(t, orders.StagePreparation, stored.Status)
	require.Equal(t, orders.StateReadyToPrepare, stored.OverallState)
	require.NotNil(t, stored.Billing.ExitedAt)
	require.True(t, stored.Preparation.Open())
	require.Equal(t, orders.StageStateReady, stored.Preparation.State)
	require.Equal(t, 2, stock.items[inventory.CollectionGarments][0].QuantityOnHand)
	require.Equal(t, 1, stock.items[inventory.CollectionGarments][0].QuantityOut)
}

func TestAdvanceBillingInsufficientStockHolds(t *testing.T) {
	repo := newFakeOrders()
	o := billingOrder("0001")
	o.Garments = []inventory.LineItem{{GarmentType: "Polera", Color: "Negro", Size: "M", Quantity: 30}}
	repo.put(o)
	stock := newFakeStock()
	stock.items[inventory.CollectionGarments] = []inventory.Item{
		{ID: "i1", GarmentType: "Polera", Color: "Negro", Size: "M", QuantityOnHand: 25},
	}
	_, stages := flows.DefaultFlow(time.Now().UTC())
	billingStockCondition(stages, inventory.CollectionGarments)
	engine := newTestEngine(t, repo, stock, stages)

	result, err := engine.AdvanceStage(context.Background(), "0001", "tester")
	require.NoError(t, err)
	require.True(t, result.OnHold)
	require.Contains(t, result.Message, "insufficient stock")
	require.Equal(t, 25, stock.items[inventory.CollectionGarments][0].QuantityOnHand)
}

func TestEntrySkipFirstMatchWins(t *testing.T) {
	repo := newFakeOrders()
	now := time.Now().UTC()
	o := &orders.Order{ID: "0001", Status: orders.StagePrinting, OverallState: orders.StateInPrinting}
	o.Printing.EnteredAt = &now
	o.Printing.Operator = "Pedro"
	o.Delivery.Deliverer = "Luis"
	repo.put(o)

	_, stages := flows.DefaultFlow(time.Now().UTC())
	for i := range stages {
		if stages[i].PermissionModule == "packaging" {
			stages[i].EntryConditions = []flows.Condition{
				// first matching auto-skip wins, the second is ignored
				{ID: "e1", Kind: flows.KindDelivererAssigned, AutoSkip: true, Params: flows.Params{TargetStageID: flows.StageID("delivery")}},
				{ID: "e2", Kind: flows.KindOperatorAssigned, AutoSkip: true, Params: flows.Params{TargetStageID: flows.StageID("sales")}},
			}
		}
	}
	engine := newTestEngine(t, repo, newFakeStock(), stages)

	result, err := engine.AdvanceStage(context.Background(), "0001", "tester")
	require.NoError(t, err)
	require.True(t, result.Advanced)
	require.Equal(t, orders.StageDelivery, result.ToStage)

	stored, _ := repo.Get(context.Background(), "0001")
	// the order never rests in the skipped stage
	require.Equal(t, orders.StageDelivery, stored.Status)
	require.NotNil(t, stored.Packaging.ExitedAt)
	require.True(t, stored.Delivery.Open())
	require.Len(t, stored.History, 2)
	require.Equal(t, "stage.skipped", stored.History[1].Action)
}

func TestEntrySkipCycleTerminates(t *testing.T) {
	repo := newFakeOrders()
	now := time.Now().UTC()
	o := &orders.Order{ID: "0001", Status: orders.StagePrinting, OverallState: orders.StateInPrinting}
	o.Printing.EnteredAt = &now
	o.Printing.Operator = "Pedro"
	o.Packaging.Operator = "Rosa"
	repo.put(o)

	_, stages := flows.DefaultFlow(time.Now().UTC())
	for i := range stages {
		switch stages[i].PermissionModule {
		case "packaging":
			stages[i].EntryConditions = []flows.Condition{
				{ID: "e1", Kind: flows.KindOperatorAssigned, AutoSkip: true, Params: flows.Params{TargetStageID: flows.StageID("delivery")}},
			}
		case "delivery":
			stages[i].EntryConditions = []flows.Condition{
				{ID: "e2", Kind: flows.KindOperatorAssigned, AutoSkip: true, Params: flows.Params{TargetStageID: flows.StageID("packaging")}},
			}
		}
	}
	engine := newTestEngine(t, repo, newFakeStock(), stages)

	result, err := engine.AdvanceStage(context.Background(), "0001", "tester")
	require.NoError(t, err)
	require.True(t, result.Advanced)

	stored, _ := repo.Get(context.Background(), "0001")
	require.Equal(t, orders.StageDelivery, stored.Status)
}

func TestAdvanceCompletedOrder(t *testing.T) {
	repo := newFakeOrders()
	repo.put(&orders.Order{ID: "0001", Status: orders.StageCompleted, OverallState: orders.StateCompleted})
	engine := newTestEngine(t, repo, newFakeStock(), nil)

	_, err := engine.AdvanceStage(context.Background(), "0001", "tester")
	require.ErrorIs(t, err, ErrCompleted)
}

func TestAdvanceSurfacesStaleOrder(t *testing.T) {
	repo := newFakeOrders()
	now := time.Now().UTC()
	o := &orders.Order{ID: "0001", Status: orders.StageSales, OverallState: orders.StateInSales}
	o.Sales.EnteredAt = &now
	repo.put(o)
	repo.failNext = fmt.Errorf("orders: 0001: %w", shared.ErrStaleOrder)
	engine := newTestEngine(t, repo, newFakeStock(), nil)

	_, err := engine.AdvanceStage(context.Background(), "0001", "tester")
	require.ErrorIs(t, err, shared.ErrStaleOrder)
}

func TestRecheckHoldClearsAfterRestock(t *testing.T) {
	repo := newFakeOrders()
	o := billingOrder("0001")
	o.Status = orders.StagePreparation
	o.OverallState = orders.StateOnHoldStock
	now := time.Now().UTC()
	o.Preparation.EnteredAt = &now
	o.Preparation.State = orders.StageStateOnHold
	repo.put(o)

	stock := newFakeStock()
	_, stages := flows.DefaultFlow(time.Now().UTC())
	billingStockCondition(stages, inventory.CollectionGarments)
	engine := newTestEngine(t, repo, stock, stages)

	// still no stock
	result, err := engine.RecheckHold(context.Background(), "0001", "tester")
	require.NoError(t, err)
	require.True(t, result.OnHold)
	require.False(t, result.Advanced)

	stock.items[inventory.CollectionGarments] = []inventory.Item{
		{ID: "i1", GarmentType: "Polera", Color: "Negro", Size: "M", QuantityOnHand: 1},
	}
	result, err = engine.RecheckHold(context.Background(), "0001", "tester")
	require.NoError(t, err)
	require.True(t, result.Advanced)
	require.True(t, result.Reserved)

	stored, _ := repo.Get(context.Background(), "0001")
	require.Equal(t, orders.StateReadyToPrepare, stored.OverallState)
	require.Equal(t, orders.StageStateReady, stored.Preparation.State)
	require.Equal(t, 0, stock.items[inventory.CollectionGarments][0].QuantityOnHand)
}

func TestRecheckHoldIgnoresHealthyOrder(t *testing.T) {
	repo := newFakeOrders()
	repo.put(billingOrder("0001"))
	engine := newTestEngine(t, repo, newFakeStock(), nil)

	result, err := engine.RecheckHold(context.Background(), "0001", "tester")
	require.NoError(t, err)
	require.False(t, result.Advanced)
	require.Equal(t, "order is not on hold", result.Message)
}

func TestListOnHold(t *testing.T) {
	repo := newFakeOrders()
	held := billingOrder("0001")
	held.OverallState = orders.StateOnHoldStock
	repo.put(held)
	repo.put(billingOrder("0002"))
	engine := newTestEngine(t, repo, newFakeStock(), nil)

	out, err := engine.ListOnHold(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "0001", out[0].ID)
}
