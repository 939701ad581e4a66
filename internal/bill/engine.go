package bill

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/hmaji/billfold/internal/models"
)

var (
	ErrUnknownProduct    = errors.New("product not in catalog snapshot")
	ErrUnknownLine       = errors.New("no bill line for product")
	ErrMissingClientName = errors.New("client name required")
	ErrEmptyBill         = errors.New("bill has no lines with quantity > 0")
)

// priceEpsilon is the tolerance used when deciding whether an override price
// equals the catalog base price (in which case the override is cleared).
const priceEpsilon = 1e-9

// Line is one row of the working bill, keyed by product id. Product data is
// copied at add-time, so later catalog edits do not affect an open bill.
type Line struct {
	Product       models.Product
	Quantity      int
	OverridePrice *float64
}

// UnitPrice is the effective unit price: the override when set, the catalog
// base price otherwise.
func (l Line) UnitPrice() float64 {
	if l.OverridePrice != nil {
		return *l.OverridePrice
	}
	return l.Product.Price
}

func (l Line) Total() float64 { return l.UnitPrice() * float64(l.Quantity) }

// SnapshotLine carries the effective unit price only; whether it came from an
// override is not observable downstream.
type SnapshotLine struct {
	ProductID uint    `json:"product_id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

// Snapshot is the immutable finalized view of a bill handed to export and
// printing. It is never fed back into the engine.
type Snapshot struct {
	ClientName  string         `json:"client_name"`
	Lines       []SnapshotLine `json:"lines"`
	TotalAmount float64        `json:"total_amount"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Engine holds the working set of lines for one in-progress bill plus the
// catalog snapshot taken when the session opened. All operations are
// synchronous and all-or-nothing; a failed operation leaves the line
// sequence untouched. One engine serves one operator session; callers that
// share an engine across goroutines must serialize access themselves.
type Engine struct {
	catalog map[uint]models.Product
	order   []uint
	lines   map[uint]*Line
	now     func() time.Time
}

// New builds an engine over a catalog snapshot. The snapshot is fixed for
// the session; the engine never re-reads the catalog.
func New(products []models.Product) *Engine {
	catalog := make(map[uint]models.Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}
	return &Engine{
		catalog: catalog,
		lines:   map[uint]*Line{},
		now:     time.Now,
	}
}

// AddProduct adds one unit of the given product. If a line already exists
// its quantity is incremented; otherwise a fresh line with quantity 1 and no
// override is appended. Insertion order is the display/export order and is
// never re-sorted.
func (e *Engine) AddProduct(productID uint) error {
	product, ok := e.catalog[productID]
	if !ok {
		return ErrUnknownProduct
	}
	if line, exists := e.lines[productID]; exists {
		line.Quantity++
		return nil
	}
	e.lines[productID] = &Line{Product: product, Quantity: 1}
	e.order = append(e.order, productID)
	return nil
}

// SetQuantity sets a line's quantity, clamping negative input to 0. A line
// at quantity 0 stays in the working set (so the operator can type a
// quantity back in) but is excluded from totals and snapshots.
func (e *Engine) SetQuantity(productID uint, quantity int) error {
	line, ok := e.lines[productID]
	if !ok {
		return ErrUnknownLine
	}
	if quantity < 0 {
		quantity = 0
	}
	line.Quantity = quantity
	return nil
}

// SetUnitPriceOverride sets an operator-chosen unit price for a line,
// clamping negative input to 0. Setting the price back to the catalog base
// price (within float tolerance) clears the override, so the line reverts to
// tracking the catalog price.
func (e *Engine) SetUnitPriceOverride(productID uint, price float64) error {
	line, ok := e.lines[productID]
	if !ok {
		return ErrUnknownLine
	}
	if price < 0 {
		price = 0
	}
	if math.Abs(price-line.Product.Price) < priceEpsilon {
		line.OverridePrice = nil
		return nil
	}
	line.OverridePrice = &price
	return nil
}

// RemoveLine deletes the line regardless of quantity. Removing an absent
// line is a no-op, matching the reference behavior of filtering the line
// list by id. Re-adding the product later starts a fresh line.
func (e *Engine) RemoveLine(productID uint) {
	if _, ok := e.lines[productID]; !ok {
		return
	}
	delete(e.lines, productID)
	for i, id := range e.order {
		if id == productID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Lines returns a copy of the working set in insertion order, including
// zero-quantity lines.
func (e *Engine) Lines() []Line {
	out := make([]Line, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, *e.lines[id])
	}
	return out
}

// Total recomputes the bill total from current state on every call. Lines
// with quantity 0 contribute nothing.
func (e *Engine) Total() float64 {
	var total float64
	for _, id := range e.order {
		line := e.lines[id]
		if line.Quantity > 0 {
			total += line.Total()
		}
	}
	return total
}

// BuildSnapshot freezes the bill for export. Only lines with quantity > 0
// are included, in insertion order, each carrying its effective unit price.
func (e *Engine) BuildSnapshot(clientName string) (Snapshot, error) {
	name := strings.TrimSpace(clientName)
	if name == "" {
		return Snapshot{}, ErrMissingClientName
	}
	var lines []SnapshotLine
	var total float64
	for _, id := range e.order {
		line := e.lines[id]
		if line.Quantity == 0 {
			continue
		}
		lines = append(lines, SnapshotLine{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Category:  line.Product.Category,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice(),
			Total:     line.Total(),
		})
		total += line.Total()
	}
	if len(lines) == 0 {
		return Snapshot{}, ErrEmptyBill
	}
	return Snapshot{
		ClientName:  name,
		Lines:       lines,
		TotalAmount: total,
		GeneratedAt: e.now(),
	}, nil
}
