package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hmaji/billfold/internal/bill"
	"github.com/hmaji/billfold/internal/catalog"
	"github.com/hmaji/billfold/internal/export"
	"github.com/hmaji/billfold/internal/httpx"
	"github.com/hmaji/billfold/internal/models"
	"github.com/hmaji/billfold/internal/selector"
	"github.com/hmaji/billfold/internal/session"
)

// BillHandler drives one bill session per operator: open a session over a
// catalog snapshot, apply line commands, then export. Every command runs
// under the session's lock via Registry.Do, so concurrent requests against
// the same bill serialize instead of racing on the engine.
type BillHandler struct {
	Catalog  *catalog.Provider
	Sessions *session.Registry
	// SharePhone is the default WhatsApp destination; empty means a bare
	// share link.
	SharePhone string
}

func NewBillHandler(c *catalog.Provider, s *session.Registry, sharePhone string) *BillHandler {
	return &BillHandler{Catalog: c, Sessions: s, SharePhone: sharePhone}
}

// Open starts a bill session. The catalog is read once here; the session
// works against that snapshot until it is closed or expires.
func (h *BillHandler) Open(w http.ResponseWriter, r *http.Request) {
	products := h.Catalog.ListProducts(r.Context())
	id := h.Sessions.Open(products)
	httpx.JSON(w, http.StatusCreated, map[string]any{"bill_id": id, "catalog_size": len(products)})
}

func (h *BillHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Close(r.URL.Query().Get("bill"))
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// withBill runs fn against the session named by the bill query parameter,
// holding that session's lock for the duration. fn writes the response.
func (h *BillHandler) withBill(w http.ResponseWriter, r *http.Request, fn func(engine *bill.Engine)) {
	found := h.Sessions.Do(r.URL.Query().Get("bill"), func(engine *bill.Engine, _ []models.Product) {
		fn(engine)
	})
	if !found {
		httpx.JSONError(w, http.StatusNotFound, "unknown_bill", nil)
	}
}

type lineCommand struct {
	ProductID uint     `json:"product_id"`
	Quantity  *int     `json:"quantity,omitempty"`
	UnitPrice *float64 `json:"unit_price,omitempty"`
}

func (h *BillHandler) readCommand(w http.ResponseWriter, r *http.Request) (lineCommand, bool) {
	var cmd lineCommand
	if err := httpx.Decode(r, &cmd); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return cmd, false
	}
	if cmd.ProductID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"product_id": "required"})
		return cmd, false
	}
	return cmd, true
}

func (h *BillHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.readCommand(w, r)
	if !ok {
		return
	}
	h.withBill(w, r, func(engine *bill.Engine) {
		if err := engine.AddProduct(cmd.ProductID); err != nil {
			writeEngineError(w, err)
			return
		}
		h.writeState(w, engine)
	})
}

func (h *BillHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.readCommand(w, r)
	if !ok {
		return
	}
	if cmd.Quantity == nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"quantity": "required"})
		return
	}
	h.withBill(w, r, func(engine *bill.Engine) {
		if err := engine.SetQuantity(cmd.ProductID, *cmd.Quantity); err != nil {
			writeEngineError(w, err)
			return
		}
		h.writeState(w, engine)
	})
}

func (h *BillHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.readCommand(w, r)
	if !ok {
		return
	}
	if cmd.UnitPrice == nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"unit_price": "required"})
		return
	}
	h.withBill(w, r, func(engine *bill.Engine) {
		if err := engine.SetUnitPriceOverride(cmd.ProductID, *cmd.UnitPrice); err != nil {
			writeEngineError(w, err)
			return
		}
		h.writeState(w, engine)
	})
}

func (h *BillHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.readCommand(w, r)
	if !ok {
		return
	}
	h.withBill(w, r, func(engine *bill.Engine) {
		engine.RemoveLine(cmd.ProductID)
		h.writeState(w, engine)
	})
}

func (h *BillHandler) State(w http.ResponseWriter, r *http.Request) {
	h.withBill(w, r, func(engine *bill.Engine) {
		h.writeState(w, engine)
	})
}

// lineView is the wire shape of one working line, override flag included so
// the UI can mark adjusted prices.
type lineView struct {
	ProductID  uint    `json:"product_id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Quantity   int     `json:"quantity"`
	BasePrice  float64 `json:"base_price"`
	UnitPrice  float64 `json:"unit_price"`
	Overridden bool    `json:"overridden"`
	Total      float64 `json:"total"`
}

func (h *BillHandler) writeState(w http.ResponseWriter, engine *bill.Engine) {
	lines := engine.Lines()
	views := make([]lineView, 0, len(lines))
	for _, l := range lines {
		views = append(views, lineView{
			ProductID:  l.Product.ID,
			Name:       l.Product.Name,
			Category:   l.Product.Category,
			Quantity:   l.Quantity,
			BasePrice:  l.Product.Price,
			UnitPrice:  l.UnitPrice(),
			Overridden: l.OverridePrice != nil,
			Total:      l.Total(),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lines": views, "total": engine.Total()})
}

// Options serves the product picker for a session: grouped by category in
// alphabetical order, filtered by the q parameter against labels.
func (h *BillHandler) Options(w http.ResponseWriter, r *http.Request) {
	found := h.Sessions.Do(r.URL.Query().Get("bill"), func(_ *bill.Engine, products []models.Product) {
		opts := make([]selector.Option, 0, len(products))
		for _, p := range products {
			opts = append(opts, selector.Option{
				Value: fmt.Sprintf("%d", p.ID),
				Label: fmt.Sprintf("%s (%s)", p.Name, export.Money(p.Price)),
				Group: p.Category,
			})
		}
		filtered := selector.Filter(opts, r.URL.Query().Get("q"))
		httpx.JSON(w, http.StatusOK, map[string]any{"groups": selector.Grouped(filtered, true)})
	})
	if !found {
		httpx.JSONError(w, http.StatusNotFound, "unknown_bill", nil)
	}
}

// snapshot freezes the session's bill for the export endpoints.
func (h *BillHandler) snapshot(w http.ResponseWriter, r *http.Request) (bill.Snapshot, bool) {
	var snap bill.Snapshot
	var err error
	found := h.Sessions.Do(r.URL.Query().Get("bill"), func(engine *bill.Engine, _ []models.Product) {
		snap, err = engine.BuildSnapshot(r.URL.Query().Get("client"))
	})
	if !found {
		httpx.JSONError(w, http.StatusNotFound, "unknown_bill", nil)
		return bill.Snapshot{}, false
	}
	if err != nil {
		writeEngineError(w, err)
		return bill.Snapshot{}, false
	}
	return snap, true
}

func (h *BillHandler) Preview(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, snap)
		return
	}
	doc, err := export.Print(snap)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "print_render_failed", nil)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, werr := w.Write(doc); werr != nil {
		_ = werr
	}
}

func (h *BillHandler) PDF(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	data, err := export.PDF(snap)
	if err != nil {
		// The live bill is untouched; the operator can retry the export.
		httpx.JSONError(w, http.StatusInternalServerError, "pdf_generation_failed", nil)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="bill.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, werr := w.Write(data); werr != nil {
		_ = werr
	}
}

func (h *BillHandler) Share(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		phone = h.SharePhone
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"text": export.ShareText(snap),
		"url":  export.WhatsAppLink(snap, phone),
	})
}

// writeEngineError maps engine sentinel errors onto stable wire codes. All
// of these are operator-correctable; prior bill state is untouched.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bill.ErrUnknownProduct):
		httpx.JSONError(w, http.StatusBadRequest, "unknown_product", nil)
	case errors.Is(err, bill.ErrUnknownLine):
		httpx.JSONError(w, http.StatusNotFound, "unknown_line", nil)
	case errors.Is(err, bill.ErrMissingClientName):
		httpx.JSONError(w, http.StatusBadRequest, "missing_client_name", nil)
	case errors.Is(err, bill.ErrEmptyBill):
		httpx.JSONError(w, http.StatusBadRequest, "empty_bill", nil)
	default:
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
