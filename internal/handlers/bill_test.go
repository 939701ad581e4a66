package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hmaji/billfold/internal/catalog"
	"github.com/hmaji/billfold/internal/models"
	"github.com/hmaji/billfold/internal/session"
)

func setupBillHandler(t *testing.T) *BillHandler {
	t.Helper()
	db := setupTestDB(t)
	for _, p := range []models.Product{
		{Name: "T-Shirt", Category: "Clothing", Price: 100},
		{Name: "Mug", Category: "Kitchen", Price: 50},
	} {
		if err := db.Create(&p).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return NewBillHandler(catalog.NewProvider(db), session.NewRegistry(time.Hour), "")
}

func openBill(t *testing.T, h *BillHandler) string {
	t.Helper()
	w := httptest.NewRecorder()
	h.Open(w, httptest.NewRequest(http.MethodPost, "/bills", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("open bill: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		BillID string `json:"bill_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.BillID
}

func postCommand(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

type stateResp struct {
	Lines []struct {
		ProductID  uint    `json:"product_id"`
		Name       string  `json:"name"`
		Quantity   int     `json:"quantity"`
		UnitPrice  float64 `json:"unit_price"`
		Overridden bool    `json:"overridden"`
	} `json:"lines"`
	Total float64 `json:"total"`
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) stateResp {
	t.Helper()
	var s stateResp
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode state: %v (%s)", err, w.Body.String())
	}
	return s
}

func TestBillFlowEndToEnd(t *testing.T) {
	h := setupBillHandler(t)
	id := openBill(t, h)
	base := "/bills/items?bill=" + id

	// Add product 1 twice: one merged line with quantity 2.
	postCommand(t, h.AddItem, base, `{"product_id":1}`)
	w := postCommand(t, h.AddItem, base, `{"product_id":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("add: %d %s", w.Code, w.Body.String())
	}
	s := decodeState(t, w)
	if len(s.Lines) != 1 || s.Lines[0].Quantity != 2 {
		t.Fatalf("expected merged line with quantity 2, got %+v", s.Lines)
	}

	// Reset quantity to 1, add the mug at quantity 3, override the shirt to 80.
	postCommand(t, h.SetQuantity, base, `{"product_id":1,"quantity":1}`)
	postCommand(t, h.AddItem, base, `{"product_id":2}`)
	postCommand(t, h.SetQuantity, base, `{"product_id":2,"quantity":3}`)
	w = postCommand(t, h.SetPrice, base, `{"product_id":1,"unit_price":80}`)
	s = decodeState(t, w)
	if math.Abs(s.Total-230) > 1e-9 {
		t.Fatalf("expected total 230, got %v", s.Total)
	}
	if !s.Lines[0].Overridden || s.Lines[0].UnitPrice != 80 {
		t.Fatalf("expected overridden line at 80: %+v", s.Lines[0])
	}

	// Preview JSON: two lines in insertion order with the effective prices.
	req := httptest.NewRequest(http.MethodGet, "/bills/preview?bill="+id+"&client=Jane", nil)
	req.Header.Set("Accept", "application/json")
	w = httptest.NewRecorder()
	h.Preview(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", w.Code, w.Body.String())
	}
	var snap struct {
		ClientName  string  `json:"client_name"`
		TotalAmount float64 `json:"total_amount"`
		Lines       []struct {
			Name      string  `json:"name"`
			UnitPrice float64 `json:"unit_price"`
		} `json:"lines"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.ClientName != "Jane" || math.Abs(snap.TotalAmount-230) > 1e-9 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Lines[0].Name != "T-Shirt" || snap.Lines[1].Name != "Mug" {
		t.Fatalf("insertion order lost: %+v", snap.Lines)
	}
}

func TestBillErrors(t *testing.T) {
	h := setupBillHandler(t)
	id := openBill(t, h)
	base := "/bills/items?bill=" + id

	w := postCommand(t, h.AddItem, "/bills/items?bill=missing", `{"product_id":1}`)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "unknown_bill") {
		t.Fatalf("expected unknown_bill, got %d %s", w.Code, w.Body.String())
	}

	w = postCommand(t, h.AddItem, base, `{"product_id":99}`)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "unknown_product") {
		t.Fatalf("expected unknown_product, got %d %s", w.Code, w.Body.String())
	}

	w = postCommand(t, h.SetQuantity, base, `{"product_id":1,"quantity":5}`)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "unknown_line") {
		t.Fatalf("expected unknown_line, got %d %s", w.Code, w.Body.String())
	}

	// Empty bill and missing client name block snapshot building.
	req := httptest.NewRequest(http.MethodGet, "/bills/preview?bill="+id+"&client=Jane", nil)
	w2 := httptest.NewRecorder()
	h.Preview(w2, req)
	if w2.Code != http.StatusBadRequest || !strings.Contains(w2.Body.String(), "empty_bill") {
		t.Fatalf("expected empty_bill, got %d %s", w2.Code, w2.Body.String())
	}
	postCommand(t, h.AddItem, base, `{"product_id":1}`)
	req = httptest.NewRequest(http.MethodGet, "/bills/preview?bill="+id+"&client=%20%20", nil)
	w2 = httptest.NewRecorder()
	h.Preview(w2, req)
	if w2.Code != http.StatusBadRequest || !strings.Contains(w2.Body.String(), "missing_client_name") {
		t.Fatalf("expected missing_client_name, got %d %s", w2.Code, w2.Body.String())
	}
}

func TestBillRemoveAndReAdd(t *testing.T) {
	h := setupBillHandler(t)
	id := openBill(t, h)
	base := "/bills/items?bill=" + id

	postCommand(t, h.AddItem, base, `{"product_id":1}`)
	postCommand(t, h.SetQuantity, base, `{"product_id":1,"quantity":4}`)
	postCommand(t, h.SetPrice, base, `{"product_id":1,"unit_price":80}`)
	w := postCommand(t, h.RemoveItem, base, `{"product_id":1}`)
	if s := decodeState(t, w); len(s.Lines) != 0 {
		t.Fatalf("expected empty bill after remove, got %+v", s.Lines)
	}
	w = postCommand(t, h.AddItem, base, `{"product_id":1}`)
	s := decodeState(t, w)
	if len(s.Lines) != 1 || s.Lines[0].Quantity != 1 || s.Lines[0].Overridden {
		t.Fatalf("residual state after re-add: %+v", s.Lines)
	}
}

func TestBillConcurrentAdds(t *testing.T) {
	h := setupBillHandler(t)
	id := openBill(t, h)
	base := "/bills/items?bill=" + id

	// A double-click or a second tab can land two commands on the same bill
	// at once; they must serialize, not corrupt the line set.
	const workers = 2
	const addsPerWorker = 200
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < addsPerWorker; j++ {
				req := httptest.NewRequest(http.MethodPost, base, strings.NewReader(`{"product_id":1}`))
				req.Header.Set("Content-Type", "application/json")
				h.AddItem(httptest.NewRecorder(), req)
			}
		}()
	}
	wg.Wait()

	req := httptest.NewRequest(http.MethodGet, "/bills/state?bill="+id, nil)
	w := httptest.NewRecorder()
	h.State(w, req)
	s := decodeState(t, w)
	if len(s.Lines) != 1 || s.Lines[0].Quantity != workers*addsPerWorker {
		t.Fatalf("lost updates under concurrency: %+v", s.Lines)
	}
}

func TestBillOptionsGroupedAndFiltered(t *testing.T) {
	h := setupBillHandler(t)
	id := openBill(t, h)

	req := httptest.NewRequest(http.MethodGet, "/bills/options?bill="+id, nil)
	w := httptest.NewRecorder()
	h.Options(w, req)
	var resp struct {
		Groups []struct {
			Name    string `json:"name"`
			Options []struct {
				Value string `json:"value"`
				Label string `json:"label"`
			} `json:"options"`
		} `json:"groups"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Groups) != 2 || resp.Groups[0].Name != "Clothing" || resp.Groups[1].Name != "Kitchen" {
		t.Fatalf("expected alphabetical groups, got %+v", resp.Groups)
	}
	if resp.Groups[0].Options[0].Label != fmt.Sprintf("T-Shirt (%s)", "$100.00") {
		t.Fatalf("unexpected label: %q", resp.Groups[0].Options[0].Label)
	}

	req = httptest.NewRequest(http.MethodGet, "/bills/options?bill="+id+"&q=mug", nil)
	w = httptest.NewRecorder()
	h.Options(w, req)
	resp.Groups = nil
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Groups) != 1 || resp.Groups[0].Name != "Kitchen" {
		t.Fatalf("expected only Kitchen group, got %+v", resp.Groups)
	}
}

func TestBillShareAndPDF(t *testing.T) {
	h := setupBillHandler(t)
	id := openBill(t, h)
	base := "/bills/items?bill=" + id
	postCommand(t, h.AddItem, base, `{"product_id":2}`)

	req := httptest.NewRequest(http.MethodGet, "/bills/share?bill="+id+"&client=Jane&phone=%2B1%20555%20010", nil)
	w := httptest.NewRecorder()
	h.Share(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("share: %d %s", w.Code, w.Body.String())
	}
	var share struct {
		Text string `json:"text"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &share); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(share.Text, "Bill for Jane") || !strings.Contains(share.URL, "wa.me/1555010") {
		t.Fatalf("unexpected share payload: %+v", share)
	}

	req = httptest.NewRequest(http.MethodGet, "/bills/pdf?bill="+id+"&client=Jane", nil)
	w = httptest.NewRecorder()
	h.PDF(w, req)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF") {
		t.Fatalf("expected PDF bytes")
	}
	// Exporting must not consume or mutate the working bill.
	req = httptest.NewRequest(http.MethodGet, "/bills/state?bill="+id, nil)
	w = httptest.NewRecorder()
	h.State(w, req)
	if s := decodeState(t, w); len(s.Lines) != 1 || s.Lines[0].Quantity != 1 {
		t.Fatalf("export mutated bill state: %+v", s.Lines)
	}
}
