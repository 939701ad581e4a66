package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/hmaji/billfold/internal/catalog"
	"github.com/hmaji/billfold/internal/httpx"
	"github.com/hmaji/billfold/internal/selector"
	"github.com/hmaji/billfold/internal/validation"
	"github.com/hmaji/billfold/internal/view"
)

// ProductHandler serves the catalog editor: list/create on /products,
// update and delete on their own paths. Responses are HTML for browsers and
// JSON otherwise, mirroring the Accept/Content-Type negotiation used across
// the app.
type ProductHandler struct {
	Catalog *catalog.Provider
}

func NewProductHandler(c *catalog.Provider) *ProductHandler { return &ProductHandler{Catalog: c} }

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products := h.Catalog.ListProducts(r.Context())
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query != "" {
		q := strings.ToLower(query)
		filtered := products[:0]
		for _, p := range products {
			if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Category), q) {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": products, "total": len(products)})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := map[string]any{
		"Products":   products,
		"Query":      query,
		"Categories": selector.CategoryOptions(h.Catalog.ListCategories(r.Context())),
	}
	if err := view.Render(w, r, "products.html", data); err != nil {
		if _, werr := w.Write([]byte("template render error:" + err.Error())); werr != nil {
			_ = werr
		}
	}
}

// productForm is the raw, untrusted form/JSON payload. The category pair
// (selected + free text) is resolved before a catalog command is built.
type productForm struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	NewCategory string  `json:"new_category"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

func (h *ProductHandler) readForm(r *http.Request) (productForm, error) {
	var in productForm
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := httpx.Decode(r, &in); err != nil {
			return in, err
		}
		return in, nil
	}
	if err := r.ParseForm(); err != nil {
		return in, err
	}
	in.Name = r.FormValue("name")
	in.Category = r.FormValue("category")
	in.NewCategory = r.FormValue("new_category")
	in.Description = r.FormValue("description")
	price, _ := strconv.ParseFloat(r.FormValue("price"), 64)
	in.Price = price
	return in, nil
}

// resolveInput turns the raw form into a validated catalog command. The
// category field honors the Add-New-Category sentinel from the selector.
func resolveInput(in productForm) (catalog.ProductInput, validation.Violations) {
	v := validation.Violations{}
	category, err := selector.ResolveCategory(in.Category, in.NewCategory)
	if err != nil {
		if errors.Is(err, selector.ErrNewCategoryNameRequired) && in.Category == selector.AddNewCategory {
			v["new_category"] = "required"
		} else {
			v["category"] = "required"
		}
	}
	return catalog.ProductInput{
		Name:        in.Name,
		Category:    category,
		Price:       in.Price,
		Description: in.Description,
	}, v
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.readForm(r)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_payload", nil)
		return
	}
	cmd, v := resolveInput(in)
	if !v.Empty() {
		h.fail(w, r, http.StatusBadRequest, "validation_failed", v)
		return
	}
	res := h.Catalog.Create(r.Context(), cmd)
	if !res.OK {
		h.fail(w, r, http.StatusBadRequest, res.Err, res.Details)
		return
	}
	if httpx.WantsJSON(r) || strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		httpx.JSON(w, http.StatusCreated, res.Product)
		return
	}
	http.Redirect(w, r, "/products", http.StatusSeeOther)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	id := parseID(r)
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	in, err := h.readForm(r)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_payload", nil)
		return
	}
	cmd, v := resolveInput(in)
	if !v.Empty() {
		h.fail(w, r, http.StatusBadRequest, "validation_failed", v)
		return
	}
	res := h.Catalog.Update(r.Context(), id, cmd)
	if !res.OK {
		status := http.StatusBadRequest
		if res.Err == "not_found" {
			status = http.StatusNotFound
		}
		h.fail(w, r, status, res.Err, res.Details)
		return
	}
	if httpx.WantsJSON(r) || strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		httpx.JSON(w, http.StatusOK, res.Product)
		return
	}
	http.Redirect(w, r, "/products", http.StatusSeeOther)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	id := parseID(r)
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	res := h.Catalog.Delete(r.Context(), id)
	if !res.OK {
		status := http.StatusInternalServerError
		if res.Err == "not_found" {
			status = http.StatusNotFound
		}
		httpx.JSONError(w, status, res.Err, nil)
		return
	}
	if !httpx.WantsJSON(r) && !strings.Contains(r.Header.Get("Accept"), "application/json") {
		http.Redirect(w, r, "/products", http.StatusSeeOther)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// fail reports a mutation failure: JSON envelope for API clients, the
// products page with inline errors for browsers.
func (h *ProductHandler) fail(w http.ResponseWriter, r *http.Request, status int, code string, details validation.Violations) {
	if httpx.WantsJSON(r) || strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		httpx.JSONError(w, status, code, details)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	data := map[string]any{
		"Errors":     details,
		"ErrorCode":  code,
		"Products":   h.Catalog.ListProducts(r.Context()),
		"Categories": selector.CategoryOptions(h.Catalog.ListCategories(r.Context())),
	}
	if err := view.Render(w, r, "products.html", data); err != nil {
		if _, werr := w.Write([]byte("template render error:" + err.Error())); werr != nil {
			_ = werr
		}
	}
}

func parseID(r *http.Request) uint {
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		idStr = r.FormValue("id")
	}
	id, _ := strconv.Atoi(idStr)
	if id <= 0 {
		return 0
	}
	return uint(id)
}
