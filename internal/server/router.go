package server

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/hmaji/billfold/internal/catalog"
	"github.com/hmaji/billfold/internal/config"
	"github.com/hmaji/billfold/internal/handlers"
	"github.com/hmaji/billfold/internal/httpx"
	"github.com/hmaji/billfold/internal/session"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, cfg config.Config) http.Handler {
	mux := http.NewServeMux()

	//revive:disable:unused-parameter simple handlers intentionally ignore *http.Request
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		// Lightweight DB check (SELECT 1); detailed errors stay out of the body.
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	//revive:enable:unused-parameter

	provider := catalog.NewProvider(db)
	sessions := session.NewRegistry(cfg.BillTTL)

	// Catalog editor. List/Create via /products; update/delete on their own
	// paths for form-post simplicity.
	ph := handlers.NewProductHandler(provider)
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ph.List(w, r)
		case http.MethodPost:
			ph.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	})
	mux.HandleFunc("/products/update", ph.Update)
	mux.HandleFunc("/products/delete", ph.Delete)

	// Bill sessions.
	bh := handlers.NewBillHandler(provider, sessions, cfg.SharePhone)
	mux.HandleFunc("/bills", requirePost(bh.Open))
	mux.HandleFunc("/bills/close", requirePost(bh.Close))
	mux.HandleFunc("/bills/items", requirePost(bh.AddItem))
	mux.HandleFunc("/bills/items/quantity", requirePost(bh.SetQuantity))
	mux.HandleFunc("/bills/items/price", requirePost(bh.SetPrice))
	mux.HandleFunc("/bills/items/delete", requirePost(bh.RemoveItem))
	mux.HandleFunc("/bills/state", bh.State)
	mux.HandleFunc("/bills/options", bh.Options)
	mux.HandleFunc("/bills/preview", bh.Preview)
	mux.HandleFunc("/bills/pdf", bh.PDF)
	mux.HandleFunc("/bills/share", bh.Share)

	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/products", http.StatusSeeOther)
	})

	return withRecover(mux)
}

func requirePost(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
			return
		}
		next(w, r)
	}
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
