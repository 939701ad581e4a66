// Package view renders HTML pages from the templates directory, wrapping
// each page in layout.html when one is present next to it.
package view

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	baseDir  string
	once     sync.Once
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}
)

func detectBase() {
	candidates := []string{"templates", "../templates", "../../templates", "../../../templates"}
	for _, c := range candidates {
		if fi, err := os.Stat(filepath.Clean(c)); err == nil && fi.IsDir() {
			baseDir = filepath.Clean(c)
			return
		}
	}
	baseDir = "templates"
}

// Funcs returns the shared template helpers.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
		"mul":   func(a float64, b int) float64 { return a * float64(b) },
		"add":   func(a, b float64) float64 { return a + b },
		"year":  func() int { return time.Now().Year() },
		// dict builds a map from key-value pairs for sub-templates:
		// {{ template "partial" (dict "Key" val) }}
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

// SetBaseDir overrides the template base directory (useful for tests).
func SetBaseDir(path string) {
	if path == "" {
		return
	}
	baseDir = filepath.Clean(path)
	once = sync.Once{}
}

// ResetForTests clears caches and forces base dir detection to rerun.
func ResetForTests() {
	tplCache.Lock()
	tplCache.m = map[string]*template.Template{}
	tplCache.Unlock()
	baseDir = ""
	once = sync.Once{}
}

// Render parses and executes a template file with the shared funcs. name is
// the filename relative to the templates directory (e.g. "products.html").
// Pages containing a full document (<!doctype ...>) skip layout wrapping.
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	_ = r // kept for signature symmetry with handlers; no per-request funcs today
	if baseDir == "" {
		once.Do(detectBase)
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}

	key := name
	devMode := os.Getenv("DEV") == "1"
	if !devMode {
		tplCache.RLock()
		t, ok := tplCache.m[key]
		tplCache.RUnlock()
		if ok && t != nil {
			return t.Execute(w, data)
		}
	}

	mainPath := filepath.Join(baseDir, name)
	if _, err := os.Stat(mainPath); err != nil {
		return err
	}
	contentBytes, err := os.ReadFile(mainPath)
	if err != nil {
		return err
	}

	var t *template.Template
	layoutPath := filepath.Join(baseDir, "layout.html")
	useLayout := !bytes.Contains(bytes.ToLower(contentBytes), []byte("<!doctype"))
	if useLayout {
		if fi, err := os.Stat(layoutPath); err != nil || fi.IsDir() {
			useLayout = false
		}
	}
	if useLayout {
		files := []string{layoutPath, mainPath}
		for _, p := range partials() {
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				files = append(files, p)
			}
		}
		parsed, err := template.New("layout.html").Funcs(Funcs()).ParseFiles(files...)
		if err != nil {
			return err
		}
		t = parsed
	} else {
		parsed, err := template.New(name).Funcs(Funcs()).ParseFiles(mainPath)
		if err != nil {
			return err
		}
		t = parsed
	}

	if !devMode {
		tplCache.Lock()
		tplCache.m[key] = t
		tplCache.Unlock()
	}
	if t == nil {
		return errors.New("template not cached")
	}
	return t.Execute(w, data)
}

func partials() []string {
	return []string{
		filepath.Join(baseDir, "partials", "errors-alert.html"),
	}
}
