// Package selector implements the grouped, searchable picker shared by the
// bill product dropdown and the catalog category field. It resolves a user's
// choice to either an existing option or a newly typed value; presentation
// (open/closed state, highlighting) stays in the UI layer.
package selector

import (
	"errors"
	"sort"
	"strings"
)

// AddNewCategory is a synthetic sentinel option value, never a real category.
// Selecting it reveals a required free-text field in the catalog editor.
const AddNewCategory = "Add New Category"

var ErrNewCategoryNameRequired = errors.New("new category name required")

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Group string `json:"group,omitempty"`
}

type Group struct {
	Name    string   `json:"name,omitempty"`
	Options []Option `json:"options"`
}

// Filter keeps options whose label contains the query, case-insensitively.
// A blank query keeps everything.
func Filter(options []Option, query string) []Option {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]Option(nil), options...)
	}
	var out []Option
	for _, opt := range options {
		if strings.Contains(strings.ToLower(opt.Label), q) {
			out = append(out, opt)
		}
	}
	return out
}

// Grouped buckets options by group. With sortGroups the groups come back in
// alphabetical order (the bill product picker needs a deterministic listing);
// otherwise first-seen order is kept. Options keep their relative order
// within each group either way. Ungrouped options form a single unnamed
// group placed first.
func Grouped(options []Option, sortGroups bool) []Group {
	byName := map[string][]Option{}
	var order []string
	for _, opt := range options {
		if _, seen := byName[opt.Group]; !seen {
			order = append(order, opt.Group)
		}
		byName[opt.Group] = append(byName[opt.Group], opt)
	}
	if sortGroups {
		sort.Slice(order, func(i, j int) bool {
			// The unnamed group sorts ahead of named ones.
			if order[i] == "" || order[j] == "" {
				return order[i] == ""
			}
			return order[i] < order[j]
		})
	}
	groups := make([]Group, 0, len(order))
	for _, name := range order {
		groups = append(groups, Group{Name: name, Options: byName[name]})
	}
	return groups
}

// Resolution is the outcome of resolving a query against the option list.
// Custom is set when the value did not come from the list.
type Resolution struct {
	Value  string `json:"value"`
	Label  string `json:"label"`
	Custom bool   `json:"custom"`
}

// Resolve matches the query against option values and labels,
// case-insensitively. When nothing matches and custom entries are allowed, a
// non-blank query resolves to itself verbatim (trimmed), covering the
// "add what I typed" affordance. The second return is false when nothing
// could be resolved.
func Resolve(options []Option, query string, allowCustom bool) (Resolution, bool) {
	q := strings.TrimSpace(query)
	if q == "" {
		return Resolution{}, false
	}
	lower := strings.ToLower(q)
	for _, opt := range options {
		if strings.ToLower(opt.Value) == lower || strings.ToLower(opt.Label) == lower {
			return Resolution{Value: opt.Value, Label: opt.Label}, true
		}
	}
	if !allowCustom {
		return Resolution{}, false
	}
	return Resolution{Value: q, Label: q, Custom: true}, true
}

// CategoryOptions builds the selector options for the catalog category
// field: one option per existing category plus the Add-New sentinel at the
// end.
func CategoryOptions(categories []string) []Option {
	opts := make([]Option, 0, len(categories)+1)
	for _, c := range categories {
		opts = append(opts, Option{Value: c, Label: c})
	}
	opts = append(opts, Option{Value: AddNewCategory, Label: AddNewCategory})
	return opts
}

// ResolveCategory turns the category field's submitted state into the final
// category value. With the Add-New sentinel selected, the free-text name is
// required; submitting it blank fails validation.
func ResolveCategory(selected, newName string) (string, error) {
	if selected == AddNewCategory {
		name := strings.TrimSpace(newName)
		if name == "" {
			return "", ErrNewCategoryNameRequired
		}
		return name, nil
	}
	value := strings.TrimSpace(selected)
	if value == "" {
		return "", ErrNewCategoryNameRequired
	}
	return value, nil
}
