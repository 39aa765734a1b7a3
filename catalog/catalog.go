// Package catalog loads the canteen food catalog from local or remote storage.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"canteenadvisor"
)

// Menu is the on-disk catalog document.
type Menu struct {
	Items []canteenadvisor.FoodItem `json:"items"`
}

// Decode parses a catalog document and validates each item. Item ids must be unique.
func Decode(data []byte) ([]canteenadvisor.FoodItem, error) {
	var menu Menu
	if err := json.Unmarshal(data, &menu); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(menu.Items))
	for i, it := range menu.Items {
		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("invalid catalog item at index %d: %w", i, err)
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog item id %q", it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	return menu.Items, nil
}

// Load reads and decodes the catalog from state.
func Load(ctx context.Context, state State) ([]canteenadvisor.FoodItem, error) {
	data, err := state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	items, err := Decode(data)
	if err != nil {
		return nil, err
	}
	slog.Info("CATALOG: loaded", "items", len(items))
	return items, nil
}

// Dishes indexes catalog items by id.
type Dishes map[string]canteenadvisor.FoodItem

func NewDishes(items []canteenadvisor.FoodItem) Dishes {
	d := make(Dishes, len(items))
	for _, it := range items {
		d[it.ID] = it
	}
	return d
}

func (d Dishes) Lookup(id string) (canteenadvisor.FoodItem, bool) {
	it, ok := d[id]
	return it, ok
}
