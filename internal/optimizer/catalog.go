package optimizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

// Field names reported when a product falls back to a default.
const (
	FieldCapacity    = "capacity"
	FieldUnitCost    = "unit_cost"
	FieldStorageCost = "storage_cost"
	FieldShelfLife   = "shelf_life_days"
	FieldUnitPrice   = "unit_price"
)

// Fallback is applied to products missing from the catalog.
var Fallback = domain.ProductConfig{
	Capacity:          1000,
	UnitCost:          0,
	StorageCostPerDay: 1.0,
	ShelfLifeDays:     30,
	UnitPrice:         100,
}

// DefaultProducts is the built-in product table.
func DefaultProducts() map[string]domain.ProductConfig {
	return map[string]domain.ProductConfig{
		"Milk":   {Capacity: 2000, UnitCost: 15, StorageCostPerDay: 0.5, ShelfLifeDays: 5, UnitPrice: 25},
		"Butter": {Capacity: 500, UnitCost: 300, StorageCostPerDay: 2.0, ShelfLifeDays: 30, UnitPrice: 450},
		"Cheese": {Capacity: 400, UnitCost: 250, StorageCostPerDay: 3.0, ShelfLifeDays: 45, UnitPrice: 350},
		"Yogurt": {Capacity: 800, UnitCost: 50, StorageCostPerDay: 1.0, ShelfLifeDays: 10, UnitPrice: 80},
		"Ghee":   {Capacity: 300, UnitCost: 400, StorageCostPerDay: 2.5, ShelfLifeDays: 90, UnitPrice: 600},
	}
}

// Catalog resolves product keys to their production reference data.
type Catalog struct {
	products map[string]domain.ProductConfig
}

func NewCatalog(products map[string]domain.ProductConfig) *Catalog {
	c := &Catalog{products: make(map[string]domain.ProductConfig, len(products))}
	for k, v := range products {
		c.products[k] = v
	}
	return c
}

// DefaultCatalog wraps DefaultProducts.
func DefaultCatalog() *Catalog { return NewCatalog(DefaultProducts()) }

// productOverride is one row of a products file. Fields left out keep the
// default value; an explicit zero is kept.
type productOverride struct {
	Capacity          *float64 `mapstructure:"capacity"`
	UnitCost          *float64 `mapstructure:"unit_cost"`
	StorageCostPerDay *float64 `mapstructure:"storage_cost"`
	ShelfLifeDays     *int     `mapstructure:"shelf_life_days"`
	UnitPrice         *float64 `mapstructure:"unit_price"`
}

// LoadCatalog reads a YAML or JSON file with a top-level "products" table on
// top of the defaults.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read products file %s: %w", path, err)
	}
	var overrides map[string]productOverride
	if err := v.UnmarshalKey("products", &overrides); err != nil {
		return nil, fmt.Errorf("decode products file %s: %w", path, err)
	}

	for name, o := range overrides {
		name = canonicalName(name, c.products)
		base, ok := c.products[name]
		if !ok {
			base = Fallback
		}
		merged, err := merge(base, o)
		if err != nil {
			return nil, fmt.Errorf("products file %s: %s: %w", path, name, err)
		}
		c.products[name] = merged
	}
	return c, nil
}

// viper lowercases keys, so restore the casing of known products.
func canonicalName(name string, known map[string]domain.ProductConfig) string {
	for k := range known {
		if strings.EqualFold(k, name) {
			return k
		}
	}
	return name
}

func merge(base domain.ProductConfig, o productOverride) (domain.ProductConfig, error) {
	if o.Capacity != nil {
		base.Capacity = *o.Capacity
	}
	if o.UnitCost != nil {
		base.UnitCost = *o.UnitCost
	}
	if o.StorageCostPerDay != nil {
		base.StorageCostPerDay = *o.StorageCostPerDay
	}
	if o.ShelfLifeDays != nil {
		base.ShelfLifeDays = *o.ShelfLifeDays
	}
	if o.UnitPrice != nil {
		base.UnitPrice = *o.UnitPrice
	}

	switch {
	case base.Capacity <= 0:
		return base, fmt.Errorf("%w: capacity must be positive", domain.ErrValidation)
	case base.ShelfLifeDays <= 0:
		return base, fmt.Errorf("%w: shelf life must be positive", domain.ErrValidation)
	case base.UnitCost < 0, base.StorageCostPerDay < 0, base.UnitPrice < 0:
		return base, fmt.Errorf("%w: costs and price must be non-negative", domain.ErrValidation)
	}
	return base, nil
}

// Products returns the configured product names, sorted.
func (c *Catalog) Products() []string {
	names := make([]string, 0, len(c.products))
	for k := range c.products {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves key to a product, ignoring case. A key scoped by company ("Amul Milk")
// matches the product it ends with. Unknown products get Fallback and every
// field is reported as defaulted.
func (c *Catalog) Lookup(key string) (cfg domain.ProductConfig, defaulted []string) {
	if cfg, ok := c.products[key]; ok {
		return cfg, nil
	}

	lower := strings.ToLower(key)
	best := ""
	for name := range c.products {
		n := strings.ToLower(name)
		if lower == n {
			return c.products[name], nil
		}
		if strings.HasSuffix(lower, " "+n) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return c.products[best], nil
	}
	return Fallback, []string{FieldCapacity, FieldUnitCost, FieldStorageCost, FieldShelfLife, FieldUnitPrice}
}

func warnDefaults(log zerolog.Logger, key string, fields []string) {
	for _, f := range fields {
		log.Warn().Str("product", key).Str("field", f).Msg("product not configured, using default")
	}
}
