// Package catalog holds the domain vocabulary shared by the publish pipeline,
// the resolver and the diff engine: catalog types, entity types, catalog codes
// and request-level validation.
package catalog

import (
	"strings"
	"time"
)

// Type is the catalog type. It is stored as ctype in the catalog table.
type Type int

const (
	TypeMain   Type = 1
	TypeCoupon Type = 2
)

// Types lists every catalog type in ctype order.
var Types = []Type{TypeMain, TypeCoupon}

// TypeDescription is the client error description for a bad catalog type.
const TypeDescription = "Parameter must have a value among : main,coupon"

func (t Type) String() string {
	switch t {
	case TypeMain:
		return "MAIN"
	case TypeCoupon:
		return "COUPON"
	default:
		return "UNKNOWN"
	}
}

// ParseType parses a catalog type case-insensitively.
func ParseType(s string) (Type, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MAIN":
		return TypeMain, true
	case "COUPON":
		return TypeCoupon, true
	default:
		return 0, false
	}
}

// EntityType describes one kind of catalog entity and where it lives in an archive.
type EntityType struct {
	Name    string
	ID      int
	File    string
	CodeKey string
	IDKey   string
}

// Entity types in etype order.
var (
	Currency       = EntityType{Name: "currency", ID: 1, File: "currencies.json", CodeKey: "currency_code", IDKey: "currency_id"}
	Entitlement    = EntityType{Name: "entitlement", ID: 2, File: "entitlements.json", CodeKey: "entitlement_code", IDKey: "entitlement_id"}
	Product        = EntityType{Name: "product", ID: 3, File: "products.json", CodeKey: "code", IDKey: "product_id"}
	Storefront     = EntityType{Name: "storefront", ID: 4, File: "storefronts.json", CodeKey: "code", IDKey: "storefront_id"}
	Override       = EntityType{Name: "override", ID: 5, File: "overrides.json", CodeKey: "code", IDKey: "override_id"}
	Promotion      = EntityType{Name: "promotion", ID: 6, File: "promotions.json", CodeKey: "code", IDKey: "promotion_id"}
	Coupon         = EntityType{Name: "coupon", ID: 7, File: "coupons.json", CodeKey: "code", IDKey: "coupon_id"}
	FilterProperty = EntityType{Name: "filter_property", ID: 8, File: "filter_properties.json", CodeKey: "code", IDKey: "filter_property_id"}
)

// EntityTypes lists every entity type in etype order.
var EntityTypes = []EntityType{
	Currency, Entitlement, Product, Storefront, Override, Promotion, Coupon, FilterProperty,
}

// EntityTypeDescription is the client error description for a bad entity type.
var EntityTypeDescription = func() string {
	names := make([]string, len(EntityTypes))
	for i, et := range EntityTypes {
		names[i] = et.Name
	}
	return "Parameter must have a value among : " + strings.Join(names, ",")
}()

// LookupEntityType finds an entity type by its API name.
func LookupEntityType(name string) (EntityType, bool) {
	for _, et := range EntityTypes {
		if et.Name == name {
			return et, true
		}
	}
	return EntityType{}, false
}

// EntityTypeByID finds an entity type by its etype column value.
func EntityTypeByID(id int) (EntityType, bool) {
	for _, et := range EntityTypes {
		if et.ID == id {
			return et, true
		}
	}
	return EntityType{}, false
}

// Catalog is one versioned snapshot row.
type Catalog struct {
	ID           int64      `db:"id" json:"-"`
	Code         string     `db:"code" json:"catalog_code"`
	TitleID      int64      `db:"title_id" json:"-"`
	TitleCode    string     `db:"title_code" json:"title_code"`
	Type         Type       `db:"ctype" json:"-"`
	Version      int        `db:"version" json:"version"`
	URL          string     `db:"url" json:"-"`
	ActivatedAt  *time.Time `db:"activated_at" json:"activated_at"`
	TerminatedAt *time.Time `db:"terminated_at" json:"terminated_at"`
}

// Active reports whether the catalog is the active one of its (title, type).
func (c Catalog) Active() bool {
	return c.ActivatedAt != nil && c.TerminatedAt == nil
}

// Title is a catalog owner.
type Title struct {
	ID          int64  `db:"id"`
	Code        string `db:"code"`
	FullTitleID string `db:"full_title_id"`
	Active      bool   `db:"active"`
}
