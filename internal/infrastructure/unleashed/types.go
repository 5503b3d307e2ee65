package unleashed

import (
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Resource is a probe-able collection of the source API
type Resource string

const (
	ResourceProducts       Resource = "Products"
	ResourceSalesOrders    Resource = "SalesOrders"
	ResourcePurchaseOrders Resource = "PurchaseOrders"
	ResourceStockOnHand    Resource = "StockOnHand"
)

// Resources lists every probe-able collection
var Resources = []Resource{
	ResourceProducts,
	ResourceSalesOrders,
	ResourcePurchaseOrders,
	ResourceStockOnHand,
}

// Pagination is the paging metadata attached to every list response
type Pagination struct {
	NumberOfItems int `json:"NumberOfItems"`
	PageSize      int `json:"PageSize"`
	PageNumber    int `json:"PageNumber"`
	NumberOfPages int `json:"NumberOfPages"`
}

// Page is one page of a list response
type Page struct {
	Items      []json.RawMessage `json:"Items"`
	Pagination Pagination        `json:"Pagination"`
}

// CustomerRef is the customer reference embedded on a sales order
type CustomerRef struct {
	Guid         string `json:"Guid"`
	CustomerCode string `json:"CustomerCode"`
	CustomerName string `json:"CustomerName"`
}

// Warehouse is a source-system warehouse with its street address
type Warehouse struct {
	Guid          string `json:"Guid,omitempty"`
	WarehouseCode string `json:"WarehouseCode,omitempty"`
	WarehouseName string `json:"WarehouseName,omitempty"`
	AddressLine1  string `json:"AddressLine1,omitempty"`
	AddressLine2  string `json:"AddressLine2,omitempty"`
	Suburb        string `json:"Suburb,omitempty"`
	City          string `json:"City,omitempty"`
	Region        string `json:"Region,omitempty"`
	PostCode      string `json:"PostCode,omitempty"`
	Country       string `json:"Country,omitempty"`
}

// Tax is a source-system tax rate
type Tax struct {
	Guid        string          `json:"Guid,omitempty"`
	TaxCode     string          `json:"TaxCode,omitempty"`
	Description string          `json:"Description,omitempty"`
	TaxRate     decimal.Decimal `json:"TaxRate,omitempty"`
}

// Currency is a source-system currency
type Currency struct {
	Guid         string `json:"Guid,omitempty"`
	CurrencyCode string `json:"CurrencyCode,omitempty"`
	Description  string `json:"Description,omitempty"`
}

// SalesPerson is a source-system salesperson
type SalesPerson struct {
	Guid     string `json:"Guid,omitempty"`
	FullName string `json:"FullName,omitempty"`
	Email    string `json:"Email,omitempty"`
}

// DeliveryContact is the contact person on a sales order delivery
type DeliveryContact struct {
	Guid         string `json:"Guid,omitempty"`
	FirstName    string `json:"FirstName,omitempty"`
	LastName     string `json:"LastName,omitempty"`
	EmailAddress string `json:"EmailAddress,omitempty"`
}

// SalesOrderGroup is a source-system order group
type SalesOrderGroup struct {
	Guid      string `json:"Guid,omitempty"`
	GroupName string `json:"GroupName,omitempty"`
}

// SalesOrder is the full source record of a sales order, reduced to the
// fields the sync pipeline reads. Sub-entities are pointers so that absent
// ones stay nil and are not attempted during auto-mapping.
type SalesOrder struct {
	Guid                string           `json:"Guid"`
	OrderNumber         string           `json:"OrderNumber,omitempty"`
	OrderStatus         string           `json:"OrderStatus,omitempty"`
	CustomerRef         string           `json:"CustomerRef,omitempty"`
	DiscountRate        decimal.Decimal  `json:"DiscountRate,omitempty"`
	DeliveryInstruction string           `json:"DeliveryInstruction,omitempty"`
	Comments            string           `json:"Comments,omitempty"`
	OrderDate           string           `json:"OrderDate,omitempty"`
	RequiredDate        string           `json:"RequiredDate,omitempty"`
	Customer            *CustomerRef     `json:"Customer,omitempty"`
	Warehouse           *Warehouse       `json:"Warehouse,omitempty"`
	Tax                 *Tax             `json:"Tax,omitempty"`
	Currency            *Currency        `json:"Currency,omitempty"`
	SalesPerson         *SalesPerson     `json:"SalesPerson,omitempty"`
	DeliveryContact     *DeliveryContact `json:"DeliveryContact,omitempty"`
	SalesOrderGroup     *SalesOrderGroup `json:"SalesOrderGroup,omitempty"`
}

var dotNetDatePattern = regexp.MustCompile(`/Date\((\d+)\)/`)

// ParseDotNetDate parses the source API's embedded-epoch date format, e.g.
// "/Date(1759536000000)/". Returns nil when the value does not match.
func ParseDotNetDate(value string) *time.Time {
	match := dotNetDatePattern.FindStringSubmatch(value)
	if match == nil {
		return nil
	}
	ms, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
