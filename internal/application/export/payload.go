package export

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ordersync/backend/internal/infrastructure/roar"
	"github.com/ordersync/backend/internal/infrastructure/unleashed"
)

// SalesOrderPayload is the document submitted to the target's sales order
// upsert endpoint. Identifier fields carry the ids resolved by auto-mapping;
// address fields come from the order's warehouse.
type SalesOrderPayload struct {
	TaxRate             string          `json:"tax_rate,omitempty"`
	Warehouse           string          `json:"warehouse,omitempty"`
	DeliveryMethod      string          `json:"delivery_method,omitempty"`
	CustomerID          string          `json:"customer_id,omitempty"`
	CustomerRef         string          `json:"CustomerRef,omitempty"`
	Discount            decimal.Decimal `json:"discount"`
	DeliveryInstruction string          `json:"delivery_instruction,omitempty"`
	DeliveryContact     string          `json:"delivery_contact,omitempty"`
	AddressLine1        string          `json:"address_line_1,omitempty"`
	AddressLine2        string          `json:"address_line_2,omitempty"`
	Suburb              string          `json:"suburb,omitempty"`
	City                string          `json:"city,omitempty"`
	State               string          `json:"state,omitempty"`
	PinCode             string          `json:"pin_code,omitempty"`
	Country             string          `json:"country,omitempty"`
	OrderDate           *time.Time      `json:"order_date"`
	RequiredDate        *time.Time      `json:"required_date"`
	Comment             string          `json:"comment,omitempty"`
}

// BuildSalesOrderPayload assembles the upsert document from the staged order
// and the identifiers resolved by auto-mapping.
func BuildSalesOrderPayload(order *unleashed.SalesOrder, mappings []roar.MappingResult) *SalesOrderPayload {
	p := &SalesOrderPayload{
		TaxRate:             findMapping(mappings, "tax"),
		Warehouse:           findMapping(mappings, "warehouse"),
		DeliveryMethod:      findMapping(mappings, "delivery"),
		CustomerID:          findMapping(mappings, "customer"),
		CustomerRef:         order.CustomerRef,
		Discount:            order.DiscountRate,
		DeliveryInstruction: order.DeliveryInstruction,
		DeliveryContact:     findMapping(mappings, "deliveryContact"),
		OrderDate:           unleashed.ParseDotNetDate(order.OrderDate),
		RequiredDate:        unleashed.ParseDotNetDate(order.RequiredDate),
		Comment:             order.Comments,
	}

	if order.Warehouse != nil {
		p.AddressLine1 = order.Warehouse.AddressLine1
		p.AddressLine2 = order.Warehouse.AddressLine2
		p.Suburb = order.Warehouse.Suburb
		p.City = order.Warehouse.City
		p.State = order.Warehouse.Region
		p.PinCode = order.Warehouse.PostCode
		p.Country = order.Warehouse.Country
	}

	return p
}

// findMapping returns the first resolved identifier for an object type, or ""
// when that type was not mapped.
func findMapping(mappings []roar.MappingResult, objectType string) string {
	for _, m := range mappings {
		if m.ObjectType == objectType {
			return m.ID
		}
	}
	return ""
}
