// Package export pushes staged sales orders into the target CRM: the
// auto-mapper resolves every sub-entity to a target identifier, the payload
// builder assembles the order document, and the sync processor sweeps READY
// tasks through the full export.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/roar"
	"github.com/ordersync/backend/internal/infrastructure/unleashed"
)

// ObjectMapper resolves one source sub-entity to its target identifier.
type ObjectMapper interface {
	MapObject(ctx context.Context, objectType string, data any) (*roar.MappingResult, error)
}

// CustomerReader fetches the full customer record and its contacts from the
// source system, for embedding into the customer mapping call.
type CustomerReader interface {
	FetchCustomer(ctx context.Context, guid string) (map[string]any, error)
	FetchCustomerContacts(ctx context.Context, customerGuid string) ([]json.RawMessage, error)
}

// AutoMapper resolves every sub-entity present on a sales order to a target
// identifier. Mapping is all-or-nothing: one failure fails the order.
type AutoMapper struct {
	target ObjectMapper
	source CustomerReader
	logger *zap.Logger
}

// NewAutoMapper creates an AutoMapper bound to one target session.
func NewAutoMapper(target ObjectMapper, source CustomerReader, logger *zap.Logger) *AutoMapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoMapper{
		target: target,
		source: source,
		logger: logger.Named("automapper"),
	}
}

// mappingJob is one deferred mapping call.
type mappingJob struct {
	objectType string
	body       any
}

// CreateAutoMapping maps each sub-entity present on the order and returns the
// resolved identifiers in a stable order. The customer mapping embeds the full
// customer record, its contacts, and the identifiers of its salesperson,
// default warehouse and tax, which are resolved up front. Everything else runs
// concurrently; any failure fails the whole mapping.
func (m *AutoMapper) CreateAutoMapping(ctx context.Context, order *unleashed.SalesOrder) ([]roar.MappingResult, error) {
	var jobs []mappingJob

	if order.Customer != nil {
		body, err := m.buildCustomerBody(ctx, order)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, mappingJob{objectType: "customer", body: body})
	}

	if order.Tax != nil {
		body, err := structToMap(order.Tax)
		if err != nil {
			return nil, fmt.Errorf("%w: tax: %v", pipeline.ErrMappingFailed, err)
		}
		// The target wants the tax code echoed as the description
		body["description"] = order.Tax.TaxCode
		jobs = append(jobs, mappingJob{objectType: "tax", body: body})
	}

	if order.Currency != nil {
		jobs = append(jobs, mappingJob{objectType: "currency", body: order.Currency})
	}

	if order.Warehouse != nil {
		jobs = append(jobs, mappingJob{objectType: "warehouse", body: order.Warehouse})
	}

	if order.DeliveryContact != nil && order.Customer != nil {
		jobs = append(jobs, mappingJob{objectType: "deliveryContact", body: map[string]any{
			"customer_code": order.Customer.CustomerCode,
			"first_name":    order.DeliveryContact.FirstName,
			"last_name":     order.DeliveryContact.LastName,
			"email":         order.DeliveryContact.EmailAddress,
			"default":       true,
		}})
	}

	if order.SalesPerson != nil {
		jobs = append(jobs, mappingJob{objectType: "salesPerson", body: order.SalesPerson})
	}

	if order.SalesOrderGroup != nil {
		jobs = append(jobs, mappingJob{objectType: "salesOrderGroup", body: order.SalesOrderGroup})
	}

	results := make([]roar.MappingResult, len(jobs))
	errs := make([]error, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job mappingJob) {
			defer wg.Done()
			result, err := m.target.MapObject(ctx, job.objectType, job.body)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = *result
		}(i, job)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			m.logger.Error("auto-mapping failed",
				zap.String("orderGuid", order.Guid),
				zap.Error(err),
			)
			return nil, err
		}
	}

	m.logger.Info("auto-mapping complete",
		zap.String("orderGuid", order.Guid),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// buildCustomerBody assembles the customer mapping body: the full source
// customer record overlaid with its contacts and the target identifiers of
// the order's salesperson, warehouse and tax. Those three are resolved here,
// before the concurrent batch, because the customer call embeds their ids.
func (m *AutoMapper) buildCustomerBody(ctx context.Context, order *unleashed.SalesOrder) (map[string]any, error) {
	customer, err := m.source.FetchCustomer(ctx, order.Customer.Guid)
	if err != nil {
		return nil, fmt.Errorf("%w: customer fetch: %v", pipeline.ErrMappingFailed, err)
	}
	contacts, err := m.source.FetchCustomerContacts(ctx, order.Customer.Guid)
	if err != nil {
		return nil, fmt.Errorf("%w: customer contacts fetch: %v", pipeline.ErrMappingFailed, err)
	}

	var salesPersonID, warehouseID, taxID any
	if order.SalesPerson != nil {
		result, err := m.target.MapObject(ctx, "salesPerson", order.SalesPerson)
		if err != nil {
			return nil, err
		}
		salesPersonID = result.ID
	}
	if order.Warehouse != nil {
		result, err := m.target.MapObject(ctx, "warehouse", order.Warehouse)
		if err != nil {
			return nil, err
		}
		warehouseID = result.ID
	}
	if order.Tax != nil {
		result, err := m.target.MapObject(ctx, "tax", order.Tax)
		if err != nil {
			return nil, err
		}
		taxID = result.ID
	}

	customer["SalesPerson"] = salesPersonID
	customer["DefaultWarehouse"] = warehouseID
	customer["TaxRate"] = taxID
	customer["TaxCode"] = ""
	customer["contacts"] = contacts
	return customer, nil
}

// structToMap re-encodes a struct as a generic document so extra keys can be
// overlaid before sending.
func structToMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
