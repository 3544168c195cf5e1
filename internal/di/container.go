package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deskforge/api/internal/platform/config"
	"github.com/deskforge/api/internal/repositories"
	"github.com/deskforge/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	WorkOrders services.WorkOrderService
	Estimates  services.EstimateService
	Tickets    services.TicketService
	Customers  services.CustomerService
	Catalog    services.CatalogService
	Counters   services.CounterService
	Audit      services.AuditLogService
	System     services.SystemService
}

// ContainerDeps carries the externally provided collaborators for the container.
type ContainerDeps struct {
	Config   config.Config
	Registry repositories.Registry
	Events   services.EventPublisher
	Payments services.PaymentProvider
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories, services, and supporting infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides the Postgres
// registry, while tests can supply stub registries and publishers.
func NewContainer(ctx context.Context, deps ContainerDeps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       deps.Config,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients and pooled connections.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(deps ContainerDeps) (Services, error) {
	reg := deps.Registry
	var svc Services

	auditSvc, err := services.NewAuditLogService(services.AuditLogServiceDeps{
		Repository: reg.AuditLogs(),
		Clock:      time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build audit log service: %w", err)
	}
	svc.Audit = auditSvc

	counterSvc, err := services.NewCounterService(services.CounterServiceDeps{
		Repository: reg.Counters(),
		Clock:      time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build counter service: %w", err)
	}
	svc.Counters = counterSvc

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Clock:            time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Items:    reg.CatalogItems(),
		TaxRates: reg.TaxRates(),
		Audit:    svc.Audit,
		Clock:    time.Now,
		Logger:   deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	customerSvc, err := services.NewCustomerService(services.CustomerServiceDeps{
		Customers: reg.Customers(),
		Events:    deps.Events,
		Clock:     time.Now,
		Logger:    deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build customer service: %w", err)
	}
	svc.Customers = customerSvc

	ticketSvc, err := services.NewTicketService(services.TicketServiceDeps{
		Tickets: reg.Tickets(),
		Events:  deps.Events,
		Audit:   svc.Audit,
		Clock:   time.Now,
		Logger:  deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build ticket service: %w", err)
	}
	svc.Tickets = ticketSvc

	workOrderSvc, err := services.NewWorkOrderService(services.WorkOrderServiceDeps{
		WorkOrders:  reg.WorkOrders(),
		LineItems:   reg.LineItems(),
		CatalogItem: reg.CatalogItems(),
		TaxRates:    reg.TaxRates(),
		Customers:   reg.Customers(),
		Numbers:     svc.Counters,
		UnitOfWork:  reg,
		Payments:    deps.Payments,
		Events:      deps.Events,
		Audit:       svc.Audit,
		Clock:       time.Now,
		Logger:      deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build work order service: %w", err)
	}
	svc.WorkOrders = workOrderSvc

	estimateSvc, err := services.NewEstimateService(services.EstimateServiceDeps{
		Estimates:   reg.Estimates(),
		WorkOrders:  reg.WorkOrders(),
		LineItems:   reg.LineItems(),
		CatalogItem: reg.CatalogItems(),
		TaxRates:    reg.TaxRates(),
		Customers:   reg.Customers(),
		Numbers:     svc.Counters,
		UnitOfWork:  reg,
		Events:      deps.Events,
		Audit:       svc.Audit,
		Clock:       time.Now,
		Logger:      deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build estimate service: %w", err)
	}
	svc.Estimates = estimateSvc

	return svc, nil
}
