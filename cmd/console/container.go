package main

import (
	"context"

	"github.com/patient-feedback/survey-console/internal/backend"
	"github.com/patient-feedback/survey-console/internal/cache"
	"github.com/patient-feedback/survey-console/internal/config"
	"github.com/patient-feedback/survey-console/internal/events"
	"github.com/patient-feedback/survey-console/internal/handlers"
	"github.com/patient-feedback/survey-console/internal/repositories"
	"github.com/patient-feedback/survey-console/internal/repositories/postgres"
	"github.com/patient-feedback/survey-console/internal/services"
	"github.com/patient-feedback/survey-console/internal/utils"
	"github.com/patient-feedback/survey-console/internal/validator"
	"github.com/patient-feedback/survey-console/pkg"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"gorm.io/gorm"
)

func NewContainer(cfg *config.Config) *do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, utils.NewLogger(cfg.Environment))

	do.Provide(injector, func(i *do.Injector) (*gorm.DB, error) {
		return pkg.InitDatabase(do.MustInvoke[*config.Config](i))
	})

	do.Provide(injector, func(i *do.Injector) (repositories.SaveAuditRepository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if !cfg.AuditEnabled {
			return repositories.NewNoopSaveAuditRepository(), nil
		}
		db, err := do.Invoke[*gorm.DB](i)
		if err != nil {
			return nil, err
		}
		return postgres.NewSaveAuditPostgreSQL(db), nil
	})

	do.Provide(injector, func(i *do.Injector) (*redis.Client, error) {
		return pkg.NewRedisClient(context.Background(), do.MustInvoke[*config.Config](i))
	})

	do.Provide(injector, func(i *do.Injector) (cache.CacheService, error) {
		client, err := do.Invoke[*redis.Client](i)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisCache(client, do.MustInvoke[utils.Logger](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*config.EventBus, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return cfg.Events.CreateEventBus(do.MustInvoke[utils.Logger](i).Slog())
	})

	do.Provide(injector, func(i *do.Injector) (events.EventPublisher, error) {
		bus, err := do.Invoke[*config.EventBus](i)
		if err != nil {
			return nil, err
		}
		return bus.Publisher, nil
	})

	do.Provide(injector, func(i *do.Injector) (backend.TemplateAPI, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return backend.NewClient(backend.ClientConfig{
			BaseURL: cfg.BackendURL,
			Timeout: cfg.BackendTimeout,
			Logger:  do.MustInvoke[utils.Logger](i),
		}), nil
	})

	do.Provide(injector, func(i *do.Injector) (*validator.Validator, error) {
		return validator.New(), nil
	})

	do.Provide(injector, func(i *do.Injector) (services.TemplateService, error) {
		api, err := do.Invoke[backend.TemplateAPI](i)
		if err != nil {
			return nil, err
		}
		cacheService, err := do.Invoke[cache.CacheService](i)
		if err != nil {
			return nil, err
		}
		publisher, err := do.Invoke[events.EventPublisher](i)
		if err != nil {
			return nil, err
		}
		audits, err := do.Invoke[repositories.SaveAuditRepository](i)
		if err != nil {
			return nil, err
		}
		cfg := do.MustInvoke[*config.Config](i)
		return services.NewTemplateService(api, cacheService, publisher, audits, do.MustInvoke[utils.Logger](i), services.TemplateServiceConfig{
			CacheTTL: cfg.TemplateCacheTTL,
		}), nil
	})

	do.Provide(injector, func(i *do.Injector) (services.EditorService, error) {
		templates, err := do.Invoke[services.TemplateService](i)
		if err != nil {
			return nil, err
		}
		return services.NewEditorService(templates, do.MustInvoke[*validator.Validator](i), do.MustInvoke[utils.Logger](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (services.ExportService, error) {
		editors, err := do.Invoke[services.EditorService](i)
		if err != nil {
			return nil, err
		}
		return services.NewExportService(editors, do.MustInvoke[utils.Logger](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*handlers.HandlerManager, error) {
		templates, err := do.Invoke[services.TemplateService](i)
		if err != nil {
			return nil, err
		}
		editors, err := do.Invoke[services.EditorService](i)
		if err != nil {
			return nil, err
		}
		exports, err := do.Invoke[services.ExportService](i)
		if err != nil {
			return nil, err
		}
		return handlers.NewHandlerManager(
			templates,
			editors,
			exports,
			do.MustInvoke[*validator.Validator](i),
			do.MustInvoke[utils.Logger](i),
		), nil
	})

	return injector
}
