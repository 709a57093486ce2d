package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patient-feedback/survey-console/internal/config"
	"github.com/patient-feedback/survey-console/internal/handlers"
	"github.com/patient-feedback/survey-console/internal/repositories/postgres"
	"github.com/patient-feedback/survey-console/internal/services"
	"github.com/patient-feedback/survey-console/internal/utils"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const idleSweepInterval = time.Minute

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	container := NewContainer(cfg)

	app := &cli.App{
		Name:  "survey-console",
		Usage: "survey template question editor",
		Commands: []*cli.Command{
			commandServer(container),
			commandMigrate(container),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandServer(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "start the console API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "serve address, defaults to :$PORT",
			},
		},
		Action: func(c *cli.Context) error {
			cfg := do.MustInvoke[*config.Config](container)
			logger := do.MustInvoke[utils.Logger](container)
			defer closeResources(container, logger)

			manager, err := do.Invoke[*handlers.HandlerManager](container)
			if err != nil {
				return err
			}
			editors := do.MustInvoke[services.EditorService](container)
			bus := do.MustInvoke[*config.EventBus](container)

			if cfg.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}
			router := gin.New()
			router.Use(gin.Recovery(), utils.LoggerMiddleware(logger), utils.ContextLogger(logger))
			manager.SetupRoutes(router)

			addr := c.String("addr")
			if addr == "" {
				addr = ":" + cfg.Port
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errWg, errCtx := errgroup.WithContext(ctx)

			errWg.Go(func() error {
				logger.Info("ListenAndServe", "addr", addr, "environment", cfg.Environment)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})

			errWg.Go(func() error {
				ticker := time.NewTicker(idleSweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-errCtx.Done():
						return nil
					case <-ticker.C:
						if closed := editors.CloseIdle(cfg.EditorIdleTimeout); closed > 0 {
							logger.Info("Closed idle editor sessions", "count", closed)
						}
					}
				}
			})

			if bus.Consumer != nil {
				// losing the consumer only stops stale marking; the API keeps serving
				errWg.Go(func() error {
					if err := bus.Consumer.Run(errCtx, editors.HandleTemplateEvent); err != nil {
						logger.Error("Template event consumer stopped", "error", err)
					}
					return nil
				})
			}

			errWg.Go(func() error {
				<-errCtx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			return errWg.Wait()
		},
	}
}

func commandMigrate(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create or update the question save audit table",
		Action: func(c *cli.Context) error {
			logger := do.MustInvoke[utils.Logger](container)
			db, err := do.Invoke[*gorm.DB](container)
			if err != nil {
				return err
			}
			if err := postgres.Migrate(c.Context, db); err != nil {
				return err
			}
			logger.Info("Audit table migrated")
			return nil
		},
	}
}

// closeResources releases the event bus and redis connection built for the server.
func closeResources(container *do.Injector, logger utils.Logger) {
	if bus, err := do.Invoke[*config.EventBus](container); err == nil && bus != nil {
		if err := bus.Close(); err != nil {
			logger.Warn("Failed to close event bus", "error", err)
		}
	}
	if client, err := do.Invoke[*redis.Client](container); err == nil && client != nil {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close redis client", "error", err)
		}
	}
}
