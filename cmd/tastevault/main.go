package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tastevault/tastevault/client"
	"github.com/tastevault/tastevault/internal/config"
	"github.com/tastevault/tastevault/internal/infra/database"
	"github.com/tastevault/tastevault/internal/infra/gateway"
	"github.com/tastevault/tastevault/internal/infra/repository"
	"github.com/tastevault/tastevault/internal/present/rest"
	authmiddleware "github.com/tastevault/tastevault/internal/present/rest/middleware"
	"github.com/tastevault/tastevault/internal/service"
	"github.com/tastevault/tastevault/internal/usecase"
)

func main() {
	configPath := os.Getenv("TASTEVAULT_CONFIG")
	if configPath == "" {
		configPath = "/etc/tastevault/config.yaml"
	}

	conf, err := config.Load(configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		panic("failed to connect database")
	}

	err = database.MigratePostgres(db)
	if err != nil {
		panic("failed to migrate database")
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	if conf.Server.EnableTrace {
		ctx := context.Background()
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(conf.Server.TraceEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			panic("failed to init trace exporter: " + err.Error())
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
		)
		otel.SetTracerProvider(tp)
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("Trace provider shutdown failed",
					slog.String("error", err.Error()),
					slog.String("module", "main"),
				)
			}
		}()
	}

	recipeRepo := repository.NewRecipeRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	versioningRepo := repository.NewVersioningRepository(db)
	categoryRepo := repository.NewCategoryRepository(db, mc)

	modelClient := client.New(conf.Model.Endpoint, conf.Model.APIKey, conf.Model.Name)
	suggestionGateway := gateway.NewSuggestionGateway(modelClient)

	signal := service.NewSignalService(rdb)

	recipeUC := usecase.NewRecipeUsecase(recipeRepo, versioningRepo, categoryRepo, signal)
	versioningUC := usecase.NewVersioningUsecase(versionRepo, versioningRepo, signal)
	suggestionUC := usecase.NewSuggestionUsecase(recipeRepo, versionRepo, suggestionGateway)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("tastevault"))
	}

	auth := authmiddleware.NewAuthMiddleware(rdb)
	e.Use(auth.IdentifyOwner)

	handler := rest.NewHandler(recipeUC, versioningUC, suggestionUC, signal)
	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(conf.Server.Listen))
}
