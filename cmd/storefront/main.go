package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"google.golang.org/grpc"

	"github.com/peaknutrition/storefront/cartstore"
	"github.com/peaknutrition/storefront/catalog"
	"github.com/peaknutrition/storefront/web"
)

const (
	serviceName    = "storefront"
	serviceVersion = "v1.0.0"
	defaultPort    = "8080"
)

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.Level = logrus.DebugLevel
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
}

func main() {
	ctx := context.Background()

	// 1) Initialize OpenTelemetry TracerProvider and MeterProvider.
	tp, err := initTracerProvider(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer provider: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	mp, err := initMeterProvider(ctx)
	if err != nil {
		log.Fatalf("failed to initialize meter provider: %v", err)
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down meter provider: %v", err)
		}
	}()

	// 2) Load the product catalog.
	cat, catalogPath, err := loadCatalog()
	if err != nil {
		log.Fatalf("failed to load catalog: %v", err)
	}
	log.Infof("catalog loaded with %d products in %d categories", len(cat.Products()), len(cat.Categories()))
	if catalogPath != "" {
		go reloadOnSIGHUP(cat, catalogPath)
	}

	// 3) Create the session cart store. REDIS_ADDR selects the Redis-backed
	// store; otherwise carts live in process memory.
	var store cartstore.Store
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		if !strings.Contains(redisAddr, ":") {
			redisAddr = redisAddr + ":6379"
		}
		log.Infof("using redis cart store at %s", redisAddr)
		store, err = cartstore.NewRedisStore(redisAddr, cat, log)
		if err != nil {
			log.Fatalf("failed to create redis cart store: %v", err)
		}
	} else {
		log.Info("using in-memory cart store")
		store = cartstore.NewLocalStore(cat)
	}
	if err := store.Initialize(ctx); err != nil {
		log.Fatalf("failed to initialize cart store: %v", err)
	}

	// 4) Start the HTTP server.
	port := defaultPort
	if value, ok := os.LookupEnv("PORT"); ok {
		port = value
	}
	addr := fmt.Sprintf(":%s", port)

	srv := &http.Server{
		Addr:    addr,
		Handler: web.NewServer(log, cat, store).Router(),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("received shutdown signal, initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("graceful shutdown failed: %v", err)
		}
	}()

	log.Infof("storefront server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("failed to serve: %v", err)
	}
}

// loadCatalog reads PRODUCT_CATALOG_FILE when set, falling back to the
// embedded seed catalog. The path is returned so the caller can wire reload.
func loadCatalog() (*catalog.Catalog, string, error) {
	if path := os.Getenv("PRODUCT_CATALOG_FILE"); path != "" {
		log.Infof("loading catalog from %s", path)
		cat, err := catalog.Load(path)
		return cat, path, err
	}
	cat, err := catalog.New()
	return cat, "", err
}

// reloadOnSIGHUP re-reads the catalog file whenever the process receives
// SIGHUP, keeping the previous catalog on parse errors.
func reloadOnSIGHUP(cat *catalog.Catalog, path string) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	for range sigChan {
		if err := cat.ReloadFile(path); err != nil {
			log.Errorf("catalog reload failed: %v", err)
			continue
		}
		log.Infof("catalog reloaded from %s", path)
	}
}

// initTracerProvider initializes an OpenTelemetry TracerProvider and sets up the OTLP exporter.
// The Collector endpoint is specified via the OTEL_EXPORTER_OTLP_ENDPOINT environment variable.
// Example: OTEL_EXPORTER_OTLP_ENDPOINT=otel-collector:4317
func initTracerProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	// 1) Configure OTLP gRPC exporter.
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	// 2) Set up resource information (service name, version, etc.).
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// 3) Build TracerProvider.
	bsp := sdktrace.NewBatchSpanProcessor(exporter)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()), // Consider TraceIDRatioBased for production.
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)
	otel.SetTracerProvider(tp)

	// 4) Configure to use W3C Trace Context.
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, nil
}

// initMeterProvider initializes an OpenTelemetry MeterProvider and sets up the OTLP exporter.
// The Collector endpoint is specified via the OTEL_EXPORTER_OTLP_ENDPOINT environment variable.
func initMeterProvider(ctx context.Context) (*sdkmetric.MeterProvider, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithDialOption(grpc.WithBlock()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(10*time.Second))),
	)
	otel.SetMeterProvider(meterProvider)

	return meterProvider, nil
}
