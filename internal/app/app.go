package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/goldmanhw/storefront/config"
	"github.com/goldmanhw/storefront/internal/adapter"
	"github.com/goldmanhw/storefront/internal/adapter/httphandler"
	"github.com/goldmanhw/storefront/internal/adapter/imaging"
	"github.com/goldmanhw/storefront/internal/adapter/kafka"
	"github.com/goldmanhw/storefront/internal/adapter/metrics"
	"github.com/goldmanhw/storefront/internal/adapter/objectstore"
	"github.com/goldmanhw/storefront/internal/adapter/storage"
	"github.com/goldmanhw/storefront/internal/core/catalog"
	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
	"github.com/goldmanhw/storefront/internal/core/service"
	"github.com/goldmanhw/storefront/pkg/schema"
	"github.com/gorilla/websocket"
	"github.com/twmb/franz-go/pkg/sr"
)

type outbound struct {
	feeds   map[domain.Collection]*kafka.CollectionFeed
	emitter *kafka.EntryEmitter
	sqldb   storage.SQLDB
	entries storage.EntriesRepository
	images  *objectstore.S3Images
}

type App struct {
	ctx        context.Context
	cfg        config.Config
	tlsConfig  *tls.Config
	metrics    *metrics.Metrics
	serdes     map[domain.Collection]schema.Serde
	outbound   outbound
	service    *service.Service
	mirror     *service.Mirror
	engines    map[domain.Collection]*catalog.Engine
	httpServer httphandler.HTTPServer
	wg         sync.WaitGroup
}

func New(ctx context.Context, config config.Config) *App {
	app := &App{ctx: ctx, cfg: config, metrics: metrics.New()}

	app.initLogger()
	app.initTLS()
	app.initSerdes()
	app.initOutboundAdapters()
	app.initCoreService()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initTLS() {
	t := app.cfg.Broker.TLS
	if t.Enabled() {
		app.tlsConfig = adapter.MakeTLSConfig(t.CA, t.Cert, t.Key)
	}
}

func (app *App) topics() map[domain.Collection]string {
	return map[domain.Collection]string{
		domain.Products: app.cfg.Broker.Topics.Products,
		domain.Offers:   app.cfg.Broker.Topics.Offers,
	}
}

func (app *App) initSerdes() {
	const op = "App.initSerdes"

	srClient, err := sr.NewClient(sr.URLs(app.cfg.Broker.SchemaRegistryURLs...))
	if err != nil {
		app.fallDown(op, err)
	}
	schemaIdentifier := schema.NewSchemaIdentifier(srClient)

	app.serdes = make(map[domain.Collection]schema.Serde)
	for c, topic := range app.topics() {
		serde, err := schema.NewSerdeEntryV1(
			app.ctx,
			schema.SubjectOpt(topic+"-value"),
			schema.SchemaIdentifierOpt(schemaIdentifier),
		)
		if err != nil {
			app.fallDown(op, err)
		}
		app.serdes[c] = serde
	}
}

func (app *App) initOutboundAdapters() {
	const op = "App.initOutboundAdapters"

	seedBrokers := app.cfg.Broker.SeedBrokers

	app.outbound.feeds = make(map[domain.Collection]*kafka.CollectionFeed)
	for c, topic := range app.topics() {
		feed, err := kafka.NewCollectionFeed(
			kafka.FeedClientOpt(seedBrokers, topic, app.tlsConfig),
			kafka.FeedDecoderOpt(app.serdes[c]),
			kafka.FeedCollectionOpt(c),
			kafka.FeedObserverOpt(app.metrics),
		)
		if err != nil {
			app.fallDown(op, err)
		}
		app.outbound.feeds[c] = feed
	}

	encoders := make(map[domain.Collection]kafka.Serde)
	for c, serde := range app.serdes {
		encoders[c] = serde
	}
	emitter, err := kafka.NewEntryEmitter(kafka.EntryEmitterConfig{
		SeedBrokers: seedBrokers,
		Topics:      app.topics(),
		Encoders:    encoders,
		TLSConfig:   app.tlsConfig,
	})
	if err != nil {
		app.fallDown(op, err)
	}
	app.outbound.emitter = emitter

	sqldb, err := storage.NewSQLDB(app.ctx, app.cfg.SQLDB)
	if err != nil {
		app.fallDown(op, err)
	}
	app.outbound.sqldb = sqldb
	app.outbound.entries = storage.NewEntriesRepository(sqldb)

	imgs := app.cfg.Images
	images, err := objectstore.NewS3Images(app.ctx, objectstore.S3Config{
		Bucket:    imgs.Bucket,
		Region:    imgs.Region,
		Endpoint:  imgs.Endpoint,
		AccessKey: imgs.AccessKey,
		SecretKey: imgs.SecretKey,
		BaseURL:   imgs.BaseURL,
	})
	if err != nil {
		app.fallDown(op, err)
	}
	app.outbound.images = images
}

func (app *App) remoteFeeds() map[domain.Collection]port.RemoteFeed {
	feeds := make(map[domain.Collection]port.RemoteFeed)
	for c, feed := range app.outbound.feeds {
		feeds[c] = feed
	}
	return feeds
}

func (app *App) initCoreService() {
	imgs := app.cfg.Images
	app.service = service.New(
		app.outbound.emitter,
		app.outbound.entries,
		app.outbound.images,
		imaging.NewCompressor(imgs.MaxWidth, imgs.MaxHeight, imgs.Quality),
		imgs.MaxSize,
	)
	app.mirror = service.NewMirror(app.remoteFeeds(), app.outbound.entries)

	app.engines = make(map[domain.Collection]*catalog.Engine)
	for c, feed := range app.outbound.feeds {
		engine := catalog.New(feed, c)
		engine.Subscribe()
		app.engines[c] = engine
	}
}

func (app *App) initInboundAdapters() {
	admin := app.cfg.Admin
	auth := service.NewAuthenticator(
		admin.Email, admin.PasswordHash, admin.JWTSecret, admin.TokenTTL,
	)

	mux := http.NewServeMux()
	httphandler.RegisterCatalog(mux, httphandler.CatalogConfig{
		Ctx:      app.ctx,
		Engines:  app.engines,
		Feeds:    app.remoteFeeds(),
		Views:    app.metrics,
		Upgrader: &websocket.Upgrader{},
	})
	httphandler.RegisterAdmin(mux, httphandler.AdminConfig{
		Store:        app.service,
		Lister:       app.service,
		Uploader:     app.service,
		Auth:         auth,
		MaxImageSize: app.cfg.Images.MaxSize,
	})
	mux.Handle("GET /metrics", app.metrics.Handler())

	handler := app.metrics.Middleware(mux)
	app.httpServer = httphandler.NewHTTPServer(app.cfg.HTTPServerAddr, handler)
}

func (app *App) Run(stopFn context.CancelFunc) {
	for _, feed := range app.outbound.feeds {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			feed.Run(app.ctx)
		}()
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.mirror.Run(app.ctx)
	}()

	go app.httpServer.Run(stopFn)

	slog.Info("application is running")
}

// Close expects the Run context to be done.
func (app *App) Close(ctx context.Context) {
	slog.Info("application is closing...")

	for _, engine := range app.engines {
		engine.Unsubscribe()
	}
	app.httpServer.Close(ctx)
	app.wg.Wait()
	for _, feed := range app.outbound.feeds {
		feed.Close()
	}
	app.outbound.emitter.Close()
	app.outbound.sqldb.Close()

	slog.Info("application is closed")
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}
