// Package posterkit serves the poster editor: template picker, layered
// live preview with drag and zoom, background removal and PNG export.
//
// Each browser gets an editor session keyed by a cookie. Every editing
// call is applied to that session in arrival order; the server renders
// the preview as HTML and composites the final poster only on export.
package posterkit

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/eringen/posterkit/compositor"
	"github.com/eringen/posterkit/editor"
	"github.com/eringen/posterkit/export"
	"github.com/eringen/posterkit/removebg"
)

// App is the central posterkit application. It wires together the
// template store and cache, the editor sessions, the rendering pipeline,
// handlers and middleware.
type App struct {
	Config     Config
	Echo       *echo.Echo
	Log        *logrus.Logger
	Store      *Store
	Cache      *TemplateCache
	Sessions   *editor.Registry
	Compositor *compositor.Compositor
	Exporter   *export.Pipeline
	Remover    editor.Remover

	loader       compositor.Loader
	limiter      *RemovalLimiter
	customRoutes []func(*App)
	stopSweep    func()
}

// New creates a posterkit App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Log:    logrus.StandardLogger(),
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Setup opens the store, seeds the template catalog and registers
// middleware and routes. Start calls it; tests call it directly and
// drive a.Echo with httptest.
func (a *App) Setup() error {
	if a.Config.SessionSecret == "" {
		return errors.New("posterkit: SessionSecret is required")
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("posterkit: init store: %w", err)
	}
	a.Store = store
	if err := a.Store.Seed(a.Config.Templates); err != nil {
		return fmt.Errorf("posterkit: seed templates: %w", err)
	}
	a.Cache = NewTemplateCache(a.Store, a.Config.TemplateCacheTTL)

	copts := []compositor.Option{compositor.WithLogger(a.Log)}
	if a.loader == nil {
		a.loader = compositor.NewFSLoader(a.publicFS(), "/public/")
	}
	copts = append(copts, compositor.WithLoader(a.loader))
	if a.Config.FontPath != "" {
		ttf, err := os.ReadFile(a.Config.FontPath)
		if err != nil {
			return fmt.Errorf("posterkit: read font: %w", err)
		}
		copts = append(copts, compositor.WithFont(ttf))
	}
	a.Compositor = compositor.New(copts...)
	a.Exporter = export.NewPipeline(a.Compositor)

	if a.Remover == nil {
		client := removebg.NewClient(a.Config.RemoveBgEndpoint)
		client.Log = a.Log
		a.Remover = client
	}

	a.Sessions = editor.NewRegistry(a.Config.SessionTTL, a.Log)
	a.stopSweep = a.Sessions.StartSweeper(time.Minute)
	a.limiter = NewRemovalLimiter(a.Config.RemovalLimit, a.Config.RemovalWindow)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start sets the app up and serves until the server is shut down.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	a.Log.WithFields(logrus.Fields{
		"addr":      a.Config.Addr,
		"templates": len(a.Config.Templates),
	}).Info("posterkit listening")
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/public/*", echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(a.publicFS())))))

	e.GET("/", a.handleEditor)
	e.GET("/editor/stage", a.handleStage)
	e.GET("/editor/background", a.handleBackground)
	e.GET("/export/"+export.Filename, a.handleExport)

	api := e.Group("/api")
	api.GET("/templates", a.handleTemplates)
	api.GET("/editor/state", a.handleState)
	api.POST("/editor/template", a.handleSelectTemplate)
	api.POST("/editor/template/price-area", a.handleApplyPriceArea)
	api.POST("/editor/upload", a.handleUpload)
	api.POST("/editor/remove-background", a.handleRemoveBackground)
	api.POST("/editor/scale", a.handleScale)
	api.POST("/editor/font-size", a.handleFontSize)
	api.POST("/editor/price", a.handlePrice)
	api.POST("/editor/center", a.handleCenter)
	api.POST("/editor/toggle/:name", a.handleToggle)
	api.POST("/editor/pointer/:phase", a.handlePointer)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopSweep != nil {
		a.stopSweep()
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.Sessions != nil {
		a.Sessions.CloseAll()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
