// Command tango runs the Tango puzzle game server.
//
// Commands:
//  1. "serve" (default) runs the HTTP server exposing the REST API, WebSocket
//     feeds and an /mcp endpoint, optionally behind an ngrok tunnel
//  2. "mcp" runs an MCP stdio server for local agents
//  3. "validate" checks a level file and reports every problem found
//  4. "version" prints the version
//
// Settings come from defaults, the config file, TANGO_* environment variables
// and .env, with flags applied last.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/tango-game/api"
	"github.com/wricardo/tango-game/game/catalog"
	"github.com/wricardo/tango-game/game/progress"
	"github.com/wricardo/tango-game/game/service"
	"github.com/wricardo/tango-game/game/session"
	"github.com/wricardo/tango-game/settings"
	"github.com/wricardo/tango-game/transport/mcp"
	"github.com/wricardo/tango-game/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Tango Puzzle Server"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		logrus.Fatal(err)
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	serve := &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server with REST API, WebSocket and MCP endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
			&cli.StringFlag{Name: "port", Usage: "HTTP server port"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Expose the server through an ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)"},
		},
		Action: runServe,
	}

	return &cli.Command{
		Name:    "tango",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "levels", Usage: "Level file (default: the bundled levels)"},
			&cli.StringFlag{Name: "store", Usage: "Progress backend: memory, file or sqlite"},
			&cli.StringFlag{Name: "store-dir", Usage: "Directory for file progress"},
			&cli.StringFlag{Name: "sqlite-path", Usage: "Database file for sqlite progress"},
			&cli.StringFlag{Name: "timezone", Usage: "Timezone for the daily coin reset"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level"},
			&cli.StringFlag{Name: "log-format", Usage: "Log format: text or json"},
			&cli.BoolFlag{Name: "debug", Usage: "Shorthand for --log-level debug"},
		},
		Commands: []*cli.Command{
			serve,
			{
				Name:   "mcp",
				Usage:  "Run an MCP stdio server",
				Action: runMCP,
			},
			{
				Name:      "validate",
				Usage:     "Check a level file and print its diagnostics",
				ArgsUsage: "[levels.json]",
				Action:    runValidate,
			},
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "%s v%s\n", AppName, Version)
					return nil
				},
			},
		},
		Action: runServe,
	}
}

// loadSettings reads settings and applies the flags that were set
func loadSettings(cmd *cli.Command) (settings.Settings, error) {
	s, err := settings.Load()
	if err != nil {
		return s, err
	}

	override := func(flag string, dst *string) {
		if cmd.IsSet(flag) {
			*dst = cmd.String(flag)
		}
	}
	override("levels", &s.Levels.Path)
	override("store", &s.Store.Backend)
	override("store-dir", &s.Store.Dir)
	override("sqlite-path", &s.Store.SQLitePath)
	override("timezone", &s.Game.Timezone)
	override("log-level", &s.Log.Level)
	override("log-format", &s.Log.Format)
	override("host", &s.Server.Host)
	override("ngrok-domain", &s.Ngrok.Domain)

	if cmd.IsSet("port") {
		port, err := strconv.Atoi(cmd.String("port"))
		if err != nil || port <= 0 || port > 65535 {
			return s, fmt.Errorf("invalid port %q", cmd.String("port"))
		}
		s.Server.Port = port
	}
	if cmd.Bool("debug") {
		s.Log.Level = "debug"
	}
	if cmd.Bool("ngrok") {
		s.Ngrok.Enabled = true
	}
	return s, nil
}

func newLogger(s settings.Settings, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)
	if err := s.ConfigureLogger(log); err != nil {
		return nil, err
	}
	return log, nil
}

// game holds the wired services shared by the serve and mcp commands
type game struct {
	catalog *catalog.Catalog
	backend progress.Backend
	manager *session.Manager
	service service.GameService
}

// initializeGame wires the catalog, progress backend, player manager and game
// service. broadcaster may be nil.
func initializeGame(s settings.Settings, log logrus.FieldLogger, broadcaster service.Broadcaster) (*game, error) {
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}

	cat, _ := catalog.LoadOrEmpty(s.Levels.Path, catalog.WithLogger(log))

	backend, err := progress.OpenBackend(s.Store.Backend, s.Store.Dir, s.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress backend: %w", err)
	}

	manager := session.NewManager(cat, backend, log, session.WithLocation(loc))

	opts := []service.Option{service.WithLogger(log)}
	if broadcaster != nil {
		opts = append(opts, service.WithBroadcaster(broadcaster))
	}
	svc := service.NewGameService(manager, cat, opts...)

	if err := manager.LoadPersisted(); err != nil {
		log.WithError(err).Warn("failed to load persisted players")
	}

	return &game{catalog: cat, backend: backend, manager: manager, service: svc}, nil
}

// Close records open play sessions and releases the backend
func (g *game) Close(log logrus.FieldLogger) {
	g.manager.EndAll()
	if err := g.backend.Close(); err != nil {
		log.WithError(err).Warn("failed to close progress backend")
	}
}

// runServe starts the HTTP server with REST API, WebSocket hub and /mcp.
// If ngrok is enabled it also serves through a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(s, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	g, err := initializeGame(s, log, hub)
	if err != nil {
		return err
	}
	defer g.Close(log)

	mcpServer := mcp.NewServer(g.service, log)
	handler := api.NewServer(g.service, hub, api.WithLogger(log), api.WithMCPHandler(mcpServer))

	addr := s.Address()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.WithFields(logrus.Fields{
			"addr":      addr,
			"api":       fmt.Sprintf("http://%s/api", addr),
			"websocket": fmt.Sprintf("ws://%s/ws?player=<player_id>", addr),
			"mcp":       fmt.Sprintf("http://%s/mcp", addr),
		}).Infof("%s v%s listening", AppName, Version)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if s.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveNgrok(ctx, s.Ngrok, handler, log)
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.WithError(shutdownErr).Warn("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info("server stopped")
	return err
}

// serveNgrok serves handler through an ngrok tunnel until ctx is done
func serveNgrok(ctx context.Context, cfg settings.NgrokSettings, handler http.Handler, log logrus.FieldLogger) {
	if cfg.AuthToken == "" {
		log.Warn("ngrok enabled but no auth token provided (set NGROK_AUTHTOKEN or ngrok.authtoken)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		log.WithError(err).Error("failed to start ngrok tunnel")
		return
	}

	url := tun.URL()
	log.WithFields(logrus.Fields{
		"api":       url + "/api",
		"websocket": url + "/ws?player=<player_id>",
		"mcp":       url + "/mcp",
	}).Infof("ngrok tunnel established: %s", url)

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.WithError(err).Warn("failed to close ngrok tunnel")
		}
	}()

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.WithError(err).Warn("ngrok server error")
	}
	log.Info("ngrok tunnel closed")
}

// runMCP serves MCP over stdio. Logs go to stderr so stdout stays protocol-only.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(s, os.Stderr)
	if err != nil {
		return err
	}

	g, err := initializeGame(s, log, nil)
	if err != nil {
		return err
	}
	defer g.Close(log)

	log.Info("MCP stdio server ready")
	if err := mcp.NewServer(g.service, log).ServeStdio(); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// runValidate loads a level file, checks every level for a unique solution
// and prints the diagnostics. Rejected records make the command fail.
func runValidate(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(s, os.Stderr)
	if err != nil {
		return err
	}

	path := s.Levels.Path
	if cmd.Args().Len() > 0 {
		path = cmd.Args().First()
	}

	report, err := validateLevels(ctx, cmd.Root().Writer, path, log)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if report.HasErrors() {
		return cli.Exit(fmt.Sprintf("%d level record(s) rejected", report.Count(catalog.IssueInvalidShape)), 1)
	}
	return nil
}

// validateLevels loads path, runs the uniqueness check and prints the report
func validateLevels(ctx context.Context, w io.Writer, path string, log logrus.FieldLogger) (*catalog.Report, error) {
	cat, report, err := catalog.Load(path, catalog.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := cat.CheckUniqueness(ctx, report, catalog.WithLogger(log)); err != nil {
		return nil, err
	}
	printReport(w, path, cat, report)
	return report, nil
}

func printReport(w io.Writer, path string, cat *catalog.Catalog, report *catalog.Report) {
	if path == "" {
		path = "bundled levels"
	}
	fmt.Fprintf(w, "%s: %d level(s) loaded\n", path, cat.Count())
	for _, sum := range cat.Summaries() {
		status := "ok"
		if issues := report.ForLevel(sum.ID); len(issues) > 0 {
			status = fmt.Sprintf("%d issue(s)", len(issues))
		}
		fmt.Fprintf(w, "  level %d: %dx%d, %d given, %d relations, %s\n", sum.ID, sum.Size, sum.Size, sum.Givens, sum.Relations, status)
	}

	if report.Clean() {
		fmt.Fprintln(w, "no issues found")
		return
	}
	fmt.Fprintf(w, "\n%d issue(s):\n", len(report.Issues))
	for _, issue := range report.Issues {
		at := ""
		if issue.Coord != nil {
			at = " at " + issue.Coord.String()
		}
		fmt.Fprintf(w, "  [%s] record %d, level %d%s: %s\n", issue.Kind, issue.Index, issue.Level, at, issue.Message)
	}
}
