package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/airsketch/internal/app"
	"github.com/ayusman/airsketch/internal/capture"
	"github.com/ayusman/airsketch/internal/config"
	"github.com/ayusman/airsketch/internal/detector"
	"github.com/ayusman/airsketch/internal/logging"
	"github.com/ayusman/airsketch/internal/server"
	"github.com/ayusman/airsketch/internal/store"
	"github.com/ayusman/airsketch/internal/telemetry"
	"github.com/ayusman/airsketch/internal/tray"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "airsketch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.DefaultDir())
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Pretty)
	log.Info().Str("mode", string(cfg.Mode)).Msg("airsketch starting")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(filepath.Join(cfg.DataDir, "airsketch.db"))
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	sess := &store.Session{Mode: string(cfg.Mode)}
	if err := st.Sessions().Create(sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() {
		if err := st.Sessions().End(sess.ID, time.Now()); err != nil {
			log.Warn().Err(err).Msg("failed to end session")
		}
	}()

	// The painter needs the instruments, so the particle source is set once
	// the consumer exists.
	ins, err := telemetry.New(nil)
	if err != nil {
		return err
	}
	defer ins.Close()

	var (
		consumer app.Consumer
		painter  *app.Painter
	)
	switch cfg.Mode {
	case config.ModeDashboard:
		consumer, err = app.NewDashboard(app.DashboardConfig{
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
			Logger: logging.Component(log, "dashboard"),
		})
	default:
		painter, err = app.NewPainter(app.PainterConfig{
			Width:     cfg.Camera.Width,
			Height:    cfg.Camera.Height,
			Brush:     app.BrushFromConfig(cfg),
			ExportDir: filepath.Join(cfg.DataDir, "artworks"),
			SessionID: sess.ID,
			Logger:    logging.Component(log, "painter"),
			Telemetry: ins,
			Artworks:  st.Artworks(),
			Settings:  st.Settings(),
		})
		consumer = painter
	}
	if err != nil {
		return err
	}
	ins.SetParticleSource(consumer.LiveParticles)

	var gate *capture.ActivityGate
	if cfg.Motion.Gate {
		gcfg := capture.DefaultGateConfig
		gcfg.Threshold = cfg.Motion.Threshold
		gcfg.ActiveFPS = cfg.Camera.FPS
		gate = capture.NewActivityGate(gcfg)
	}

	a, err := app.New(app.Config{
		Mode: app.Mode(cfg.Mode),
		Camera: capture.NewCamera(capture.Config{
			Device: cfg.Camera.Device,
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
			FPS:    cfg.Camera.FPS,
			Mirror: true,
		}),
		Models:    loadModels(cfg, log),
		Consumer:  consumer,
		Gate:      gate,
		Telemetry: ins,
		Logger:    logging.Component(log, "app"),
	})
	if err != nil {
		consumer.Close()
		return err
	}
	defer a.Close()

	hub := server.NewHub(logging.Component(log, "ws"))
	srvCfg := server.Config{
		StaticDir: findWebDir(),
		Store:     st,
		Frames:    a,
		Hub:       hub,
		Logger:    logging.Component(log, "server"),
	}
	if painter != nil {
		srvCfg.Session = painter
	}
	if srvCfg.StaticDir != "" {
		log.Info().Str("dir", srvCfg.StaticDir).Msg("serving static files")
	}
	srv := server.New(srvCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tr *tray.Tray
	if cfg.Tray {
		tr = newTray(a, painter, cfg, stop, log)
	}

	a.OnUpdate(func(u app.Update) {
		if err := hub.Publish(u); err != nil {
			log.Debug().Err(err).Msg("publish failed")
		}
		if tr != nil {
			if ds, ok := u.State.(app.DashboardState); ok {
				tr.SetGesture(ds.Gesture)
			}
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Msg("starting server")
		return srv.ListenAndServe(gctx, cfg.Addr)
	})

	if tr != nil {
		// systray must own the main goroutine.
		go func() {
			<-gctx.Done()
			tr.Quit()
		}()
		tr.Run()
		stop()
	}

	err = g.Wait()
	var camErr *app.CameraError
	if errors.As(err, &camErr) {
		log.Error().
			Str("kind", camErr.Message.Kind).
			Str("remedy", camErr.Message.Remedy).
			Msg(camErr.Message.Title)
		return err
	}
	if err != nil {
		return err
	}
	log.Info().Msg("airsketch stopped")
	return nil
}

// loadModels creates the enabled models. A model whose service script is
// missing is replaced by an idle mock so the rest of the app keeps running.
func loadModels(cfg config.Config, log zerolog.Logger) []detector.Model {
	kinds := []struct {
		kind detector.Kind
		on   bool
	}{
		{detector.KindHands, cfg.Models.Hands},
		{detector.KindFace, cfg.Models.Face},
		{detector.KindPose, cfg.Models.Pose},
	}

	var models []detector.Model
	for _, k := range kinds {
		if !k.on {
			continue
		}
		opts := detector.DefaultOptions(k.kind)
		if cfg.Models.MaxHands > 0 {
			opts.MaxHands = cfg.Models.MaxHands
		}
		opts.MinDetectionConfidence = cfg.Models.MinDetectionConfidence
		opts.MinTrackingConfidence = cfg.Models.MinTrackingConfidence

		m, err := detector.NewProcessModel(k.kind, cfg.Models.ScriptDir, opts, logging.Component(log, string(k.kind)))
		if err != nil {
			log.Warn().Err(err).Str("model", string(k.kind)).Msg("model service unavailable, using mock")
			models = append(models, detector.NewMockModel(k.kind))
			continue
		}
		models = append(models, m)
	}
	return models
}

func newTray(a *app.App, painter *app.Painter, cfg config.Config, quit func(), log zerolog.Logger) *tray.Tray {
	actions := tray.Actions{
		OnTracking: a.SetEnabled,
		OnOpen:     func() { openBrowser(cfg.Addr, log) },
		OnQuit:     quit,
	}
	particles := cfg.Effects.Particles
	if painter != nil {
		particles = painter.Brush().Particles
		actions.OnParticles = func(on bool) {
			if err := painter.SetParticles(on); err != nil {
				log.Warn().Err(err).Msg("toggle particles")
			}
		}
		actions.OnClear = painter.Clear
		actions.OnUndo = func() { painter.Undo() }
		actions.OnExport = func() {
			art, err := painter.Export(context.Background())
			if err != nil {
				log.Error().Err(err).Msg("export failed")
				return
			}
			log.Info().Str("path", art.Path).Msg("artwork exported")
		}
	}
	return tray.New(actions, particles)
}

func openBrowser(addr string, log zerolog.Logger) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("invalid listen address")
		return
	}
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	url := "http://" + net.JoinHostPort(host, port) + "/"

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("failed to open browser")
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.airsketch/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.DefaultDir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
