// Command worldsim runs the cultivation world simulator: a monthly tick
// engine over an LLM-driven NPC population, served over HTTP and WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/xiaocai218/cultivation-world-simulator/internal/api"
	"github.com/xiaocai218/cultivation-world-simulator/internal/config"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/gamedata"
	"github.com/xiaocai218/cultivation-world-simulator/internal/gathering"
	"github.com/xiaocai218/cultivation-world-simulator/internal/llm"
	"github.com/xiaocai218/cultivation-world-simulator/internal/persist"
	"github.com/xiaocai218/cultivation-world-simulator/internal/sim"
)

// tickInterval paces the auto-run loop. One tick is one in-world month.
const tickInterval = 2 * time.Second

// defaultSlot is the save the server boots into when no -load is given.
const defaultSlot = "autosave"

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "", "path to config.yaml (default: ./config.yaml if present)")
	loadName := flag.String("load", "", "save name to resume from")
	seed := flag.Int64("seed", time.Now().UnixNano(), "world generation seed")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("configuration invalid", "err", err)
		return 1
	}

	data, err := gamedata.NewStore(cfg.Paths.GameConfigs, cfg.System.Language)
	if err != nil {
		slog.Error("load game data", "err", err)
		return 1
	}

	var (
		tmpl  *llm.TemplateStore
		tasks *llm.Tasks
	)
	if cfg.LLMConfigured() {
		tmpl, err = llm.NewTemplateStore(cfg.Paths.Templates, cfg.System.Language)
		if err != nil {
			slog.Error("load prompt templates", "err", err)
			return 1
		}
		gw := llm.NewGateway(cfg.LLM, cfg.AI.MaxConcurrentRequests)
		tasks = llm.NewTasks(gw, tmpl)
		slog.Info("llm gateway configured", "model", cfg.LLM.ModelName, "mode", cfg.LLM.Mode)
	} else {
		slog.Warn("llm not configured; npcs run on deterministic fallbacks")
	}

	ctrl := &app{cfg: cfg, data: data, tmpl: tmpl, tasks: tasks, seed: *seed}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctrl.ctx = ctx
	ctrl.cancel = cancel

	if *loadName != "" {
		if err := ctrl.LoadGame(*loadName); err != nil {
			slog.Error("resume save", "save", *loadName, "err", err)
			return 1
		}
	} else {
		if err := ctrl.bootFresh(defaultSlot); err != nil {
			slog.Error("create world", "err", err)
			return 1
		}
	}

	server := api.NewServer(ctrl, cfg.System.Host, cfg.System.Port)
	ctrl.hub = server.Hub()
	ctrl.wireTicks()

	ctrl.Resume()
	fmt.Printf("The world turns: %d cultivators, %d sects. API at http://%s:%d/api/state\n",
		ctrl.World().Avatars.LivingCount(), len(ctrl.World().Sects.All()), cfg.System.Host, cfg.System.Port)

	if err := server.Start(ctx); err != nil {
		slog.Error("api server", "err", err)
		return 1
	}

	// Graceful exit: stop ticking, then snapshot to the current slot.
	ctrl.Pause()
	if err := ctrl.SaveGame(ctrl.currentSlot()); err != nil {
		slog.Error("final save failed", "err", err)
		return 1
	}
	slog.Info("world saved", "save", ctrl.currentSlot())
	return 0
}

// app owns the live world and implements the API's controller. A load or
// reset swaps the world and simulator atomically under the mutex; the old
// event log is closed once the new one is live.
type app struct {
	cfg   *config.Config
	data  *gamedata.Store
	tmpl  *llm.TemplateStore
	tasks *llm.Tasks
	seed  int64

	ctx    context.Context
	cancel context.CancelFunc
	hub    *api.Hub

	mu   sync.RWMutex
	w    *sim.World
	s    *sim.Simulator
	log  *event.Log
	slot string
}

func (a *app) World() *sim.World {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.w
}

func (a *app) Simulator() *sim.Simulator {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.s
}

func (a *app) currentSlot() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.slot
}

// bootFresh opens the slot's event log, runs genesis, and installs the
// world.
func (a *app) bootFresh(slot string) error {
	if err := os.MkdirAll(a.cfg.Paths.Saves, 0o755); err != nil {
		return fmt.Errorf("create saves dir: %w", err)
	}
	log, err := event.OpenLog(persist.EventLogPath(a.cfg.Paths.Saves, slot))
	if err != nil {
		return err
	}
	w := sim.NewWorld(a.cfg, a.data, log, a.tasks, a.seed)
	if err := w.Genesis(); err != nil {
		log.Close()
		return err
	}
	a.install(w, log, slot)
	return nil
}

// install swaps in a new world, registering gatherings and closing the old
// event log.
func (a *app) install(w *sim.World, log *event.Log, slot string) {
	w.Gatherings.Register(gathering.Tournament{})
	w.Gatherings.Register(gathering.Auction{})
	w.Gatherings.Register(gathering.HiddenRealm{})

	s := sim.NewSimulator(w)

	a.mu.Lock()
	old := a.log
	a.w, a.s, a.log, a.slot = w, s, log, slot
	a.mu.Unlock()

	if old != nil && old != log {
		old.Close()
	}
	a.wireTicks()
}

// wireTicks points the simulator's tick callback at the websocket hub.
func (a *app) wireTicks() {
	a.mu.RLock()
	s, hub := a.s, a.hub
	a.mu.RUnlock()
	if s == nil || hub == nil {
		return
	}
	s.OnTick = hub.BroadcastTick
	s.OnNotice = hub.BroadcastNotice
}

func (a *app) Pause() {
	if s := a.Simulator(); s != nil {
		s.Stop()
	}
}

func (a *app) Resume() {
	if s := a.Simulator(); s != nil {
		s.Run(a.ctx, tickInterval)
	}
}

// Reset discards the world and regenerates from scratch in the same slot.
// The slot's event history goes with it.
func (a *app) Reset() error {
	a.Pause()
	slot := a.currentSlot()

	a.mu.Lock()
	if a.log != nil {
		a.log.Close()
		a.log = nil
	}
	a.mu.Unlock()

	if err := os.Remove(persist.EventLogPath(a.cfg.Paths.Saves, slot)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset: %w", err)
	}
	a.seed = time.Now().UnixNano()
	if err := a.bootFresh(slot); err != nil {
		return err
	}
	a.Resume()
	return nil
}

func (a *app) Shutdown() {
	slog.Info("shutdown requested")
	a.cancel()
}

// StartGame begins ticking. A paused or freshly booted world just resumes.
func (a *app) StartGame() error {
	a.Resume()
	return nil
}

// SaveGame snapshots the world as name. Saving under a different name also
// copies the event history so the save is self-contained.
func (a *app) SaveGame(name string) error {
	w := a.World()
	if w == nil {
		return fmt.Errorf("no world to save")
	}
	if err := persist.Save(w, a.cfg.Paths.Saves, name); err != nil {
		return err
	}
	if slot := a.currentSlot(); name != slot {
		src := persist.EventLogPath(a.cfg.Paths.Saves, slot)
		dst := persist.EventLogPath(a.cfg.Paths.Saves, name)
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("copy event log: %w", err)
		}
	}
	return nil
}

// LoadGame swaps the running world for the named save.
func (a *app) LoadGame(name string) error {
	a.Pause()
	log, err := event.OpenLog(persist.EventLogPath(a.cfg.Paths.Saves, name))
	if err != nil {
		return err
	}
	w, err := persist.Load(a.cfg, a.data, log, a.tasks, a.cfg.Paths.Saves, name, a.seed)
	if err != nil {
		log.Close()
		return err
	}
	a.install(w, log, name)
	slog.Info("save loaded", "save", name, "stamp", w.Clock.String())
	return nil
}

func (a *app) DeleteGame(name string) error {
	if name == a.currentSlot() {
		return fmt.Errorf("cannot delete the active save %q", name)
	}
	return persist.Delete(a.cfg.Paths.Saves, name)
}

func (a *app) ListGames() ([]string, error) {
	return persist.List(a.cfg.Paths.Saves)
}

// SwitchLanguage swaps the static tables and prompt templates together.
func (a *app) SwitchLanguage(lang string) error {
	supported := false
	for _, l := range config.SupportedLanguages {
		if l == lang {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported language %q (want one of %v)", lang, config.SupportedLanguages)
	}
	if err := a.data.SwitchLanguage(lang); err != nil {
		return err
	}
	if a.tmpl != nil {
		if err := a.tmpl.SwitchLanguage(lang); err != nil {
			return err
		}
	}
	slog.Info("language switched", "lang", lang)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
