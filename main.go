package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"club-client/config"
	"club-client/internal/api"
	"club-client/internal/apiclient"
	"club-client/internal/devserver"
	"club-client/internal/events"
	"club-client/internal/navigation"
	"club-client/internal/store"
	"club-client/internal/tracking"
	"club-client/internal/utils"
)

var (
	configPath  = flag.String("config", "config/example.yaml", "Path to configuration file")
	statePath   = flag.String("state", "data/session.yaml", "Path to session state file (cookies, selected club)")
	showVersion = flag.Bool("version", false, "Show version information")
	serveMode   = flag.Bool("serve", false, "Run the local development backend instead of a client command")
	email       = flag.String("email", "", "Login email")
	password    = flag.String("password", "", "Login password")

	// Build-time variables (set via ldflags)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("Club Client\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	// 初始 logger，加载配置后替换
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"})
	slog.SetDefault(logger)

	configWatcher, err := config.NewConfigWatcher(*configPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create configuration watcher: %v\n", err)
		os.Exit(1)
	}
	defer configWatcher.Close()

	cfg := configWatcher.GetConfig()
	logger = setupLogger(cfg.Logging)
	slog.SetDefault(logger)
	configWatcher.UpdateLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serveMode {
		configWatcher.AddReloadCallback(func(newCfg *config.Config) {
			newLogger := setupLogger(newCfg.Logging)
			slog.SetDefault(newLogger)
			configWatcher.UpdateLogger(newLogger)
		})
		if err := runDevServer(ctx, cfg, logger); err != nil {
			logger.Error(fmt.Sprintf("❌ 开发服务器异常: %v", err))
			os.Exit(1)
		}
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	app, err := newApp(cfg, *statePath, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("❌ 初始化失败: %v", err))
		os.Exit(1)
	}

	// 配置热更新：logger 与会话规则
	configWatcher.AddReloadCallback(func(newCfg *config.Config) {
		newLogger := setupLogger(newCfg.Logging)
		slog.SetDefault(newLogger)
		configWatcher.UpdateLogger(newLogger)
		app.client.UpdateConfig(newCfg)
		app.bus.Publish(events.Event{
			Type:     events.EventConfigChanged,
			Source:   "config",
			Priority: events.PriorityNormal,
			Data:     map[string]interface{}{"path": *configPath},
		})
		newLogger.Info("🔄 配置已重新加载，会话规则已更新")
	})

	runErr := app.run(ctx, args[0], args[1:])
	app.close()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] <command> [args]\n\n", os.Args[0])
	fmt.Fprintf(out, "Commands:\n")
	fmt.Fprintf(out, "  login              sign in with -email and -password\n")
	fmt.Fprintf(out, "  logout             sign out and clear the stored session\n")
	fmt.Fprintf(out, "  whoami             show the signed-in user\n")
	fmt.Fprintf(out, "  clubs              list clubs you belong to\n")
	fmt.Fprintf(out, "  select <club>      remember a club for later commands\n")
	fmt.Fprintf(out, "  seasons [club]     list seasons of a club\n")
	fmt.Fprintf(out, "  rankings [club]    show club rankings\n")
	fmt.Fprintf(out, "  history            show recorded requests and refresh waves\n\n")
	fmt.Fprintf(out, "Flags:\n")
	flag.PrintDefaults()
}

// runDevServer 运行本地开发后端直到收到退出信号
func runDevServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	server, err := devserver.New(cfg.DevServer, logger)
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("🎾 开发服务器已启动: http://%s:%d/api", cfg.DevServer.Host, cfg.DevServer.Port))

	<-ctx.Done()
	logger.Info("🛑 正在关闭开发服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// app 一次命令执行期间的组件集合
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	bus      events.EventBus
	client   *apiclient.Client
	services *api.Services
	auth     *store.AuthStore
	clubs    *store.ClubStore
	router   *navigation.Router
	journal  *tracking.Journal
	state    *store.StateFile
	dates    *utils.Dates
	out      io.Writer
}

func newApp(cfg *config.Config, statePath string, logger *slog.Logger) (*app, error) {
	state, err := store.LoadState(statePath)
	if err != nil {
		return nil, err
	}
	dates, err := utils.NewDates(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	bus := events.NewEventBus(logger)
	if err := bus.Start(); err != nil {
		return nil, fmt.Errorf("failed to start event bus: %w", err)
	}

	journal, err := tracking.NewJournal(cfg.Tracking, cfg.Timezone)
	if err != nil {
		bus.Stop()
		return nil, fmt.Errorf("failed to create request journal: %w", err)
	}
	bus.Subscribe("journal", journal.HandleEvent)
	bus.Subscribe("session_log", events.NewSlogAdapter(logger, "session", "auth").Handle)

	client, err := apiclient.NewClient(cfg, nil)
	if err != nil {
		journal.Close()
		bus.Stop()
		return nil, err
	}
	client.SetEventBus(bus)
	client.SetCookies(state.Cookies(time.Now()))

	services := api.New(client, cfg.Cognito)
	auth := store.NewAuthStore(services.Auth, nil)
	auth.SetEventBus(bus)
	bus.Subscribe("auth_store", auth.HandleEvent)

	router := navigation.NewRouter(auth, nil, logger)
	auth.SetNavigator(router)
	client.SetNavigator(router)

	return &app{
		cfg:      cfg,
		logger:   logger,
		bus:      bus,
		client:   client,
		services: services,
		auth:     auth,
		clubs:    store.NewClubStore(services.Clubs, state),
		router:   router,
		journal:  journal,
		state:    state,
		dates:    dates,
		out:      os.Stdout,
	}, nil
}

// close 持久化 cookie 后按依赖逆序关闭
func (a *app) close() {
	if err := a.state.SetCookies(a.client.Cookies()); err != nil {
		a.logger.Warn(fmt.Sprintf("⚠️ 会话状态保存失败: %v", err))
	}
	if err := a.bus.Stop(); err != nil {
		a.logger.Warn(fmt.Sprintf("⚠️ 事件总线关闭失败: %v", err))
	}
	if err := a.journal.Close(); err != nil {
		a.logger.Warn(fmt.Sprintf("⚠️ 请求记录器关闭失败: %v", err))
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(&SimpleHandler{level: level, out: os.Stderr})
}

// SimpleHandler 单行输出，命令结果走 stdout，日志走 stderr
type SimpleHandler struct {
	level slog.Level
	out   io.Writer
	attrs []slog.Attr
}

func (h *SimpleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *SimpleHandler) Handle(_ context.Context, r slog.Record) error {
	message := r.Message

	var attrs []string
	for _, a := range h.attrs {
		attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
		return true
	})
	if len(attrs) > 0 {
		message = message + " " + strings.Join(attrs, " ")
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	level := "INFO"
	switch r.Level {
	case slog.LevelDebug:
		level = "DEBUG"
	case slog.LevelWarn:
		level = "WARN"
	case slog.LevelError:
		level = "ERROR"
	}

	if len(message) > 500 {
		message = message[:500] + "... (显示截断)"
	}

	_, err := fmt.Fprintf(h.out, "[%s] [PID:%d] [GID:%d] [%s] %s\n", timestamp, os.Getpid(), getGoroutineID(), level, message)
	return err
}

func (h *SimpleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &SimpleHandler{level: h.level, out: h.out, attrs: merged}
}

func (h *SimpleHandler) WithGroup(name string) slog.Handler {
	return h
}

// getGoroutineID extracts the goroutine ID from runtime stack trace
func getGoroutineID() int {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	idField := strings.Fields(string(buf))[1]
	id, err := strconv.Atoi(idField)
	if err != nil {
		return 0
	}
	return id
}
