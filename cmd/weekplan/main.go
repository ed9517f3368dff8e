package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
	"github.com/evanschultz/weekplan/internal/adapters/backend/httpapi"
	serveradapter "github.com/evanschultz/weekplan/internal/adapters/server"
	"github.com/evanschultz/weekplan/internal/adapters/storage/sqlite"
	"github.com/evanschultz/weekplan/internal/app"
	"github.com/evanschultz/weekplan/internal/config"
	"github.com/evanschultz/weekplan/internal/domain"
	"github.com/evanschultz/weekplan/internal/locale"
	"github.com/evanschultz/weekplan/internal/platform"
	"github.com/evanschultz/weekplan/internal/tui"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

// version is stamped at build time.
var version = "dev"

// program is the part of *tea.Program the CLI drives.
type program interface {
	Run() (tea.Model, error)
	Send(tea.Msg)
}

var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

var detectDarkBackground = termenv.HasDarkBackground

// localDayCheck is how often the local backend looks for a calendar day change.
var localDayCheck = time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCommand(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	serverURL  string
	appName    string
	devMode    bool
	openLink   string

	stdout io.Writer
	stderr io.Writer
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	defaultDevMode := version == "dev"
	if envDev, ok := config.DevModeFromEnv(nil); ok {
		defaultDevMode = envDev
	}

	root := &cobra.Command{
		Use:           "weekplan",
		Short:         "Plan the week on a drag-and-drop board",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runBoard(cmd.Context())
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.serverURL, "server", "", "backend base URL (empty keeps tasks in the local database)")
	flags.StringVar(&opts.appName, "app", "weekplan", "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	root.Flags().StringVar(&opts.openLink, "open", "", "open a task link such as #task/42 after loading")

	root.AddCommand(opts.pathsCommand(), opts.weekCommand(), opts.serveCommand(), opts.colorsCommand())
	return root
}

func (o *rootOptions) pathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the resolved config, data and log locations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := o.paths()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(o.stdout, "app: %s\n", o.appName)
			_, _ = fmt.Fprintf(o.stdout, "dev_mode: %t\n", o.devMode)
			_, _ = fmt.Fprintf(o.stdout, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(o.stdout, "env: %s\n", paths.EnvPath)
			_, _ = fmt.Fprintf(o.stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(o.stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(o.stdout, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

func (o *rootOptions) weekCommand() *cobra.Command {
	var rawDate string
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Print one week and the inbox as text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var day *domain.Date
			if strings.TrimSpace(rawDate) != "" {
				parsed, err := domain.ParseDate(rawDate)
				if err != nil {
					return fmt.Errorf("parse --date: %w", err)
				}
				day = &parsed
			}
			return o.runWeek(cmd.Context(), day)
		},
	}
	cmd.Flags().StringVar(&rawDate, "date", "", "any day of the week to print (YYYY-MM-DD, default today)")
	return cmd
}

func (o *rootOptions) serveCommand() *cobra.Command {
	cfg := serveradapter.Config{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planner tools over MCP for agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.HTTPBind, "bind", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&cfg.MCPEndpoint, "mcp-endpoint", "/mcp", "MCP endpoint path")
	return cmd
}

func (o *rootOptions) colorsCommand() *cobra.Command {
	var rawTheme, sample string
	cmd := &cobra.Command{
		Use:   "colors",
		Short: "Preview the card colors and accents of the board themes",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			themes := []domain.Theme{domain.ThemeLight, domain.ThemeDark}
			if strings.TrimSpace(rawTheme) != "" {
				theme, err := domain.ParseTheme(rawTheme)
				if err != nil {
					return fmt.Errorf("parse --theme: %w", err)
				}
				themes = []domain.Theme{theme}
			}
			dark := detectDarkBackground()
			for _, theme := range themes {
				_, _ = lipgloss.Fprintln(o.stdout, tui.PaletteSwatches(theme, dark, sample))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rawTheme, "theme", "", "light, dark or auto (default: light and dark)")
	cmd.Flags().StringVar(&sample, "sample", "Water the plants", "sample task title")
	return cmd
}

func (o *rootOptions) paths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{AppName: o.appName, DevMode: o.devMode})
}

// runEnv is the resolved configuration and logger shared by every command flow.
type runEnv struct {
	cfg        config.Config
	configPath string
	logger     *runtimeLogger
}

// resolve loads .env files, the TOML config and environment overrides, then applies flags.
func (o *rootOptions) resolve() (runEnv, error) {
	paths, err := o.paths()
	if err != nil {
		return runEnv{}, err
	}
	for _, envPath := range []string{".env", paths.EnvPath} {
		if err := config.LoadEnvFile(envPath); err != nil {
			return runEnv{}, err
		}
	}

	configPath := strings.TrimSpace(o.configPath)
	if configPath == "" {
		configPath = strings.TrimSpace(os.Getenv(config.EnvConfig))
	}
	if configPath == "" {
		configPath = paths.ConfigPath
	}

	defaults := config.Default(paths.DBPath)
	defaults.Logging.DevFile.Dir = paths.LogDir
	cfg, err := config.Load(configPath, defaults)
	if err != nil {
		return runEnv{}, fmt.Errorf("load config %q: %w", configPath, err)
	}
	cfg = cfg.ApplyEnv(nil)
	if v := strings.TrimSpace(o.dbPath); v != "" {
		cfg.Database.Path = v
	}
	if v := strings.TrimSpace(o.serverURL); v != "" {
		cfg.Server.BaseURL = v
	}
	if err := cfg.Validate(); err != nil {
		return runEnv{}, fmt.Errorf("validate config: %w", err)
	}

	logger, err := newRuntimeLogger(o.stderr, o.appName, o.devMode, cfg.Logging, time.Now)
	if err != nil {
		return runEnv{}, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Debug("configuration loaded", "config_path", configPath, "db_path", cfg.Database.Path, "server", cfg.Server.BaseURL)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}
	return runEnv{cfg: cfg, configPath: configPath, logger: logger}, nil
}

func (rt runEnv) close(stderr io.Writer) {
	if err := rt.logger.Close(); err != nil {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// openRepository opens the local database. It always backs preferences, and tasks too
// when no server is configured.
func (rt runEnv) openRepository() (*sqlite.Repository, error) {
	if err := config.EnsureConfigDir(rt.cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	rt.logger.Info("opening sqlite repository", "db_path", rt.cfg.Database.Path)
	repo, err := sqlite.Open(rt.cfg.Database.Path)
	if err != nil {
		rt.logger.Error("sqlite open failed", "db_path", rt.cfg.Database.Path, "err", err)
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	return repo, nil
}

func (rt runEnv) closeRepository(repo *sqlite.Repository) {
	if err := repo.Close(); err != nil {
		rt.logger.Warn("sqlite close failed", "db_path", rt.cfg.Database.Path, "err", err)
	}
}

// backend picks the task store. The returned client is nil for the local database.
func (rt runEnv) backend(repo *sqlite.Repository) (app.TaskStore, *httpapi.Client, error) {
	baseURL := strings.TrimSpace(rt.cfg.Server.BaseURL)
	if baseURL == "" {
		return repo, nil, nil
	}
	client, err := httpapi.New(baseURL,
		httpapi.WithTimeout(rt.cfg.Server.Timeout.Std()),
		httpapi.WithLogger(rt.logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("configure backend client: %w", err)
	}
	rt.logger.Info("using remote backend", "base_url", baseURL)
	return client, client, nil
}

func (rt runEnv) plannerConfig(messages app.Messages) app.PlannerConfig {
	return app.PlannerConfig{
		DeleteUndoWindow:     rt.cfg.Undo.DeleteWindow.Std(),
		RecurrenceUndoWindow: rt.cfg.Undo.RecurrenceWindow.Std(),
		SundayFirst:          rt.cfg.SundayFirst(),
		Logger:               rt.logger,
		Messages:             messages,
	}
}

// runBoard runs the interactive board until the user quits.
func (o *rootOptions) runBoard(ctx context.Context) error {
	rt, err := o.resolve()
	if err != nil {
		return err
	}
	defer rt.close(o.stderr)
	// Runtime logs stay in the dev-file sink while the board owns the terminal.
	rt.logger.SetConsoleEnabled(false)

	repo, err := rt.openRepository()
	if err != nil {
		return err
	}
	defer rt.closeRepository(repo)

	prefs, err := repo.LoadPreferences(ctx, rt.cfg.Preferences())
	if err != nil {
		rt.logger.Warn("load preferences failed, using config", "err", err)
		prefs = rt.cfg.Preferences()
	}
	catalog, err := locale.New(prefs.Language)
	if err != nil {
		rt.logger.Warn("message catalog incomplete", "err", err)
	}

	api, client, err := rt.backend(repo)
	if err != nil {
		return err
	}
	bridge := tui.NewBridge()
	defer bridge.Close()
	planner := app.NewPlanner(api, bridge, nil, nil, rt.plannerConfig(catalog))
	// Armed deletes and recurrence clears are committed, not dropped, on exit.
	defer planner.CommitPending()

	m := tui.NewModel(planner,
		tui.WithPreferences(prefs),
		tui.WithPreferencesStore(repo),
		tui.WithCatalog(catalog),
		tui.WithBridge(bridge),
		tui.WithDarkBackground(detectDarkBackground()),
		tui.WithDeepLink(strings.TrimSpace(o.openLink)),
	)
	p := programFactory(m)
	bridge.Attach(p)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go rt.watchDateChanges(watchCtx, client, planner)

	rt.logger.Info("starting tui program loop")
	if _, err := p.Run(); err != nil {
		rt.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	rt.logger.Info("command flow complete", "command", "board")
	return nil
}

// watchDateChanges forwards day rollovers to the planner: from the backend event stream
// when a client is set, otherwise from the local clock.
func (rt runEnv) watchDateChanges(ctx context.Context, client *httpapi.Client, planner *app.Planner) {
	onChange := func() {
		if err := planner.HandleDateChange(ctx); err != nil {
			rt.logger.Warn("date change reload failed", "err", err)
		}
	}
	if client == nil {
		watchLocalDay(ctx, time.Now, localDayCheck, onChange)
		return
	}
	err := client.SubscribeDateChanges(ctx, rt.cfg.Server.SSEReconnect.Std(), onChange)
	if err != nil && !errors.Is(err, context.Canceled) {
		rt.logger.Warn("date change stream stopped", "err", err)
	}
}

// watchLocalDay calls onChange whenever the calendar day reported by now differs from the
// previous check. It returns when ctx is done.
func watchLocalDay(ctx context.Context, now func() time.Time, every time.Duration, onChange func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	last := domain.Today(now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			today := domain.Today(now())
			if today != last {
				last = today
				onChange()
			}
		}
	}
}

// runWeek prints the week containing day (today when nil) followed by the inbox.
func (o *rootOptions) runWeek(ctx context.Context, day *domain.Date) error {
	rt, err := o.resolve()
	if err != nil {
		return err
	}
	defer rt.close(o.stderr)

	repo, err := rt.openRepository()
	if err != nil {
		return err
	}
	defer rt.closeRepository(repo)

	prefs, err := repo.LoadPreferences(ctx, rt.cfg.Preferences())
	if err != nil {
		prefs = rt.cfg.Preferences()
	}
	catalog, _ := locale.New(prefs.Language)

	api, _, err := rt.backend(repo)
	if err != nil {
		return err
	}
	planner := app.NewPlanner(api, nil, nil, nil, rt.plannerConfig(catalog))
	if err := planner.Load(ctx); err != nil {
		return fmt.Errorf("load week: %w", err)
	}
	if day != nil {
		if err := planner.ShowDate(ctx, *day); err != nil {
			return fmt.Errorf("load week of %s: %w", day, err)
		}
	}
	writeWeek(o.stdout, planner.Snapshot(), catalog, prefs.FullWeekdays)
	return nil
}

// writeWeek renders snap as plain text, one indented line per task.
func writeWeek(w io.Writer, snap app.Snapshot, catalog *locale.Catalog, fullWeekdays bool) {
	board := snap.Board
	for _, day := range board.Days() {
		marker := ""
		if day == snap.Today {
			marker = " *"
		}
		_, _ = fmt.Fprintf(w, "%s %s%s\n", catalog.Weekday(day.Weekday(), fullWeekdays), day, marker)
		if c, ok := board.Container(domain.DayKey(day)); ok {
			writeTasks(w, c.Tasks())
		}
	}
	_, _ = fmt.Fprintf(w, "%s\n", snap.InboxTitle)
	if c, ok := board.Container(domain.InboxKey()); ok {
		writeTasks(w, c.Tasks())
	}
}

func writeTasks(w io.Writer, tasks []domain.Task) {
	for _, task := range tasks {
		box := "[ ]"
		if task.Completed {
			box = "[x]"
		}
		line := fmt.Sprintf("  %s %s", box, task.Title)
		if badge := task.Checklist().Badge(); badge != "" {
			line += " (" + badge + ")"
		}
		if task.IsRecurring() {
			line += " ↻"
		}
		_, _ = fmt.Fprintf(w, "%s  %s\n", line, domain.TaskLink(task.ID))
	}
}

// runServe serves the configured backend over MCP until ctx is cancelled.
func (o *rootOptions) runServe(ctx context.Context, cfg serveradapter.Config) error {
	rt, err := o.resolve()
	if err != nil {
		return err
	}
	defer rt.close(o.stderr)

	repo, err := rt.openRepository()
	if err != nil {
		return err
	}
	defer rt.closeRepository(repo)
	store, _, err := rt.backend(repo)
	if err != nil {
		return err
	}

	cfg.ServerName = "weekplan"
	cfg.ServerVersion = version
	cfg.SundayFirst = rt.cfg.SundayFirst()
	rt.logger.Info("command flow start", "command", "serve", "bind", cfg.HTTPBind)
	if err := serveCommandRunner(ctx, cfg, serveradapter.Dependencies{Store: store, Logger: rt.logger}); err != nil {
		rt.logger.Error("command flow failed", "command", "serve", "err", err)
		return fmt.Errorf("run serve command: %w", err)
	}
	rt.logger.Info("command flow complete", "command", "serve")
	return nil
}
