package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"insightdeck/internal/adapter/api"
	"insightdeck/internal/adapter/memory"
	"insightdeck/internal/adapter/postgres"
	"insightdeck/internal/adapter/sqlite"
	"insightdeck/internal/adapter/terminal"
	"insightdeck/internal/app"
	"insightdeck/internal/config"
	"insightdeck/internal/domain"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", domain.MessageOf(err))
		os.Exit(1)
	}
}

// cli carries flags and the lazily built workspace shared by all commands.
type cli struct {
	cfgFile  string
	apiURL   string
	storage  string
	logLevel string

	in     *bufio.Reader
	stderr io.Writer

	cfg     *config.Config
	logger  *zap.Logger
	client  *api.Client
	ws      *app.Workspace
	closers []func() error
}

// run executes one command line and releases everything it opened.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root, c := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, c.close())
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) (*cobra.Command, *cli) {
	c := &cli{in: bufio.NewReader(stdin), stderr: stderr}

	root := &cobra.Command{
		Use:   "insightdeck",
		Short: "Analytics dashboard client",
		Long:  "insightdeck signs in to the analytics API, uploads datasets and asks for insights about the active dataset.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "", "config file path (default ~/.config/insightdeck/config.yaml)")
	root.PersistentFlags().StringVar(&c.apiURL, "api-url", "", "override the API base URL")
	root.PersistentFlags().StringVar(&c.storage, "storage", "", "state storage: sqlite, postgres or memory")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newLoginCmd(c),
		newRegisterCmd(c),
		newVerifyCmd(c),
		newResetPasswordCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newCreditsCmd(c),
		newFilesCmd(c),
		newUploadCmd(c),
		newUseCmd(c),
		newDatasetCmd(c),
		newProcessCmd(c),
		newInsightsCmd(c),
		newAskCmd(c),
		newChartsCmd(c),
		newSandboxCmd(c),
	)
	return root, c
}

// init loads configuration, applying CLI flag overrides.
func (c *cli) init() error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	if c.apiURL != "" {
		cfg.APIURL = c.apiURL
	}
	if c.storage != "" {
		cfg.Storage = c.storage
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	c.closers = append(c.closers, func() error {
		_ = logger.Sync()
		return nil
	})
	return nil
}

// workspace builds the stores, API client and workspace on first use and
// restores the persisted session.
func (c *cli) workspace(ctx context.Context) (*app.Workspace, error) {
	if c.ws != nil {
		return c.ws, nil
	}
	sessionStore, durableStore, err := c.openStores()
	if err != nil {
		return nil, err
	}

	var session *app.SessionService
	client, err := api.New(c.cfg.APIURL,
		api.WithTimeout(c.cfg.Timeout),
		api.WithLogger(c.logger.Named("api")),
		api.WithTokenSource(api.TokenSourceFunc(func() (*oauth2.Token, error) {
			return session.TokenSource().Token()
		})),
	)
	if err != nil {
		return nil, err
	}

	ws := app.NewWorkspace(app.WorkspaceDeps{
		Auth:           client,
		Credits:        client,
		Files:          client,
		SessionStore:   sessionStore,
		DurableStore:   durableStore,
		Toaster:        terminal.NewToaster(c.stderr),
		Logger:         c.logger,
		GoogleClientID: c.cfg.Google.ClientID,
	})
	session = ws.Session
	c.closers = append(c.closers, func() error {
		ws.Close()
		return nil
	})

	if err := ws.Start(ctx); err != nil {
		return nil, err
	}
	c.client = client
	c.ws = ws
	return ws, nil
}

func (c *cli) openStores() (session, durable domain.Storage, err error) {
	switch c.cfg.Storage {
	case config.StorageMemory:
		return memory.NewStore(), memory.NewStore(), nil
	case config.StoragePostgres:
		db, err := postgres.Open(c.cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		c.closers = append(c.closers, db.Close)
		ns := c.cfg.Namespace
		return db.Store(ns + "/session"), db.Store(ns + "/durable"), nil
	default:
		db, err := sqlite.Open(c.cfg.StatePath())
		if err != nil {
			return nil, nil, err
		}
		c.closers = append(c.closers, db.Close)
		return db.Store("session"), db.Store("durable"), nil
	}
}

// close releases resources in reverse order of acquisition.
func (c *cli) close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// authed returns the workspace, failing when no session is stored.
func (c *cli) authed(ctx context.Context) (*app.Workspace, error) {
	ws, err := c.workspace(ctx)
	if err != nil {
		return nil, err
	}
	if !ws.Session.IsAuthenticated() {
		return nil, fmt.Errorf("%w: run insightdeck login", domain.ErrNotAuthenticated)
	}
	return ws, nil
}

// prompt prints label and reads one line from stdin.
func (c *cli) prompt(label string) (string, error) {
	fmt.Fprint(c.stderr, label)
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
