package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"recon-ledger/internal/apperr"
	"recon-ledger/internal/config"
	"recon-ledger/internal/ledger"
	"recon-ledger/internal/logger"
	"recon-ledger/internal/router"
	"recon-ledger/internal/secret"
	"recon-ledger/internal/util"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// env is what every command needs: config, log and a locked app.
type env struct {
	cfg *config.Config
	log zerolog.Logger
	app *ledger.App
}

func setup() (*env, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	app := ledger.New(cfg, secret.NewDefault(cfg.Secret, log), log)
	return &env{cfg: cfg, log: log, app: app}, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %s\n", apperr.Public(err))
	return subcommands.ExitFailure
}

// setupUnlocked is setup followed by Unlock.
func setupUnlocked(ctx context.Context) (*env, subcommands.ExitStatus) {
	e, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, subcommands.ExitFailure
	}
	if err := e.app.Unlock(ctx); err != nil {
		return nil, fail(err)
	}
	return e, subcommands.ExitSuccess
}

// --- serve ---

type serveCmd struct{}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the local ledger API" }
func (*serveCmd) Usage() string {
	return `serve

Starts the HTTP API on the configured loopback address. The store is
unlocked at startup when its secret is available; otherwise the API waits
for /api/onboard, /api/unlock or /api/recover.
`
}
func (*serveCmd) SetFlags(*flag.FlagSet) {}

func (*serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.app.Close()

	if err := e.app.Unlock(ctx); err != nil {
		e.log.Warn().Msg("store locked: onboarding or unlock required")
	}

	// 未配置 JWT 密钥时每次启动随机生成，重启后需重新解锁
	if e.cfg.JWT.Secret == "" {
		s, err := util.RandomString(32)
		if err != nil {
			return fail(err)
		}
		e.cfg.JWT.Secret = s
	}

	addr := fmt.Sprintf("%s:%d", e.cfg.Server.Address, e.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRouter(e.cfg, e.app, e.log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		e.log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Fatal().Err(err).Msg("run server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	e.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		e.log.Error().Err(err).Msg("server shutdown")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// --- onboard ---

type onboardCmd struct {
	email     string
	firstName string
	lastName  string
}

func (*onboardCmd) Name() string     { return "onboard" }
func (*onboardCmd) Synopsis() string { return "create the store and its secret" }
func (*onboardCmd) Usage() string {
	return `onboard -email <address> [-first <name>] [-last <name>]

Creates the encrypted store and prints its secret. Write the secret down:
it is the only way to recover the store if the saved copy is lost.
`
}
func (c *onboardCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "email of the primary user")
	f.StringVar(&c.firstName, "first", "", "first name")
	f.StringVar(&c.lastName, "last", "", "last name")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (c *onboardCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" {
		fmt.Fprintln(os.Stderr, "Error: -email is required.")
		return subcommands.ExitUsageError
	}
	e, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.app.Close()

	res, err := e.app.Onboard(ctx, ledger.OnboardInput{
		Email:     c.email,
		FirstName: optional(c.firstName),
		LastName:  optional(c.lastName),
	})
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Store created (secret saved in %s).\n\n  %s\n\nKeep this secret somewhere safe.\n", res.StorageKind, res.DisplaySecret)
	return subcommands.ExitSuccess
}

// --- export ---

type exportCmd struct {
	out      string
	password string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write a password-protected backup of the store" }
func (*exportCmd) Usage() string {
	return `export -out <file> -password <password>
`
}
func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "out", "", "backup file to write")
	f.StringVar(&c.password, "password", "", "backup password (at least 8 characters)")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.out == "" || c.password == "" {
		fmt.Fprintln(os.Stderr, "Error: -out and -password flags are required.")
		return subcommands.ExitUsageError
	}
	e, status := setupUnlocked(ctx)
	if e == nil {
		return status
	}
	defer e.app.Close()

	if err := e.app.ExportStore(ctx, c.out, c.password); err != nil {
		return fail(err)
	}
	fmt.Printf("Backup written to %s\n", c.out)
	return subcommands.ExitSuccess
}

// --- restore ---

type restoreCmd struct {
	in       string
	password string
}

func (*restoreCmd) Name() string     { return "restore" }
func (*restoreCmd) Synopsis() string { return "replace the store with a backup" }
func (*restoreCmd) Usage() string {
	return `restore -in <file> -password <password>

Replaces the live store with the backup. The current store is kept until
the restored one has been opened and checked.
`
}
func (c *restoreCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.in, "in", "", "backup file to read")
	f.StringVar(&c.password, "password", "", "backup password")
}

func (c *restoreCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.in == "" || c.password == "" {
		fmt.Fprintln(os.Stderr, "Error: -in and -password flags are required.")
		return subcommands.ExitUsageError
	}
	e, status := setupUnlocked(ctx)
	if e == nil {
		return status
	}
	defer e.app.Close()

	if err := e.app.ImportStore(ctx, c.in, c.password); err != nil {
		return fail(err)
	}
	fmt.Println("Store restored.")
	return subcommands.ExitSuccess
}

// --- import-csv ---

type importCSVCmd struct {
	file string
}

func (*importCSVCmd) Name() string     { return "import-csv" }
func (*importCSVCmd) Synopsis() string { return "parse a statement and show ranked matches" }
func (*importCSVCmd) Usage() string {
	return `import-csv -file <statement.csv|statement.xlsx>

Parses the statement and prints every row with its best matches. Nothing
is written to the store.
`
}
func (c *importCSVCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "statement file")
}

func (c *importCSVCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required.")
		return subcommands.ExitUsageError
	}
	e, status := setupUnlocked(ctx)
	if e == nil {
		return status
	}
	defer e.app.Close()

	f, err := os.Open(c.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer f.Close()

	var sets []ledger.MatchSet
	if strings.EqualFold(filepath.Ext(c.file), ".xlsx") {
		sets, err = e.app.ImportXLSX(ctx, "", f)
	} else {
		var raw []byte
		if raw, err = io.ReadAll(f); err == nil {
			sets, err = e.app.ImportCSV(ctx, "", string(raw))
		}
	}
	if err != nil {
		return fail(err)
	}

	for i, s := range sets {
		fmt.Printf("%3d  %s  %-6s %12s  %s\n", i, s.Entry.Date, s.Entry.Type, s.Entry.Amount.StringFixed(2), s.Entry.Description)
		for _, m := range s.Matches {
			mark := ""
			if m.IsReconciled {
				mark = " (reconciled)"
			}
			fmt.Printf("       score %2d  %s  %s  %s%s\n", m.Score, m.Transaction.Date, m.Transaction.ID, m.Transaction.Description, mark)
		}
	}
	fmt.Printf("%d rows parsed\n", len(sets))
	return subcommands.ExitSuccess
}
