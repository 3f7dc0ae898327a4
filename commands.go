package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcncl/jsonflat/internal/account"
	"github.com/mcncl/jsonflat/internal/batch"
	"github.com/mcncl/jsonflat/internal/cache"
	"github.com/mcncl/jsonflat/internal/config"
	"github.com/mcncl/jsonflat/internal/converter"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/formatter"
	"github.com/mcncl/jsonflat/internal/logging"
	"github.com/mcncl/jsonflat/internal/models"
	"github.com/mcncl/jsonflat/internal/parser"
	"github.com/mcncl/jsonflat/internal/quota"
	"github.com/mcncl/jsonflat/internal/server"
)

// ConversionFlags are the conversion options shared by convert and batch.
type ConversionFlags struct {
	Format    string `help:"Output format: sql or csv." short:"f"`
	Table     string `help:"Table name for SQL output. Defaults to the input file name." short:"t"`
	Dialect   string `help:"SQL dialect: mysql, postgresql or sqlite."`
	Delimiter string `help:"CSV delimiter, a single character."`
	NoFlatten bool   `help:"Keep nested objects as JSON values instead of flattening them."`
	Select    string `help:"jq expression applied to the document before records are extracted."`
}

func (f ConversionFlags) overrides() config.CLIOverrides {
	o := config.CLIOverrides{
		Format:       f.Format,
		TableName:    f.Table,
		SQLDialect:   f.Dialect,
		CSVDelimiter: f.Delimiter,
		Select:       f.Select,
	}
	if f.NoFlatten {
		o.FlattenNested = models.BoolPtr(false)
	}
	return o
}

// ConvertCmd converts one JSON document.
type ConvertCmd struct {
	ConversionFlags

	Input       string `help:"Path to input JSON file. If not specified, reads from stdin." short:"i" type:"path"`
	Output      string `help:"Path to output file. If not specified, writes to stdout." short:"o" type:"path"`
	Stats       bool   `help:"Print conversion statistics to stderr."`
	JSON        bool   `help:"Print the full conversion result as JSON."`
	Limit       int    `help:"Fail when the conversion produces more records than this. Zero disables the check."`
	Interactive bool   `help:"Run in interactive mode, allowing direct JSON input with Ctrl+D to process." short:"I"`
}

func (c *ConvertCmd) Run(ctx *Context) error {
	cfg, err := ctx.loadConfig(c.overrides())
	if err != nil {
		return err
	}
	logger, cleanup, err := ctx.logger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	opts := cfg.Options()
	if opts.TableName == "" && c.Input != "" {
		opts.TableName = batch.TableNameFor(c.Input)
	}
	opts = opts.WithDefaults()

	// 1. Read JSON input
	input, err := readInput(ctx, c.Input, c.Interactive)
	if err != nil {
		return err
	}

	// 2. Convert
	logger.Debug("converting", "format", opts.Format, "table", opts.TableName, "dialect", opts.SQLDialect)
	result, err := converter.New().Convert(ctx.runContext(), input, opts)
	if err != nil {
		return err
	}

	// 3. Apply the local record limit
	if err := quota.NewPolicy(c.Limit).Check(result.Statistics.RowsProcessed, false); err != nil {
		return err
	}

	// 4. Output the result
	output := result.Output
	if c.JSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errors.NewOutputError("failed to encode result", err)
		}
		output = string(data)
	}
	if err := writeOutput(ctx, c.Output, output); err != nil {
		return err
	}

	if c.Stats {
		return formatter.NewFormatter(false).Statistics(ctx.Stderr, result)
	}
	return nil
}

// CountCmd prints the number of records a document would produce.
type CountCmd struct {
	Input string `help:"Path to input JSON file. If not specified, reads from stdin." short:"i" type:"path"`
	JSON  bool   `help:"Print the count as a JSON object."`
}

func (c *CountCmd) Run(ctx *Context) error {
	input, err := readInput(ctx, c.Input, false)
	if err != nil {
		return err
	}

	n := converter.CountRecords(input)
	if c.JSON {
		return json.NewEncoder(ctx.Stdout).Encode(map[string]int{"records": n})
	}
	_, err = fmt.Fprintln(ctx.Stdout, n)
	return err
}

// BatchCmd converts many files into an output directory.
type BatchCmd struct {
	ConversionFlags

	Inputs  []string `arg:"" help:"JSON files to convert." type:"path"`
	OutDir  string   `help:"Directory for the converted files." short:"o" required:"" type:"path"`
	Workers int      `help:"Number of files converted at once. Defaults to the config value or the CPU count." short:"w"`
	JSON    bool     `help:"Print the batch summary as JSON."`
}

func (c *BatchCmd) Run(ctx *Context) error {
	cfg, err := ctx.loadConfig(c.overrides())
	if err != nil {
		return err
	}
	logger, cleanup, err := ctx.logger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	workers := c.Workers
	if workers == 0 {
		workers = cfg.Conversion.Workers
	}

	jobs := batch.Plan(c.Inputs, c.OutDir, cfg.Options())
	runner := batch.NewRunner(converter.New(), workers, logger)
	results, err := runner.Run(ctx.runContext(), jobs)
	if err != nil {
		return err
	}

	if err := formatter.NewFormatter(c.JSON).Batch(ctx.Stdout, results); err != nil {
		return err
	}

	if failed := batch.Failed(results); len(failed) > 0 {
		return errors.NewOutputError(
			fmt.Sprintf("%d of %d files failed to convert", len(failed), len(results)),
			failed[0].Err,
		)
	}
	return nil
}

// ServeCmd runs the HTTP API until interrupted.
type ServeCmd struct {
	Addr       string `help:"Listen address. Overrides the config and JSONFLAT_ADDR."`
	TrialLimit int    `help:"Record limit for callers without premium access. Zero disables it, negative keeps the configured limit." default:"-1"`
}

func (c *ServeCmd) Run(ctx *Context) error {
	cfg, err := ctx.loadConfig(config.CLIOverrides{})
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}
	if c.TrialLimit >= 0 {
		cfg.Server.TrialLimit = c.TrialLimit
	}

	// serve installs its logger as the slog default.
	cleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		return errors.NewConfigError("failed to set up logging", err)
	}
	defer func() { _ = cleanup() }()
	logger := slog.Default()

	srvCfg := server.Config{
		Addr:            cfg.Server.Addr,
		Policy:          quota.NewPolicy(cfg.Server.TrialLimit),
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Converter:       converter.New(),
		Logger:          logger,
	}

	if cfg.Accounts.DSN != "" {
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		srvCfg.Accounts = store
	} else {
		logger.Warn("no account database configured; every caller is a trial user")
	}

	resultCache, closeCache, err := buildCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer closeCache()
	srvCfg.Cache = resultCache

	srv, err := server.New(srvCfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx.runContext())
}

// AccountCmd manages the premium flag of API users.
type AccountCmd struct {
	DSN    string `help:"Account database DSN. Overrides the config and JSONFLAT_DB_DSN."`
	Driver string `help:"Account database driver: sqlite or postgres."`

	Show   AccountShowCmd   `cmd:"" help:"Show a user's premium status and purchases."`
	Grant  AccountGrantCmd  `cmd:"" help:"Grant premium access, optionally recording a purchase."`
	Revoke AccountRevokeCmd `cmd:"" help:"Revoke premium access."`
}

// AccountShowCmd prints one user.
type AccountShowCmd struct {
	Username string `arg:"" help:"Username to show."`
}

func (c *AccountShowCmd) Run(ctx *Context, parent *AccountCmd) error {
	store, err := parent.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	user, err := store.GetUser(ctx.runContext(), c.Username)
	if err != nil {
		return err
	}
	purchases, err := store.ListPurchases(ctx.runContext(), c.Username)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(ctx.Stdout, "%s premium=%t created=%s\n",
		user.Username, user.Premium, user.CreatedAt.Format("2006-01-02"))
	for _, p := range purchases {
		_, _ = fmt.Fprintf(ctx.Stdout, "  %s amount=%d at=%s\n",
			p.PaymentIntentID, p.Amount, p.PurchasedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// AccountGrantCmd grants premium access.
type AccountGrantCmd struct {
	Username      string `arg:"" help:"Username to upgrade."`
	PaymentIntent string `help:"Payment intent id of the purchase to record."`
	Amount        int64  `help:"Purchase amount in the smallest currency unit."`
}

func (c *AccountGrantCmd) Run(ctx *Context, parent *AccountCmd) error {
	store, err := parent.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if c.PaymentIntent != "" {
		if _, err := store.RecordPurchase(ctx.runContext(), c.Username, c.PaymentIntent, c.Amount); err != nil {
			return err
		}
	} else {
		if _, err := store.EnsureUser(ctx.runContext(), c.Username); err != nil {
			return err
		}
		if err := store.SetPremium(ctx.runContext(), c.Username, true); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(ctx.Stdout, "%s is now premium\n", c.Username)
	return err
}

// AccountRevokeCmd revokes premium access.
type AccountRevokeCmd struct {
	Username string `arg:"" help:"Username to downgrade."`
}

func (c *AccountRevokeCmd) Run(ctx *Context, parent *AccountCmd) error {
	store, err := parent.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SetPremium(ctx.runContext(), c.Username, false); err != nil {
		return err
	}
	_, err = fmt.Fprintf(ctx.Stdout, "%s is no longer premium\n", c.Username)
	return err
}

func (c *AccountCmd) open(ctx *Context) (*account.Store, error) {
	cfg, err := ctx.loadConfig(config.CLIOverrides{})
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if c.DSN != "" {
		cfg.Accounts.DSN = c.DSN
	}
	if c.Driver != "" {
		cfg.Accounts.Driver = c.Driver
	}
	if cfg.Accounts.DSN == "" {
		return nil, errors.NewConfigError("no account database configured; set accounts.dsn or --dsn", errors.ErrInvalidOptions)
	}

	// Account commands are short lived and log to stderr only.
	cfg.Logging.FilePath = ""
	logger, _, err := ctx.logger(cfg)
	if err != nil {
		return nil, err
	}
	return openStore(ctx, cfg, logger)
}

func openStore(ctx *Context, cfg *config.Config, logger *slog.Logger) (*account.Store, error) {
	driver, err := account.ParseDriver(cfg.Accounts.Driver)
	if err != nil {
		return nil, err
	}
	return account.Open(ctx.runContext(), driver, cfg.Accounts.DSN, logger)
}

// buildCache layers an in-process LRU over Redis when an address is set.
// An unreachable Redis is fatal so that misconfiguration shows at startup.
func buildCache(ctx *Context, cfg config.CacheConfig) (cache.Cache, func(), error) {
	if !cfg.Enabled {
		return cache.Nop{}, func() {}, nil
	}

	local, err := cache.NewLRU(cfg.Size)
	if err != nil {
		return nil, nil, errors.NewConfigError("failed to create result cache", err)
	}
	if cfg.RedisAddr == "" {
		return local, func() {}, nil
	}

	shared, err := cache.NewRedis(ctx.runContext(), cfg.RedisAddr, cfg.TTL)
	if err != nil {
		return nil, nil, err
	}
	return &cache.Tiered{Local: local, Shared: shared}, func() { _ = shared.Close() }, nil
}

// readInput reads JSON from a file, a pipe, or an interactive paste
func readInput(ctx *Context, path string, interactive bool) (string, error) {
	if path != "" {
		data, err := parser.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	if isTerminal(ctx.Stdin) {
		if interactive {
			return readInteractiveInput(ctx)
		}
		// No data provided on stdin and not in interactive mode
		return "", errors.NewInputError("no input provided", errors.ErrNoInput)
	}

	data, err := io.ReadAll(ctx.Stdin)
	if err != nil {
		return "", errors.NewInputError("failed to read from stdin", err)
	}
	if len(data) == 0 {
		return "", errors.NewInputError("empty input received from stdin", errors.ErrEmptyInput)
	}
	return string(data), nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// readInteractiveInput lets users paste JSON and signal completion with
// Ctrl+D (EOF)
func readInteractiveInput(ctx *Context) (string, error) {
	_, _ = fmt.Fprintln(ctx.Stderr, "jsonflat Interactive Mode")
	_, _ = fmt.Fprintln(ctx.Stderr, "Paste your JSON below and press Ctrl+D (or Ctrl+Z on Windows) when done:")

	reader := bufio.NewReader(ctx.Stdin)
	var jsonBuilder strings.Builder
	for {
		line, err := reader.ReadString('\n')
		jsonBuilder.WriteString(line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.NewInputError("error reading input", err)
		}
	}

	if strings.TrimSpace(jsonBuilder.String()) == "" {
		return "", errors.NewInputError("empty input received", errors.ErrEmptyInput)
	}

	_, _ = fmt.Fprintln(ctx.Stderr, "\nProcessing JSON...")
	return jsonBuilder.String(), nil
}

// writeOutput writes to a file or stdout
func writeOutput(ctx *Context, path, output string) error {
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return errors.NewOutputError(fmt.Sprintf("failed to create directory for '%s'", path), err)
			}
		}
		if err := os.WriteFile(path, []byte(output), 0644); err != nil {
			return errors.NewOutputError(fmt.Sprintf("failed to write to file '%s'", path), err)
		}
		_, _ = fmt.Fprintf(ctx.Stderr, "Output written to %s\n", path)
		return nil
	}

	if !strings.HasSuffix(output, "\n") {
		output += "\n"
	}
	if _, err := io.WriteString(ctx.Stdout, output); err != nil {
		return errors.NewOutputError("failed to write to stdout", err)
	}
	return nil
}
