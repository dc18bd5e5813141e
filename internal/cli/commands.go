package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"text/tabwriter"

	"saldo/internal/core"
	apphttp "saldo/internal/http"
	applog "saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/services"
)

// ErrUsage marks bad command lines; callers exit with status 2.
var ErrUsage = errors.New("usage error")

type command struct {
	usage string
	run   func(ctx context.Context, r *Runner, args []string) error
}

var commands = map[string]command{
	"salary":  {"salary <amount> [-month YYYY-MM]", runSalary},
	"add":     {"add -amount A -category C [-description D] [-date YYYY-MM-DD]", runAdd},
	"balance": {"balance [-month YYYY-MM]", runBalance},
	"list":    {"list [-limit N]", runList},
	"stats":   {"stats", runStats},
	"export":  {"export [-dir D] [-format xlsx|csv]", runExport},
	"serve":   {"serve", runServe},
}

// Runner executes one subcommand against an opened App.
type Runner struct {
	App    *App
	Logger *applog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

// Run dispatches args[0] to its subcommand.
func (r *Runner) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		r.printUsage()
		return ErrUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(r.Stderr, "unknown command %q\n", args[0])
		r.printUsage()
		return ErrUsage
	}
	return cmd.run(ctx, r, args[1:])
}

func (r *Runner) printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(r.Stderr, "usage: saldo <command> [flags]")
	for _, name := range names {
		fmt.Fprintf(r.Stderr, "  saldo %s\n", commands[name].usage)
	}
}

func (r *Runner) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(r.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(r.Stderr, "usage: saldo %s\n", commands[name].usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses flags that may appear before or after positional
// arguments and returns the positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUsage, err)
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func (r *Runner) symbol() string {
	return r.App.Config.CurrencySymbol
}

func (r *Runner) printBalance(ctx context.Context, month core.MonthKey) error {
	b, err := r.App.Balance.ComputeBalance(ctx, month)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.Stdout, b.Format(r.symbol()))
	return nil
}

func runSalary(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("salary")
	month := fs.String("month", "", "month the salary applies to (default current month)")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		fs.Usage()
		return ErrUsage
	}

	rec, err := r.App.Expenses.SetSalary(ctx, rest[0], *month)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.Stdout, "Salary for %s set to %s\n", rec.Month, core.FormatMoney(r.symbol(), rec.Amount))
	return r.printBalance(ctx, rec.Month)
}

func runAdd(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("add")
	var in services.ExpenseInput
	fs.StringVar(&in.Amount, "amount", "", "amount spent, e.g. 25.50")
	fs.StringVar(&in.Category, "category", "", "category, e.g. "+strings.Join(core.DefaultCategories, ", "))
	fs.StringVar(&in.Description, "description", "", "optional note")
	fs.StringVar(&in.Date, "date", "", "date of the expense (default today)")
	if rest, err := parseArgs(fs, args); err != nil {
		return err
	} else if len(rest) != 0 {
		fs.Usage()
		return ErrUsage
	}

	e, err := r.App.Expenses.AddExpense(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.Stdout, "Added expense #%d: %s %s on %s\n", e.ID, core.FormatMoney(r.symbol(), e.Amount), e.Category, e.Date)
	return r.printBalance(ctx, e.Date.MonthKey())
}

func runBalance(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("balance")
	month := fs.String("month", "", "month to report (default current month)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	key := core.CurrentMonth(r.App.now())
	if *month != "" {
		var err error
		if key, err = core.ParseMonthKey(*month); err != nil {
			return err
		}
	}
	return r.printBalance(ctx, key)
}

func runList(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("list")
	limit := fs.Int("limit", r.App.Config.RecentLimit, "number of expenses to show")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if *limit < 1 {
		return core.NewValidationError("limit", fmt.Sprint(*limit), core.ErrInvalidLimit)
	}

	expenses, err := r.App.Expenses.RecentExpenses(ctx, *limit)
	if err != nil {
		return err
	}
	if len(expenses) == 0 {
		fmt.Fprintln(r.Stdout, "No expenses recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(r.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Date\tAmount\tCategory\tDescription\t")
	for _, e := range expenses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", e.Date, core.FormatMoney(r.symbol(), e.Amount), e.Category, e.Description)
	}
	return tw.Flush()
}

func runStats(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("stats")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	report, err := r.App.Statistics.BuildReport(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.Stdout, report.Format(r.symbol()))
	return nil
}

func runExport(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("export")
	dir := fs.String("dir", r.App.Config.ExportDir, "directory to write the export to")
	format := fs.String("format", r.App.Config.ExportFormat, "xlsx or csv")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	writer := r.App.Export
	if *format != r.App.Config.ExportFormat {
		f, err := services.ParseExportFormat(*format)
		if err != nil {
			return err
		}
		writer = services.NewExportWriter(r.App.Repo, f)
	}

	path, err := writer.ExportAll(ctx, *dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.Stdout, "Data exported to %s\n", path)
	return nil
}

func runServe(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("serve")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	cfg := r.App.Config

	var limiter *ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
		defer limiter.Stop()
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Expenses:    r.App.Expenses,
		Balance:     r.App.Balance,
		Statistics:  r.App.Statistics,
		Export:      r.App.Export,
		Store:       r.App.Repo,
		ExportDir:   cfg.ExportDir,
		RecentLimit: cfg.RecentLimit,
		Limiter:     limiter,
	}, r.Logger)

	errCh := make(chan error, 1)
	go func() {
		r.Logger.Info("Starting saldo API", "port", cfg.Port, "db", cfg.SQLiteDBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve on port %s: %w", cfg.Port, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		r.Logger.Error("Server shutdown error", applog.FieldOperation, applog.OpShutdown, applog.FieldError, err)
		return err
	}
	<-errCh
	r.Logger.Info("Server stopped gracefully")
	return nil
}
