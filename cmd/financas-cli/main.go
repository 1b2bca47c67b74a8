package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"financas/internal/cli"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/seed"
	"financas/internal/services"
)

const usage = `usage: financas-cli <command> [flags]

commands:
  summary       print the month summary (-ref YYYY-MM-DD)
  transactions  list transactions (-start -end -category a,b -type -limit)
  budgets       list budgets, or their usage with -report
  contribute    add to a goal (-goal id -amount 12,34; negative withdraws)
  export        write a JSON backup (-o file, default stdout)
  import        load a JSON backup file
  seed          generate demo data (-months -per-month -seed)
  clear         delete all data (-yes required)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(envOr("LOG_LEVEL", "warn"), log.ComponentCLI)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	store := cli.InitStore(ctx, logger, cfg)
	publisher := cli.InitAMQP(logger, cfg)
	svc := cli.NewFinanceService(store, publisher, logger, cfg)

	err := run(ctx, svc, os.Args[1], os.Args[2:], os.Stdout)
	if cerr := svc.Close(); cerr != nil {
		logger.Error("Failed to release resources", log.FieldError, cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, svc *services.FinanceService, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "summary":
		return runSummary(ctx, svc, args, out)
	case "transactions":
		return runTransactions(ctx, svc, args, out)
	case "budgets":
		return runBudgets(ctx, svc, args, out)
	case "contribute":
		return runContribute(ctx, svc, args, out)
	case "export":
		return runExport(ctx, svc, args, out)
	case "import":
		return runImport(ctx, svc, args, out)
	case "seed":
		return runSeed(ctx, svc, args, out)
	case "clear":
		return runClear(ctx, svc, args, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func runSummary(ctx context.Context, svc *services.FinanceService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	refFlag := fs.String("ref", "", "reference date (YYYY-MM-DD), default today")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ref := time.Now()
	if *refFlag != "" {
		d, err := core.ParseDate(*refFlag)
		if err != nil {
			return fmt.Errorf("ref: %w", err)
		}
		ref = d.Time
	}

	s, err := svc.Summary(ctx, ref)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(out, s)
	}

	fmt.Fprintf(out, "Income:   %s\n", core.FormatReais(s.TotalIncome))
	fmt.Fprintf(out, "Expenses: %s\n", core.FormatReais(s.TotalExpenses))
	fmt.Fprintf(out, "Balance:  %s\n", core.FormatReais(s.Balance))
	if len(s.ExpensesByCategory) > 0 {
		fmt.Fprintln(out, "\nBy category:")
		for _, c := range core.Categories() {
			if v, ok := s.ExpensesByCategory[c]; ok {
				fmt.Fprintf(out, "  %-14s %s\n", c.DisplayName(), core.FormatReais(v))
			}
		}
	}
	fmt.Fprintln(out, "\nTrend:")
	for _, m := range s.MonthlyTrend {
		fmt.Fprintf(out, "  %-14s %12s %12s %12s\n", m.Month,
			core.FormatReais(m.Income), core.FormatReais(m.Expenses), core.FormatReais(m.Balance))
	}
	return nil
}

func runTransactions(ctx context.Context, svc *services.FinanceService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("transactions", flag.ContinueOnError)
	start := fs.String("start", "", "first day (YYYY-MM-DD)")
	end := fs.String("end", "", "last day (YYYY-MM-DD)")
	categories := fs.String("category", "", "comma separated categories")
	txType := fs.String("type", "", "income or expense")
	limit := fs.Int("limit", 0, "maximum number of rows, newest first")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var f core.Filters
	var err error
	if *start != "" {
		if f.Start, err = core.ParseDate(*start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	if *end != "" {
		if f.End, err = core.ParseDate(*end); err != nil {
			return fmt.Errorf("end: %w", err)
		}
	}
	for _, c := range strings.Split(*categories, ",") {
		if strings.TrimSpace(c) == "" {
			continue
		}
		cat, err := core.ParseCategory(c)
		if err != nil {
			return err
		}
		f.Categories = append(f.Categories, cat)
	}
	if *txType != "" {
		if f.Type, err = core.ParseTransactionType(*txType); err != nil {
			return err
		}
	}

	txs, err := svc.Transactions(ctx, f)
	if err != nil {
		return err
	}
	if *limit > 0 && len(txs) > *limit {
		txs = txs[:*limit]
	}
	for _, t := range txs {
		sign := "-"
		if t.Type == core.Income {
			sign = "+"
		}
		fmt.Fprintf(out, "%s  %s%-12s  %-14s  %s\n", t.Date, sign, core.FormatReais(t.Amount), t.Category.DisplayName(), t.Description)
	}
	return nil
}

func runContribute(ctx context.Context, svc *services.FinanceService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("contribute", flag.ContinueOnError)
	goalID := fs.String("goal", "", "goal id")
	amountFlag := fs.String("amount", "", "amount, dot or comma decimals")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *goalID == "" {
		return fmt.Errorf("%w: -goal is required", core.ErrInvalidInput)
	}
	amount, err := core.ParseSignedAmount(*amountFlag)
	if err != nil {
		return fmt.Errorf("amount %q: %w", *amountFlag, err)
	}

	g, err := svc.ContributeToGoal(ctx, *goalID, amount)
	if err != nil {
		return err
	}
	status := "in progress"
	if g.Completed {
		status = "completed"
	}
	fmt.Fprintf(out, "%s: %s of %s (%s)\n", g.Title,
		core.FormatReais(g.CurrentAmount), core.FormatReais(g.TargetAmount), status)
	return nil
}

func runBudgets(ctx context.Context, svc *services.FinanceService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("budgets", flag.ContinueOnError)
	report := fs.Bool("report", false, "show usage percentages")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *report {
		rows, err := svc.BudgetReport(ctx)
		if err != nil {
			return err
		}
		for _, u := range rows {
			fmt.Fprintf(out, "%-14s %12s / %-12s %6s%%  %s\n", u.Category.DisplayName(),
				core.FormatReais(u.Spent), core.FormatReais(u.Limit), u.Percentage.StringFixed(1), u.Status)
		}
		return nil
	}

	budgets, err := svc.Budgets(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, budgets)
}

func runExport(ctx context.Context, svc *services.FinanceService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	path := fs.String("o", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	backup, err := svc.Export(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	if *path == "" {
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	if err := os.WriteFile(*path, data, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	fmt.Fprintf(out, "Exported %d transactions, %d budgets, %d goals to %s\n",
		len(backup.Transactions), len(backup.Budgets), len(backup.Goals), *path)
	return nil
}

func runImport(ctx context.Context, svc *services.FinanceService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("import needs exactly one backup file")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	backup, err := services.DecodeBackup(data)
	if err != nil {
		return err
	}
	res, err := svc.Import(ctx, backup)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %d transactions, %d budgets, %d goals\n", res.Transactions, res.Budgets, res.Goals)
	return nil
}

func runSeed(ctx context.Context, svc *services.FinanceService, args []string, out io.Writer) error {
	opts := seed.DefaultOptions()
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.IntVar(&opts.Months, "months", opts.Months, "months of history")
	fs.IntVar(&opts.ExpensesPerMonth, "per-month", opts.ExpensesPerMonth, "expenses per month")
	fs.Int64Var(&opts.Seed, "seed", 0, "random seed (0 = random)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := svc.Import(ctx, seed.Generate(opts))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d transactions, %d budgets, %d goals\n", res.Transactions, res.Budgets, res.Goals)
	return nil
}

func runClear(ctx context.Context, svc *services.FinanceService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "confirm deletion of all data")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return fmt.Errorf("refusing to clear without -yes")
	}
	if err := svc.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "All data cleared")
	return nil
}
