package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/housepulse/housepulse/internal/engine"
	"github.com/housepulse/housepulse/internal/query"
)

const usage = `housepulse v%s - property transaction analytics

Usage: housepulse <command> [flags]

Commands:
  import      import a price paid CSV into a store
  info        show record count and date range
  aggregate   group transactions and summarize a measure
  distinct    list the distinct values of a category field
  yoy         year-over-year change of a bucketed statistic
  rolling     trailing moving average of a bucketed statistic
  summaries   list or show persisted summaries
  runs        list recorded imports
  serve       run the HTTP query API

Run 'housepulse <command> -h' for command flags.
`

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, Version)
		os.Exit(2)
	}

	app := NewApp(log)
	defer app.Close()

	var err error
	switch os.Args[1] {
	case "import":
		err = cmdImport(app, os.Args[2:])
	case "info":
		err = cmdInfo(app, os.Args[2:])
	case "aggregate":
		err = cmdAggregate(app, os.Args[2:])
	case "yoy":
		err = cmdYoY(app, os.Args[2:])
	case "rolling":
		err = cmdRolling(app, os.Args[2:])
	case "distinct":
		err = cmdDistinct(app, os.Args[2:])
	case "summaries":
		err = cmdSummaries(app, os.Args[2:])
	case "runs":
		err = cmdRuns(app, os.Args[2:])
	case "serve":
		err = cmdServe(app, os.Args[2:])
	case "version":
		fmt.Println(Version)
	default:
		fmt.Fprintf(os.Stderr, usage, Version)
		os.Exit(2)
	}

	if err != nil {
		log.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

// storeFlags adds the flags shared by every command that touches a store.
func storeFlags(fs *flag.FlagSet) (driver, db *string) {
	driver = fs.String("driver", "sqlite", "database driver (sqlite or postgres)")
	db = fs.String("db", "housepulse.db", "database file path or connection string")
	return driver, db
}

// filterFlag collects repeated -filter values.
type filterFlag []FilterItem

func (f *filterFlag) String() string { return fmt.Sprint(*f) }

func (f *filterFlag) Set(raw string) error {
	item, err := parseFilter(raw)
	if err != nil {
		return err
	}
	*f = append(*f, item)
	return nil
}

// parseFilter splits a filter expression such as district=CAMDEN,
// price>=500000, or district~KENSINGTON (contains).
func parseFilter(raw string) (FilterItem, error) {
	ops := []struct {
		token string
		op    query.Operator
	}{
		{"!=", query.NotEqual},
		{">=", query.GreaterOrEqual},
		{"<=", query.LessOrEqual},
		{"!~", query.NotLike},
		{"~", query.Like},
		{"=", query.Equal},
	}
	for _, o := range ops {
		if i := strings.Index(raw, o.token); i > 0 {
			return FilterItem{
				Field:    strings.TrimSpace(raw[:i]),
				Operator: o.op,
				Value:    strings.TrimSpace(raw[i+len(o.token):]),
			}, nil
		}
	}
	return FilterItem{}, fmt.Errorf("invalid filter %q, expected field=value", raw)
}

func splitGroups(raw string) []string {
	var groups []string
	for _, g := range strings.Split(raw, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// printJSON writes a result to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdImport(app *App, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	driver, db := storeFlags(fs)
	create := fs.Bool("create", false, "create the database before importing")
	format := fs.String("format", "auto", "source format (auto, raw, headered, or jsonl)")
	from := fs.String("from", "", "only import transfers on or after this date (YYYY-MM-DD)")
	to := fs.String("to", "", "only import transfers on or before this date (YYYY-MM-DD)")
	limit := fs.Int("limit", 0, "cap the number of rows read (0 means no cap)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: housepulse import [flags] <csv-path>")
	}

	var err error
	if *create {
		err = app.Create(*driver, *db)
	} else {
		err = app.Open(*driver, *db)
	}
	if err != nil {
		return err
	}

	report, err := app.Import(fs.Arg(0), *format, *from, *to, *limit)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func cmdInfo(app *App, args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	driver, db := storeFlags(fs)
	fs.Parse(args)

	if err := app.Open(*driver, *db); err != nil {
		return err
	}
	info, err := app.Info()
	if err != nil {
		return err
	}
	return printJSON(info)
}

func cmdAggregate(app *App, args []string) error {
	fs := flag.NewFlagSet("aggregate", flag.ExitOnError)
	driver, db := storeFlags(fs)
	var filters filterFlag
	fs.Var(&filters, "filter", "filter expression, repeatable (e.g. district=CAMDEN)")
	group := fs.String("group", "", "comma-separated group fields or time buckets")
	measure := fs.String("measure", "price", "numeric field to summarize")
	from := fs.String("from", "", "start of the transfer date range (YYYY-MM-DD)")
	to := fs.String("to", "", "end of the transfer date range (YYYY-MM-DD)")
	saveAs := fs.String("save", "", "persist the result as a named summary")
	fs.Parse(args)

	if err := app.Open(*driver, *db); err != nil {
		return err
	}
	results, err := app.Aggregate(filters, *from, *to, splitGroups(*group), *measure, *saveAs)
	if err != nil {
		return err
	}
	return printJSON(results)
}

// seriesFlags adds the flags shared by the yoy and rolling commands.
func seriesFlags(fs *flag.FlagSet) (bucket, measure, stat, from, to *string, filters *filterFlag) {
	bucket = fs.String("bucket", "year", "time bucket (year, quarter, or year_month)")
	measure = fs.String("measure", "price", "numeric field to summarize")
	stat = fs.String("stat", "mean", "statistic to track (count, sum, mean, min, max)")
	from = fs.String("from", "", "start of the transfer date range (YYYY-MM-DD)")
	to = fs.String("to", "", "end of the transfer date range (YYYY-MM-DD)")
	filters = &filterFlag{}
	fs.Var(filters, "filter", "filter expression, repeatable (e.g. district=CAMDEN)")
	return
}

func cmdYoY(app *App, args []string) error {
	fs := flag.NewFlagSet("yoy", flag.ExitOnError)
	driver, db := storeFlags(fs)
	bucket, measure, statName, from, to, filters := seriesFlags(fs)
	skipZero := fs.Bool("skip-zero", false, "omit buckets whose base value is zero instead of failing")
	fs.Parse(args)

	stat, err := engine.ParseStat(*statName)
	if err != nil {
		return err
	}
	if err := app.Open(*driver, *db); err != nil {
		return err
	}
	series, err := app.YearOverYear(*filters, *from, *to, *bucket, *measure, stat, *skipZero)
	if err != nil {
		return err
	}
	return printJSON(series)
}

func cmdRolling(app *App, args []string) error {
	fs := flag.NewFlagSet("rolling", flag.ExitOnError)
	driver, db := storeFlags(fs)
	bucket, measure, statName, from, to, filters := seriesFlags(fs)
	window := fs.Int("window", 3, "number of buckets to average over")
	fs.Parse(args)

	stat, err := engine.ParseStat(*statName)
	if err != nil {
		return err
	}
	if err := app.Open(*driver, *db); err != nil {
		return err
	}
	series, err := app.Rolling(*filters, *from, *to, *bucket, *measure, stat, *window)
	if err != nil {
		return err
	}
	return printJSON(series)
}

func cmdDistinct(app *App, args []string) error {
	fs := flag.NewFlagSet("distinct", flag.ExitOnError)
	driver, db := storeFlags(fs)
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: housepulse distinct [flags] <field>")
	}
	if err := app.Open(*driver, *db); err != nil {
		return err
	}
	values, err := app.DistinctValues(fs.Arg(0))
	if err != nil {
		return err
	}
	return printJSON(values)
}

func cmdSummaries(app *App, args []string) error {
	fs := flag.NewFlagSet("summaries", flag.ExitOnError)
	driver, db := storeFlags(fs)
	show := fs.String("show", "", "print the rows of one summary instead of listing names")
	fs.Parse(args)

	if err := app.Open(*driver, *db); err != nil {
		return err
	}
	if *show != "" {
		results, err := app.LoadSummary(*show)
		if err != nil {
			return err
		}
		return printJSON(results)
	}
	names, err := app.Summaries()
	if err != nil {
		return err
	}
	return printJSON(names)
}

func cmdRuns(app *App, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	driver, db := storeFlags(fs)
	fs.Parse(args)

	if err := app.Open(*driver, *db); err != nil {
		return err
	}
	runs, err := app.ImportRuns()
	if err != nil {
		return err
	}
	return printJSON(runs)
}

func cmdServe(app *App, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	driver, db := storeFlags(fs)
	addr := fs.String("addr", ":8080", "listen address")
	fs.Parse(args)

	if err := app.Open(*driver, *db); err != nil {
		return err
	}
	return app.Serve(*addr)
}
