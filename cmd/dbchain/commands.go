package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/caddyserver/caddy/v2"
	caddycmd "github.com/caddyserver/caddy/v2/cmd"
	"github.com/spf13/cobra"

	"gfx.cafe/gfx/dbchain/lib/catalog"
	"gfx.cafe/gfx/dbchain/lib/export"
	"gfx.cafe/gfx/dbchain/lib/reconcile"
)

func init() {
	env := loadEnv()

	caddycmd.RegisterCommand(caddycmd.Command{
		Name:  "chain-sync",
		Usage: "[--config <path>] [--cluster <owner>] [--dry-run]",
		Short: "Reconciles the directory of a cluster against discovery once",
		Long: `
Discovers the current topology of a cluster, saves every usable node to the
directory and removes the records of nodes that are gone. With --dry-run the
directory is left alone and the difference is printed instead.
`,
		CobraFunc: func(cmd *cobra.Command) {
			addCommonFlags(cmd.Flags(), env)
			cmd.Flags().Bool("dry-run", false, "print what would change without writing")
			cmd.RunE = caddycmd.WrapCommandFuncForCobra(runSync)
		},
	})

	caddycmd.RegisterCommand(caddycmd.Command{
		Name:  "chain-monitor",
		Usage: "[--config <path>] [--cluster <owner>] [--sync]",
		Short: "Collects transaction snapshots and prints follower lag",
		Long: `
Connects to every node of the persisted catalog concurrently and prints its
transaction lag, cache hit ratio and query activity. With --sync the catalog
is discovered and saved first.
`,
		CobraFunc: func(cmd *cobra.Command) {
			addCommonFlags(cmd.Flags(), env)
			cmd.Flags().Bool("sync", false, "reconcile before monitoring")
			cmd.Flags().Bool("slow-queries", false, "print slow query texts")
			cmd.RunE = caddycmd.WrapCommandFuncForCobra(runMonitor)
		},
	})

	caddycmd.RegisterCommand(caddycmd.Command{
		Name:  "chain-export",
		Usage: "[--config <path>] [--cluster <owner>] [--env <name>] [--format yaml|json]",
		Short: "Prints the persisted catalog as an application database config",
		CobraFunc: func(cmd *cobra.Command) {
			addCommonFlags(cmd.Flags(), env)
			cmd.Flags().String("env", env.Env, "name of the master entry")
			cmd.Flags().String("format", "yaml", "output format, yaml or json")
			cmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
			cmd.RunE = caddycmd.WrapCommandFuncForCobra(runExport)
		},
	})
}

func printResult(res *reconcile.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "run\t%s\n", res.RunID)
	for _, key := range res.Persisted {
		fmt.Fprintf(w, "persisted\t%s\n", key)
	}
	for _, key := range res.Pruned {
		fmt.Fprintf(w, "pruned\t%s\n", key)
	}
	for _, skip := range res.Skipped {
		fmt.Fprintf(w, "skipped\t%s\t%s (%s)\n", skip.Key, skip.Reason, skip.Status)
	}
	for _, anomaly := range res.Anomalies {
		fmt.Fprintf(w, "anomaly\t%s\t%v\n", anomaly.Key, anomaly)
	}
}

func runSync(flags caddycmd.Flags) (int, error) {
	cluster, cancel, err := loadCluster(flags)
	if err != nil {
		return caddy.ExitCodeFailedStartup, err
	}
	defer cancel()

	ctx := context.Background()

	if !flags.Bool("dry-run") {
		res, err := cluster.Sync(ctx)
		if res != nil {
			printResult(res)
		}
		if err != nil {
			return caddy.ExitCodeFailedStartup, err
		}
		return caddy.ExitCodeSuccess, nil
	}

	before, err := cluster.Load(ctx)
	if err != nil {
		return caddy.ExitCodeFailedStartup, err
	}
	plan, err := cluster.Plan(ctx)
	if err != nil {
		return caddy.ExitCodeFailedStartup, err
	}
	printResult(plan)
	if !export.Changed(before, plan.Catalog) {
		fmt.Println("no changes")
		return caddy.ExitCodeSuccess, nil
	}
	for _, line := range export.Diff(before, plan.Catalog) {
		fmt.Println(line)
	}
	return caddy.ExitCodeSuccess, nil
}

func runMonitor(flags caddycmd.Flags) (int, error) {
	cluster, cancel, err := loadCluster(flags)
	if err != nil {
		return caddy.ExitCodeFailedStartup, err
	}
	defer cancel()

	ctx := context.Background()

	var c catalog.Catalog
	if flags.Bool("sync") {
		res, err := cluster.Sync(ctx)
		if err != nil {
			return caddy.ExitCodeFailedStartup, err
		}
		c = res.Catalog
	} else if c, err = cluster.Load(ctx); err != nil {
		return caddy.ExitCodeFailedStartup, err
	}

	report, err := cluster.Monitor(ctx, c)
	var violation *catalog.TopologyInvariantViolation
	if err != nil && !errors.As(err, &violation) {
		return caddy.ExitCodeFailedStartup, err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tROLE\tCOLOR\tLAG\tCACHE HIT\tRUNNING\tSLOW\tERROR")
	report.Catalog.Range(func(node catalog.Node) bool {
		if node.Metrics == nil {
			fmt.Fprintf(w, "%s\t%s\t%s\t-\t-\t-\t-\t%v\n", node.Key, node.Role, node.Color, node.Failure)
			return true
		}
		lag := "-"
		if node.Metrics.Lag != nil {
			lag = strconv.FormatInt(*node.Metrics.Lag, 10)
		}
		ratio := "-"
		if r, ok := node.Metrics.CacheHitRatio(); ok {
			ratio = strconv.FormatFloat(r, 'f', 4, 64)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t\n",
			node.Key,
			node.Role,
			node.Color,
			lag,
			ratio,
			node.Metrics.RunningQueries,
			len(node.Metrics.SlowQueries),
		)
		return true
	})
	_ = w.Flush()

	if flags.Bool("slow-queries") {
		report.Catalog.Range(func(node catalog.Node) bool {
			if node.Metrics == nil {
				return true
			}
			for _, query := range node.Metrics.SlowQueries {
				fmt.Printf("%s: %s\n", node.Key, query)
			}
			return true
		})
	}
	for _, skew := range report.Skews {
		fmt.Printf("warning: %s is ahead of the master by %d transactions\n", skew.Key, -skew.Lag)
	}
	if report.LagError != nil {
		fmt.Printf("warning: lag not computed: %v\n", report.LagError)
	}

	if err != nil {
		return caddy.ExitCodeFailedStartup, err
	}
	if len(report.Failures) > 0 {
		return caddy.ExitCodeFailedStartup, fmt.Errorf("%d of %d nodes could not be collected", len(report.Failures), report.Catalog.Len())
	}
	return caddy.ExitCodeSuccess, nil
}

func runExport(flags caddycmd.Flags) (int, error) {
	cluster, cancel, err := loadCluster(flags)
	if err != nil {
		return caddy.ExitCodeFailedStartup, err
	}
	defer cancel()

	c, err := cluster.Load(context.Background())
	if err != nil {
		return caddy.ExitCodeFailedStartup, err
	}
	doc, err := export.Config(c, flags.String("env"))
	if err != nil {
		return caddy.ExitCodeFailedStartup, err
	}

	var out []byte
	switch format := flags.String("format"); format {
	case "yaml", "yml":
		out, err = export.YAML(doc)
	case "json":
		out, err = json.MarshalIndent(doc, "", "  ")
		out = append(out, '\n')
	default:
		return caddy.ExitCodeFailedStartup, fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return caddy.ExitCodeFailedStartup, err
	}

	if path := flags.String("output"); path != "" {
		if err = os.WriteFile(path, out, 0o600); err != nil {
			return caddy.ExitCodeFailedStartup, err
		}
		return caddy.ExitCodeSuccess, nil
	}
	_, err = os.Stdout.Write(out)
	if err != nil {
		return caddy.ExitCodeFailedStartup, err
	}
	return caddy.ExitCodeSuccess, nil
}
