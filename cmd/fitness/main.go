// fitness is a terminal client for the activity tracking service. It logs in
// through the identity provider, lists and records activities, shows AI
// recommendations and analytics, and can serve the same views as a local
// JSON dashboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"example.com/fitness/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"login", "log in through the identity provider", cmdLogin},
	{"logout", "forget the stored session", cmdLogout},
	{"whoami", "show the logged-in user", cmdWhoami},
	{"list", "list your activities", cmdList},
	{"add", "record an activity", cmdAdd},
	{"show", "show an activity and its recommendation", cmdShow},
	{"analytics", "show totals, breakdown and achievements", cmdAnalytics},
	{"dashboard", "show goal progress and recent activities", cmdDashboard},
	{"serve", "serve the local JSON dashboard", cmdServe},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.Load()

	var verbose bool
	flagSet := pflag.NewFlagSet("fitness", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "activity API base URL")
	flagSet.StringVar(&cfg.Store, "store", cfg.Store, "session store: file, sqlite or memory")
	flagSet.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "session store location")
	flagSet.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "YAML catalog of achievements, type styles and goals")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log at LOG_LEVEL instead of warnings only")
	flagSet.Usage = func() { printHelp(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(stderr, flagSet)
		return errors.New("missing command")
	}
	var cmd *command
	for i := range commands {
		if commands[i].name == rest[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		printHelp(stderr, flagSet)
		err := fmt.Errorf("unknown command %q", rest[0])
		fmt.Fprintln(stderr, "error:", err)
		return err
	}

	a, err := newApp(ctx, cfg, appOptions{
		stdout:  stdout,
		stderr:  stderr,
		verbose: verbose || cmd.name == "serve",
	})
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return err
	}
	defer a.close()

	if err := cmd.run(ctx, a, rest[1:]); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			a.errOut.Error(err)
		}
		return err
	}
	return nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: fitness [flags] <command> [command flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, flagSet.FlagUsages())
}
