package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"example.com/fitness/internal/auth"
	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/session"
	httptransport "example.com/fitness/internal/transport/http"
	"example.com/fitness/internal/web"
)

func noArgs(name string, args []string) error {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("%s: unexpected argument %q", name, flagSet.Arg(0))
	}
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
	timeout := flagSet.Duration("timeout", a.cfg.LoginTimeout, "how long to wait for the browser to finish")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	callback, err := session.NewCallbackServer(a.sessions, a.provider.RedirectURL())
	if err != nil {
		return err
	}
	authURL, err := a.sessions.BeginLogin(ctx)
	if err != nil {
		_ = callback.Close()
		return err
	}

	fmt.Fprintln(a.stdout, "Open this URL in your browser to log in:")
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, "  "+authURL)
	fmt.Fprintln(a.stdout)
	fmt.Fprintf(a.stdout, "Waiting for the redirect to %s ...\n", callback.URL())

	waitCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	sess, err := callback.Wait(waitCtx)
	if err != nil {
		return err
	}
	a.out.Session(sess)
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	if err := noArgs("logout", args); err != nil {
		return err
	}
	if err := a.sessions.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Logged out.")
	return nil
}

func cmdWhoami(_ context.Context, a *app, args []string) error {
	if err := noArgs("whoami", args); err != nil {
		return err
	}
	a.out.Session(a.sessions.Current())
	return nil
}

func cmdList(ctx context.Context, a *app, args []string) error {
	if err := noArgs("list", args); err != nil {
		return err
	}
	activities, err := a.aggregator.FetchActivities(ctx)
	if err != nil {
		return err
	}
	a.out.Activities(activities)
	return nil
}

func cmdAdd(ctx context.Context, a *app, args []string) error {
	flagSet := pflag.NewFlagSet("add", pflag.ContinueOnError)
	activityType := flagSet.StringP("type", "t", "", "activity type, e.g. RUNNING or CYCLING")
	duration := flagSet.StringP("duration", "d", "", "duration in minutes")
	calories := flagSet.StringP("calories", "c", "", "calories burned")
	notes := flagSet.StringP("notes", "n", "", "free-form notes")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	draft, err := domain.ParseDraft(*activityType, *duration, *calories, *notes)
	if err != nil {
		return err
	}
	created, snap, err := a.aggregator.SubmitAndRefresh(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Added activity %s.\n\n", created.ID)
	a.out.Dashboard(domain.BuildDashboard(snap.View, snap.Activities, a.catalog.Goals, a.catalog.RecentCount))
	return nil
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return errors.New("usage: fitness show <activity-id>")
	}
	detail, err := a.aggregator.FetchActivityDetail(ctx, flagSet.Arg(0))
	if err != nil {
		return err
	}
	a.out.Detail(detail)
	return nil
}

func cmdAnalytics(ctx context.Context, a *app, args []string) error {
	if err := noArgs("analytics", args); err != nil {
		return err
	}
	snap, err := a.aggregator.Refresh(ctx)
	if err != nil {
		return err
	}
	a.out.Analytics(snap.View)
	return nil
}

func cmdDashboard(ctx context.Context, a *app, args []string) error {
	if err := noArgs("dashboard", args); err != nil {
		return err
	}
	snap, err := a.aggregator.Refresh(ctx)
	if err != nil {
		return err
	}
	a.out.Dashboard(domain.BuildDashboard(snap.View, snap.Activities, a.catalog.Goals, a.catalog.RecentCount))
	return nil
}

func cmdServe(ctx context.Context, a *app, args []string) error {
	flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	address := flagSet.String("addr", a.cfg.HTTPAddress, "listen address")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	handler := web.NewHandler(a.sessions, a.aggregator,
		web.WithGoals(a.catalog.Goals),
		web.WithRecent(a.catalog.RecentCount),
		web.WithLogger(a.logger),
	)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(a.sessions, auth.PublicPaths(web.PublicPaths...))
	cfg := httptransport.DefaultServerConfig(*address)
	server := httptransport.NewServer(cfg, httptransport.Chain(mux,
		httptransport.RequestLogger(a.logger),
		httptransport.CORS(a.cfg.CORSOrigin),
		authMiddleware.Wrap,
	))

	fmt.Fprintf(a.stdout, "Dashboard on http://%s (log in at /login)\n", *address)
	return httptransport.Run(ctx, server, cfg.ShutdownTimeout, a.logger)
}
