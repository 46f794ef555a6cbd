package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/note89/sitehooks/internal/render"
	"github.com/note89/sitehooks/internal/store"
)

// newFlagSet returns a flag set with the -config flag every command accepts.
func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file (default: $SITEHOOKS_CONFIG or ./sitehooks.json)")
	return fs, configPath
}

func runAPIs(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("apis", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "API\tARGS\tDESCRIPTION")
	for _, api := range a.apis.List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", api.Name, strings.Join(api.Args, ","), api.Description)
	}
	return tw.Flush()
}

func runPlugins(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("plugins", stderr)
	available := fs.Bool("available", false, "list the plugin catalog instead of the loaded plugins")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	if *available {
		fmt.Fprintln(tw, "RESOLVE\tDESCRIPTION")
		for _, f := range a.catalog.List() {
			fmt.Fprintf(tw, "%s\t%s\n", f.Resolve, f.Description)
		}
		return tw.Flush()
	}

	fmt.Fprintln(tw, "PLUGIN\tAPIS")
	for _, reg := range a.runner.Registrations() {
		fmt.Fprintf(tw, "%s\t%s\n", reg.Name, strings.Join(reg.APIs(), ","))
	}
	return tw.Flush()
}

func runDispatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("run", stderr)
	api := fs.String("api", "", "API to dispatch (required)")
	argsJSON := fs.String("args", "", "JSON args, decoded into the API's typed args where one exists")
	defJSON := fs.String("default", "", "JSON default result returned when no plugin answers")
	async := fs.Bool("async", false, "dispatch asynchronously")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *api == "" {
		return fmt.Errorf("-api is required")
	}

	apiArgs, err := render.DecodeArgs(*api, []byte(*argsJSON))
	if err != nil {
		return err
	}
	def, err := parseJSONFlag("default", *defJSON)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	transform := render.TransformFor(*api)
	var results []any
	if *async {
		results, err = a.runner.RunAsync(ctx, *api, apiArgs, def, transform)
	} else {
		results, err = a.runner.Run(*api, apiArgs, def, transform)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func runRender(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("render", stderr)
	path := fs.String("path", "/", "page pathname")
	body := fs.String("body", "", "page body markup")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	html, err := render.NewRenderer(a.runner, a.logger).Render(render.Page{Pathname: *path, Body: *body})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, html)
	return err
}

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("history", stderr)
	api := fs.String("api", "", "only dispatches of this API")
	failed := fs.Bool("failed", false, "only failed dispatches")
	since := fs.Duration("since", 0, "only dispatches started within this duration")
	limit := fs.Int("limit", 20, "maximum number of dispatches")
	id := fs.String("id", "", "show the plugin invocations of one dispatch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)

	if *id != "" {
		d, err := a.store.GetDispatch(ctx, *id)
		if err != nil {
			return err
		}
		invs, err := a.store.ListInvocations(ctx, d.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "dispatch %s\t%s (%s)\n", d.ID, d.API, d.Mode)
		fmt.Fprintln(tw, "PLUGIN\tRESULT\tDURATION\tERROR")
		for _, inv := range invs {
			result := "value"
			if inv.Absent {
				result = "absent"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", inv.Plugin, result, inv.Duration, inv.Error)
		}
		return tw.Flush()
	}

	filter := store.DispatchFilter{API: *api, FailedOnly: *failed, Limit: *limit}
	if *since > 0 {
		filter.Since = time.Now().Add(-*since)
	}
	ds, err := a.store.ListDispatches(ctx, filter)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "ID\tSTARTED\tAPI\tMODE\tINVOKED\tRESULTS\tDURATION\tERROR")
	for _, d := range ds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			d.ID, d.StartedAt.Format(time.RFC3339), d.API, d.Mode, d.Invoked, d.Results, d.Duration, d.Error)
	}
	return tw.Flush()
}

func parseJSONFlag(name, raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("-%s is not valid JSON: %w", name, err)
	}
	return v, nil
}
