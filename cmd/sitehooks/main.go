package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: sitehooks <command> [flags]

commands:
  apis       list the lifecycle APIs known on the configured side
  plugins    list loaded plugins and the APIs they implement
  run        dispatch an API and print the results as JSON
  render     render the HTML shell of a page
  schedule   run configured schedules until interrupted
  history    show the dispatch log
  version    print the build version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, os.Args[1], os.Args[2:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, cmd string, args []string, stdout, stderr io.Writer) error {
	switch cmd {
	case "apis":
		return runAPIs(ctx, args, stdout, stderr)
	case "plugins":
		return runPlugins(ctx, args, stdout, stderr)
	case "run":
		return runDispatch(ctx, args, stdout, stderr)
	case "render":
		return runRender(ctx, args, stdout, stderr)
	case "schedule":
		return runSchedule(ctx, args, stdout, stderr)
	case "history":
		return runHistory(ctx, args, stdout, stderr)
	case "version", "-v", "--version":
		printVersion(stdout)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}
