// Command tablectl is a terminal client for the restaurant API. It lists and
// edits tables and menu items, and can follow a list live over the change
// stream.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-restaurant-backend/internal/client"
	"github.com/tbourn/go-restaurant-backend/internal/sysutil"
)

const version = "0.1.0"

const defaultAPI = "http://localhost:8080/api/v1"

const usage = `Restaurant tables and menu.

The API url defaults to $TABLECTL_API, then ` + defaultAPI + `.

Usage:
    tablectl tables [--yesterday] [--watch] [options]
    tablectl table <code> [--category=<category>] [options]
    tablectl add-table [options]
    tablectl delete-table <code> [--yes] [options]
    tablectl items [--category=<category>] [--search=<text>] [--watch] [options]
    tablectl add-item --code=<code> --name=<name> --price=<price> --category=<category> [options]
    tablectl update-item <id> [--code=<code>] [--name=<name>] [--price=<price>] [--category=<category>] [options]
    tablectl delete-item <id> [--yes] [options]
    tablectl export [--category=<category>] [--out=<file>] [options]
    tablectl -h | --help
    tablectl --version

Options:
    -h --help                Show this screen.
    --version                Show version.
    --api=<url>              API base url.
    --client=<id>            Client id sent as X-Client-ID.
    --log=<level>            Log level, else $LOG_LEVEL, else warn.
    --yesterday              Yesterday's tables instead of today's.
    --watch                  Keep following changes until interrupted.
    --yes                    Do not ask for confirmation ($TABLECTL_ASSUME_YES).
    --category=<category>    Category code, "all" for every category.
    --search=<text>          Rank items against text.
    --code=<code>            Item code.
    --name=<name>            Item name.
    --price=<price>          Item price in thousands.
    --out=<file>             Export file name.`

func main() {
	_ = godotenv.Load()

	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level, _ := opts.String("--log")
	lg := sysutil.SetupLogger(sysutil.FirstNonEmpty(level, os.Getenv("LOG_LEVEL"), "warn"), true, "tablectl", os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdin, os.Stdout, lg); err != nil {
		fmt.Fprintln(os.Stderr, "tablectl:", err)
		os.Exit(1)
	}
}

// app carries what every command needs.
type app struct {
	api *client.Client
	in  io.Reader
	out io.Writer
	log zerolog.Logger
}

func newApp(opts docopt.Opts, in io.Reader, out io.Writer, lg zerolog.Logger) (*app, error) {
	api, _ := opts.String("--api")
	id, _ := opts.String("--client")
	c, err := client.New(
		sysutil.FirstNonEmpty(api, os.Getenv("TABLECTL_API"), defaultAPI),
		client.WithClientID(sysutil.FirstNonEmpty(id, os.Getenv("TABLECTL_CLIENT_ID"), sysutil.InstanceID())),
		client.WithLogger(lg),
	)
	if err != nil {
		return nil, err
	}
	return &app{api: c, in: in, out: out, log: lg}, nil
}

func run(ctx context.Context, opts docopt.Opts, in io.Reader, out io.Writer, lg zerolog.Logger) error {
	a, err := newApp(opts, in, out, lg)
	if err != nil {
		return err
	}

	commands := []struct {
		name string
		fn   func(context.Context, docopt.Opts) error
	}{
		{"tables", a.tables},
		{"table", a.table},
		{"add-table", a.addTable},
		{"delete-table", a.deleteTable},
		{"items", a.items},
		{"add-item", a.addItem},
		{"update-item", a.updateItem},
		{"delete-item", a.deleteItem},
		{"export", a.export},
	}
	for _, cmd := range commands {
		if on, _ := opts.Bool(cmd.name); on {
			return cmd.fn(ctx, opts)
		}
	}
	return fmt.Errorf("no command given")
}
