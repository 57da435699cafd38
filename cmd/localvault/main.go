// Command localvault stores and reads encrypted records from the command line.
//
// The session key is kept in the login runtime directory, so records written
// in an earlier login session are reported as undecryptable.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jessevdk/go-flags"
	"github.com/logrusorgru/aurora"
	"github.com/pkg/errors"
)

type Options struct {
	Driver     string `short:"D" long:"driver" default:"sqlite3" choice:"sqlite3" choice:"mysql" choice:"postgres" description:"Database driver family"`
	DSN        string `short:"C" long:"conn" default:"localvault.db" description:"Database connection string"`
	Table      string `short:"t" long:"table" default:"records" description:"Table records are stored in"`
	SessionDir string `short:"s" long:"session-dir" description:"Directory holding the session key (default: $XDG_RUNTIME_DIR/localvault)"`
	Verbose    bool   `short:"v" long:"verbose" description:"Enables debug logging to stderr"`
	Results    bool   `short:"r" long:"results" description:"Prints stored envelopes"`
	Metrics    bool   `short:"m" long:"metrics" description:"Dumps metrics to stdout in JSON format"`
}

var opts Options

type PutCommand struct {
	Args struct {
		Payloads []string `positional-arg-name:"payload" required:"1"`
	} `positional-args:"yes"`
}

func (c *PutCommand) Execute(_ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		for _, p := range c.Args.Payloads {
			id, err := a.service.Put(ctx, []byte(p))
			if err != nil {
				return err
			}

			fmt.Println(aurora.Green("stored"), id)
		}

		if opts.Results {
			records, err := a.service.Store.GetAll(ctx)
			if err != nil {
				return err
			}

			PrintColoredJSON("Stored envelopes:", records)
		}

		return nil
	})
}

type ListCommand struct{}

func (c *ListCommand) Execute(_ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		result, err := a.service.GetAll(ctx)
		if err != nil {
			return err
		}

		PrintResult(result)

		return nil
	})
}

type DeleteCommand struct {
	Args struct {
		IDs []string `positional-arg-name:"id" required:"1"`
	} `positional-args:"yes"`
}

func (c *DeleteCommand) Execute(_ []string) error {
	ids := make([]int64, 0, len(c.Args.IDs))

	for _, s := range c.Args.IDs {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid record id %q", s)
		}

		ids = append(ids, id)
	}

	return withApp(func(ctx context.Context, a *app) error {
		for _, id := range ids {
			if err := a.service.Delete(ctx, id); err != nil {
				return err
			}

			fmt.Println(aurora.Yellow("deleted"), id)
		}

		return nil
	})
}

type VersionCommand struct{}

func (c *VersionCommand) Execute(_ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		v, err := a.service.Store.SchemaVersion(ctx)
		if err != nil {
			return err
		}

		Print("Schema version:", v)
		w.Flush()

		return nil
	})
}

func newParser() *flags.Parser {
	p := flags.NewParser(&opts, flags.Default)

	mustAddCommand(p, "put", "Encrypt and store records", "Encrypts each payload with the session key and stores it.", &PutCommand{})
	mustAddCommand(p, "list", "Decrypt and print all records", "Prints every record, reporting those the session key cannot open.", &ListCommand{})
	mustAddCommand(p, "delete", "Delete records", "Deletes the records with the given ids.", &DeleteCommand{})
	mustAddCommand(p, "version", "Print the store schema version", "Opens the store, upgrading it if needed, and prints its schema version.", &VersionCommand{})

	return p
}

func mustAddCommand(p *flags.Parser, name, short, long string, data interface{}) {
	if _, err := p.AddCommand(name, short, long, data); err != nil {
		panic(err)
	}
}

func main() {
	if _, err := newParser().Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return
		}

		// the parser has already printed the error
		os.Exit(1)
	}
}
