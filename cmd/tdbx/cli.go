package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/btcsuite/btclog/v2"

	"github.com/Giulio2002/tdbx"
	"github.com/Giulio2002/tdbx/codec"
)

type rawDB = tdbx.Database[[]byte, []byte]

type cmdStat struct{}

type cmdDbs struct{}

type cmdGet struct {
	DB  string `short:"d" help:"Database name; empty selects the default database."`
	Key string `arg:"" help:"Key to look up."`
}

type cmdPut struct {
	DB    string `short:"d" help:"Database name; empty selects the default database."`
	Key   string `arg:"" help:"Key to store."`
	Value string `arg:"" help:"Value to store."`
}

type cmdDel struct {
	DB  string `short:"d" help:"Database name; empty selects the default database."`
	Key string `arg:"" help:"Key to delete."`
}

type cmdScan struct {
	DB      string `short:"d" help:"Database name; empty selects the default database."`
	Prefix  string `help:"Only keys with this prefix."`
	From    string `help:"First key (inclusive)."`
	To      string `help:"Last key (exclusive)."`
	Reverse bool   `short:"r" help:"Walk in descending key order."`
	Limit   int    `short:"n" help:"Stop after this many entries; 0 means no limit."`
}

type cmdClear struct {
	DB string `short:"d" help:"Database name; empty selects the default database."`
}

type cmdDrop struct {
	DB string `arg:"" help:"Database to remove."`
}

type cmdVersion struct{}

// cliArgs is the kong grammar. A fresh value is parsed on every call.
type cliArgs struct {
	Path     string     `short:"p" required:"" help:"Environment path."`
	Engine   string     `help:"Storage engine (mdbx, bolt, pebble); empty selects the default."`
	MapSize  int64      `help:"Map size in bytes."`
	MaxDBs   int        `name:"max-dbs" help:"Maximum number of named databases."`
	NoSubdir bool       `help:"The path names the data file instead of a directory."`
	ReadOnly bool       `help:"Open the environment read-only."`
	Hex      bool       `short:"x" help:"Keys and values are hex encoded on input and output."`
	LogLevel string     `default:"off" help:"Log level: trace, debug, info, warn, error, critical or off."`
	Stat     cmdStat    `cmd:"" help:"Show environment information and database sizes."`
	Dbs      cmdDbs     `cmd:"" help:"List named databases."`
	Get      cmdGet     `cmd:"" help:"Print the value stored under a key."`
	Put      cmdPut     `cmd:"" help:"Store a value under a key."`
	Del      cmdDel     `cmd:"" help:"Delete a key."`
	Scan     cmdScan    `cmd:"" help:"Print entries in key order."`
	Clear    cmdClear   `cmd:"" help:"Remove every entry of a database."`
	Drop     cmdDrop    `cmd:"" help:"Remove a named database."`
	Version  cmdVersion `cmd:"" help:"Show the tdbx version and available engines."`
}

// CliConfig contains the configuration for the tdbx cli
type CliConfig struct {
	// Name is the name of the program
	Name string
	// Description is a short description of the program
	Description string
	// Exit is the function to call to exit the program
	Exit   func(int)
	Stdout io.Writer
	Stderr io.Writer
}

// NewCliConfig returns a new Config struct with default values populated
func NewCliConfig() *CliConfig {
	return &CliConfig{
		Name:        "tdbx",
		Description: "Inspect and edit tdbx environments.",
		Exit:        func(i int) { os.Exit(i) },
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// errNotFound makes get exit with status 1 without further output.
var errNotFound = errors.New("not found")

// Cli parses the given arguments and then executes the appropriate
// subcommand. It returns the process exit status.
func Cli(args []string, config *CliConfig) (rc int, err error) {
	cli := &cliArgs{}
	parser, err := kong.New(cli,
		kong.Name(config.Name),
		kong.Description(config.Description),
		kong.Exit(config.Exit),
		kong.Writers(config.Stdout, config.Stderr),
	)
	if err != nil {
		return 1, err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(config.Stderr, "%s: error: %v\n", config.Name, err)
		return 1, err
	}

	if err := setupLogging(cli.LogLevel, config.Stderr); err != nil {
		fmt.Fprintf(config.Stderr, "%s: error: %v\n", config.Name, err)
		return 1, err
	}

	cmd := ctx.Command()
	if cmd == "version" {
		fmt.Fprintln(config.Stdout, tdbx.Version())
		return 0, nil
	}

	s := &session{args: cli, out: config.Stdout, hex: cli.Hex}
	err = s.run(cmd)
	switch {
	case errors.Is(err, errNotFound):
		return 1, nil
	case err != nil:
		fmt.Fprintf(config.Stderr, "%s: error: %v\n", config.Name, err)
		return 1, err
	}
	return 0, nil
}

func setupLogging(level string, w io.Writer) error {
	if level == "off" {
		tdbx.DisableLog()
		return nil
	}
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	logger := btclog.NewSLogger(btclog.NewDefaultHandler(w))
	logger.SetLevel(lvl)
	tdbx.UseLogger(logger)
	return nil
}

// session runs one subcommand against an open environment.
type session struct {
	args *cliArgs
	env  *tdbx.Env
	out  io.Writer
	hex  bool
}

func (s *session) run(cmd string) error {
	cli := s.args
	opts := tdbx.EnvOptions{
		Engine:  cli.Engine,
		MapSize: cli.MapSize,
		MaxDBs:  cli.MaxDBs,
	}
	if cli.NoSubdir {
		opts.Flags |= tdbx.NoSubdir
	}
	if cli.ReadOnly {
		opts.Flags |= tdbx.ReadOnly
	}
	env, err := tdbx.Open(cli.Path, opts)
	if err != nil {
		return err
	}
	defer env.Close()
	s.env = env

	switch cmd {
	case "stat":
		return s.stat()
	case "dbs":
		return s.dbs()
	case "get <key>":
		return s.get(cli.Get.DB, cli.Get.Key)
	case "put <key> <value>":
		return s.put(cli.Put.DB, cli.Put.Key, cli.Put.Value)
	case "del <key>":
		return s.del(cli.Del.DB, cli.Del.Key)
	case "scan":
		return s.scan(&cli.Scan)
	case "clear":
		return s.clear(cli.Clear.DB)
	case "drop <db>":
		return s.drop(cli.Drop.DB)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (s *session) decode(arg string) ([]byte, error) {
	if !s.hex {
		return []byte(arg), nil
	}
	b, err := hex.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("bad hex %q: %w", arg, err)
	}
	return b, nil
}

func (s *session) format(b []byte) string {
	if s.hex {
		return hex.EncodeToString(b)
	}
	return string(b)
}

func openRaw(txn *tdbx.Txn, name string, create bool) (*rawDB, error) {
	var flags uint
	if create {
		flags = tdbx.Create
	}
	return tdbx.OpenDatabase(txn, name, codec.Bytes{}, codec.Bytes{}, flags)
}

func (s *session) stat() error {
	info := s.env.Info()
	fmt.Fprintf(s.out, "path:        %s\n", info.Path)
	fmt.Fprintf(s.out, "engine:      %s\n", info.Engine)
	fmt.Fprintf(s.out, "map size:    %d\n", info.Options.MapSize)
	fmt.Fprintf(s.out, "max dbs:     %d\n", info.Options.MaxDBs)
	fmt.Fprintf(s.out, "max readers: %d\n", info.Options.MaxReaders)

	return s.env.View(func(txn *tdbx.Txn) error {
		names, err := txn.ListDatabases()
		if err != nil {
			return err
		}
		for _, name := range append([]string{""}, names...) {
			db, err := openRaw(txn, name, false)
			if err != nil {
				return err
			}
			n, err := db.Len(txn)
			if err != nil {
				return err
			}
			label := name
			if label == "" {
				label = "(default)"
			}
			fmt.Fprintf(s.out, "db %s: %d entries\n", label, n)
		}
		return nil
	})
}

func (s *session) dbs() error {
	return s.env.View(func(txn *tdbx.Txn) error {
		names, err := txn.ListDatabases()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(s.out, name)
		}
		return nil
	})
}

func (s *session) get(name, key string) error {
	k, err := s.decode(key)
	if err != nil {
		return err
	}
	return s.env.View(func(txn *tdbx.Txn) error {
		db, err := openRaw(txn, name, false)
		if err != nil {
			return err
		}
		v, ok, err := db.Get(txn, k)
		if err != nil {
			return err
		}
		if !ok {
			return errNotFound
		}
		fmt.Fprintln(s.out, s.format(v))
		return nil
	})
}

func (s *session) put(name, key, value string) error {
	k, err := s.decode(key)
	if err != nil {
		return err
	}
	v, err := s.decode(value)
	if err != nil {
		return err
	}
	return s.env.Update(func(txn *tdbx.Txn) error {
		db, err := openRaw(txn, name, true)
		if err != nil {
			return err
		}
		return db.Put(txn, k, v)
	})
}

func (s *session) del(name, key string) error {
	k, err := s.decode(key)
	if err != nil {
		return err
	}
	return s.env.Update(func(txn *tdbx.Txn) error {
		db, err := openRaw(txn, name, false)
		if err != nil {
			return err
		}
		ok, err := db.Delete(txn, k)
		if err != nil {
			return err
		}
		if !ok {
			return errNotFound
		}
		return nil
	})
}

func (s *session) scan(c *cmdScan) error {
	var r tdbx.Range[[]byte]
	if c.From != "" {
		from, err := s.decode(c.From)
		if err != nil {
			return err
		}
		r.Start = tdbx.Incl(from)
	}
	if c.To != "" {
		to, err := s.decode(c.To)
		if err != nil {
			return err
		}
		r.End = tdbx.Excl(to)
	}
	var prefix []byte
	if c.Prefix != "" {
		p, err := s.decode(c.Prefix)
		if err != nil {
			return err
		}
		prefix = p
	}

	return s.env.View(func(txn *tdbx.Txn) error {
		db, err := openRaw(txn, c.DB, false)
		if err != nil {
			return err
		}
		var it *tdbx.Iterator[[]byte, []byte]
		switch {
		case prefix != nil && c.Reverse:
			it, err = db.RevPrefix(txn, prefix)
		case prefix != nil:
			it, err = db.Prefix(txn, prefix)
		case c.Reverse:
			it, err = db.RevRange(txn, r)
		default:
			it, err = db.Range(txn, r)
		}
		if err != nil {
			return err
		}
		defer it.Close()

		n := 0
		for k, v := range it.All() {
			if c.Limit > 0 && n >= c.Limit {
				break
			}
			fmt.Fprintf(s.out, "%s\t%s\n", s.format(k), s.format(v))
			n++
		}
		return it.Err()
	})
}

func (s *session) clear(name string) error {
	return s.env.Update(func(txn *tdbx.Txn) error {
		db, err := openRaw(txn, name, false)
		if err != nil {
			return err
		}
		return db.Clear(txn)
	})
}

func (s *session) drop(name string) error {
	return s.env.Update(func(txn *tdbx.Txn) error {
		return txn.DropDatabase(name)
	})
}
