// Command bitkvctl opens a bitkv store and runs a single operation against
// it, adapted from the teacher's RPC server entry point with the RPC layer
// removed: no listener, no remote collaborators, just flag-parse → open →
// dispatch → close.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/epokhe/bitkv/core"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  bitkvctl --path <data-dir> get <key>")
	fmt.Fprintln(os.Stderr, "  bitkvctl --path <data-dir> set <key> <value>")
	fmt.Fprintln(os.Stderr, "  bitkvctl --path <data-dir> delete <key>")
	fmt.Fprintln(os.Stderr, "  bitkvctl --path <data-dir> exists <key>")
	fmt.Fprintln(os.Stderr, "  bitkvctl --path <data-dir> keys")
	fmt.Fprintln(os.Stderr, "  bitkvctl --path <data-dir> merge [since]")
	fmt.Fprintln(os.Stderr, "  bitkvctl --path <data-dir> size")
	os.Exit(2)
}

func main() {
	var (
		dbPath = flag.String("path", "", "path to data directory")
		create = flag.Bool("new", false, "create a fresh store instead of opening an existing one")
		fsync  = flag.Bool("fsync", false, "sync to disk after every write")
	)
	flag.Parse()

	if *dbPath == "" || flag.NArg() == 0 {
		usage()
	}

	cfg := core.Config{Path: *dbPath, Fsync: *fsync}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("bitkvctl: build logger: %v", err)
	}
	defer logger.Sync()

	var store *core.Store
	if *create {
		store, err = core.New(cfg, core.WithLogger(logger))
	} else {
		store, err = core.Open(cfg, core.WithLogger(logger))
	}
	if err != nil {
		log.Fatalf("bitkvctl: open %q: %v", *dbPath, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("bitkvctl: close: %v", err)
		}
	}()

	args := flag.Args()
	cmd, rest := args[0], args[1:]

	if err := dispatch(store, cmd, rest); err != nil {
		log.Fatalf("bitkvctl: %s: %v", cmd, err)
	}
}

func dispatch(store *core.Store, cmd string, args []string) error {
	switch cmd {
	case "get":
		if len(args) != 1 {
			usage()
		}
		v, err := store.Get([]byte(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", v)

	case "set":
		if len(args) != 2 {
			usage()
		}
		return store.Set([]byte(args[0]), []byte(args[1]))

	case "delete":
		if len(args) != 1 {
			usage()
		}
		return store.Delete([]byte(args[0]))

	case "exists":
		if len(args) != 1 {
			usage()
		}
		ok, err := store.Exists([]byte(args[0]))
		if err != nil {
			return err
		}
		fmt.Println(ok)

	case "keys":
		view, err := store.Keys()
		if err != nil {
			return err
		}
		defer view.Close()
		for _, k := range view.All() {
			fmt.Println(k)
		}

	case "merge":
		var since *core.FileID
		if len(args) == 1 {
			n, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid file id %q: %w", args[0], err)
			}
			id := core.FileID(n)
			since = &id
		}
		return store.Merge(since)

	case "size":
		n, err := store.DiskSize()
		if err != nil {
			return err
		}
		fmt.Println(n)

	default:
		usage()
	}

	return nil
}
