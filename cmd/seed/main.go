// Command seed manages vehicle membership in the Redis registry set.
//
//	seed truck-1 truck-2      register vehicles
//	seed -remove truck-2      unregister vehicles
//	seed -list                print registered vehicles
//
// With no arguments the IDs in SEED_VEHICLES are registered.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-telemetry/internal/config"
	"github.com/ukydev/fleet-telemetry/internal/db"
)

// registry is the subset of db.RedisVehicleRegistry the tool drives.
type registry interface {
	Register(ctx context.Context, ids ...string) (int64, error)
	Unregister(ctx context.Context, ids ...string) error
	AllVehicleIDs(ctx context.Context) ([]string, error)
}

type options struct {
	remove bool
	list   bool
	ids    []string
}

func parseArgs(args []string, fallback []string) (options, error) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var opts options
	fs.BoolVar(&opts.remove, "remove", false, "unregister the given vehicle IDs")
	fs.BoolVar(&opts.list, "list", false, "print registered vehicle IDs")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.ids = fs.Args()
	if len(opts.ids) == 0 && !opts.list {
		opts.ids = fallback
	}
	if len(opts.ids) == 0 && !opts.list {
		return options{}, fmt.Errorf("no vehicle IDs given and SEED_VEHICLES is empty")
	}
	if opts.remove && opts.list {
		return options{}, fmt.Errorf("-remove and -list are exclusive")
	}
	return opts, nil
}

func execute(ctx context.Context, reg registry, opts options, out io.Writer, logger log.FieldLogger) error {
	switch {
	case opts.list:
	case opts.remove:
		if err := reg.Unregister(ctx, opts.ids...); err != nil {
			return err
		}
		logger.WithField("vehicles", opts.ids).Info("Unregistered vehicles")
	default:
		added, err := reg.Register(ctx, opts.ids...)
		if err != nil {
			return err
		}
		logger.WithFields(log.Fields{"requested": len(opts.ids), "added": added}).Info("Registered vehicles")
	}

	ids, err := reg.AllVehicleIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg)

	opts, err := parseArgs(os.Args[1:], cfg.SeedVehicles)
	if err != nil {
		logger.WithError(err).Fatal("Invalid arguments")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reg, err := db.NewRedisVehicleRegistry(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisVehiclesKey)
	if err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddr).Fatal("Connection failed")
	}
	defer reg.Close()

	if err := execute(ctx, reg, opts, os.Stdout, logger); err != nil {
		logger.WithError(err).Fatal("Seeding failed")
	}
}
