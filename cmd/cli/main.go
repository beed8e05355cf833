package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/himanishpuri/rgbdassoc/pkg/logger"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/association"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/assocfile"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/capture"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/storage"
)

const (
	// Global flags.
	flagDB        = "db"
	flagNoCatalog = "no-catalog"
	flagLogLevel  = "log-level"
	flagWorkers   = "workers"

	// Dataset flags.
	flagMaxDiff = "max-diff"
	flagRGB     = "rgb"
	flagDepth   = "depth"
	flagOut     = "out"
	flagExt     = "ext"

	flagLimit = "limit"
)

func main() {
	os.Exit(run(os.Args))
}

// run returns the process exit code so deferred cleanup happens before os.Exit.
func run(args []string) int {
	log := logger.GetLogger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, args); err != nil {
		log.Errorf("%v", err)
		return 1
	}
	return 0
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "rgbdassoc",
		Usage: "associate RGB and depth frames by timestamp",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagDB,
				Usage:   "path to the SQLite run catalog",
				Value:   storage.DefaultDBFile,
				EnvVars: []string{"RGBD_DB_PATH"},
			},
			&cli.BoolFlag{
				Name:  flagNoCatalog,
				Usage: "do not record runs",
			},
			&cli.StringFlag{
				Name:    flagLogLevel,
				Usage:   "debug, info, warn or fatal",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.IntFlag{
				Name:  flagWorkers,
				Usage: "datasets associated (or frames decoded) in parallel",
				Value: 1,
			},
		},
		Before: func(c *cli.Context) error {
			lvl, ok := logger.ParseLevel(c.String(flagLogLevel))
			if !ok {
				return fmt.Errorf("unknown log level %q", c.String(flagLogLevel))
			}
			logger.SetLevel(lvl)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "associate",
				Usage:     "write the association file of one dataset folder",
				ArgsUsage: "<dataset>",
				Flags:     datasetFlags(),
				Action:    handleAssociate,
			},
			{
				Name:      "batch",
				Usage:     "associate several dataset folders",
				ArgsUsage: "<dataset>...",
				Flags:     datasetFlags(),
				Action:    handleBatch,
			},
			{
				Name:      "verify",
				Usage:     "decode the frames listed in a dataset's association file",
				ArgsUsage: "<dataset>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagOut, Usage: "association file name inside the dataset", Value: assocfile.DefaultFileName},
					&cli.IntFlag{Name: flagLimit, Usage: "check only the first N pairs (0 = all)"},
				},
				Action: handleVerify,
			},
			{
				Name:   "history",
				Usage:  "list recorded runs",
				Flags:  []cli.Flag{&cli.IntFlag{Name: flagLimit, Usage: "max runs to show (0 = all)", Value: 20}},
				Action: handleHistory,
			},
			{
				Name:      "show",
				Usage:     "show one recorded run",
				ArgsUsage: "<run-id>",
				Action:    handleShow,
			},
			{
				Name:      "delete",
				Usage:     "delete a run record (the association file is kept)",
				ArgsUsage: "<run-id>",
				Action:    handleDelete,
			},
		},
	}
}

func datasetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:    flagMaxDiff,
			Usage:   "max timestamp gap in seconds",
			Value:   association.DefaultTolerance,
			EnvVars: []string{"RGBD_MAX_DIFF"},
		},
		&cli.StringFlag{Name: flagRGB, Usage: "rgb folder inside the dataset", Value: "rgb"},
		&cli.StringFlag{Name: flagDepth, Usage: "depth folder inside the dataset", Value: "depth"},
		&cli.StringFlag{Name: flagOut, Usage: "association file name inside the dataset", Value: assocfile.DefaultFileName},
		&cli.StringSliceFlag{Name: flagExt, Usage: "frame file extensions", Value: cli.NewStringSlice(capture.DefaultExtensions...)},
	}
}

// createService creates a service from the global flags plus any
// command-level options.
func createService(c *cli.Context, opts ...rgbdassoc.Option) (rgbdassoc.Service, error) {
	base := []rgbdassoc.Option{
		rgbdassoc.WithDBPath(c.String(flagDB)),
		rgbdassoc.WithWorkers(c.Int(flagWorkers)),
		rgbdassoc.WithLogger(logger.GetLogger()),
	}
	if c.Bool(flagNoCatalog) {
		base = append(base, rgbdassoc.WithoutCatalog())
	}
	return rgbdassoc.NewService(append(base, opts...)...)
}

func datasetOptions(c *cli.Context) []rgbdassoc.Option {
	return []rgbdassoc.Option{
		rgbdassoc.WithTolerance(c.Float64(flagMaxDiff)),
		rgbdassoc.WithRGBDir(c.String(flagRGB)),
		rgbdassoc.WithDepthDir(c.String(flagDepth)),
		rgbdassoc.WithOutputName(c.String(flagOut)),
		rgbdassoc.WithExtensions(c.StringSlice(flagExt)...),
	}
}

func requireArg(c *cli.Context, name string) (string, error) {
	if c.NArg() < 1 {
		return "", fmt.Errorf("missing %s\nUsage: %s %s %s", name, c.App.Name, c.Command.Name, c.Command.ArgsUsage)
	}
	return c.Args().First(), nil
}

var errNothingToDo = errors.New("no dataset folders given")
