package rgbdassoc

import (
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/association"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/assocfile"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/capture"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/storage"
)

type Config struct {
	DBPath         string
	RGBDir         string   // Reference stream folder inside a dataset
	DepthDir       string   // Candidate stream folder inside a dataset
	OutputName     string   // Association file name, or an absolute path
	Tolerance      float64  // Max gap in seconds
	Extensions     []string // Frame extensions to scan
	Workers        int      // Parallel datasets in a batch, parallel decodes in Verify
	DisableCatalog bool
	Logger         Logger
	Catalog        Catalog
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithRGBDir(dir string) Option {
	return func(c *Config) {
		c.RGBDir = dir
	}
}

func WithDepthDir(dir string) Option {
	return func(c *Config) {
		c.DepthDir = dir
	}
}

func WithOutputName(name string) Option {
	return func(c *Config) {
		c.OutputName = name
	}
}

func WithTolerance(seconds float64) Option {
	return func(c *Config) {
		c.Tolerance = seconds
	}
}

func WithExtensions(exts ...string) Option {
	return func(c *Config) {
		c.Extensions = exts
	}
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithCatalog(catalog Catalog) Option {
	return func(c *Config) {
		c.Catalog = catalog
	}
}

// WithoutCatalog skips run recording; no database is opened.
func WithoutCatalog() Option {
	return func(c *Config) {
		c.DisableCatalog = true
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:     storage.DefaultDBFile,
		RGBDir:     "rgb",
		DepthDir:   "depth",
		OutputName: assocfile.DefaultFileName,
		Tolerance:  association.DefaultTolerance,
		Extensions: capture.DefaultExtensions,
		Workers:    1,
		Logger:     nil,
	}
}
