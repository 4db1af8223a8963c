package config

import (
	"github.com/jessevdk/go-flags"
)

// Options are the command-line flags. Flags override environment values.
type Options struct {
	InputFile string `short:"i" long:"input-file" description:"Input CSV of profile targets"`
	Headed    bool   `long:"headed" description:"Run the browser with a visible window"`
	Debug     bool   `short:"d" long:"debug" description:"Enable debug logging"`
	OpsAddr   string `long:"ops-addr" description:"Listen address for /healthz and /metrics (empty disables)"`
}

// ParseFlags parses os.Args into Options.
func ParseFlags() (*Options, error) {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Apply overlays parsed flags onto the loaded config.
func (c *Config) Apply(opts *Options) {
	if opts == nil {
		return
	}
	if opts.InputFile != "" {
		c.Input.CSVPath = opts.InputFile
	}
	if opts.Headed {
		c.Browser.Headless = false
	}
	if opts.Debug {
		c.Log.Level = "debug"
	}
	if opts.OpsAddr != "" {
		c.Ops.Addr = opts.OpsAddr
	}
}
