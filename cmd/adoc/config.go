package main

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jcorbin/adoc/internal/adoc"
	"github.com/jcorbin/adoc/internal/isotime"
	"github.com/jcorbin/adoc/internal/socutil"
)

// configName is the optional configuration file, looked for in the working
// directory and its parents.
const configName = "adoc.yaml"

// config is the command configuration, assembled from flags, ADOC_*
// environment variables and the configuration file, in that precedence.
type config struct {
	Backend        string   `mapstructure:"backend"`
	Doctype        string   `mapstructure:"doctype"`
	Attributes     []string `mapstructure:"attribute"`
	ConfFiles      []string `mapstructure:"conf-file"`
	ConfDirs       []string `mapstructure:"conf-dir"`
	OutFile        string   `mapstructure:"out-file"`
	NoConf         bool     `mapstructure:"no-conf"`
	NoHeaderFooter bool     `mapstructure:"no-header-footer"`
	Safe           bool     `mapstructure:"safe"`
	Verbose        bool     `mapstructure:"verbose"`
	DumpConf       bool     `mapstructure:"dump-conf"`
	Filters        []string `mapstructure:"filter"`
	Jobs           int      `mapstructure:"jobs"`
	Now            string   `mapstructure:"now"`
	LogFormat      string   `mapstructure:"log-format"`
}

func addFlags(flags *pflag.FlagSet) {
	flags.StringP("backend", "b", "", "backend output format")
	flags.StringP("doctype", "d", "", "document type: article, manpage or book")
	flags.StringArrayP("attribute", "a", nil, "define or delete (name!) a document attribute")
	flags.StringArrayP("conf-file", "f", nil, "use additional configuration file")
	flags.StringArray("conf-dir", nil, "search directory for configuration files")
	flags.StringP("out-file", "o", "", "output file name, - for standard output")
	flags.BoolP("no-conf", "e", false, "exclude implicitly loaded configuration files")
	flags.BoolP("no-header-footer", "s", false, "suppress document header and footer output")
	flags.Bool("safe", false, "enable safe mode")
	flags.BoolP("verbose", "v", false, "report processing details")
	flags.BoolP("dump-conf", "c", false, "dump configuration to standard output")
	flags.StringArray("filter", nil, "load the named filter")
	flags.IntP("jobs", "j", runtime.NumCPU(), "number of documents translated concurrently")
	flags.String("now", "", "fixed current time, as an ISO 8601 date and time")
	flags.String("log-format", "console", "log output format: console or json")
	flags.String("config", "", "configuration file (default: "+configName+" in the working directory or a parent)")
}

// loadConfig binds flags and environment into a fresh viper instance, reads
// the configuration file if there is one, and decodes the result.
func loadConfig(flags *pflag.FlagSet) (cfg config, err error) {
	v := viper.New()
	v.SetEnvPrefix("ADOC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return cfg, err
	}

	path := v.GetString("config")
	if path == "" {
		info, found, err := socutil.FindWDFile(configName)
		if err != nil {
			return cfg, err
		}
		if info != nil {
			path = found
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("cannot read config file: %w", err)
		}
	}

	err = v.Unmarshal(&cfg)
	return cfg, err
}

// options converts the configuration into translation options.
func (cfg config) options() (adoc.Options, error) {
	opts := adoc.Options{
		Backend:        cfg.Backend,
		Doctype:        cfg.Doctype,
		Attributes:     cfg.Attributes,
		ConfFiles:      cfg.ConfFiles,
		ConfDirs:       cfg.ConfDirs,
		OutFile:        cfg.OutFile,
		NoConf:         cfg.NoConf,
		NoHeaderFooter: cfg.NoHeaderFooter,
		Safe:           cfg.Safe,
		Verbose:        cfg.Verbose,
		DumpConf:       cfg.DumpConf,
		Filters:        cfg.Filters,
	}
	if cfg.Now != "" {
		now, rest, ok := isotime.Parse(cfg.Now, time.Local)
		if !ok || rest != "" {
			return opts, fmt.Errorf("invalid --now time %q", cfg.Now)
		}
		at := now.Time()
		opts.Now = func() time.Time { return at }
	}
	return opts, nil
}
