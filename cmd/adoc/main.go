// Command adoc translates text documents to a backend output format, driven
// by configuration files.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jcorbin/adoc/internal/adoc"
	"github.com/jcorbin/adoc/internal/scanio"
	"github.com/jcorbin/adoc/internal/socutil"
)

// errFailed marks a document whose translation reported errors; they have
// already been logged.
var errFailed = errors.New("translation failed")

var interruptSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), interruptSignals...)
	defer stop()

	cmd := newCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "adoc [flags] [FILE...]",
		Short:   "Translate text documents to HTML and other formats",
		Version: adoc.Version,
		Long: strings.TrimSpace(`
Translates each FILE to the backend output format. With no FILE, or when FILE
is -, the document is read from standard input and written to standard output.

Flags may also be set with ADOC_* environment variables (for example
ADOC_BACKEND=html) or in an adoc.yaml file.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			log := newLogger(stderr, cfg)
			opts, err := cfg.options()
			if err != nil {
				log.Error().Err(err).Msg("invalid configuration")
				return err
			}
			opts.Logger = &log
			err = translateAll(cmd.Context(), opts, cfg.Jobs, args, stdin, stdout)
			if err != nil && !errors.Is(err, errFailed) {
				log.Error().Err(err).Msg("cannot translate")
			}
			return err
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	addFlags(cmd.Flags())
	return cmd
}

func newLogger(w io.Writer, cfg config) zerolog.Logger {
	if cfg.LogFormat != "json" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true, PartsExclude: []string{zerolog.TimestampFieldName}}
	}
	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("prog", "adoc").Logger()
}

// translateAll translates each named document, up to jobs at a time. Every
// document is attempted; the first failure is returned. Output bound for
// standard output is written in argument order once all are done.
func translateAll(ctx context.Context, opts adoc.Options, jobs int, names []string, stdin io.Reader, stdout io.Writer) error {
	if len(names) == 0 {
		names = []string{"-"}
	}
	if len(names) > 1 && opts.OutFile != "" && opts.OutFile != "-" {
		return fmt.Errorf("--out-file %s given for %d input files", opts.OutFile, len(names))
	}
	if n := countStdin(names); n > 1 {
		return fmt.Errorf("standard input named %d times", n)
	}
	if jobs < 1 {
		jobs = 1
	}

	var (
		g       errgroup.Group
		outputs = make([][]byte, len(names))
	)
	g.SetLimit(jobs)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			return translateFile(ctx, opts, name, stdin, func(b []byte) error {
				outputs[i] = append([]byte(nil), b...)
				return nil
			})
		})
	}
	err := g.Wait()

	ew := socutil.ErrWriter{Writer: stdout}
	for _, b := range outputs {
		ew.Write(b)
	}
	if err == nil {
		err = ew.Err
	}
	return err
}

func countStdin(names []string) (n int) {
	for _, name := range names {
		if name == "-" {
			n++
		}
	}
	return n
}

// translateFile translates one document. Output files are only replaced once
// the whole document has been written.
func translateFile(ctx context.Context, opts adoc.Options, name string, stdin io.Reader, toStdout func([]byte) error) (rerr error) {
	var r io.Reader
	if name == "-" {
		name, r = scanio.Stdin, stdin
		if opts.DumpConf {
			r = strings.NewReader("")
		}
	}
	log := opts.Logger.With().Str("input", name).Logger()
	opts.Logger = &log
	opts.Context = ctx
	defer func() {
		if rerr != nil && !errors.Is(rerr, errFailed) {
			log.Error().Err(rerr).Msg("FAILED")
			rerr = errFailed
		}
	}()

	t, err := adoc.New(opts)
	if err != nil {
		return err
	}
	if err := t.Load(name, r); err != nil {
		return err
	}

	var out pendingOutput
	if opts.DumpConf || t.OutFile() == adoc.Stdout {
		out = &pendingBuffer{sink: toStdout}
	} else if out, err = createOutput(t.OutFile()); err != nil {
		return err
	}
	defer func() {
		if cerr := out.Cleanup(); rerr == nil {
			rerr = cerr
		}
	}()

	if err := t.Run(out); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	log.Debug().Str("output", t.OutFile()).Msg("translated")
	if t.HasErrors() {
		return errFailed
	}
	return nil
}
