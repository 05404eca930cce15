// Command adoclex lists the elements of a document as they are classified
// during translation; translated output is discarded.
package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jcorbin/adoc/internal/adoc"
	"github.com/jcorbin/adoc/internal/scanio"
	"github.com/jcorbin/adoc/internal/socutil"
)

func main() {
	if err := newCommand(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var (
		opts    adoc.Options
		verbose bool
	)
	cmd := &cobra.Command{
		Use:           "adoclex [flags] [FILE]",
		Short:         "List the elements of a document",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, r := scanio.Stdin, stdin
			if len(args) > 0 && args[0] != "-" {
				name, r = args[0], nil
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true, PartsExclude: []string{zerolog.TimestampFieldName}})
			opts.Logger = &log
			opts.OutFile = "-"
			opts.Trace = traceTo(stdout, verbose)
			_, err := adoc.Translate(opts, name, r, ioutil.Discard)
			if err != nil {
				log.Error().Err(err).Msg("FAILED")
			}
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.Backend, "backend", "b", "", "backend output format")
	flags.StringVarP(&opts.Doctype, "doctype", "d", "", "document type")
	flags.StringArrayVarP(&opts.Attributes, "attribute", "a", nil, "define or delete (name!) a document attribute")
	flags.StringArrayVarP(&opts.ConfFiles, "conf-file", "f", nil, "use additional configuration file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "show the leading line of each element")
	return cmd
}

// traceTo returns a trace function writing a numbered entry per element,
// with its leading line quoted beneath when verbose.
func traceTo(w io.Writer, verbose bool) func(adoc.Trace) {
	n := 0
	return func(tr adoc.Trace) {
		n++
		item := fmt.Sprintf("%v. ", n)
		desc := tr.Kind.String()
		if tr.Name != "" {
			desc += " (" + tr.Name + ")"
		}
		fmt.Fprintf(w, "%v%v: %v\n", item, tr.Cursor, desc)
		if verbose {
			pw := socutil.PrefixWriter(strings.Repeat(" ", len(item))+"> ", w)
			fmt.Fprintln(pw, tr.Cursor.Text)
			pw.Close()
		}
	}
}
