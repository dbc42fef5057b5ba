// Command domview prints the dominator trees and natural loops of Go
// functions, after an optional pipeline of transformation passes.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/nickng/ssadom/analysis"
	"github.com/nickng/ssadom/callgraph"
	"github.com/nickng/ssadom/dominance"
	"github.com/nickng/ssadom/loop"
	"github.com/nickng/ssadom/pass"
	"github.com/nickng/ssadom/ssa"
	"github.com/nickng/ssadom/ssa/build"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gossa "golang.org/x/tools/go/ssa"
)

type options struct {
	defaultArgs  bool
	buildlogPath string
	pipelinePath string
	passes       string
	viewFunc     string
	algo         string
	logLevel     string
	noColor      bool
	metrics      bool
	dumpSSA      bool
	callGraph    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := new(options)
	cmd := &cobra.Command{
		Use:   "domview [flags] file.go [files.go...]",
		Short: "domview prints dominator trees and loops of Go functions",
		Long: `domview builds the SSA IR of Go source code, runs a pipeline of passes
over every function with a body (or the function selected by --func), and
prints what the passes print.

Passes: ` + fmt.Sprint(pass.Names()),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, args, stdout, stderr)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&opts.defaultArgs, "default", true, "Use default SSA build arguments")
	flags.StringVar(&opts.buildlogPath, "build-log", "", "Specify build log file (use '-' for stderr)")
	flags.StringVar(&opts.pipelinePath, "pipeline", "", "Read the pipeline of passes from a YAML file")
	flags.StringVar(&opts.passes, "passes", "print-domtree", "Comma separated pipeline of passes (ignored with --pipeline)")
	flags.StringVar(&opts.viewFunc, "func", "", `Specify the function to view (format: (import/path).FuncName)`)
	flags.StringVar(&opts.algo, "algo", "static", fmt.Sprintf("Call graph algorithm %v", ssa.Algorithms))
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colour output")
	flags.BoolVar(&opts.metrics, "metrics", false, "Write the dominance cache metrics in Prometheus text format")
	flags.BoolVar(&opts.dumpSSA, "dump-ssa", false, "Write the SSA IR of the functions after the pipeline")
	flags.BoolVar(&opts.callGraph, "callgraph", false, "Write the call graph in graphviz dot format")
	return cmd
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "bad log level")
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl)), nil
}

func loadPipeline(opts *options) (*pass.Pipeline, error) {
	if opts.pipelinePath == "" {
		return pass.ParsePipeline(opts.passes)
	}
	f, err := os.Open(opts.pipelinePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pass.LoadPipeline(f)
}

func run(opts *options, args []string, stdout, stderr io.Writer) (err error) {
	logger, err := newLogger(opts.logLevel, stderr)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pipeline, err := loadPipeline(opts)
	if err != nil {
		return err
	}
	passes, err := pipeline.Passes(stdout, opts.noColor)
	if err != nil {
		return err
	}

	conf := build.FromFiles(args)
	if opts.defaultArgs {
		conf = conf.Default()
	}
	switch opts.buildlogPath {
	case "":
	case "-":
		conf = conf.WithBuildLog(stderr, log.LstdFlags)
	default:
		f, err := os.Create(opts.buildlogPath)
		if err != nil {
			return errors.Wrapf(err, "cannot create log %s", opts.buildlogPath)
		}
		defer f.Close()
		conf = conf.WithBuildLog(f, log.LstdFlags)
	}
	info, err := conf.Build()
	if err != nil {
		return errors.Wrap(err, "cannot build SSA from files")
	}

	fns := info.SrcFuncs()
	if opts.viewFunc != "" {
		fn, err := info.FindFunc(opts.viewFunc)
		if err != nil {
			return err
		}
		fns = []*gossa.Function{fn}
	}

	am := analysis.NewManager(info.Prog)
	am.SetLogger(logger)
	defer func() { err = multierr.Append(err, am.Close()) }()

	doms := dominance.New(info.Prog, dominance.NewConfig().WithLogger(logger))
	loops := loop.New(info.Prog, doms)
	loops.SetLogger(logger)
	calls, err := callgraph.New(info.Prog, opts.algo)
	if err != nil {
		return err
	}
	calls.SetLogger(logger)
	for _, a := range []analysis.Analysis{doms, loops, calls} {
		if err := am.Register(a); err != nil {
			return err
		}
	}

	runner := pass.NewRunner(am).Add(passes...)
	runner.SetLogger(logger)
	if err := runner.Run(fns); err != nil {
		return err
	}

	hdr := color.New(color.FgYellow)
	if opts.noColor {
		hdr.DisableColor()
	}
	if opts.dumpSSA {
		hdr.Fprintln(stdout, "# ssa")
		if _, err := ssa.WriteFuncs(stdout, fns); err != nil {
			return err
		}
	}
	if opts.callGraph {
		g, err := calls.Graph()
		if err != nil {
			return err
		}
		if err := g.WriteGraphviz(stdout); err != nil {
			return err
		}
	}
	if opts.metrics {
		hdr.Fprintln(stdout, "# metrics")
		return writeMetrics(stdout, doms.Metrics())
	}
	return nil
}

func writeMetrics(w io.Writer, c prometheus.Collector) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return err
	}
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "domview:", err)
		os.Exit(1)
	}
}
