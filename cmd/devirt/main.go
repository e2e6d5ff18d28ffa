package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/BarrensZeppelin/devirt"
	"github.com/BarrensZeppelin/devirt/config"
	"github.com/BarrensZeppelin/devirt/frontend"
	islices "github.com/BarrensZeppelin/devirt/internal/slices"
	"github.com/BarrensZeppelin/devirt/pkgutil"
	"github.com/BarrensZeppelin/devirt/render"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var dir = flag.String("dir", "", "alternative directory to run the go build tool in")
var configFile = flag.String("config", "", "read options from the YAML `file`")
var format = flag.String("format", "", "report format, text or dot (overrides the config)")
var filter = flag.String("filter", "", "analyse only packages matching the `regex` (overrides the config)")
var verbose = flag.Bool("v", false, "also print the origin, targets and aliases of every run")

func main() {
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("Specify a package query on the command line")
	}

	cfg := config.NewDefault()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			log.Fatal(err)
		}
	}
	if *format != "" {
		cfg.ReportFormat = *format
	}
	if *filter != "" {
		cfg.SetPkgFilter(*filter)
	}

	logger := cfg.NewLogger(os.Stderr)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Fatal("Failed to close", f)
			}
		}()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	pkgs, err := pkgutil.LoadPackagesWithConfig(&packages.Config{
		Mode:  pkgutil.LoadMode,
		Tests: true,
		Dir:   *dir,
	}, flag.Args()...)

	if err != nil {
		logger.Fatalf("Loading packages failed: %v", err)
	}

	logger.Infof("Loaded %d packages", len(pkgs))

	prog, _ := pkgutil.BuildSSA(pkgs, ssa.InstantiateGenerics)

	logger.Info("Built packages")

	include := func(fn *ssa.Function) bool {
		return fn.Pkg != nil && cfg.MatchPkgFilter(fn.Pkg.Pkg.Path())
	}
	fe := frontend.New(prog, frontend.Options{Include: include, Log: logger})

	// Node IDs are handed out as functions are built, so build them in a
	// fixed order.
	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(prog) {
		if len(fn.Blocks) != 0 && include(fn) {
			fns = append(fns, fn)
		}
	}
	slices.SortFunc(fns, func(a, b *ssa.Function) bool {
		return a.String() < b.String()
	})
	roots := islices.Map(fns, fe.Function)

	res := devirt.Analyze(devirt.AnalysisConfig{
		Program:              fe.Program,
		Functions:            roots,
		MaxRounds:            cfg.MaxRounds,
		PreserveAliasTargets: cfg.PreserveAliasTargets,
		AddressTaken:         fe.AddressTaken,
		Log:                  logger,
	})

	for _, f := range roots {
		if len(f.VirtualCalls()) != 0 && !f.Acyclic() {
			logger.WithField("func", f.Name).Debugf("%d loops", len(f.Loops()))
		}
	}

	rs := fe.Resolutions(res)
	logger.Infof("%d interface calls in %d functions, %d unresolved, %d did not converge",
		len(rs), len(roots), frontend.Unresolved(rs), len(res.Unconverged()))

	var out io.Writer = os.Stdout
	if cfg.ReportFile != "" {
		name := cfg.RelPath(cfg.ReportFile)
		f, err := os.Create(name)
		if err != nil {
			logger.Fatalf("Creating report file failed: %v", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Errorf("Failed to close %s: %v", name, err)
			}
		}()
		out = f
	}

	switch cfg.ReportFormat {
	case config.DotReport:
		for _, r := range rs {
			name := strings.ReplaceAll(r.Run.Call.Func.Name, `"`, "")
			dot, err := render.Dot(r.Run, name)
			if err != nil {
				logger.Fatalf("Rendering %s failed: %v", name, err)
			}
			fmt.Fprintf(out, "%s\n", dot)
		}
	default:
		p := render.NewPrinter(out, cfg.Color)
		p.Verbose = *verbose
		p.Resolutions(fe, rs, cfg.ReportUnresolved)
		if *verbose {
			p.Runs(res.Runs)
		}
	}
}
