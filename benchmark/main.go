package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/BarrensZeppelin/devirt"
	"github.com/BarrensZeppelin/devirt/frontend"
	"github.com/BarrensZeppelin/devirt/pkgutil"
	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

var benchmarks = []repo{
	{"grpc/grpc-go", "23ac72b6454a2bcac32e19ccf501ca3a070f517c"},
	{"gin-gonic/gin", "dc9cff732e27ce4ac21b25772a83c462a28b8b80"},
	{"fatedier/frp", "f1454e91f56508603e4c2e3c7bf37ccb534458c2"},
	// kubernetes takes a long time to analyze...
	// {"kubernetes/kubernetes", "2a5fd3076aee14c1be51c703a7e5b447d638387d"},
	// {"gohugoio/hugo", "2ae4786ca1e4b912fabc8a6be503772374fed5d6"},
	// {"grafana/grafana", "85a207fcebb5acffe6474b97fef91f611f1989ee"},
	{"junegunn/fzf", "58835e40f35fd1007de9bf607e06d555f085354c"},
	// {"syncthing/syncthing", "95b3c26da724aff5b9aae88daf0783d866e95fda"},
	{"caddyserver/caddy", "1b73e3862d312ac2057265bf2a5fd95760dbe9da"},
}

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var maxRounds = flag.Int("rounds", 50, "give up on a call after `n` rounds")

var dir = "."

type repo struct{ name, commit string }

func (r repo) install() string {
	repodir := filepath.Join(dir, "_benchfiles", strings.ReplaceAll(r.name, "/", "#"))
	if _, err := os.Stat(repodir); err != nil {
		if !os.IsNotExist(err) {
			log.Fatal(err)
		}

		log.Printf("Installing %s @ %s", r.name, r.commit)

		os.MkdirAll(repodir, 0750)

		cmd := exec.Command("sh", "-c",
			fmt.Sprintf(`git init && \
	git config advice.detachedHead false && \
	git remote add origin https://github.com/%s.git && \
	git fetch --depth 1 origin %s && \
	git checkout FETCH_HEAD`, r.name, r.commit))
		cmd.Dir = repodir
		if err := cmd.Run(); err != nil {
			log.Fatal(err)
		}
	}

	return repodir
}

func main() {
	flag.Parse()

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

	dirs := make([]string, len(benchmarks))
	for i, repo := range benchmarks {
		dirs[i] = repo.install()
	}

	dataFile, err := os.Create(filepath.Join(dir, "data.jsonl"))
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := dataFile.Close(); err != nil {
			log.Fatalf("Failed to close: %v %v", dataFile, err)
		}
	}()

	dataEncoder := json.NewEncoder(dataFile)

	for i, dir := range dirs {
		var modules []string
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if filepath.Base(path) == "go.mod" {
				modules = append(modules, path)
			}
			return nil
		})
		if err != nil {
			log.Fatal(err)
		}

		log.Infof("Found %d modules for %s", len(modules), benchmarks[i].name)

		for _, mod := range modules {
			if data := benchModule(dir, mod); data != nil {
				if err := dataEncoder.Encode(data); err != nil {
					log.Fatal(err)
				}
			}
		}
	}
}

func benchModule(dir, mod string) map[string]any {
	gopath, err := filepath.Abs(filepath.Dir(dir))
	if err != nil {
		log.Fatal(err)
	}

	moddir := filepath.Dir(mod)
	pkgs, err := pkgutil.LoadPackagesWithConfig(&packages.Config{
		Mode:  pkgutil.LoadMode | packages.NeedModule,
		Tests: true,
		Dir:   moddir,
		Env:   append(os.Environ(), "GO111MODULE=on", "GOPATH="+gopath),
	}, "./...")
	if err != nil {
		log.Warn(moddir, err)
		return nil
	}

	if len(pkgs) == 0 || pkgs[0].Module == nil {
		log.Infof("Skipping module at %v as it has no packages", mod)
		return nil
	}

	modulePath := pkgs[0].Module.Path
	log.Infof("Loaded %d packages for %s", len(pkgs), modulePath)

	prog, _ := pkgutil.BuildSSA(pkgs, ssa.InstantiateGenerics)
	log.Info("SSA construction complete")

	inModule := func(fn *ssa.Function) bool {
		return fn.Pkg != nil && strings.HasPrefix(fn.Pkg.Pkg.Path(), modulePath)
	}

	start := time.Now()
	fe := frontend.New(prog, frontend.Options{Include: inModule})
	var roots []*devirt.Function
	for fn := range ssautil.AllFunctions(prog) {
		if len(fn.Blocks) != 0 && inModule(fn) {
			roots = append(roots, fe.Function(fn))
		}
	}
	buildDuration := time.Since(start)
	log.Infof("Built %d functions in %v", len(roots), buildDuration)

	start = time.Now()
	res := devirt.Analyze(devirt.AnalysisConfig{
		Program:              fe.Program,
		Functions:            roots,
		MaxRounds:            *maxRounds,
		PreserveAliasTargets: true,
		AddressTaken:         fe.AddressTaken,
		Log:                  log.NewEntry(log.StandardLogger()),
	})
	analysisDuration := time.Since(start)

	rs := fe.Resolutions(res)
	unresolved := frontend.Unresolved(rs)
	log.Infof("Resolved %d of %d interface calls in %v (%d did not converge)",
		len(rs)-unresolved, len(rs), analysisDuration, len(res.Unconverged()))

	start = time.Now()
	chaCG := cha.CallGraph(prog)
	chaDuration := time.Since(start)

	var calleeCount, chaCount int
	monomorphic := 0
	for _, r := range rs {
		if !r.Resolved() {
			continue
		}
		calleeCount += len(r.Callees)
		chaCount += siteCallees(chaCG, r.Site)
		if len(r.Callees) == 1 {
			monomorphic++
		}
	}
	if chaCount != 0 {
		log.Infof("Callees at resolved calls: %d (%.2f%% of CHA)",
			calleeCount, float64(calleeCount*100)/float64(chaCount))
	}

	return map[string]any{
		"module":   modulePath,
		"packages": len(pkgs),
		"devirt": map[string]any{
			"buildDuration":    buildDuration.Milliseconds(),
			"analysisDuration": analysisDuration.Milliseconds(),
			"functions":        len(roots),
			"calls":            len(rs),
			"unresolved":       unresolved,
			"unconverged":      len(res.Unconverged()),
			"monomorphic":      monomorphic,
			"calleeCount":      calleeCount,
		},
		"cha": map[string]any{
			"analysisDuration": chaDuration.Milliseconds(),
			"calleeCount":      chaCount,
		},
	}
}

// siteCallees counts the callees of site in cg.
func siteCallees(cg *callgraph.Graph, site ssa.CallInstruction) int {
	node := cg.Nodes[site.Parent()]
	if node == nil {
		return 0
	}

	n := 0
	for _, edge := range node.Out {
		if edge.Site == site {
			n++
		}
	}
	return n
}
