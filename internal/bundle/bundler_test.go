package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jsh-team/nodeworker/internal/nodeworker"
	"github.com/jsh-team/nodeworker/internal/sourcemap"
	"github.com/jsh-team/nodeworker/internal/storage"
	"github.com/jsh-team/nodeworker/internal/utils/hash"
	"github.com/jsh-team/nodeworker/internal/utils/logger"
	"github.com/jsh-team/nodeworker/internal/workers/output"
)

func newTestBundler(t *testing.T, opts Options) *Bundler {
	t.Helper()
	if opts.WorkingDir == "" {
		opts.WorkingDir = t.TempDir()
	}
	if len(opts.Entries) == 0 {
		opts.Entries = []string{"src/main.js"}
	}
	b, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestNewValidatesOptions(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		opts Options
	}{
		{"no entries", Options{WorkingDir: dir}},
		{"escaping worker dir", Options{WorkingDir: dir, Entries: []string{"a.js"}, WorkerDir: "../w"}},
		{"bad target", Options{WorkingDir: dir, Entries: []string{"a.js"}, Target: "chrome99"}},
	}
	for _, tt := range tests {
		if _, err := New(tt.opts); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}

	b := newTestBundler(t, Options{WorkingDir: dir})
	if want := filepath.Join(dir, "dist"); b.Outdir() != want {
		t.Errorf("Outdir = %q, want %q", b.Outdir(), want)
	}
	if b.opts.WorkerDir != "workers" {
		t.Errorf("WorkerDir = %q, want workers", b.opts.WorkerDir)
	}
}

func TestEmitChunkSharesUnitPerSource(t *testing.T) {
	dir := t.TempDir()
	b := newTestBundler(t, Options{WorkingDir: dir})
	importer := filepath.Join(dir, "src", "main.js")

	h1, err := b.EmitChunk("./worker.js", importer)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := b.EmitChunk("./worker.js", importer)
	if err != nil {
		t.Fatal(err)
	}
	h3, err := b.EmitChunk("./other.js", importer)
	if err != nil {
		t.Fatal(err)
	}

	if h1 == h2 || h1 == h3 || h2 == h3 {
		t.Fatalf("handles must be distinct: %s %s %s", h1, h2, h3)
	}
	for _, h := range []nodeworker.Handle{h1, h2, h3} {
		if err := h.Validate(); err != nil {
			t.Errorf("handle %q: %v", h, err)
		}
	}
	if b.units[h1] != b.units[h2] {
		t.Error("same source should share one unit")
	}
	if b.units[h1] == b.units[h3] {
		t.Error("different sources should not share a unit")
	}
	if got := len(b.pending); got != 2 {
		t.Errorf("pending = %d, want 2", got)
	}

	u := b.units[h1]
	if want := filepath.Join(dir, "src", "worker.js"); u.source != want {
		t.Errorf("source = %q, want %q", u.source, want)
	}
	if want := "workers/worker-" + hash.ShortHash(unitHashLength, "src/worker.js"); u.outputBase != want {
		t.Errorf("outputBase = %q, want %q", u.outputBase, want)
	}
}

func TestEmitChunkIgnoresCallOrder(t *testing.T) {
	dir := t.TempDir()
	type call struct{ source, importer string }
	calls := []call{
		{"./worker.js", filepath.Join(dir, "src", "a.js")},
		{"./worker.js", filepath.Join(dir, "src", "b.js")},
		{"./other.js", filepath.Join(dir, "src", "a.js")},
		{"./worker.js", filepath.Join(dir, "src", "a.js")},
	}

	emit := func(order []int) map[call][]nodeworker.Handle {
		b := newTestBundler(t, Options{WorkingDir: dir})
		got := make(map[call][]nodeworker.Handle)
		for _, i := range order {
			h, err := b.EmitChunk(calls[i].source, calls[i].importer)
			if err != nil {
				t.Fatal(err)
			}
			got[calls[i]] = append(got[calls[i]], h)
		}
		return got
	}

	// repeated (source, importer) pairs keep their relative order, as they do
	// across passes; everything else is shuffled
	first := emit([]int{0, 1, 2, 3})
	second := emit([]int{2, 1, 0, 3})
	for c, hs := range first {
		other := second[c]
		if len(other) != len(hs) {
			t.Fatalf("%v: %d handles vs %d", c, len(hs), len(other))
		}
		for i := range hs {
			if hs[i] != other[i] {
				t.Errorf("%v call %d: handle %s vs %s", c, i, hs[i], other[i])
			}
		}
	}
}

func TestEmitChunkRelativeImporter(t *testing.T) {
	dir := t.TempDir()
	b := newTestBundler(t, Options{WorkingDir: dir})

	hRel, err := b.EmitChunk("./worker.js", "src/main.js")
	if err != nil {
		t.Fatal(err)
	}
	hAbs, err := b.EmitChunk("./worker.js", filepath.Join(dir, "src", "main.js"))
	if err != nil {
		t.Fatal(err)
	}
	if b.units[hRel] != b.units[hAbs] {
		t.Error("relative and absolute importer should reach the same unit")
	}
	if want := filepath.Join(dir, "src", "worker.js"); b.units[hRel].source != want {
		t.Errorf("source = %q, want %q", b.units[hRel].source, want)
	}
}

func TestEmitChunkBareSpecifier(t *testing.T) {
	b := newTestBundler(t, Options{})
	h, err := b.EmitChunk("some-pkg/worker", "/app/src/main.js")
	if err != nil {
		t.Fatal(err)
	}
	if got := b.units[h].source; got != "some-pkg/worker" {
		t.Errorf("source = %q, want the bare specifier", got)
	}
	if _, err := b.EmitChunk("", "/app/src/main.js"); err == nil {
		t.Error("expected error for an empty path")
	}
}

func TestFileName(t *testing.T) {
	b := newTestBundler(t, Options{})

	if _, err := b.FileName("nope"); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("unknown handle: got %v, want ErrUnknownHandle", err)
	}

	h, err := b.EmitChunk("./worker.js", filepath.Join(b.opts.WorkingDir, "main.js"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.FileName(h); !errors.Is(err, ErrNotFinalized) {
		t.Errorf("pending unit: got %v, want ErrNotFinalized", err)
	}

	b.finalize(b.units[h], "workers/worker-x.js")
	name, err := b.FileName(h)
	if err != nil {
		t.Fatal(err)
	}
	if name != "workers/worker-x.js" {
		t.Errorf("FileName = %q", name)
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		engines int
		wantErr bool
	}{
		{"", 0, false},
		{"esnext", 0, false},
		{"ES2020", 0, false},
		{"node18", 1, false},
		{"node20.11", 1, false},
		{"node", 0, true},
		{"nodex", 0, true},
		{"safari16", 0, true},
	}
	for _, tt := range tests {
		got, err := parseTarget(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTarget(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if len(got.engines) != tt.engines {
			t.Errorf("parseTarget(%q) engines = %v", tt.in, got.engines)
		}
	}
}

func outputsByPath(res *Result) map[string]string {
	m := make(map[string]string, len(res.Outputs))
	for _, out := range res.Outputs {
		m[out.Path] = string(out.Contents)
	}
	return m
}

func TestRunBuildsWorkers(t *testing.T) {
	logger.SetLevel("error")
	dir := writeProject(t, map[string]string{
		"src/main.js": `import createWorker from './worker.js?nodeWorker';
const w = createWorker({ workerData: 1 });
w.on('message', (m) => console.log(m));
`,
		"src/worker.js": `import { parentPort, workerData } from 'node:worker_threads';
parentPort.postMessage(workerData + 1);
`,
	})

	b := newTestBundler(t, Options{WorkingDir: dir, Target: "node18", Manifest: true})
	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.BuildID == "" {
		t.Error("missing build id")
	}
	if res.Passes != 2 {
		t.Errorf("Passes = %d, want 2", res.Passes)
	}
	if len(res.Workers) != 1 {
		t.Fatalf("Workers = %d, want 1", len(res.Workers))
	}
	w := res.Workers[0]
	if !strings.HasPrefix(w.File, "workers/worker-") || !strings.HasSuffix(w.File, ".js") {
		t.Errorf("worker file = %q", w.File)
	}

	outputs := outputsByPath(res)
	main, ok := outputs["main.js"]
	if !ok {
		t.Fatalf("no main.js in outputs: %v", outputs)
	}
	if matches := nodeworker.Scan(main); len(matches) != 0 {
		t.Errorf("main.js still holds %d token(s)", len(matches))
	}
	if want := `"./` + w.File + `"`; !strings.Contains(main, want) {
		t.Errorf("main.js does not reference %s:\n%s", want, main)
	}
	if !strings.Contains(main, "node:worker_threads") {
		t.Errorf("main.js lost the worker_threads import:\n%s", main)
	}
	if _, ok := outputs[w.File]; !ok {
		t.Errorf("worker output %s missing", w.File)
	}
	if res.Rewritten != 1 {
		t.Errorf("Rewritten = %d, want 1", res.Rewritten)
	}

	var manifest Manifest
	if err := json.Unmarshal([]byte(outputs[ManifestFileName]), &manifest); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if manifest.BuildID != res.BuildID || len(manifest.Workers) != 1 {
		t.Errorf("manifest = %+v", manifest)
	}
	if manifest.Workers[0].Source != "src/worker.js" {
		t.Errorf("manifest source = %q", manifest.Workers[0].Source)
	}
	if manifest.Workers[0].Bytes == 0 {
		t.Error("manifest worker bytes not recorded")
	}
}

func TestRunSharesUnitAcrossImports(t *testing.T) {
	logger.SetLevel("error")
	dir := writeProject(t, map[string]string{
		"src/a.js":      "import w from './worker.js?nodeWorker';\nw();\n",
		"src/b.js":      "import w from './worker.js?nodeWorker';\nw();\n",
		"src/worker.js": "console.log('hi');\n",
	})

	b := newTestBundler(t, Options{WorkingDir: dir, Entries: []string{"src/a.js", "src/b.js"}})
	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Workers) != 1 {
		t.Fatalf("Workers = %d, want 1", len(res.Workers))
	}
	if got := len(res.Workers[0].Handles); got != 2 {
		t.Errorf("handles = %d, want 2", got)
	}
	outputs := outputsByPath(res)
	ref := `"./` + res.Workers[0].File + `"`
	for _, name := range []string{"a.js", "b.js"} {
		if !strings.Contains(outputs[name], ref) {
			t.Errorf("%s does not reference %s:\n%s", name, ref, outputs[name])
		}
	}
}

func TestRunNestedWorkers(t *testing.T) {
	logger.SetLevel("error")
	dir := writeProject(t, map[string]string{
		"src/main.js":  "import w from './outer.js?nodeWorker';\nw();\n",
		"src/outer.js": "import w from './inner.js?nodeWorker';\nw();\n",
		"src/inner.js": "console.log('inner');\n",
	})

	b := newTestBundler(t, Options{WorkingDir: dir})
	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Passes != 3 {
		t.Errorf("Passes = %d, want 3", res.Passes)
	}
	if len(res.Workers) != 2 {
		t.Fatalf("Workers = %d, want 2", len(res.Workers))
	}

	var outer, inner WorkerUnit
	for _, w := range res.Workers {
		if strings.HasSuffix(w.Source, "outer.js") {
			outer = w
		} else {
			inner = w
		}
	}
	outputs := outputsByPath(res)
	// both live in the worker dir, so the reference is a sibling
	ref := `"./` + strings.TrimPrefix(inner.File, "workers/") + `"`
	if !strings.Contains(outputs[outer.File], ref) {
		t.Errorf("%s does not reference %s:\n%s", outer.File, ref, outputs[outer.File])
	}
}

func TestRunComposesSourcemaps(t *testing.T) {
	logger.SetLevel("error")
	dir := writeProject(t, map[string]string{
		"src/main.js":   "import w from './worker.js?nodeWorker';\nexport const start = () => w();\n",
		"src/worker.js": "console.log('worker');\n",
	})

	b := newTestBundler(t, Options{WorkingDir: dir, Sourcemap: true})
	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	outputs := outputsByPath(res)

	raw, ok := outputs["main.js.map"]
	if !ok {
		t.Fatal("main.js.map missing")
	}
	m, err := sourcemap.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("composed map: %v", err)
	}
	found := false
	for _, s := range m.Sources {
		if strings.HasSuffix(s, "src/main.js") {
			found = true
		}
	}
	if !found {
		t.Errorf("composed map lost the original source: %v", m.Sources)
	}
	if _, err := m.Lines(); err != nil {
		t.Errorf("composed mappings do not decode: %v", err)
	}
	if sourcemap.FindSourceMappingURL(outputs["main.js"]) != "main.js.map" {
		t.Error("main.js lost its sourceMappingURL comment")
	}
}

func TestRunReportsBuildErrors(t *testing.T) {
	logger.SetLevel("error")
	dir := writeProject(t, map[string]string{
		"src/main.js": "import w from './missing.js?nodeWorker';\nw();\n",
	})

	b := newTestBundler(t, Options{WorkingDir: dir})
	if _, err := b.Run(context.Background()); !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("got %v, want ErrBuildFailed", err)
	}
}

func TestWriteOutputs(t *testing.T) {
	logger.SetLevel("error")
	dir := writeProject(t, map[string]string{
		"src/main.js":   "import w from './worker.js?nodeWorker';\nw();\n",
		"src/worker.js": "console.log('worker');\n",
	})

	b := newTestBundler(t, Options{WorkingDir: dir, Manifest: true})
	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var mu sync.Mutex
	written := 0
	if err := WriteOutputs(context.Background(), res, 2, func(r output.WriteResult) {
		mu.Lock()
		defer mu.Unlock()
		if r.Err == nil {
			written++
		}
	}); err != nil {
		t.Fatalf("WriteOutputs: %v", err)
	}
	if written != len(res.Outputs) {
		t.Errorf("written = %d, want %d", written, len(res.Outputs))
	}

	for _, out := range res.Outputs {
		if _, err := os.Stat(filepath.Join(res.Outdir, filepath.FromSlash(out.Path))); err != nil {
			t.Errorf("%s not on disk: %v", out.Path, err)
		}
	}

	scripts, err := storage.ReadScripts(res.Outdir)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range scripts {
		if len(nodeworker.Scan(string(s.Content))) != 0 {
			t.Errorf("%s still holds placeholder tokens", s.Name)
		}
	}
}

func workerProject(n int) map[string]string {
	files := map[string]string{}
	var a, b strings.Builder
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("job%02d", i)
		files["src/"+name+".js"] = fmt.Sprintf("console.log(%d);\n", i)
		line := fmt.Sprintf("import %s from './%s.js?nodeWorker';\n%s();\n", name, name, name)
		a.WriteString(line)
		if i%2 == 0 {
			b.WriteString(line)
		}
	}
	b.WriteString("import { start } from './shared.js';\nstart();\n")
	a.WriteString("import { start } from './shared.js';\nstart();\n")
	files["src/a.js"] = a.String()
	files["src/b.js"] = b.String()
	files["src/shared.js"] = "import w from './job00.js?nodeWorker';\nexport const start = () => w();\n"
	return files
}

func buildProject(t *testing.T, dir string) map[string]string {
	t.Helper()
	b := newTestBundler(t, Options{
		WorkingDir: dir,
		Entries:    []string{"src/a.js", "src/b.js"},
		Splitting:  true,
		Sourcemap:  true,
	})
	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return outputsByPath(res)
}

func sameOutputs(t *testing.T, got, want map[string]string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d outputs, want %d", len(got), len(want))
	}
	for name, content := range want {
		other, ok := got[name]
		if !ok {
			t.Errorf("output %s missing from the second build", name)
			continue
		}
		if other != content {
			t.Errorf("output %s differs between builds", name)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	logger.SetLevel("error")
	dir := writeProject(t, workerProject(20))

	first := buildProject(t, dir)
	for i := 0; i < 5; i++ {
		sameOutputs(t, buildProject(t, dir), first)
	}
}

func TestRunIsIndependentOfLocation(t *testing.T) {
	logger.SetLevel("error")
	files := workerProject(6)
	dirA := writeProject(t, files)
	dirB := writeProject(t, files)

	outA := buildProject(t, dirA)
	sameOutputs(t, buildProject(t, dirB), outA)

	for name, content := range outA {
		if strings.Contains(content, dirA) {
			t.Errorf("%s embeds the build directory", name)
		}
	}
}

func TestRunRewritesSharedModules(t *testing.T) {
	logger.SetLevel("error")
	files := map[string]string{
		"src/a.js":      "import { start } from './shared.js';\nstart('a');\n",
		"src/b.js":      "import { start } from './shared.js';\nstart('b');\n",
		"src/shared.js": "import createWorker from './worker.js?nodeWorker';\nexport function start(name) { return createWorker({ workerData: name }); }\n",
		"src/worker.js": "console.log('worker');\n",
	}

	tests := []struct {
		name      string
		splitting bool
	}{
		{"splitting", true},
		{"no splitting", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeProject(t, files)
			b := newTestBundler(t, Options{WorkingDir: dir, Entries: []string{"src/a.js", "src/b.js"}, Splitting: tt.splitting})
			res, err := b.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(res.Workers) != 1 {
				t.Fatalf("Workers = %d, want 1", len(res.Workers))
			}
			worker := res.Workers[0].File
			outputs := outputsByPath(res)

			for name, content := range outputs {
				if len(nodeworker.Scan(content)) != 0 {
					t.Errorf("%s still holds tokens", name)
				}
			}

			if tt.splitting {
				found := false
				for name, content := range outputs {
					if strings.HasPrefix(name, "chunks/") && strings.Contains(content, `"../`+worker+`"`) {
						found = true
					}
				}
				if !found {
					t.Errorf("no chunk references \"../%s\": %v", worker, outputs)
				}
				return
			}
			for _, entry := range []string{"a.js", "b.js"} {
				if !strings.Contains(outputs[entry], `"./`+worker+`"`) {
					t.Errorf("%s does not reference ./%s:\n%s", entry, worker, outputs[entry])
				}
			}
		})
	}
}

func TestCompanionMap(t *testing.T) {
	tests := []struct {
		name, code, want string
	}{
		{"main.js", "x\n//# sourceMappingURL=main.js.map\n", "main.js.map"},
		{"chunks/c.js", "x\n//# sourceMappingURL=c.js.map\n", "chunks/c.js.map"},
		{"chunks/c.js", "x\n//# sourceMappingURL=../maps/c.map\n", "maps/c.map"},
		{"main.js", "x", "main.js.map"},
		{"main.js", "//# sourceMappingURL=data:application/json;base64,e30=", "main.js.map"},
	}
	for _, tt := range tests {
		if got := companionMap(tt.name, tt.code); got != tt.want {
			t.Errorf("companionMap(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
