package compile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/codegend/internal/config"
	cerrors "git.home.luguber.info/inful/codegend/internal/errors"
	"git.home.luguber.info/inful/codegend/internal/generator"
)

// scriptedRunner runs cycles from a queue of outcomes; an empty queue means
// success. Cycles can optionally be held open by a gate channel.
type scriptedRunner struct {
	mu       sync.Mutex
	outcomes []error
	gate     chan struct{}
	runCount int
}

func (r *scriptedRunner) RunCycle(ctx context.Context, projectRoot string) error {
	r.mu.Lock()
	r.runCount++
	var out error
	if len(r.outcomes) > 0 {
		out = r.outcomes[0]
		r.outcomes = r.outcomes[1:]
	}
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return out
}

func (r *scriptedRunner) runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runCount
}

type fakeCompiler struct {
	mu      sync.Mutex
	calls   int
	lastReq CompileRequest
	result  *CompileResult
	err     error
}

func (f *fakeCompiler) Compile(ctx context.Context, req CompileRequest) (*CompileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.result == nil && f.err == nil {
		return &CompileResult{OutputPath: req.OutputPath}, nil
	}
	return f.result, f.err
}

func (f *fakeCompiler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSession struct {
	mu          sync.Mutex
	recompiles  []RecompileRequest
	expressions []ExpressionRequest
	accepts     int
	resets      int
	rejected    bool
	shutdown    bool
	onRecompile func(RecompileRequest)
}

func (s *fakeSession) Accept()       { s.mu.Lock(); s.accepts++; s.mu.Unlock() }
func (s *fakeSession) Reject() error { s.mu.Lock(); s.rejected = true; s.mu.Unlock(); return nil }
func (s *fakeSession) Reset()        { s.mu.Lock(); s.resets++; s.mu.Unlock() }
func (s *fakeSession) Shutdown() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Recompile(ctx context.Context, req RecompileRequest) (*CompileResult, error) {
	s.mu.Lock()
	s.recompiles = append(s.recompiles, req)
	hook := s.onRecompile
	s.mu.Unlock()
	if hook != nil {
		hook(req)
	}
	return &CompileResult{OutputPath: req.OutputPath}, nil
}

func (s *fakeSession) CompileExpression(ctx context.Context, req ExpressionRequest) (*CompileResult, error) {
	s.mu.Lock()
	s.expressions = append(s.expressions, req)
	s.mu.Unlock()
	return &CompileResult{}, nil
}

// recordingHandler captures slog records so tests can assert on emitted
// diagnostics.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r)
	h.mu.Unlock()
	return nil
}
func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) warnings() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []slog.Record
	for _, r := range h.records {
		if r.Level == slog.LevelWarn {
			out = append(out, r)
		}
	}
	return out
}

func testProject(t *testing.T) config.ProjectConfig {
	t.Helper()
	root := t.TempDir()
	gen := filepath.Join(root, ".codegend", "generated")
	return config.ProjectConfig{
		Root:          root,
		GeneratedRoot: gen,
		PackagesPath:  filepath.Join(gen, "package_config.json"),
	}
}

func newTestGenerator(t *testing.T, project config.ProjectConfig, runner generator.CycleRunner) generator.Generator {
	t.Helper()
	cfg := &config.Config{
		Project:   project,
		Generator: config.GeneratorConfig{Command: []string{"true"}},
	}
	return generator.NewSupported(cfg, runner, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMultiRoots_GeneratedRootFirst(t *testing.T) {
	roots := MultiRoots("/srv/app", "/srv/app/.codegend/generated")
	require.Len(t, roots, 2)
	require.Equal(t, "/srv/app/.codegend/generated/lib/", roots[0])
	require.Equal(t, "/srv/app/lib/", roots[1])
}

func TestGeneratingCompiler_FailedCycleNeverDelegates(t *testing.T) {
	project := testProject(t)
	runner := &scriptedRunner{outcomes: []error{errors.New("tool exit 1")}}
	gen := newTestGenerator(t, project, runner)
	underlying := &fakeCompiler{}

	c := NewGeneratingCompiler(gen, project, underlying, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.Compile(context.Background(), CompileRequest{EntryPath: "lib/main"})

	require.Error(t, err)
	require.True(t, cerrors.IsCategory(err, cerrors.CategoryGenerate))
	require.Equal(t, 0, underlying.callCount())
}

func TestGeneratingCompiler_SuccessInjectsRootsAndPackages(t *testing.T) {
	project := testProject(t)
	runner := &scriptedRunner{}
	gen := newTestGenerator(t, project, runner)
	underlying := &fakeCompiler{}

	c := NewGeneratingCompiler(gen, project, underlying, slog.New(slog.NewTextHandler(io.Discard, nil)))
	res, err := c.Compile(context.Background(), CompileRequest{
		EntryPath: "lib/main",
		// Legacy fields are discarded with a notice, never forwarded.
		FileSystemRoots:  []string{"/custom"},
		FileSystemScheme: "custom-scheme",
		DepFilePath:      "/dep",
		TargetModel:      "legacy",
		SdkRoot:          "/sdk",
		PackagesPath:     "/own/packages",
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, 1, underlying.callCount())

	req := underlying.lastReq
	require.Equal(t, MultiRoots(project.Root, project.GeneratedRoot), req.FileSystemRoots)
	require.Equal(t, MultiRootScheme, req.FileSystemScheme)
	require.Equal(t, project.PackagesPath, req.PackagesPath)
	require.Empty(t, req.DepFilePath)
	require.Empty(t, req.TargetModel)
	require.Empty(t, req.SdkRoot)
}

func TestGeneratingCompiler_ForcesFreshCyclePerCompile(t *testing.T) {
	project := testProject(t)
	runner := &scriptedRunner{}
	gen := newTestGenerator(t, project, runner)
	c := NewGeneratingCompiler(gen, project, &fakeCompiler{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.Compile(context.Background(), CompileRequest{EntryPath: "lib/main"})
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), CompileRequest{EntryPath: "lib/main"})
	require.NoError(t, err)

	require.Equal(t, 2, runner.runs())
}

func TestGeneratingCompiler_UnsupportedPipeline(t *testing.T) {
	project := testProject(t)
	gate := config.NewFeatureGate()
	gate.SetForTesting(false)
	gen := generator.Select(gate, &config.Config{
		Project:   project,
		Generator: config.GeneratorConfig{Command: []string{"true"}},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	underlying := &fakeCompiler{}
	c := NewGeneratingCompiler(gen, project, underlying, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.Compile(context.Background(), CompileRequest{EntryPath: "lib/main"})
	require.True(t, cerrors.IsUnsupported(err))
	require.Equal(t, 0, underlying.callCount())
}

func newResident(t *testing.T, project config.ProjectConfig, runner generator.CycleRunner, session *fakeSession, logger *slog.Logger) *GeneratingResidentCompiler {
	t.Helper()
	gen := newTestGenerator(t, project, runner)
	rc, err := NewGeneratingResidentCompiler(context.Background(), gen, project,
		ResidentOptions{EntryPath: "lib/main"},
		func(ctx context.Context, cfg SessionConfig) (ResidentSession, error) {
			require.Equal(t, MultiRoots(project.Root, project.GeneratedRoot), cfg.FileSystemRoots)
			require.Equal(t, MultiRootScheme, cfg.FileSystemScheme)
			require.Equal(t, project.PackagesPath, cfg.PackagesPath)
			return session, nil
		}, logger)
	require.NoError(t, err)
	return rc
}

func TestResident_ConstructionSurvivesFailedCycleWithWarning(t *testing.T) {
	project := testProject(t)
	runner := &scriptedRunner{outcomes: []error{errors.New("tool exit 1")}}
	handler := &recordingHandler{}

	rc := newResident(t, project, runner, &fakeSession{}, slog.New(handler))
	defer func() { _ = rc.Shutdown() }()

	require.NotEmpty(t, handler.warnings(), "expected a generation-failure warning")
}

func TestResident_RecompileUsesCachedTerminalStatus(t *testing.T) {
	project := testProject(t)
	runner := &scriptedRunner{}
	session := &fakeSession{}
	rc := newResident(t, project, runner, session, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer func() { _ = rc.Shutdown() }()

	// Construction ran the only cycle; the recompile must resolve from the
	// cached status without a stream wait or a new cycle.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err := rc.Recompile(ctx, []string{"lib/a.src"}, "")
	require.NoError(t, err)
	require.Equal(t, 1, runner.runs())

	require.Len(t, session.recompiles, 1)
	req := session.recompiles[0]
	require.Equal(t, "lib/main", req.EntryPath)
	require.Equal(t, []string{"lib/a.src"}, req.InvalidatedFiles)
	require.Equal(t, project.PackagesPath, req.PackagesPath)
}

func TestResident_RecompileBlocksUntilCycleTerminal(t *testing.T) {
	project := testProject(t)
	gate := make(chan struct{})
	close(gate) // construction cycle completes immediately
	runner := &scriptedRunner{gate: gate}
	session := &fakeSession{}
	rc := newResident(t, project, runner, session, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer func() { _ = rc.Shutdown() }()

	// Hold the next cycle open, then trigger it.
	hold := make(chan struct{})
	runner.mu.Lock()
	runner.gate = hold
	runner.mu.Unlock()

	gen := rc.daemon
	gen.StartBuild()
	for gen.LastStatus() != generator.StatusStarted {
		time.Sleep(5 * time.Millisecond)
	}

	done := make(chan error, 1)
	go func() {
		_, err := rc.Recompile(context.Background(), []string{"lib/a.src"}, "")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("recompile returned while the generation cycle was still open")
	case <-time.After(150 * time.Millisecond):
	}

	close(hold)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("recompile did not resume after terminal status")
	}
	require.Len(t, session.recompiles, 1)
}

func TestResident_FailedCycleWarnsAndStillRecompiles(t *testing.T) {
	project := testProject(t)
	runner := &scriptedRunner{outcomes: []error{nil, errors.New("tool exit 1")}}
	session := &fakeSession{}
	handler := &recordingHandler{}
	rc := newResident(t, project, runner, session, slog.New(handler))
	defer func() { _ = rc.Shutdown() }()

	rc.daemon.StartBuild()
	for rc.daemon.LastStatus() == generator.StatusStarted {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, generator.StatusFailed, rc.daemon.LastStatus())

	_, err := rc.Recompile(context.Background(), nil, "")
	require.NoError(t, err)
	require.Len(t, session.recompiles, 1)
	require.NotEmpty(t, handler.warnings())
}

func TestResident_DeletesStaleOutputBeforeDelegating(t *testing.T) {
	project := testProject(t)
	runner := &scriptedRunner{}
	outputPath := filepath.Join(t.TempDir(), "app.out")
	require.NoError(t, os.WriteFile(outputPath, []byte("stale"), 0o644))

	session := &fakeSession{}
	session.onRecompile = func(req RecompileRequest) {
		_, err := os.Stat(req.OutputPath)
		require.True(t, os.IsNotExist(err), "stale output must be gone when the session is invoked")
	}

	rc := newResident(t, project, runner, session, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer func() { _ = rc.Shutdown() }()

	_, err := rc.Recompile(context.Background(), nil, outputPath)
	require.NoError(t, err)
	require.Len(t, session.recompiles, 1)
}

func TestResident_LifecyclePassThroughs(t *testing.T) {
	project := testProject(t)
	session := &fakeSession{}
	rc := newResident(t, project, &scriptedRunner{}, session, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rc.Accept()
	rc.Reset()
	require.NoError(t, rc.Reject())

	_, err := rc.CompileExpression(context.Background(), ExpressionRequest{
		Expression: "1 + 1",
		LibraryURI: "package:app/main",
	})
	require.NoError(t, err)

	require.NoError(t, rc.Shutdown())

	require.Equal(t, 1, session.accepts)
	require.Equal(t, 1, session.resets)
	require.True(t, session.rejected)
	require.True(t, session.shutdown)
	require.Len(t, session.expressions, 1)
}

func TestResident_ShutdownClosesDaemon(t *testing.T) {
	project := testProject(t)
	rc := newResident(t, project, &scriptedRunner{}, &fakeSession{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	daemon := rc.daemon
	require.NoError(t, rc.Shutdown())

	ch, cancel := daemon.BuildResults(1)
	defer cancel()
	_, open := <-ch
	require.False(t, open, "daemon stream should be closed after shutdown")
}
