// Package compile wraps the underlying compiler behind the build-status
// coordination layer: every compilation observes the latest generated sources
// before it runs.
//
// The underlying one-shot compiler and the persistent session are external
// collaborators; this package defines only their boundary contracts and the
// two coordinating wrappers (GeneratingCompiler, GeneratingResidentCompiler).
package compile

import "context"

// CompileRequest is the full request surface of the underlying one-shot
// compiler.
type CompileRequest struct {
	EntryPath  string
	OutputPath string

	LinkPlatform        bool
	AOT                 bool
	TrackWidgetCreation bool
	ExtraOptions        []string

	// IncrementalStorePath points at the incremental byte store.
	IncrementalStorePath string

	// Multi-root virtual filesystem configuration. The generating wrappers
	// overwrite these; see GeneratingCompiler.
	FileSystemRoots  []string
	FileSystemScheme string

	// Package resolution and legacy knobs.
	PackagesPath string
	DepFilePath  string
	TargetModel  string
	SdkRoot      string
}

// CompileResult is the compiler output artifact descriptor.
type CompileResult struct {
	OutputPath  string
	ErrorCount  int
	Diagnostics []string
}

// Compiler is the underlying one-shot compiler.
type Compiler interface {
	Compile(ctx context.Context, req CompileRequest) (*CompileResult, error)
}

// RecompileRequest is one incremental recompile against a persistent session.
type RecompileRequest struct {
	EntryPath        string
	InvalidatedFiles []string
	OutputPath       string
	PackagesPath     string
}

// ExpressionRequest evaluates an expression in the context of a previous
// compilation.
type ExpressionRequest struct {
	Expression      string
	Definitions     []string
	TypeDefinitions []string
	LibraryURI      string
	ClassName       string
	IsStatic        bool
}

// ResidentSession is the underlying persistent incremental-compiler session.
// Accept, Reject, Reset and Shutdown are lifecycle transitions; Recompile and
// CompileExpression produce compiler output.
type ResidentSession interface {
	Accept()
	Reject() error
	Reset()
	Shutdown() error
	Recompile(ctx context.Context, req RecompileRequest) (*CompileResult, error)
	CompileExpression(ctx context.Context, req ExpressionRequest) (*CompileResult, error)
}

// SessionConfig is the construction surface for a persistent session.
type SessionConfig struct {
	EntryPath        string
	FileSystemRoots  []string
	FileSystemScheme string
	PackagesPath     string

	// Opaque pass-through options.
	IncrementalSeed            string
	TrackWidgetCreation        bool
	UnsafePackageSerialization bool
	ExtraOptions               []string
}

// SessionFactory constructs the underlying persistent session. Injected so
// the coordination layer stays independent of the compiler transport.
type SessionFactory func(ctx context.Context, cfg SessionConfig) (ResidentSession, error)
