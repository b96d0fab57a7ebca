package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *CodegendError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *CodegendError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *CodegendError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Generation pipeline errors

// Unsupported reports that the generation pipeline is disabled for this
// process. Raised synchronously by the unsupported generator variant for both
// build-script generation and daemon acquisition.
func Unsupported(operation string) *CodegendError {
	return New(CategoryGenerate, SeverityFatal, "code generation is not supported in this configuration").
		WithContext("operation", operation)
}

// IsUnsupported reports whether err originated from the disabled-pipeline variant.
func IsUnsupported(err error) bool {
	ce, ok := AsCodegend(err)
	if !ok {
		return false
	}
	return ce.Category == CategoryGenerate &&
		ce.Message == "code generation is not supported in this configuration"
}

// GenerationFailed reports a failed generation cycle escalated to a fatal
// error. Only the one-shot compile path escalates this way.
func GenerationFailed(project string) *CodegendError {
	return New(CategoryGenerate, SeverityFatal, "code generation failed").
		WithContext("project", project)
}

func CompileError(entry string, cause error) *CodegendError {
	return Wrap(cause, CategoryCompile, SeverityFatal, "compilation failed").
		WithContext("entry", entry)
}

// Storage errors

func StorageError(operation string, cause error) *CodegendError {
	return Wrap(cause, CategoryStorage, SeverityError, "event store operation failed").
		WithContext("operation", operation)
}

// Daemon errors

func DaemonError(message string) *CodegendError {
	return New(CategoryDaemon, SeverityError, message)
}

// Internal errors

func InternalError(message string, cause error) *CodegendError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
