package extract

import "fmt"

// ShapeMismatchError indicates that a predicted series and its observed
// series have different lengths.
type ShapeMismatchError struct {
	Path      string
	Predicted int
	Observed  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("number of predicted values (%d) does not equal the number of observed values (%d) in %s", e.Predicted, e.Observed, e.Path)
}

// MalformedNumericError indicates a non-numeric token where a number was expected.
type MalformedNumericError struct {
	Path   string
	Column string
	Line   int
	Value  string
	Err    error
}

func (e *MalformedNumericError) Error() string {
	where := e.Path
	if e.Column != "" {
		where = fmt.Sprintf("%s column %s", where, e.Column)
	}
	if e.Line > 0 {
		where = fmt.Sprintf("%s line %d", where, e.Line)
	}
	return fmt.Sprintf("malformed number %q in %s", e.Value, where)
}

func (e *MalformedNumericError) Unwrap() error { return e.Err }

// MissingArtifactError indicates an expected companion file or column is absent.
type MissingArtifactError struct {
	Path string
	Name string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing %s in %s", e.Name, e.Path)
}

// ExternalProcessError indicates the legacy run tool failed or produced no output.
type ExternalProcessError struct {
	Artifact string
	ExitCode int
	Err      error
}

func (e *ExternalProcessError) Error() string {
	if e == nil {
		return "external process failed"
	}
	if e.Err != nil {
		return fmt.Sprintf("run tool failed for %s (exit code %d): %v", e.Artifact, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("run tool produced no output for %s (exit code %d)", e.Artifact, e.ExitCode)
}

func (e *ExternalProcessError) Unwrap() error { return e.Err }
