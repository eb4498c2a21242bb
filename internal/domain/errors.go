package domain

import "fmt"

// ValidationError reports a mandatory metric that is missing or outside
// physiologically plausible bounds. Surfaced immediately to the caller and
// never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid metric %s: %s", e.Field, e.Reason)
}

// ModelLoadError reports missing or corrupt licensed shape-model assets. It is
// non-fatal: the synthesis provider logs it once and falls back to the
// placeholder backend.
type ModelLoadError struct {
	Variant string
	Err     error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("shape model %s unavailable: %v", e.Variant, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// TopologyMismatchError reports a morph requested between incompatible mesh
// sources. Fatal for that single operation.
type TopologyMismatchError struct {
	Reason string
}

func (e *TopologyMismatchError) Error() string {
	return fmt.Sprintf("mesh topology mismatch: %s", e.Reason)
}

// ErrAvatarNotFound is returned when an avatar cannot be located.
var ErrAvatarNotFound = fmt.Errorf("avatar not found")

// ErrMorphSequenceNotFound is returned when a morph sequence cannot be located.
var ErrMorphSequenceNotFound = fmt.Errorf("morph sequence not found")
