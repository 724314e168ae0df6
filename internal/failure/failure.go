// Package failure classifies pipeline errors into the kinds operators act on.
package failure

import "errors"

// Kind identifies why a stage failed.
type Kind string

const (
	// Unknown is returned for errors that carry no classification.
	Unknown Kind = "Unknown"

	// MissingTool means a required external binary is not on PATH.
	MissingTool Kind = "MissingTool"

	// ConfigInvalid means the configuration file is malformed or references a missing path.
	ConfigInvalid Kind = "ConfigInvalid"

	// ResourceMissing means one or more expected cluster resources do not exist.
	ResourceMissing Kind = "ResourceMissing"

	// CommandFailed means a subprocess ran and exited non-zero.
	CommandFailed Kind = "CommandFailed"

	// Timeout means a bounded wait passed its deadline without success.
	Timeout Kind = "Timeout"

	// SmokeTestFailed means the functional request reached the service but was not answered successfully.
	SmokeTestFailed Kind = "SmokeTestFailed"

	// ClusterUnreachable means the cluster API could not be reached at all.
	ClusterUnreachable Kind = "ClusterUnreachable"
)

// Classified is implemented by errors that know their Kind.
type Classified interface {
	error
	FailureKind() Kind
}

// KindOf returns the Kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var c Classified
	if errors.As(err, &c) {
		return c.FailureKind()
	}
	return Unknown
}

// Is reports whether err is classified as k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
