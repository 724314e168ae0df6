package checks

import (
	"fmt"
	"strings"

	"github.com/camcast3/releasegate/internal/failure"
)

// Kind is the category of resource a verdict refers to.
type Kind string

const (
	KindNamespace Kind = "namespace"
	KindCRD       Kind = "custom-resource-type"
	KindSecret    Kind = "secret"
	KindArtifact  Kind = "artifact"
)

// Verdict is the present/missing classification of a single named resource.
type Verdict struct {
	Kind    Kind   `json:"kind"`
	Name    string `json:"name"`
	Present bool   `json:"present"`
	// Detail is the digest for artifacts, or the lookup error for missing items.
	Detail string `json:"detail,omitempty"`
}

// Result holds every verdict of one category, in the order the names were given.
type Result struct {
	Kind Kind `json:"kind"`
	// Namespace is set for namespaced kinds.
	Namespace string    `json:"namespace,omitempty"`
	Verdicts  []Verdict `json:"verdicts"`
}

// Missing returns the names not confirmed present, in input order.
func (r Result) Missing() []string {
	var missing []string
	for _, v := range r.Verdicts {
		if !v.Present {
			missing = append(missing, v.Name)
		}
	}
	return missing
}

// Err returns a MissingError listing every missing name, or nil.
func (r Result) Err() error {
	missing := r.Missing()
	if len(missing) == 0 {
		return nil
	}
	return &MissingError{Kind: r.Kind, Names: missing, Namespace: r.Namespace}
}

// MissingError reports the complete list of missing resources of one kind.
type MissingError struct {
	Kind      Kind
	Names     []string
	Namespace string
}

func (e *MissingError) Error() string {
	where := ""
	if e.Namespace != "" {
		where = fmt.Sprintf(" in ns/%s", e.Namespace)
	}
	return fmt.Sprintf("missing %s%s: [%s]", plural(e.Kind), where, strings.Join(e.Names, ", "))
}

// FailureKind implements failure.Classified.
func (e *MissingError) FailureKind() failure.Kind { return failure.ResourceMissing }

func plural(k Kind) string {
	switch k {
	case KindCRD:
		return "CRDs"
	case KindSecret:
		return "secrets"
	case KindArtifact:
		return "artifacts"
	default:
		return string(k) + "s"
	}
}

// Options tunes how a category is evaluated.
type Options struct {
	// Concurrency is the number of items looked up at once. Values below 2 mean sequential.
	Concurrency int
	// OnVerdict, when set, is called once per item as soon as its verdict is known.
	OnVerdict func(Verdict)
}
