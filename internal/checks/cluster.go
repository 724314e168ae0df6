package checks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/transport"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/camcast3/releasegate/internal/failure"
)

const defaultReadyzEndpoint = "/readyz"

// ClusterAccessError means the cluster API could not be used at all.
type ClusterAccessError struct {
	Reason string
	Err    error
}

func (e *ClusterAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cluster not accessible: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("cluster not accessible: %s", e.Reason)
}

func (e *ClusterAccessError) Unwrap() error { return e.Err }

// FailureKind implements failure.Classified.
func (e *ClusterAccessError) FailureKind() failure.Kind { return failure.ClusterUnreachable }

// CheckAPIServer performs an authenticated GET against the API server's /readyz endpoint.
func CheckAPIServer(ctx context.Context, restCfg *rest.Config) error {
	transportCfg, err := restCfg.TransportConfig()
	if err != nil {
		return &ClusterAccessError{Reason: "building transport config", Err: err}
	}
	rt, err := transport.New(transportCfg)
	if err != nil {
		return &ClusterAccessError{Reason: "creating transport", Err: err}
	}

	httpClient := &http.Client{
		Transport: rt,
		Timeout:   10 * time.Second,
	}

	url := restCfg.Host + defaultReadyzEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &ClusterAccessError{Reason: "creating request", Err: err}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return &ClusterAccessError{Reason: fmt.Sprintf("GET %s", url), Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return &ClusterAccessError{Reason: fmt.Sprintf("GET %s returned %d: %s", url, resp.StatusCode, string(body))}
	}
	return nil
}

// NamespaceResult reports whether the target namespace already exists.
type NamespaceResult struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
	// Detail is set when the lookup was denied and existence is unknown.
	Detail string `json:"detail,omitempty"`
}

// Verdict converts the result to a namespace verdict.
func (n NamespaceResult) Verdict() Verdict {
	return Verdict{Kind: KindNamespace, Name: n.Name, Present: n.Exists, Detail: n.Detail}
}

// CheckNamespace looks the namespace up. An absent namespace is not an error since
// the install step creates it. A denied lookup is not an error either: namespace
// scoped credentials often cannot read namespaces. Only a failure to reach the
// API server is a *ClusterAccessError.
func CheckNamespace(ctx context.Context, c client.Reader, name string) (NamespaceResult, error) {
	var ns corev1.Namespace
	err := c.Get(ctx, types.NamespacedName{Name: name}, &ns)
	switch {
	case err == nil:
		return NamespaceResult{Name: name, Exists: true}, nil
	case apierrors.IsNotFound(err):
		return NamespaceResult{Name: name, Exists: false}, nil
	case apierrors.IsForbidden(err), apierrors.IsUnauthorized(err):
		return NamespaceResult{Name: name, Exists: false, Detail: err.Error()}, nil
	default:
		return NamespaceResult{Name: name}, &ClusterAccessError{Reason: fmt.Sprintf("reading namespace %s", name), Err: err}
	}
}
