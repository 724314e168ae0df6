// Package kube opens a read-only session against the target cluster.
package kube

import (
	"context"
	"fmt"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/camcast3/releasegate/internal/checks"
)

// Scheme knows the core types and CustomResourceDefinitions.
var Scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(Scheme))
	utilruntime.Must(apiextensionsv1.AddToScheme(Scheme))
}

// Session connects to the cluster named by a kubeconfig.
type Session struct {
	// Kubeconfig is the kubeconfig path. Empty means in-cluster config, then the
	// default loading rules.
	Kubeconfig string

	// loadConfig and newClient are replaced in tests.
	loadConfig func(string) (*rest.Config, error)
	newClient  func(*rest.Config, client.Options) (client.Client, error)
}

// NewSession returns a session for the given kubeconfig path.
func NewSession(kubeconfig string) *Session {
	return &Session{Kubeconfig: kubeconfig, loadConfig: LoadConfig, newClient: client.New}
}

// Connect loads the kubeconfig, verifies the API server answers /readyz and
// returns a client for it. Every failure is a *checks.ClusterAccessError.
func (s *Session) Connect(ctx context.Context) (client.Reader, error) {
	restCfg, err := s.loadConfig(s.Kubeconfig)
	if err != nil {
		return nil, &checks.ClusterAccessError{Reason: "loading kubeconfig", Err: err}
	}
	log.FromContext(ctx).V(1).Info("connecting to cluster", "host", restCfg.Host)

	if err := checks.CheckAPIServer(ctx, restCfg); err != nil {
		return nil, err
	}

	c, err := s.newClient(restCfg, client.Options{Scheme: Scheme})
	if err != nil {
		return nil, &checks.ClusterAccessError{Reason: "creating client", Err: err}
	}
	return c, nil
}

// LoadConfig builds a rest config from an explicit kubeconfig path. An empty
// path follows the same default loading rules as kubectl and helm: KUBECONFIG,
// then ~/.kube/config, then the in-cluster config.
func LoadConfig(kubeconfig string) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, nil).ClientConfig()
	if err != nil {
		if kubeconfig != "" {
			return nil, fmt.Errorf("reading kubeconfig %s: %w", kubeconfig, err)
		}
		return nil, err
	}
	return cfg, nil
}
