package checks

import (
	"context"

	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// CheckCRDs verifies that every named CustomResourceDefinition exists
// (names are the CRD object names, e.g. "scaledobjects.keda.sh").
// Every name is evaluated; the result lists all of them.
func CheckCRDs(ctx context.Context, c client.Reader, names []string, opts Options) Result {
	return evaluate(ctx, KindCRD, names, opts, func(ctx context.Context, name string) error {
		var crd apiextensionsv1.CustomResourceDefinition
		return c.Get(ctx, types.NamespacedName{Name: name}, &crd)
	})
}

// CheckSecrets verifies that every named Secret exists in namespace.
// Every name is evaluated; the result lists all of them.
func CheckSecrets(ctx context.Context, c client.Reader, namespace string, names []string, opts Options) Result {
	res := evaluate(ctx, KindSecret, names, opts, func(ctx context.Context, name string) error {
		var secret corev1.Secret
		return c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, &secret)
	})
	res.Namespace = namespace
	return res
}

// evaluate runs lookup for each name and records one verdict per name in input order.
// Anything other than a successful lookup counts as missing, with the error kept as detail.
func evaluate(ctx context.Context, kind Kind, names []string, opts Options, lookup func(context.Context, string) error) Result {
	logger := log.FromContext(ctx).WithValues("kind", kind)
	verdicts := make([]Verdict, len(names))

	check := func(i int) {
		name := names[i]
		v := Verdict{Kind: kind, Name: name, Present: true}
		if err := lookup(ctx, name); err != nil {
			v.Present = false
			v.Detail = err.Error()
		}
		logger.V(1).Info("resource verdict", "name", name, "present", v.Present)
		verdicts[i] = v
	}

	if opts.Concurrency < 2 || len(names) < 2 {
		for i := range names {
			check(i)
			if opts.OnVerdict != nil {
				opts.OnVerdict(verdicts[i])
			}
		}
		return Result{Kind: kind, Verdicts: verdicts}
	}

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i := range names {
		g.Go(func() error {
			check(i)
			return nil
		})
	}
	_ = g.Wait()

	if opts.OnVerdict != nil {
		for _, v := range verdicts {
			opts.OnVerdict(v)
		}
	}
	return Result{Kind: kind, Verdicts: verdicts}
}
