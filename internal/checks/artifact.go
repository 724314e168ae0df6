package checks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/camcast3/releasegate/internal/failure"
	"github.com/camcast3/releasegate/internal/tools"
)

// ArtifactError reports the first artifact reference that could not be fetched.
// A registry failure points at broken connectivity or credentials, so the
// remaining references are not tried.
type ArtifactError struct {
	Ref string
	Err error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("OCI artifact not accessible: %s: %v", e.Ref, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// FailureKind implements failure.Classified. A tool failure keeps its own kind.
func (e *ArtifactError) FailureKind() failure.Kind {
	if k := failure.KindOf(e.Err); k != failure.Unknown {
		return k
	}
	return failure.CommandFailed
}

// ManifestFetcher fetches the raw manifest of an OCI reference.
type ManifestFetcher interface {
	ManifestFetch(ctx context.Context, ref string) ([]byte, error)
}

var _ ManifestFetcher = tools.Oras{}

// CheckArtifacts fetches the manifest of every reference in order and stops at
// the first one that fails. The verdict detail is the manifest's config digest,
// or the digest of the manifest itself when it has no config.
func CheckArtifacts(ctx context.Context, f ManifestFetcher, refs []string, onVerdict func(Verdict)) (Result, error) {
	logger := log.FromContext(ctx)
	res := Result{Kind: KindArtifact}

	for _, ref := range refs {
		raw, err := f.ManifestFetch(ctx, ref)
		if err != nil {
			return res, &ArtifactError{Ref: ref, Err: err}
		}
		d, err := manifestDigest(raw)
		if err != nil {
			return res, &ArtifactError{Ref: ref, Err: err}
		}
		v := Verdict{Kind: KindArtifact, Name: ref, Present: true, Detail: d.String()}
		logger.V(1).Info("artifact reachable", "ref", ref, "digest", v.Detail)
		res.Verdicts = append(res.Verdicts, v)
		if onVerdict != nil {
			onVerdict(v)
		}
	}
	return res, nil
}

func manifestDigest(raw []byte) (digest.Digest, error) {
	var m ocispec.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Config.Digest != "" {
		if err := m.Config.Digest.Validate(); err != nil {
			return "", fmt.Errorf("invalid config digest: %w", err)
		}
		return m.Config.Digest, nil
	}
	return digest.FromBytes(raw), nil
}
