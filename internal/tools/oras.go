package tools

import (
	"context"

	"github.com/camcast3/releasegate/internal/runner"
)

// OrasBinary is the name of the oras CLI.
const OrasBinary = "oras"

// Oras drives the oras CLI.
type Oras struct {
	Runner runner.Runner
}

// ManifestFetch returns the raw manifest of ref.
func (o Oras) ManifestFetch(ctx context.Context, ref string) ([]byte, error) {
	out, err := o.Runner.Run(ctx, runner.Command{
		Name: OrasBinary,
		Args: []string{"manifest", "fetch", ref},
	})
	if err != nil {
		return nil, err
	}
	return []byte(out.Stdout), nil
}
