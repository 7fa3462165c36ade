package bundle

import (
	"context"
	"fmt"

	"github.com/jsh-team/nodeworker/internal/workers/output"
)

// WriteOutputs writes every output of res below res.Outdir using at most
// maxWorkers concurrent writers. onWritten, if set, is called once per file.
func WriteOutputs(ctx context.Context, res *Result, maxWorkers int, onWritten func(output.WriteResult)) error {
	if res == nil {
		return fmt.Errorf("no build result to write")
	}
	jobs := make([]output.WriteJob, 0, len(res.Outputs))
	for _, out := range res.Outputs {
		jobs = append(jobs, output.WriteJob{
			Outdir:  res.Outdir,
			Name:    out.Path,
			Content: out.Contents,
		})
	}
	if err := output.WriteAll(ctx, jobs, maxWorkers, onWritten); err != nil {
		return fmt.Errorf("failed to write outputs: %w", err)
	}
	return nil
}
