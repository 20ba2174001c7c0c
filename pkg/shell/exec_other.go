//go:build !unix

package shell

import (
	"fmt"
	"runtime"

	"github.com/DeBrosOfficial/tidewave/pkg/errors"
)

func (e *Executor) run(argv []string, cw *ChunkWriter) (runResult, error) {
	return runResult{}, errors.NewExecutionError(argv,
		fmt.Errorf("command streaming is not supported on %s", runtime.GOOS))
}
