package doctor

import (
	"context"
	"fmt"
	"io"
)

// Check is one diagnostic step. Run returns a short detail line on success.
type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

// Run executes every check in order, printing PASS or FAIL for each, and
// returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "dictate doctor - system diagnostics")
	fmt.Fprintln(w, "===================================")

	failed := 0
	for i, c := range checks {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(checks), c.Name)
		if err := ctx.Err(); err != nil {
			fmt.Fprintf(w, "  SKIP: %v\n", err)
			failed++
			continue
		}
		msg, err := safeRun(ctx, c)
		if err != nil {
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			failed++
			continue
		}
		fmt.Fprintf(w, "  PASS: %s\n", msg)
	}

	fmt.Fprintln(w)
	if failed == 0 {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintf(w, "%d of %d checks failed. See details above.\n", failed, len(checks))
	return 1
}

func safeRun(ctx context.Context, c Check) (msg string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.Run(ctx)
}
