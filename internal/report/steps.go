package report

import (
	"fmt"
	"io"

	"github.com/dyluth/huddle/internal/scenario"
)

// FormatSteps writes one line per executed scenario step, followed by a
// footer naming the step the replay stopped at, if one failed.
func FormatSteps(w io.Writer, result *scenario.Result) {
	for _, step := range result.Steps {
		marker := "✓"
		detail := formatID(step.ID)
		switch step.Outcome {
		case scenario.OutcomeExpected:
			marker = "~"
			detail = fmt.Sprintf("expected error: %v", step.Err)
		case scenario.OutcomeFailed:
			marker = "✗"
			detail = fmt.Sprintf("%v", step.Err)
		}
		if detail == "" {
			detail = "-"
		}

		alias := ""
		if step.As != "" {
			alias = " as " + step.As
		}
		fmt.Fprintf(w, "%s %3d %-18s%s %s\n", marker, step.Index, step.Action, alias, detail)
	}

	if failed, ok := result.Failed(); ok {
		fmt.Fprintf(w, "\nStopped at step %d (%s)\n", failed.Index, failed.Action)
	}
}
