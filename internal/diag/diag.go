// Package diag renders the fatal internal-error aborts the IR raises when an
// invariant is violated. The IR is a closed-world representation: nothing it
// produces is a recoverable diagnostic, so there is no Suggestion/Note
// machinery here, only a formatted panic.
package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// InternalError is the payload of a fatal internal-error panic.
type InternalError struct {
	Pass    string
	Message string
	Ids     []string
}

func (e *InternalError) Error() string {
	var b strings.Builder
	bold := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	b.WriteString(fmt.Sprintf("%s: %s\n", bold("internal error"), e.Message))
	if e.Pass != "" {
		b.WriteString(fmt.Sprintf("  %s %s\n", dim("pass:"), e.Pass))
	}
	if len(e.Ids) > 0 {
		b.WriteString(fmt.Sprintf("  %s %s\n", dim("ids:"), strings.Join(e.Ids, ", ")))
	}
	return b.String()
}

// Abortf raises a fatal internal error. Callers never recover from it within
// this module; recovery, if any, belongs to the embedder of compile.Run.
func Abortf(pass, format string, args ...any) {
	panic(&InternalError{Pass: pass, Message: fmt.Sprintf(format, args...)})
}

// AbortIds is Abortf with id values attached for post-mortem formatting.
func AbortIds(pass string, ids []string, format string, args ...any) {
	panic(&InternalError{Pass: pass, Message: fmt.Sprintf(format, args...), Ids: ids})
}

// Errorf is Abortf under another name, for call sites that read more
// naturally as "report this error" than "abort the compile" even though the
// effect is identical: there is no recoverable error path in this module (§7).
func Errorf(pass, format string, args ...any) {
	Abortf(pass, format, args...)
}
