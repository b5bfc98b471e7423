package errors

import (
	stderrors "errors"
	"strings"
)

// JoinErrors merges the non-nil errors. A single one is returned as is;
// several become one internal error that still unwraps to each of them.
func JoinErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}

	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}

	messages := make([]string, len(nonNil))
	for i, err := range nonNil {
		messages[i] = err.Error()
	}
	return Internal("multiple errors occurred: "+strings.Join(messages, "; "), stderrors.Join(nonNil...))
}

// FormatErrorChain renders err, its stack if any, and every cause below it,
// one per line. Used for --debug output.
func FormatErrorChain(err error) string {
	if err == nil {
		return "<nil>"
	}

	var b strings.Builder
	for depth := 0; err != nil; depth++ {
		if depth > 0 {
			b.WriteString("\ncaused by: ")
		}
		if appErr, ok := err.(*AppError); ok {
			b.WriteString(appErr.Type + ": " + appErr.Message)
			for _, frame := range appErr.Stack {
				b.WriteString("\n    " + frame)
			}
		} else {
			b.WriteString(err.Error())
		}
		err = stderrors.Unwrap(err)
	}
	return b.String()
}
