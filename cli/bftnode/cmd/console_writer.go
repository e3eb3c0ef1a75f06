package cmd

import "fmt"

// consoleWriter is used to print command output, tests replace it to capture
// the output.
var consoleWriter consoleWrapper = stdoutWrapper{}

type (
	consoleWrapper interface {
		Println(a ...any)
		Printf(format string, a ...any)
	}

	stdoutWrapper struct{}
)

func (stdoutWrapper) Println(a ...any) {
	fmt.Println(a...)
}

func (stdoutWrapper) Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}
