// Command edu-chat is a terminal client for the EduAgent API. It keeps the active
// conversation in memory and mirrors it to the server after every answer.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
