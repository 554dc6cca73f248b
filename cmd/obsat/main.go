// Command obsat schedules satellite observations for the twilight hours at a
// ground location.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
