package main

import (
	"errors"
	"fmt"
	"os"

	"coyote/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "coyote:", app.Describe(err))
		if errors.Is(err, app.ErrUsage) {
			fmt.Fprint(os.Stderr, "\n", app.Usage())
		}
		os.Exit(app.ExitCode(err))
	}
}
