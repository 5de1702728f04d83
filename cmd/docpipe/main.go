package main

import (
	"fmt"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, "docpipe:", err)
		os.Exit(apperrors.ExitCode(err))
	}
}
