package main

import (
	"os"

	"github.com/shiv248/kolabcore/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
