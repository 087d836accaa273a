package main

import (
	"os"

	"github.com/JonMunkholm/sheetmerge/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
