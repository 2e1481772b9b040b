package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/kcmvp/basemodel/db"
)

func main() {
	err := newRootCmd().Execute()
	_ = db.CloseAllDataSources()
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
