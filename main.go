package main

import (
	"os"

	"bilheteria-cli/cmd"
)

var (
	version = "dev"
	commit  = "none"
)

func versionString() string {
	if commit != "none" && commit != "" {
		return version + " (" + commit + ")"
	}
	return version
}

func main() {
	os.Exit(cmd.Execute(versionString()))
}
