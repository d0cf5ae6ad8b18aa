package main

import "github.com/oshokin/desktop-updater/cmd/desktop-updater/cmd"

func main() {
	cmd.Execute()
}
