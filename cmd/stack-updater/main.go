package main

import "github.com/oshokin/stack-updater/cmd/stack-updater/cmd"

func main() {
	cmd.Execute()
}
