package main

import "github.com/solpilot/solpilot/cmd"

func main() {
	cmd.Execute()
}
