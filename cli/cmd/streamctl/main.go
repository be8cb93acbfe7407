package main

import "worker/cli/cmd"

func main() {
	cmd.Execute()
}
