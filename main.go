package main

import "fabrikmcp/cmd"

func main() {
	cmd.Execute()
}
