package main

import "tree-sync/cmd"

func main() {
	cmd.Execute()
}
