package main

import "github.com/efota/efu/cmd/efu/cmd"

func main() {
	cmd.Execute()
}
