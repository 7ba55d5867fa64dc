package main

import "github.com/convo-sh/convo/cmd"

func main() {
	cmd.Execute()
}
