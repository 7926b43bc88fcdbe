package main

import "github.com/stephnangue/appcred/cmd"

func main() {
	cmd.Execute()
}
