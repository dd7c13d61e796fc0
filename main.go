package main

import "github.com/keylease/keylease/cmd"

func main() {
	cmd.Execute()
}
