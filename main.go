package main

import "github.com/lukman83/adscout/cmd"

func main() {
	cmd.Execute()
}
