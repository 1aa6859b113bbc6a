package main

import "github.com/lepinkainen/bookhound/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
