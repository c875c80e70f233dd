package main

import "github.com/a9lim/shannon/cmd"

func main() {
	cmd.Execute()
}
