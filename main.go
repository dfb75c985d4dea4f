package main

import "github.com/timvw/taxomap/cmd"

func main() {
	cmd.Execute()
}
