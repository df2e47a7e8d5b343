package main

import "chroni/cmd"

func main() {
	cmd.Execute()
}
