package main

import "github.com/Julianb233/acre-notebook-lm/cmd"

func main() {
	cmd.Execute()
}
