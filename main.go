package main

import "github.com/notarikon-nz/notabot/cmd"

func main() {
	cmd.Execute()
}
