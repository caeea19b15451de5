package main

import "github.com/joshdurbin/runtracker/internal/cmd"

func main() {
	cmd.Execute()
}
