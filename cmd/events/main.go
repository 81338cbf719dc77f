package main

import "github.com/pershin-daniil/Events/cmd/events/cmd"

func main() {
	cmd.Execute()
}
