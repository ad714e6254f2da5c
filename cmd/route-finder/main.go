package main

import cmd "github.com/jimger/wizz-aycf-route-finder/internal/cli"

func main() {
	cmd.Execute()
}
