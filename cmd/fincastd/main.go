package main

import "github.com/fincast-io/fincast/internal/cli"

func main() {
	cli.Execute()
}
