package main

import "github.com/mcoot/pairplay/internal/cli"

func main() {
	cli.Execute()
}
