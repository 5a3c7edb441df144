package main

import "github.com/roach88/chaincore/internal/cli"

func main() {
	cli.Main()
}
