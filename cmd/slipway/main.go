package main

import "github.com/berth-dev/slipway/internal/cli"

func main() {
	cli.Execute()
}
