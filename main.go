// Package main is the entry point for the nightscout-therapy command
package main

import "github.com/mrcode/nightscout-therapy/internal/cli"

func main() {
	cli.Execute()
}
