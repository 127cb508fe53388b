package main

import "github.com/ogulcanaydogan/motion-guardian/internal/cli"

func main() {
	cli.Execute()
}
