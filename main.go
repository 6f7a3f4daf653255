package main

import "github.com/tracelink/tracelink/pkg/cmd"

func main() {
	cmd.Execute()
}
