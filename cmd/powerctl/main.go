// Package main provides powerctl, the operator tool for the powers server.
package main

import "github.com/cory-johannsen/crystalpowers/cmd/powerctl/root"

func main() {
	root.Execute()
}
