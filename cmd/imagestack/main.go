package main

import (
	"github.com/imagestack/imagestack/pkg/console"
)

func main() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		console.Fatal("%s", err)
	}
}
