package main

import (
	"github.com/maxgio92/xprof/pkg/cmd"
)

func main() {
	cmd.Execute()
}
