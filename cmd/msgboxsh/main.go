package main

import (
	"github.com/robotalks/msgbox/pkg/cli/sh"
	"github.com/robotalks/msgbox/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
