package main

import (
	"github.com/pixzlo/bridge/cmd"
	"github.com/pixzlo/bridge/env"
	"github.com/pixzlo/bridge/pkg/log"
)

func main() {
	if err := env.Process(); err != nil {
		log.Fatal("environment failure", "error", err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal("bridge failure", "error", err)
	}
}
