package main

import (
	"github.com/thisistherk/bvh/log"
	"github.com/urfave/cli"
)

var logger = log.New("bvh")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}
