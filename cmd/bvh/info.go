package main

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/thisistherk/bvh"
)

// Build a BVH and print its structure statistics.
func showInfo(ctx *cli.Context) error {
	setupLogging(ctx)

	m, err := loadScene(ctx)
	if err != nil {
		return err
	}

	accel := bvh.NewSimple()
	accel.Build(m.Accel())
	stats := accel.Stats()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Triangles", fmt.Sprintf("%d", stats.Triangles)})
	table.Append([]string{"Nodes", fmt.Sprintf("%d", stats.Nodes)})
	table.Append([]string{"Leafs", fmt.Sprintf("%d", stats.Leafs)})
	table.Append([]string{"Max depth", fmt.Sprintf("%d", stats.MaxDepth)})
	table.Append([]string{"Build time", fmt.Sprintf("%s", stats.BuildTime)})
	table.Render()

	logger.Noticef("bvh statistics\n%s", buf.String())

	return nil
}
