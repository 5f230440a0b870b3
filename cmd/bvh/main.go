package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli"
)

func main() {
	// Pick up optional defaults (e.g. BVH_SCENE_DIR) from a local .env
	godotenv.Load()

	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "bvh"
	app.Usage = "build BVH acceleration structures over triangle meshes and render ambient occlusion test images"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render an ambient occlusion image of an OBJ scene",
			Description: `
Parse a wavefront obj file, build a BVH over its triangles and render a
progressive ambient occlusion image by tracing one primary and one shadow
ray batch per image row for each sample.

Scene paths are resolved against BVH_SCENE_DIR when the file does not exist
relative to the working directory.`,
			ArgsUsage: "scene_file.obj",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 1920,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 1080,
					Usage: "frame height",
				},
				cli.IntFlag{
					Name:  "spp",
					Value: 16,
					Usage: "samples per pixel",
				},
				cli.Float64Flag{
					Name:  "fov",
					Value: 90.0,
					Usage: "horizontal field of view in degrees",
				},
				cli.IntFlag{
					Name:  "plane",
					Value: -1,
					Usage: "axis (0/1/2) for an added ground plane; -1 disables it",
				},
				cli.StringFlag{
					Name:  "camera-from",
					Usage: "camera position as x,y,z (default derived from the mesh bounds)",
				},
				cli.StringFlag{
					Name:  "camera-to",
					Usage: "camera target as x,y,z",
				},
				cli.StringFlag{
					Name:  "camera-up",
					Usage: "camera up vector as x,y,z",
				},
				cli.IntFlag{
					Name:  "workers",
					Value: 0,
					Usage: "number of row workers; 0 selects one per CPU",
				},
				cli.Float64Flag{
					Name:  "scale",
					Value: 1.0,
					Usage: "resize factor applied to the output image",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "output.png",
					Usage: "image filename for the rendered frame",
				},
			},
			Action: renderScene,
		},
		{
			Name:      "info",
			Usage:     "build a BVH for an OBJ scene and print tree statistics",
			ArgsUsage: "scene_file.obj",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "plane",
					Value: -1,
					Usage: "axis (0/1/2) for an added ground plane; -1 disables it",
				},
			},
			Action: showInfo,
		},
	}

	app.Run(os.Args)
}
