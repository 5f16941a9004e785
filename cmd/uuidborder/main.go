package main

import (
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	border "github.com/alexhaugland/uuid-border"
)

const defaultDB = "uuidborder.db"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(ioutil.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func newBorder(c *cli.Context, withRegistry bool) (*border.Border, *border.Registry, error) {
	var registry *border.Registry
	if withRegistry {
		var err error
		if registry, err = border.OpenRegistry(c.String("db")); err != nil {
			return nil, nil, err
		}
	}

	b, err := border.NewWithRedundancy(registry, newLogger(c), c.Float64("redundancy"))
	if err != nil {
		if registry != nil {
			registry.Close()
		}
		return nil, nil, err
	}

	return b, registry, nil
}

func writeImage(file string, m image.Image) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(file)) {
	case ".gif":
		return gif.Encode(f, border.Paletted(m), nil)
	default:
		return png.Encode(f, m)
	}
}

func main() {
	app := cli.NewApp()

	app.Name = "uuidborder"
	app.Usage = "Encode and decode identifier color borders"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"UUIDBORDER_DB"},
			Value:   filepath.Join(cwd, defaultDB),
			Usage:   "path to registry database",
		},
		&cli.Float64Flag{
			Name:    "redundancy",
			EnvVars: []string{"UUIDBORDER_REDUNDANCY"},
			Value:   1.0,
			Usage:   "parity redundancy factor, must match between encode and decode",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:        "encode",
			Usage:       "Render an identifier as a strip image",
			Description: "With no UUID argument a random identifier is generated and printed.",
			ArgsUsage:   "[UUID]",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "width",
					Value: 592,
					Usage: "strip width in pixels",
				},
				&cli.IntFlag{
					Name:  "height",
					Value: border.DefaultStripHeight,
					Usage: "strip height in pixels",
				},
				&cli.StringFlag{
					Name:  "out",
					Value: "strip.png",
					Usage: "output file, .png or .gif",
				},
			},
			Action: func(c *cli.Context) error {
				id := uuid.New()
				if c.NArg() > 0 {
					var err error
					if id, err = uuid.Parse(c.Args().First()); err != nil {
						return cli.NewExitError(err, 1)
					}
				}

				b, _, err := newBorder(c, false)
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				strip, err := b.EncodeStrip(id, c.Int("width"), c.Int("height"))
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				if err := writeImage(c.String("out"), strip); err != nil {
					return cli.NewExitError(err, 1)
				}

				fmt.Println(id)
				return nil
			},
		},
		{
			Name:        "decode",
			Usage:       "Recover the identifier from an image",
			Description: "",
			ArgsUsage:   "FILE",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "raw",
					Usage: "on failure, print the unverified raw reading",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				f, err := os.Open(c.Args().First())
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer f.Close()

				m, _, err := image.Decode(f)
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				b, registry, err := newBorder(c, true)
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer registry.Close()

				result, err := b.DecodeImage(m)
				if err != nil {
					if unverified, ok := err.(*border.UnverifiedError); ok && c.Bool("raw") {
						fmt.Printf("%s (unverified)\n", unverified.Raw)
						return nil
					}
					return cli.NewExitError(err, 1)
				}

				label, err := registry.Lookup(result.ID)
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				if label != "" {
					fmt.Printf("%s\t%s\n", result.ID, label)
				} else {
					fmt.Println(result.ID)
				}
				return nil
			},
		},
		{
			Name:        "tag",
			Usage:       "Label an identifier in the registry",
			Description: "",
			ArgsUsage:   "UUID LABEL",
			Action: func(c *cli.Context) error {
				if c.NArg() < 2 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				id, err := uuid.Parse(c.Args().Get(0))
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				registry, err := border.OpenRegistry(c.String("db"))
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer registry.Close()

				if err := registry.Tag(id, c.Args().Get(1)); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:        "lookup",
			Usage:       "Show the registry label for an identifier",
			Description: "",
			ArgsUsage:   "UUID",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				id, err := uuid.Parse(c.Args().First())
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				registry, err := border.OpenRegistry(c.String("db"))
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer registry.Close()

				label, err := registry.Lookup(id)
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				if label == "" {
					return cli.NewExitError(fmt.Errorf("%s is not tagged", id), 1)
				}

				fmt.Println(label)
				return nil
			},
		},
		{
			Name:        "scan",
			Usage:       "Decode every image under a directory",
			Description: "",
			ArgsUsage:   "DIRECTORY",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				b, registry, err := newBorder(c, true)
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer registry.Close()

				matches, err := b.Scan(c.Args().First())
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				for _, m := range matches {
					if m.Label != "" {
						fmt.Printf("%s\t%s\t%s\n", m.Path, m.Match.ID, m.Label)
					} else {
						fmt.Printf("%s\t%s\n", m.Path, m.Match.ID)
					}
				}
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
