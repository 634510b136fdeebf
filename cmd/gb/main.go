package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"github.com/Stenodyon/gb/gb"
	"github.com/Stenodyon/gb/gb/backend"
)

func main() {
	app := cli.NewApp()
	app.Name = "gb"
	app.Description = "A cycle-synchronized emulator for the monochrome handheld"
	app.Usage = "gb [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.StringFlag{
			Name:  "backend",
			Usage: "Frontend to use: terminal or sdl2",
			Value: "terminal",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without any frontend",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless mode",
			Value: 0,
		},
		cli.BoolFlag{
			Name:  "trace",
			Usage: "Print one line per executed instruction",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
	app.Action = runEmulator

	if err := app.Run(os.Args); err != nil {
		slog.Error("error running emulator", "error", err)
		os.Exit(1)
	}
}

func runEmulator(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	emu, err := gb.NewWithFile(romPath, nil)
	if err != nil {
		return err
	}
	emu.SetTracing(c.Bool("trace"))

	var front backend.Backend
	switch {
	case c.Bool("headless"):
		frames := c.Int("frames")
		if frames <= 0 {
			return errors.New("headless mode requires --frames with a positive value")
		}
		front = &backend.Headless{Frames: frames}
	case c.String("backend") == "sdl2":
		front, err = backend.NewSDL2()
		if err != nil {
			return err
		}
	default:
		front, err = backend.NewTerminal()
		if err != nil {
			return err
		}
	}

	return front.Run(emu)
}
