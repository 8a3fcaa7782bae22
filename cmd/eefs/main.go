// Command eefs creates, inspects and manipulates eeprom-fs images.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/golang/glog"
	"github.com/urfave/cli/v2"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
	"github.com/CJxD/avr-eeprom-fs/fs"
	"github.com/CJxD/avr-eeprom-fs/medium"
)

func main() {
	// glog registers its flags on the default set; give it a parsed
	// view before the cli framework takes over.
	flag.CommandLine.Parse([]string{})

	app := &cli.App{
		Name:    "eefs",
		Usage:   "micro wear-levelling filesystem over an EEPROM image",
		Version: "1.0.0",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "image file backing the medium",
				Value:   "eeprom.img",
			},
			&cli.StringFlag{
				Name:  "device",
				Usage: "raw device node to use instead of an image",
			},
			&cli.Int64Flag{
				Name:  "size",
				Usage: "region size in bytes",
				Value: fs.DefaultConfig.Size,
			},
			&cli.IntFlag{
				Name:  "block-size",
				Usage: "block size in bytes, link field included",
				Value: fs.DefaultConfig.BlockSize,
			},
			&cli.IntFlag{
				Name:  "max-files",
				Usage: "number of file slots",
				Value: fs.DefaultConfig.MaxFiles,
			},
			&cli.IntFlag{
				Name:  "max-blocks",
				Usage: "block budget per file",
				Value: fs.DefaultConfig.MaxBlocksPerFile,
			},
			&cli.IntFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "diagnostic verbosity, 0..4",
			},
		},

		Commands: []*cli.Command{
			{
				Name:  "format",
				Usage: "lay down a fresh filesystem",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "full", Usage: "zero block payloads too"},
					&cli.BoolFlag{Name: "wipe", Usage: "zero the whole region first"},
				},
				Action: func(c *cli.Context) error {
					return withFS(c, false, func(fsys *fs.FS) error {
						mode := fs.FormatQuick
						if c.Bool("full") {
							mode = fs.FormatFull
						}
						if c.Bool("wipe") {
							mode = fs.FormatWipe
						}
						return fsys.Format(mode)
					})
				},
			},
			{
				Name:  "wipe",
				Usage: "zero the whole region",
				Action: func(c *cli.Context) error {
					return withFS(c, false, func(fsys *fs.FS) error {
						return fsys.Wipe()
					})
				},
			},
			{
				Name:  "dump",
				Usage: "hex dump of the whole region",
				Action: func(c *cli.Context) error {
					return withFS(c, false, func(fsys *fs.FS) error {
						return fsys.Dump(os.Stdout)
					})
				},
			},
			{
				Name:  "ls",
				Usage: "list stored files",
				Action: func(c *cli.Context) error {
					return withFS(c, true, func(fsys *fs.FS) error {
						return list(fsys, os.Stdout)
					})
				},
			},
			{
				Name:      "write",
				Usage:     "store a file from stdin or a host file",
				ArgsUsage: "<id> [host-file]",
				Action: func(c *cli.Context) error {
					return storeAction(c, false)
				},
			},
			{
				Name:      "append",
				Usage:     "append to a file from stdin or a host file",
				ArgsUsage: "<id> [host-file]",
				Action: func(c *cli.Context) error {
					return storeAction(c, true)
				},
			},
			{
				Name:      "read",
				Usage:     "copy a file to stdout",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().Get(0))
					if err != nil {
						return err
					}
					return withFS(c, true, func(fsys *fs.FS) error {
						return catFile(fsys, id, os.Stdout)
					})
				},
			},
			{
				Name:      "rm",
				Usage:     "delete a file",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().Get(0))
					if err != nil {
						return err
					}
					return withFS(c, true, func(fsys *fs.FS) error {
						return fsys.Delete(id)
					})
				},
			},
			{
				Name:  "check",
				Usage: "audit the on-medium invariants",
				Action: func(c *cli.Context) error {
					return withFS(c, true, func(fsys *fs.FS) error {
						if err := fsys.Check(); err != nil {
							return err
						}
						fmt.Println("ok")
						return nil
					})
				},
			},
			{
				Name:  "shell",
				Usage: "interactive session against the image",
				Action: func(c *cli.Context) error {
					return withFS(c, true, runShell)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func config(c *cli.Context) fs.Config {
	return fs.Config{
		Start:            0,
		Size:             c.Int64("size"),
		BlockSize:        c.Int("block-size"),
		MaxFiles:         c.Int("max-files"),
		MaxBlocksPerFile: c.Int("max-blocks"),
	}
}

// withFS opens the medium, binds the engine and runs fn. With init
// set, stored metadata is checked and the image quick-formats itself
// when it does not match the configured geometry, as the firmware
// does on boot.
func withFS(c *cli.Context, init bool, fn func(*fs.FS) error) error {
	cfg := config(c)

	var (
		m      eepromfs.Medium
		closer io.Closer
	)
	if dev := c.String("device"); dev != "" {
		d, err := medium.OpenDevice(dev)
		if err != nil {
			return err
		}
		m, closer = d, d
	} else {
		path := c.String("image")
		f, err := medium.OpenFile(path)
		if errors.Is(err, os.ErrNotExist) {
			f, err = medium.CreateFile(path, cfg.Size)
		}
		if err != nil {
			return err
		}
		m, closer = f, f
	}
	defer closer.Close()

	fsys, err := fs.New(m, cfg)
	if err != nil {
		return err
	}

	if lvl := c.Int("debug"); lvl > 0 {
		flag.Set("logtostderr", "true")
		flag.Set("v", strconv.Itoa(lvl))
		fsys.SetDebug(lvl)
	}
	fsys.SetLogger(glogSink)
	defer glog.Flush()

	if init {
		if err := fsys.Init(); err != nil {
			return err
		}
	}

	return fn(fsys)
}

// glogSink forwards engine diagnostics to glog: level 0 as an error,
// the debug levels through V-gated info.
func glogSink(level int, format string, args ...interface{}) {
	if level == 0 {
		glog.Errorf(format, args...)
		return
	}
	glog.V(glog.Level(level)).Infof(format, args...)
}

func parseID(s string) (eepromfs.FileID, error) {
	if s == "" {
		return 0, fmt.Errorf("missing file id")
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("bad file id %q", s)
	}
	return eepromfs.FileID(n), nil
}

func storeAction(c *cli.Context, appendMode bool) error {
	id, err := parseID(c.Args().Get(0))
	if err != nil {
		return err
	}

	in := os.Stdin
	if path := c.Args().Get(1); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	return withFS(c, true, func(fsys *fs.FS) error {
		return storeFile(fsys, id, data, appendMode)
	})
}

func storeFile(fsys *fs.FS, id eepromfs.FileID, data []byte, appendMode bool) error {
	h := fsys.OpenWrite(id)
	if appendMode {
		h = fsys.OpenAppend(id)
	}

	_, werr := fsys.Write(h, data)
	if werr != nil && !errors.Is(werr, fs.ErrFileTooLarge) && !errors.Is(werr, fs.ErrMediumFull) {
		fsys.Abort(h)
		return werr
	}

	// A short write commits what reached the medium; the truncation
	// is still reported.
	if err := fsys.Close(h); err != nil {
		return err
	}
	return werr
}

func catFile(fsys *fs.FS, id eepromfs.FileID, w io.Writer) error {
	h := fsys.OpenRead(id)
	defer fsys.Close(h)

	buf := make([]byte, h.Size())
	n, err := fsys.Read(h, buf)
	if err != nil {
		return err
	}

	_, err = w.Write(buf[:n])
	return err
}

func list(fsys *fs.FS, w io.Writer) error {
	fmt.Fprintln(w, "id\tsize")
	for _, fi := range fsys.Files() {
		fmt.Fprintf(w, "%d\t%d\n", fi.ID, fi.Size)
	}

	free, err := fsys.FreeBlocks()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d free blocks\n", free)
	return nil
}
