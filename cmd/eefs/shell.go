package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/CJxD/avr-eeprom-fs/fs"
)

// runShell drives an interactive session against a mounted image.
func runShell(fsys *fs.FS) error {
	rl, err := readline.New("eefs> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "exit" || fields[0] == "quit" {
			fmt.Println("Bye!")
			return nil
		}

		if err := dispatch(fsys, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
	}
}

func dispatch(fsys *fs.FS, cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Print(`commands:
  ls                     list files
  read <id>              print a file
  write <id> <text...>   store text as a file
  append <id> <text...>  append text to a file
  rm <id>                delete a file
  format [full|quick|wipe]
  dump                   hex dump the region
  check                  audit invariants
  free                   count free blocks
  debug <0..4>           set verbosity
  exit
`)
		return nil

	case "ls":
		return list(fsys, os.Stdout)

	case "read":
		if len(args) != 1 {
			return fmt.Errorf("need id")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := catFile(fsys, id, os.Stdout); err != nil {
			return err
		}
		fmt.Println()
		return nil

	case "write", "append":
		if len(args) < 2 {
			return fmt.Errorf("need id and data")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return storeFile(fsys, id, []byte(strings.Join(args[1:], " ")), cmd == "append")

	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("need id")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return fsys.Delete(id)

	case "format":
		mode := fs.FormatQuick
		if len(args) == 1 {
			switch args[0] {
			case "full":
				mode = fs.FormatFull
			case "quick":
				mode = fs.FormatQuick
			case "wipe":
				mode = fs.FormatWipe
			default:
				return fmt.Errorf("unknown format mode %q", args[0])
			}
		}
		return fsys.Format(mode)

	case "dump":
		return fsys.Dump(os.Stdout)

	case "check":
		if err := fsys.Check(); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "free":
		free, err := fsys.FreeBlocks()
		if err != nil {
			return err
		}
		fmt.Printf("%d free blocks\n", free)
		return nil

	case "debug":
		if len(args) != 1 {
			return fmt.Errorf("need level")
		}
		lvl, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		flag.Set("logtostderr", "true")
		flag.Set("v", args[0])
		fsys.SetDebug(lvl)
		return nil
	}

	return fmt.Errorf("unknown command %q, try help", cmd)
}
