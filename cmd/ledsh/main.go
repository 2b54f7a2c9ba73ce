// ledsh is an interactive shell for the strip's serial command console.
package main

import (
	"flag"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"
	"github.com/google/shlex"
	"github.com/pkg/errors"
	"github.com/tarm/serial"

	version "github.com/Jon-Bright/ledtwinkle/version"
)

const clientKey = "client"

var tty = flag.String("tty", "/dev/ttyACM0", "The serial device the strip's console is on")
var baud = flag.Int("baud", 115200, "The baud rate of the serial device")
var evalCmd = flag.String("e", "", "Run this one command and exit instead of starting the shell")

func usage() {
	fmt.Fprintln(os.Stderr, path.Base(os.Args[0]), version.String())
	fmt.Fprintln(os.Stderr, "usage: ", os.Args[0], "[options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
}

func init() {
	flag.Usage = usage
}

func clientOf(c *ishell.Context) *client {
	return c.Get(clientKey).(*client)
}

// send runs line on the device and prints the reply.
func send(c *ishell.Context, line string) {
	reply, err := clientOf(c).Do(line)
	for _, l := range reply {
		if !strings.HasPrefix(l, "ERR: ") {
			c.Println(l)
		}
	}
	if err != nil {
		c.Err(err)
	}
}

func oneInt(c *ishell.Context, what string) (int, bool) {
	if len(c.Args) != 1 {
		c.Err(errors.Errorf("expected exactly one argument: %s", what))
		return 0, false
	}
	n, err := strconv.Atoi(c.Args[0])
	if err != nil {
		c.Err(errors.Errorf("%s must be a number: %q", what, c.Args[0]))
		return 0, false
	}
	return n, true
}

var commands = []*ishell.Cmd{
	{
		Name:    "blink",
		Aliases: []string{"b"},
		Help:    "blink <ms>: set the heartbeat period",
		Func: func(c *ishell.Context) {
			ms, ok := oneInt(c, "period in ms")
			if !ok {
				return
			}
			send(c, fmt.Sprintf("b %d", ms))
		},
	},
	{
		Name:    "rand",
		Aliases: []string{"r"},
		Help:    "print a random byte from the device",
		Func: func(c *ishell.Context) {
			send(c, "r")
		},
	},
	{
		Name:    "pixel",
		Aliases: []string{"p"},
		Help:    "pixel <i>: show the animation state of one pixel",
		Func: func(c *ishell.Context) {
			i, ok := oneInt(c, "pixel index")
			if !ok {
				return
			}
			send(c, fmt.Sprintf("p %d", i))
		},
	},
	{
		Name: "devhelp",
		Help: "show the device's own command list",
		Func: func(c *ishell.Context) {
			send(c, "?")
		},
	},
	{
		Name: "raw",
		Help: "raw <line>: send a line as-is",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(errors.New("nothing to send"))
				return
			}
			send(c, strings.Join(c.Args, " "))
		},
	},
}

func main() {
	flag.Parse()
	defer glog.Flush()

	port, err := serial.OpenPort(&serial.Config{Name: *tty, Baud: *baud, ReadTimeout: 100 * time.Millisecond})
	if err != nil {
		glog.Exitf("Failed opening %s: %v", *tty, err)
	}
	defer port.Close()

	shell := ishell.New()
	shell.Set(clientKey, newClient(port))
	shell.SetPrompt("led> ")
	for _, cmd := range commands {
		shell.AddCmd(cmd)
	}

	if *evalCmd != "" {
		args, err := shlex.Split(*evalCmd)
		if err != nil {
			glog.Exitf("Couldn't parse %q: %v", *evalCmd, err)
		}
		err = shell.Process(args...)
		if err != nil {
			glog.Exitf("%v", err)
		}
		return
	}
	shell.Println("ledsh", version.String(), "on", *tty)
	shell.Run()
}
