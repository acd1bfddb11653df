// Command gopper-host is the bench REPL for talking to a servo board
// over the register/RPC bus: connect, read the firmware identity, then
// read/write registers by address interactively.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bldcservo/host/mcu"
	"bldcservo/host/serial"

	"github.com/fatih/color"
	"github.com/google/shlex"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"
)

var (
	device     = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud       = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	selfAddr   = flag.Int("self", 0x10, "This host's bus address")
	destAddr   = flag.Int("dest", 0x01, "Target board's bus address")
	configPath = flag.String("config", "", "Optional YAML file overriding device/baud/self/dest")
)

// boardConfig is the optional on-disk override for the bench session's
// connection parameters, so a multi-board bench doesn't need a wall of
// flags re-typed for every board.
type boardConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
	Self   int    `yaml:"self"`
	Dest   int    `yaml:"dest"`
}

func loadBoardConfig(path string) (boardConfig, error) {
	var cfg boardConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	flag.Parse()

	log, _ := zap.NewDevelopment()
	defer log.Sync()

	devicePath, baudRate, self, dest := *device, *baud, uint8(*selfAddr), uint8(*destAddr)
	if *configPath != "" {
		cfg, err := loadBoardConfig(*configPath)
		if err != nil {
			log.Fatal("failed to load board config", zap.String("path", *configPath), zap.Error(err))
		}
		if cfg.Device != "" {
			devicePath = cfg.Device
		}
		if cfg.Baud != 0 {
			baudRate = cfg.Baud
		}
		if cfg.Self != 0 {
			self = uint8(cfg.Self)
		}
		if cfg.Dest != 0 {
			dest = uint8(cfg.Dest)
		}
	}

	color.Cyan("bldcservo bench host")
	fmt.Println("====================")

	dev := mcu.NewDevice(self, dest)

	fmt.Printf("Connecting to %s...\n", devicePath)
	serialCfg := serial.DefaultConfig(devicePath)
	serialCfg.Baud = baudRate
	if err := dev.ConnectWithConfig(serialCfg); err != nil {
		color.Red("error: failed to connect: %v", err)
		log.Error("connect failed", zap.String("device", devicePath), zap.Error(err))
		os.Exit(1)
	}
	defer dev.Close()
	color.Green("connected")

	if id, err := dev.ReadIdentity(); err != nil {
		color.Yellow("warning: failed to read identity: %v", err)
		log.Warn("identity read failed", zap.Error(err))
	} else {
		fmt.Println(id.String())
	}

	fmt.Println("\ntype 'help' for commands, 'quit' to exit")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tokens, err := shlex.Split(line)
		if err != nil || len(tokens) == 0 {
			color.Red("error: could not tokenize line: %v", err)
			continue
		}

		if err := dispatch(dev, tokens); err != nil {
			color.Red("error: %v", err)
			log.Debug("command failed", zap.Strings("tokens", tokens), zap.Error(err))
		}
	}

	if err := scanner.Err(); err != nil {
		log.Fatal("error reading input", zap.Error(err))
	}
}

// watchF32 streams addr at hz until Enter is pressed, printing each
// sample as it arrives.
func watchF32(dev *mcu.Device, addr uint16, hz float64) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	values, errs := dev.StreamF32(ctx, addr, hz)

	done := make(chan struct{})
	go func() {
		bufio.NewScanner(os.Stdin).Scan()
		close(done)
	}()

	fmt.Println("press enter to stop watching")
	for {
		select {
		case v, ok := <-values:
			if !ok {
				return nil
			}
			fmt.Printf("%s register 0x%04x = %v\n", time.Now().Format("15:04:05.000"), addr, v)
		case err := <-errs:
			return err
		case <-done:
			return nil
		}
	}
}

func dispatch(dev *mcu.Device, tokens []string) error {
	switch tokens[0] {
	case "quit", "exit", "q":
		fmt.Println("goodbye")
		os.Exit(0)

	case "help", "?":
		printHelp()

	case "id":
		id, err := dev.ReadIdentity()
		if err != nil {
			return err
		}
		fmt.Println(id.String())

	case "read":
		if len(tokens) != 2 {
			return fmt.Errorf("usage: read <addr>")
		}
		addr, err := parseAddr(tokens[1])
		if err != nil {
			return err
		}
		v, err := dev.ReadF32(addr)
		if err != nil {
			return err
		}
		fmt.Printf("register 0x%04x = %v\n", addr, v)

	case "write":
		if len(tokens) != 3 {
			return fmt.Errorf("usage: write <addr> <value>")
		}
		addr, err := parseAddr(tokens[1])
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(tokens[2], 32)
		if err != nil {
			return fmt.Errorf("bad value %q: %w", tokens[2], err)
		}
		if err := dev.WriteF32(addr, float32(v)); err != nil {
			return err
		}
		fmt.Println("ok")

	case "watch":
		if len(tokens) < 2 || len(tokens) > 3 {
			return fmt.Errorf("usage: watch <addr> [hz]")
		}
		addr, err := parseAddr(tokens[1])
		if err != nil {
			return err
		}
		hz := 10.0
		if len(tokens) == 3 {
			hz, err = strconv.ParseFloat(tokens[2], 64)
			if err != nil {
				return fmt.Errorf("bad rate %q: %w", tokens[2], err)
			}
		}
		return watchF32(dev, addr, hz)

	default:
		return fmt.Errorf("unknown command %q (type 'help')", tokens[0])
	}
	return nil
}

func parseAddr(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("bad register address %q: %w", s, err)
	}
	return uint16(v), nil
}

func printHelp() {
	fmt.Println(`
commands:
  id                  read the firmware identity block
  read <addr>         read an f32 register by hex address (e.g. 0x0020)
  write <addr> <val>  write an f32 register by hex address
  watch <addr> [hz]   stream an f32 register at hz samples/second (default 10) until enter
  help                show this message
  quit                exit
`)
}
