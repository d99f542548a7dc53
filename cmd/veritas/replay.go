package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/bigbass1997/veritas/internal/hostdriver"
	"github.com/bigbass1997/veritas/internal/hostdriver/rawmovie"
	"github.com/bigbass1997/veritas/internal/hostdriver/serialenum"
	"github.com/bigbass1997/veritas/internal/logger"
	"github.com/bigbass1997/veritas/internal/protocol"
)

type replayFlags struct {
	moviePath    string
	devicePath   string
	listDevices  bool
	manual       string
	latchFilter  uint32
	disableReset bool
}

func newReplayCmd() *cobra.Command {
	f := &replayFlags{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Stream a movie (or manual keystrokes) to a connected VeriTAS device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.moviePath, "movie", "", "path to a movie fixture to replay")
	flags.StringVar(&f.devicePath, "device", "", "serial port path (auto-detected by USB serial string if omitted)")
	flags.BoolVar(&f.listDevices, "list-devices", false, "list candidate serial ports and exit")
	flags.StringVar(&f.manual, "manual", "", "manual keystroke mode for the given console: nes or gen")
	flags.Uint32Var(&f.latchFilter, "latch-filter", 8000, "NES latch debounce window, in microseconds")
	flags.BoolVar(&f.disableReset, "disable-reset", false, "skip the device's initial console reset before streaming")

	return cmd
}

func runReplay(cmd *cobra.Command, f *replayFlags) error {
	if f.listDevices {
		return listDevices(cmd)
	}

	devicePath := f.devicePath
	if devicePath == "" {
		port, ok, err := serialenum.Find(serialenum.Enumerator{})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("replay: no device found with USB serial %q; pass --device", protocol.USBSerial)
		}
		devicePath = port.Path
	}

	port, err := serialenum.Open(devicePath)
	if err != nil {
		return err
	}
	defer port.Close()

	client := hostdriver.NewClient(port, protocol.DefaultTimeout*time.Second)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if f.manual != "" {
		return runManual(ctx, client, f)
	}

	if f.moviePath == "" {
		return fmt.Errorf("replay: --movie is required unless --manual is given")
	}

	movieFile, err := os.Open(f.moviePath)
	if err != nil {
		return fmt.Errorf("replay: open movie: %w", err)
	}
	defer movieFile.Close()

	movie, err := rawmovie.Decode(movieFile)
	if err != nil {
		return err
	}

	logger.Log("cli", "starting file replay for "+movie.Console().String())
	return hostdriver.RunFile(ctx, client, movie, hostdriver.Options{
		LatchFilterUs: f.latchFilter,
		DisableReset:  f.disableReset,
	})
}

func runManual(ctx context.Context, client *hostdriver.Client, f *replayFlags) error {
	var console hostdriver.Console
	var keys hostdriver.KeyMap
	switch f.manual {
	case "nes":
		console = hostdriver.ConsoleNes
		keys = hostdriver.NesKeyMap
	case "gen":
		console = hostdriver.ConsoleGenesis
		keys = hostdriver.GenesisKeyMap
	default:
		return fmt.Errorf("replay: --manual must be %q or %q, got %q", "nes", "gen", f.manual)
	}
	return hostdriver.RunManual(ctx, client, console, keys, f.latchFilter, os.Stdin)
}

func listDevices(cmd *cobra.Command) error {
	ports, err := (serialenum.Enumerator{}).Ports()
	if err != nil {
		return err
	}
	for _, p := range ports {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.Path, p.SerialNumber)
	}
	return nil
}
