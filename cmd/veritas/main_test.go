package main

import "testing"

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"encode": false, "dump": false, "replay": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestReplayCommandFlags(t *testing.T) {
	cmd := newReplayCmd()
	for _, name := range []string{"movie", "device", "list-devices", "manual", "latch-filter", "disable-reset"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("expected flag %q to be registered", name)
		}
	}
}

func TestRunReplayRejectsUnknownManualConsole(t *testing.T) {
	f := &replayFlags{manual: "genesis"}
	err := runManual(nil, nil, f)
	if err == nil {
		t.Fatal("expected an error for an unrecognised --manual value")
	}
}
