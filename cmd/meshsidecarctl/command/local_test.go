package command

import "testing"

func TestLocalCommand(t *testing.T) {
	cmd := LocalCommand()
	if cmd == nil {
		t.Fatal("LocalCommand returned nil")
	}
	if cmd.Name != "local" {
		t.Errorf("Name = %q, want %q", cmd.Name, "local")
	}

	names := make(map[string]bool)
	for _, sub := range cmd.Subcommands {
		names[sub.Name] = true
		if sub.Action == nil {
			t.Errorf("subcommand %s should have an action", sub.Name)
		}
	}
	for _, want := range []string{"shutdown", "reload", "drain"} {
		if !names[want] {
			t.Errorf("missing subcommand: %s", want)
		}
	}
}
