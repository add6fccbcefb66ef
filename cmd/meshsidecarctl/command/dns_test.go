package command

import "testing"

func TestDNSCommand(t *testing.T) {
	cmd := DNSCommand()
	if cmd == nil {
		t.Fatal("DNSCommand returned nil")
	}
	if cmd.Name != "dns" {
		t.Errorf("Name = %q, want %q", cmd.Name, "dns")
	}

	var found bool
	for _, sub := range cmd.Subcommands {
		if sub.Name == "status" {
			found = true
			if sub.Action == nil {
				t.Error("status command should have an action")
			}
		}
	}
	if !found {
		t.Fatal("status subcommand not found")
	}
}
