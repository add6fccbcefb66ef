package command

import "testing"

func TestApp(t *testing.T) {
	app := App()
	if app == nil {
		t.Fatal("App returned nil")
	}
	if app.Name != "meshsidecarctl" {
		t.Errorf("Name = %q, want %q", app.Name, "meshsidecarctl")
	}

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"topology", "dns", "stats", "local"} {
		if !names[want] {
			t.Errorf("missing top-level command: %s", want)
		}
	}
}

func TestGlobalFlags_Defaults(t *testing.T) {
	flags := globalFlags()
	names := make(map[string]bool)
	for _, f := range flags {
		names[f.Names()[0]] = true
	}
	for _, want := range []string{"control-plane", "socket", "output", "profile", "config-file"} {
		if !names[want] {
			t.Errorf("missing global flag: %s", want)
		}
	}
}
