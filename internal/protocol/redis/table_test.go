package redis

import "testing"

func TestLookupKnownCommands(t *testing.T) {
	for _, name := range []string{"get", "GET", "mget", "set", "mset", "incr", "quit", "master", "hashkeyq", "hashrandomq"} {
		if _, ok := Supported.Lookup([]byte(name)); !ok {
			t.Fatalf("Lookup(%q) not found", name)
		}
	}
}

func TestLookupUnknownCommand(t *testing.T) {
	if _, ok := Supported.Lookup([]byte("notarealcommand")); ok {
		t.Fatal("expected unknown command to miss")
	}
}

func TestValidateFixedArity(t *testing.T) {
	cfg, _ := Supported.Lookup([]byte("get"))
	if !cfg.Validate(2) {
		t.Fatal("GET with 2 tokens should validate")
	}
	if cfg.Validate(3) {
		t.Fatal("GET with 3 tokens should not validate")
	}
}

func TestValidateVariadicArity(t *testing.T) {
	cfg, _ := Supported.Lookup([]byte("mget"))
	if !cfg.Validate(3) {
		t.Fatal("MGET with 3 tokens (cmd + 2 keys) should validate")
	}
	if cfg.Validate(1) {
		t.Fatal("MGET with 1 token should not validate")
	}
}

func TestLastKeyIndexForVariadic(t *testing.T) {
	cfg, _ := Supported.Lookup([]byte("mget"))
	if got := cfg.LastKeyIndexFor(4); got != 3 {
		t.Fatalf("LastKeyIndexFor(4) = %d, want 3", got)
	}
}

func TestOpCodeCaseInsensitive(t *testing.T) {
	if OpCode([]byte("get")) != OpCode([]byte("GET")) {
		t.Fatal("OpCode should be case-insensitive")
	}
}
