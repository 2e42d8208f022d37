package identity

import "testing"

func TestGeneratorsRoundTrip(t *testing.T) {
	kinds := []string{"", KindShortUUID, KindUUID, KindULID, KindKSUID, KindNanoID, KindCUID2}
	for _, kind := range kinds {
		gen, err := NewGenerator(kind)
		if err != nil {
			t.Fatalf("NewGenerator(%q): %v", kind, err)
		}
		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			id, err := gen.Generate()
			if err != nil {
				t.Fatalf("%q Generate: %v", kind, err)
			}
			if ok, reason := gen.Validate(id); !ok {
				t.Fatalf("%q generated invalid id %q: %s", kind, id, reason)
			}
			if seen[id] {
				t.Fatalf("%q produced duplicate id %q", kind, id)
			}
			seen[id] = true
		}
	}
}

func TestShortUUIDIsEightChars(t *testing.T) {
	ident, err := New(NewShortUUIDGenerator(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(ident.ParticipantID) != 8 {
		t.Errorf("participant id %q has length %d", ident.ParticipantID, len(ident.ParticipantID))
	}
}

func TestShortUUIDValidate(t *testing.T) {
	g := NewShortUUIDGenerator()
	if ok, _ := g.Validate("ABCDEF12"); ok {
		t.Error("uppercase should be rejected")
	}
	if ok, _ := g.Validate("abc"); ok {
		t.Error("short id should be rejected")
	}
}

func TestNewAdoptsConfiguredID(t *testing.T) {
	ident, err := New(NewShortUUIDGenerator(), " 0a1b2c3d ")
	if err != nil {
		t.Fatal(err)
	}
	if ident.ParticipantID != "0a1b2c3d" {
		t.Errorf("participant id = %q", ident.ParticipantID)
	}
}

func TestNewRejectsInvalidID(t *testing.T) {
	tests := []struct {
		kind string
		id   string
	}{
		{KindShortUUID, "ABCDEF12"},
		{KindUUID, "not-a-uuid"},
		{KindULID, "short"},
		{KindKSUID, "short"},
		{KindNanoID, "has spaces!"},
		{KindCUID2, "Upper-Case"},
	}
	for _, tt := range tests {
		gen, err := NewGenerator(tt.kind)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := New(gen, tt.id); err == nil {
			t.Errorf("%s accepted %q", tt.kind, tt.id)
		}
	}
}

func TestNewGeneratorUnknown(t *testing.T) {
	if _, err := NewGenerator("snowflake"); err == nil {
		t.Fatal("expected error")
	}
}

func TestBadGeneratorParams(t *testing.T) {
	if _, err := NewNanoIDGenerator(0, DefaultNanoIDAlphabet); err == nil {
		t.Error("expected size error")
	}
	if _, err := NewNanoIDGenerator(8, "a"); err == nil {
		t.Error("expected alphabet error")
	}
	if _, err := NewCUID2Generator(1); err == nil {
		t.Error("expected length error")
	}
}

func TestResolveRoom(t *testing.T) {
	tests := map[string]string{
		"":     DefaultRoomID,
		"   ":  DefaultRoomID,
		"r1":   "r1",
		" r1 ": "r1",
	}
	for in, want := range tests {
		if got := ResolveRoom(in); got != want {
			t.Errorf("ResolveRoom(%q) = %q, want %q", in, got, want)
		}
	}
}
