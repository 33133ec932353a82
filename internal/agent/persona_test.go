package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPersonaDefault(t *testing.T) {
	p := NewPersona("")
	if p.Name() != "SolPilot" {
		t.Errorf("Name = %q", p.Name())
	}
	sys := p.System("")
	if !strings.Contains(sys, "Connected wallet: none") {
		t.Error("prompt should state that no wallet is connected")
	}
}

func TestPersonaFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "PERSONA.md")
	content := "---\nname: TraderBot\ndescription: test persona\n---\nYou are TraderBot.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewPersona(path)
	if p.Name() != "TraderBot" {
		t.Errorf("Name = %q", p.Name())
	}
	sys := p.System("wallet123")
	if !strings.Contains(sys, "You are TraderBot.") {
		t.Error("body missing from prompt")
	}
	if strings.Contains(sys, "name: TraderBot") {
		t.Error("frontmatter leaked into prompt")
	}
	if !strings.Contains(sys, "Connected wallet: wallet123") {
		t.Error("wallet missing from prompt")
	}
}

func TestPersonaHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "PERSONA.md")
	if err := os.WriteFile(path, []byte("First version."), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewPersona(path)
	if !strings.Contains(p.System(""), "First version.") {
		t.Fatal("initial persona not loaded")
	}

	if err := os.WriteFile(path, []byte("Second version."), 0o644); err != nil {
		t.Fatal(err)
	}
	// Ensure the mtime moves forward even on coarse filesystems.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(p.System(""), "Second version.") {
		t.Error("edited persona not picked up")
	}
}

func TestPersonaKeepsPreviousOnEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "PERSONA.md")
	if err := os.WriteFile(path, []byte("Good prompt."), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewPersona(path)
	if err := os.WriteFile(path, []byte("   \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(p.System(""), "Good prompt.") {
		t.Error("empty file should not replace a working persona")
	}
}
