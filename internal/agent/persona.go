package agent

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultPersona is used when no persona file is configured or readable.
const defaultPersona = `You are SolPilot, an assistant that performs on-chain actions
for users on the Solana network.

Core principles:
- Always act safely and never move funds without explicit user confirmation.
- Respond in clear, concise language.
- Explain the steps you're taking before preparing a transaction.
- When a tool returns an error, explain the problem plainly and suggest what
  the user can do about it. Never invent balances, prices, or transactions.

Transfers and swaps produce unsigned transactions that the user reviews and
signs in their own wallet. Perp positions on Drift are managed by a dedicated
sub-account held by the service.`

// personaMeta is the YAML frontmatter of a persona file.
type personaMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Persona builds the system prompt for each turn. A persona file is markdown
// with optional YAML frontmatter; edits are picked up without a restart by
// re-reading when the file's mtime changes.
type Persona struct {
	path string

	mu      sync.Mutex
	body    string
	meta    personaMeta
	modTime time.Time
}

// NewPersona creates a Persona backed by the file at path. An empty path
// means the built-in prompt is used unchanged.
func NewPersona(path string) *Persona {
	p := &Persona{path: path, body: defaultPersona}
	p.reload()
	return p
}

// Name returns the persona's display name.
func (p *Persona) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.meta.Name != "" {
		return p.meta.Name
	}
	return "SolPilot"
}

// System renders the system prompt for a turn. The connected wallet address
// is part of the prompt so the model can reference it, but tools always take
// the address from the request context, never from model output.
func (p *Persona) System(walletAddress string) string {
	p.reload()

	p.mu.Lock()
	body := p.body
	p.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(body)
	sb.WriteString("\n\n## Current session\n")
	fmt.Fprintf(&sb, "Date: %s\n", time.Now().Format("2006-01-02"))
	if walletAddress != "" {
		fmt.Fprintf(&sb, "Connected wallet: %s\n", walletAddress)
	} else {
		sb.WriteString("Connected wallet: none. Tools that act on the user's wallet will fail until one is connected.\n")
	}
	return sb.String()
}

// reload re-reads the persona file if its mtime changed since the last read.
func (p *Persona) reload() {
	if p.path == "" {
		return
	}

	info, err := os.Stat(p.path)
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !info.ModTime().After(p.modTime) {
		return
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		slog.Warn("persona read failed, keeping previous", "path", p.path, "err", err)
		return
	}

	meta, body := splitFrontmatter(string(data))
	if strings.TrimSpace(body) == "" {
		slog.Warn("persona file is empty, keeping previous", "path", p.path)
		return
	}

	p.meta = meta
	p.body = strings.TrimSpace(body)
	p.modTime = info.ModTime()
	slog.Info("persona loaded", "path", p.path, "name", meta.Name)
}

// splitFrontmatter separates the leading --- ... --- YAML block, if any,
// from the markdown body.
func splitFrontmatter(content string) (personaMeta, string) {
	var meta personaMeta
	if !strings.HasPrefix(content, "---") {
		return meta, content
	}
	rest := content[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return meta, content
	}
	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		slog.Warn("persona frontmatter is not valid YAML", "err", err)
	}
	return meta, rest[end+4:]
}
