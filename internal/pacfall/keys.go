package pacfall

import (
	"context"
	"io"
	"os/exec"
)

// KeyResolver imports PGP signing keys declared by a recipe. Every import
// is advisory: a key that cannot be fetched from any server is reported
// and skipped, and the build proceeds — an actually missing key surfaces
// later as a signature verification failure.
type KeyResolver struct {
	Exec       Runner
	Keyservers []string // first entry is the default, rest are fallbacks
}

func newKeyResolver(cfg *Config, run Runner) *KeyResolver {
	return &KeyResolver{Exec: run, Keyservers: cfg.Keyservers}
}

// ImportKeys fetches each key id, trying the keyservers in order and
// stopping at the first success per key. Importing an already-present key
// succeeds trivially (gpg treats it as unchanged).
func (k *KeyResolver) ImportKeys(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}

	arrow()
	colSuccess.Printf("Importing %d signing key(s)\n", len(ids))
	for _, id := range ids {
		if k.importKey(ctx, id) {
			continue
		}
		colWarn.Printf("Warning: could not import key %s from any keyserver; "+
			"the build may fail signature verification\n", id)
	}
}

func (k *KeyResolver) importKey(ctx context.Context, id string) bool {
	for _, server := range k.Keyservers {
		cmd := exec.CommandContext(ctx, "gpg", "--keyserver", server, "--recv-keys", id)
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
		if err := k.Exec.Run(cmd); err == nil {
			debugf("imported key %s from %s\n", id, server)
			return true
		}
		debugf("keyserver %s failed for %s, trying next\n", server, id)
	}
	return false
}
