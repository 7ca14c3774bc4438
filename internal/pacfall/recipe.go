package pacfall

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lukechampine.com/blake3"
)

// recipeFileName is the build recipe looked for in every located directory.
const recipeFileName = "PKGBUILD"

// Recipe holds the fields extracted from a build recipe. The recipe is a
// shell script in its source ecosystem, but it is never executed here:
// the signing keys and dependency arrays are pulled out with a narrow
// text parser so reading metadata cannot run arbitrary code.
type Recipe struct {
	ValidPGPKeys []string
	Depends      []string
	MakeDepends  []string
}

// AllDepends returns build-time plus runtime dependencies, deduplicated,
// in declaration order.
func (r *Recipe) AllDepends() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range append(append([]string{}, r.Depends...), r.MakeDepends...) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// findRecipe reports the recipe path inside dir, or an error when absent.
func findRecipe(dir string) (string, error) {
	path := filepath.Join(dir, recipeFileName)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: no %s in %s", errNoRecipe, recipeFileName, dir)
	}
	return path, nil
}

// parseRecipeFile reads and parses the recipe found in dir.
func parseRecipeFile(dir string) (*Recipe, error) {
	path, err := findRecipe(dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe: %w", err)
	}
	return parseRecipe(string(data)), nil
}

// parseRecipe extracts the validpgpkeys, depends and makedepends arrays
// from recipe text. Arrays may span multiple lines; values are unquoted
// and trailing comments stripped. Anything else in the script is ignored.
func parseRecipe(src string) *Recipe {
	r := &Recipe{}
	arrays := map[string]*[]string{
		"validpgpkeys": &r.ValidPGPKeys,
		"depends":      &r.Depends,
		"makedepends":  &r.MakeDepends,
	}

	// Only top-level assignments count: an array literal inside a
	// function body (build(), package()) is code, not metadata.
	depth := 0

	lines := strings.Split(src, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if depth > 0 {
			depth += strings.Count(line, "{") - strings.Count(line, "}")
			continue
		}
		if strings.Contains(line, "{") {
			depth = strings.Count(line, "{") - strings.Count(line, "}")
			continue
		}
		for name, target := range arrays {
			prefix := name + "=("
			if !strings.HasPrefix(line, prefix) {
				continue
			}
			body := strings.TrimPrefix(line, prefix)
			// Collect continuation lines until the closing paren.
			for !strings.Contains(body, ")") && i+1 < len(lines) {
				i++
				body += " " + strings.TrimSpace(lines[i])
			}
			if idx := strings.Index(body, ")"); idx != -1 {
				body = body[:idx]
			}
			*target = append(*target, splitRecipeArray(body)...)
		}
	}
	return r
}

// splitRecipeArray tokenizes the inside of a shell array literal.
func splitRecipeArray(body string) []string {
	var out []string
	for _, field := range strings.Fields(body) {
		if strings.HasPrefix(field, "#") {
			break // rest of the physical line was a comment
		}
		field = strings.Trim(field, `"'`)
		if field == "" {
			continue
		}
		out = append(out, field)
	}
	return out
}

// recipeDigest computes a short BLAKE3 digest of the recipe contents,
// shown in the review pager title so a changed recipe is noticeable
// across retries.
func recipeDigest(data []byte) string {
	h := blake3.New(32, nil)
	h.Write(data)
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}
