package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/engramdb/engram/internal/store"
)

// EntityMention is a detected entity with its category.
type EntityMention struct {
	Name string
	Type string
}

// Extraction is the output of Extract: detected entities and candidate
// explicit note references. Candidates are raw ids as they appeared in the
// text; resolution against existing notes happens in the edge builder,
// which silently drops anything that does not resolve.
type Extraction struct {
	Entities      []EntityMention
	RefCandidates []int64
}

var (
	// "note 123", "note #123"
	notedRefPattern = regexp.MustCompile(`(?i)\bnote\s+#?(\d+)\b`)
	// "#123" anywhere on a word boundary
	hashRefPattern = regexp.MustCompile(`(?:^|[^\w&])#(\d+)\b`)
	// "@alice", "@build-bot"
	mentionPattern = regexp.MustCompile(`@([A-Za-z][A-Za-z0-9_-]*)`)
	// "Project Phoenix", "Release Train": capitalized multi-word runs
	projectPattern = regexp.MustCompile(`\b[A-Z][a-z0-9]+(?: [A-Z][a-z0-9]+)+\b`)

	wordPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9+_.-]*`)
)

// toolVocabulary is the fixed set of tool names detected on word
// boundaries.
var toolVocabulary = map[string]bool{
	"ansible": true, "bash": true, "cargo": true, "curl": true,
	"docker": true, "git": true, "github": true, "gitlab": true,
	"grafana": true, "grep": true, "helm": true, "jenkins": true,
	"jq": true, "kafka": true, "kubectl": true, "kubernetes": true,
	"make": true, "nginx": true, "node": true, "npm": true,
	"ollama": true, "postgres": true, "prometheus": true, "python": true,
	"redis": true, "rsync": true, "sqlite": true, "ssh": true,
	"systemd": true, "terraform": true, "tmux": true, "vim": true,
}

// Extract detects entities and explicit note references in content. It is
// a pure function: deterministic, no side effects, safe to re-run offline
// for backfill.
func Extract(content string) Extraction {
	var ex Extraction

	seenRefs := make(map[int64]bool)
	addRef := func(raw string) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 || seenRefs[id] {
			return
		}
		seenRefs[id] = true
		ex.RefCandidates = append(ex.RefCandidates, id)
	}
	for _, m := range notedRefPattern.FindAllStringSubmatch(content, -1) {
		addRef(m[1])
	}
	for _, m := range hashRefPattern.FindAllStringSubmatch(content, -1) {
		addRef(m[1])
	}

	seenEntities := make(map[string]bool)
	addEntity := func(name, entityType string) {
		key := store.NormalizeEntityName(name)
		if key == "" || seenEntities[key] {
			return
		}
		seenEntities[key] = true
		ex.Entities = append(ex.Entities, EntityMention{Name: key, Type: entityType})
	}

	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		addEntity(m[1], store.EntityMention)
	}

	// Tool names match whole words only, so "gitignore" never counts as
	// "git".
	for _, word := range wordPattern.FindAllString(content, -1) {
		if toolVocabulary[strings.ToLower(word)] {
			addEntity(word, store.EntityTool)
		}
	}

	for _, m := range projectPattern.FindAllString(content, -1) {
		addEntity(m, store.EntityProject)
	}

	return ex
}
