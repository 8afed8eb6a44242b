package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/engramdb/engram/internal/config"
	"github.com/engramdb/engram/internal/engine"
	"github.com/engramdb/engram/internal/store"
)

// openEngine opens the local database and an engine over it for CLI use.
func openEngine() (*store.DB, *engine.Engine, error) {
	dbPath := os.Getenv("ENGRAM_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, nil, err
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	cfg := config.Default()
	return db, engine.New(db, cfg.EngineConfig()), nil
}

// --- remember command ---

var (
	rememberSummary string
	rememberTags    []string
)

var rememberCmd = &cobra.Command{
	Use:   "remember [content]",
	Short: "Store a new note",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemember,
}

func init() {
	rememberCmd.Flags().StringVarP(&rememberSummary, "summary", "s", "", "Optional short summary")
	rememberCmd.Flags().StringSliceVarP(&rememberTags, "tag", "t", nil, "Tags (repeatable)")
}

func runRemember(cmd *cobra.Command, args []string) error {
	db, eng, err := openEngine()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	id, err := eng.Remember(strings.Join(args, " "), rememberSummary, rememberTags)
	if err != nil {
		return fmt.Errorf("remember: %w", err)
	}
	fmt.Printf("note %d\n", id)
	return nil
}

// --- recall command ---

var (
	recallLimit  int
	recallTag    string
	recallMode   string
	recallPinned bool
)

var recallCmd = &cobra.Command{
	Use:   "recall [query]",
	Short: "Search notes",
	Long:  "Search notes with hybrid keyword + semantic ranking. With no query, lists recent notes.",
	RunE:  runRecall,
}

func init() {
	recallCmd.Flags().IntVarP(&recallLimit, "limit", "n", 10, "Maximum number of results")
	recallCmd.Flags().StringVarP(&recallTag, "tag", "t", "", "Filter by tag")
	recallCmd.Flags().StringVarP(&recallMode, "mode", "m", "hybrid", "Search mode: hybrid, keyword, semantic")
	recallCmd.Flags().BoolVar(&recallPinned, "pinned", false, "Only pinned notes")
}

func runRecall(cmd *cobra.Command, args []string) error {
	db, eng, err := openEngine()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := eng.Recall(ctx, engine.RecallOpts{
		Query:      strings.Join(args, " "),
		Tag:        recallTag,
		Mode:       recallMode,
		PinnedOnly: recallPinned,
		Limit:      recallLimit,
	})
	if err != nil {
		var syntax *store.QuerySyntaxError
		if errors.As(err, &syntax) {
			fmt.Fprintf(os.Stderr, "query syntax error near %q\n", syntax.Token)
			fmt.Fprintf(os.Stderr, "did you mean: %s\n", syntax.Suggestion)
			return err
		}
		return fmt.Errorf("recall: %w", err)
	}

	if len(result.Notes) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	if result.Degraded {
		fmt.Fprintln(os.Stderr, "note: no embedder available, served keyword-only")
	}

	for _, n := range result.Notes {
		marker := " "
		if n.Pinned {
			marker = "*"
		}
		created := time.UnixMilli(n.Created).UTC().Format("2006-01-02 15:04")
		fmt.Printf("%s %4d  [%.4f]  %s\n", marker, n.ID, n.PageRank, created)
		fmt.Printf("       %s\n", firstLine(n.Content, 120))
	}
	return nil
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

// --- get command ---

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a note's full content",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}

	db, eng, err := openEngine()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	note, err := eng.Get(id)
	if err != nil {
		return err
	}

	fmt.Printf("note %d by %s\n", note.ID, note.Author)
	fmt.Printf("created: %s\n", time.UnixMilli(note.Created).UTC().Format(time.RFC3339))
	if len(note.Tags) > 0 {
		fmt.Printf("tags: %s\n", strings.Join(note.Tags, ", "))
	}
	if note.Pinned {
		fmt.Println("pinned")
	}
	fmt.Printf("pagerank: %.6f\n", note.PageRank)
	if note.Summary != "" {
		fmt.Printf("\n%s\n", note.Summary)
	}
	fmt.Printf("\n%s\n", note.Content)

	edges, err := db.EdgesFrom(id)
	if err == nil && len(edges) > 0 {
		fmt.Println("\nedges:")
		for _, e := range edges {
			fmt.Printf("  %s → %d (%.2f)\n", e.Type, e.ToID, e.Weight)
		}
	}
	return nil
}

// --- pin / unpin commands ---

var pinCmd = &cobra.Command{
	Use:   "pin [id]",
	Short: "Pin a note so it always appears in recall",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPinned(args[0], true)
	},
}

var unpinCmd = &cobra.Command{
	Use:   "unpin [id]",
	Short: "Unpin a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPinned(args[0], false)
	},
}

func setPinned(arg string, pinned bool) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", arg)
	}

	db, eng, err := openEngine()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if pinned {
		err = eng.Pin(id)
	} else {
		err = eng.Unpin(id)
	}
	if err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

// --- compact command ---

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Reclaim storage and refresh importance scores",
	RunE:  runCompact,
}

func runCompact(cmd *cobra.Command, args []string) error {
	db, eng, err := openEngine()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	result, err := eng.Compact()
	if err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	fmt.Printf("%d bytes → %d bytes\n", result.BeforeBytes, result.AfterBytes)
	return nil
}
