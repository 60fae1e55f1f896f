// groupdump reads an XHTML document, scans it for grouper markers the same way
// the engine does (repairing malformed markup along the way) and writes the
// resulting group hierarchy into a SQLite database for offline inspection.
//
// The database holds three tables: groups (hierarchy and content), attributes
// (decoded attribute bags, one row per key) and connections (directed tagged
// arrows between groups).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"lwp/document"
	"lwp/group"
	dbg "lwp/utils/debug"
)

const schema = `
CREATE TABLE groups (
	id      INTEGER PRIMARY KEY,
	type    TEXT NOT NULL,
	parent  INTEGER,
	hidden  INTEGER NOT NULL,
	text    TEXT NOT NULL,
	html    TEXT NOT NULL
);
CREATE TABLE attributes (
	group_id INTEGER NOT NULL REFERENCES groups(id),
	key      TEXT NOT NULL,
	value    TEXT NOT NULL,
	PRIMARY KEY (group_id, key)
);
CREATE TABLE connections (
	from_id INTEGER NOT NULL,
	to_id   INTEGER NOT NULL,
	tag     TEXT NOT NULL
);
`

func main() {
	forest := flag.Bool("forest", false, "also write the hierarchy as an indented text tree to <file>-forest.txt")
	overwrite := flag.Bool("overwrite", false, "overwrite existing output")
	verbose := flag.Bool("verbose", false, "log document repairs to stderr")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: groupdump [-forest] [-overwrite] [-verbose] <file.html> [outdir]\n\n")
		fmt.Fprintf(os.Stderr, "Scans the document for grouper markers and writes the group hierarchy to <file>.sqlite.\n")
		fmt.Fprintf(os.Stderr, "Broken markup is repaired in memory exactly as the engine would repair it.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(2)
	}

	defer func(startedAt time.Time) {
		fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", time.Since(startedAt))
	}(time.Now())

	inPath := flag.Arg(0)
	outDir := filepath.Dir(inPath)
	if flag.NArg() == 2 {
		outDir = flag.Arg(1)
	}

	log := zap.NewNop()
	if *verbose {
		log = zap.Must(zap.NewDevelopment())
	}

	f, err := os.Open(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", inPath, err)
		os.Exit(1)
	}
	doc, err := document.Read(f, log)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", inPath, err)
		os.Exit(1)
	}

	reg := group.NewRegistry(doc, log)
	groups := reg.Groups()
	fmt.Fprintf(os.Stderr, "bound %d group(s) in %s (repaired: %v)\n", len(groups), filepath.Base(inPath), doc.Modified())

	base := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	dbPath := filepath.Join(outDir, base+".sqlite")
	if err := checkDestination(dbPath, *overwrite); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := writeDatabase(dbPath, groups); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", dbPath)

	if *forest {
		txtPath := filepath.Join(outDir, base+"-forest.txt")
		if err := checkDestination(txtPath, *overwrite); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(txtPath, []byte(dbg.DumpForest(reg)), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", txtPath, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", txtPath)
	}
}

func checkDestination(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return fmt.Errorf("%s already exists, use -overwrite", path)
		}
		return os.Remove(path)
	}
	return nil
}

func writeDatabase(path string, groups []*group.Group) error {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer conn.Close()

	if err := sqlitex.ExecScript(conn, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	for _, g := range groups {
		var parent any
		if p := g.Parent(); p != nil {
			parent = p.ID()
		}
		err := sqlitex.Execute(conn, `INSERT INTO groups (id, type, parent, hidden, text, html) VALUES (?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{g.ID(), g.TypeName(), parent, g.Hidden(), g.Text(), g.InnerHTML()}})
		if err != nil {
			return fmt.Errorf("insert group %d: %w", g.ID(), err)
		}

		for key, value := range g.Attributes() {
			if key == "connections" {
				continue
			}
			data, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("marshal attribute %q of group %d: %w", key, g.ID(), err)
			}
			err = sqlitex.Execute(conn, `INSERT INTO attributes (group_id, key, value) VALUES (?, ?, ?)`,
				&sqlitex.ExecOptions{Args: []any{g.ID(), key, string(data)}})
			if err != nil {
				return fmt.Errorf("insert attribute %q of group %d: %w", key, g.ID(), err)
			}
		}

		// outgoing only, each arrow shows up exactly once
		for _, c := range g.ConnectionsOut() {
			err = sqlitex.Execute(conn, `INSERT INTO connections (from_id, to_id, tag) VALUES (?, ?, ?)`,
				&sqlitex.ExecOptions{Args: []any{c.From, c.To, c.Tag}})
			if err != nil {
				return fmt.Errorf("insert connection %d->%d: %w", c.From, c.To, err)
			}
		}
	}
	return nil
}
