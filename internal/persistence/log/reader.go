package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"conduitcraft.ai/internal/sim/world"
)

// Files lists the <prefix>-*.jsonl.zst files in dir in chronological order.
func Files(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, filepath.Join(dir, name))
		}
	}
	sort.Strings(names)
	return names, nil
}

// ScanJSONL decodes every line of a zstd JSONL file into a fresh T and
// passes it to fn. fn returning an error stops the scan.
func ScanJSONL[T any](path string, fn func(T) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadAudits replays every audit file of a world directory in write order.
func ReadAudits(worldDir string, fn func(world.AuditEntry) error) error {
	files, err := Files(filepath.Join(worldDir, "audit"), "audit")
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := ScanJSONL(path, fn); err != nil {
			return err
		}
	}
	return nil
}

// ReadRecalcs replays every recalc file of a world directory in write order.
func ReadRecalcs(worldDir string, fn func(world.RecalcEntry) error) error {
	files, err := Files(filepath.Join(worldDir, "recalcs"), "recalcs")
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := ScanJSONL(path, fn); err != nil {
			return err
		}
	}
	return nil
}
