package merge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ReadCorpus loads the merged corpus file. A missing corpus is fatal,
// not an empty corpus: merging into nothing silently forks the data
// set. Bootstrap by creating the file with an empty JSON array.
func ReadCorpus(path string) ([]MergedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}

	var records []MergedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing corpus %s: %w", path, err)
	}
	return records, nil
}

// ReadBatch loads one exported batch file. Unlike the corpus, a batch
// that cannot be read or parsed is an error naming the file, so the
// caller can report exactly which input failed.
func ReadBatch(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch %s: %w", path, err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing batch %s: %w", path, err)
	}
	return items, nil
}

// WriteBatch writes one export batch in the interchange format.
func WriteBatch(path string, items []Item) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing batch %s: %w", path, err)
	}
	return nil
}

// WriteCorpus writes the merged corpus atomically enough for a
// single-user tool: temp file in place, then rename.
func WriteCorpus(path string, records []MergedRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding corpus: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing corpus %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing corpus %s: %w", path, err)
	}
	return nil
}

// BackupCorpus copies the current corpus aside before it is
// overwritten. The backup name embeds the time in milliseconds so
// successive merges never clobber each other's backups. No backup is
// taken when the corpus does not exist yet.
func BackupCorpus(path string, now time.Time) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("backing up corpus %s: %w", path, err)
	}

	backup := fmt.Sprintf("%s.backup.%d.json", path, now.UnixMilli())
	if err := os.WriteFile(backup, data, 0644); err != nil {
		return "", fmt.Errorf("backing up corpus %s: %w", path, err)
	}
	return backup, nil
}

// Run is the whole merge stage end to end: load corpus and batch,
// merge, back up the old corpus, write the new one.
func Run(corpusPath, batchPath string, now time.Time) (Report, error) {
	existing, err := ReadCorpus(corpusPath)
	if err != nil {
		return Report{}, err
	}
	batch, err := ReadBatch(batchPath)
	if err != nil {
		return Report{}, err
	}

	merged, report := Merge(existing, batch, now)

	if _, err := BackupCorpus(corpusPath, now); err != nil {
		return Report{}, err
	}
	if err := WriteCorpus(corpusPath, merged); err != nil {
		return Report{}, err
	}
	return report, nil
}
