package assignment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
)

// Worker is a named participant with a fixed assignment quota.
type Worker struct {
	Name  string `json:"name" toml:"name"`
	Quota int    `json:"quota" toml:"quota"`
}

// Shuffler permutes a list of filenames in place.
type Shuffler func(names []string)

// SeededShuffler returns a reproducible permutation for the given seed.
func SeededShuffler(seed uint64) Shuffler {
	return func(names []string) {
		r := rand.New(rand.NewPCG(seed, seed))
		r.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
	}
}

// RandomShuffler uses the process-wide unseeded source.
func RandomShuffler() Shuffler {
	return func(names []string) {
		rand.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
	}
}

// Table maps each worker to the filenames assigned to it. Order records the
// declared worker order so the table serialises the same way it was built.
type Table struct {
	Order []string
	Files map[string][]string
}

// Partition fills workers greedily in declared order, each one taking a
// contiguous slice of min(quota, remaining) names from shuffled. Once the
// list is exhausted every later worker gets an empty sequence.
func Partition(shuffled []string, workers []Worker) Table {
	t := Table{
		Order: make([]string, 0, len(workers)),
		Files: make(map[string][]string, len(workers)),
	}
	next := 0
	for _, w := range workers {
		n := min(max(w.Quota, 0), len(shuffled)-next)
		t.Order = append(t.Order, w.Name)
		t.Files[w.Name] = slices.Clone(shuffled[next : next+n])
		next += n
	}
	return t
}

// Create shuffles a copy of images and partitions it across workers. The
// input is sorted first so a seeded shuffler yields the same table no matter
// how the directory listing was ordered.
func Create(images []string, workers []Worker, shuffle Shuffler) Table {
	pool := slices.Clone(images)
	slices.Sort(pool)
	if shuffle != nil {
		shuffle(pool)
	}
	return Partition(pool, workers)
}

// Empty returns a table with every worker present and nothing assigned.
func Empty(workers []Worker) Table {
	return Partition(nil, workers)
}

// Assigned reports filenames for worker, or false if the worker is unknown.
func (t Table) Assigned(worker string) ([]string, bool) {
	files, ok := t.Files[worker]
	return files, ok
}

// Contains reports whether filename is in worker's sequence.
func (t Table) Contains(worker, filename string) bool {
	return slices.Contains(t.Files[worker], filename)
}

// Total is the number of assigned filenames across all workers.
func (t Table) Total() int {
	n := 0
	for _, files := range t.Files {
		n += len(files)
	}
	return n
}

// Validate checks a persisted table against the current image set and the
// configured workers. Any failure wraps ErrMismatch.
func (t Table) Validate(images []string, workers []Worker) error {
	if len(t.Files) != len(workers) {
		return fmt.Errorf("%w: %d workers stored, %d configured", ErrMismatch, len(t.Files), len(workers))
	}
	for _, w := range workers {
		if _, ok := t.Files[w.Name]; !ok {
			return fmt.Errorf("%w: worker %q not in stored table", ErrMismatch, w.Name)
		}
	}

	present := make(map[string]struct{}, len(images))
	for _, name := range images {
		present[name] = struct{}{}
	}
	owner := make(map[string]string, len(images))
	for worker, files := range t.Files {
		for _, name := range files {
			if _, ok := present[name]; !ok {
				return fmt.Errorf("%w: %q assigned to %q no longer exists", ErrMismatch, name, worker)
			}
			if prev, dup := owner[name]; dup {
				return fmt.Errorf("%w: %q assigned to both %q and %q", ErrMismatch, name, prev, worker)
			}
			owner[name] = worker
		}
	}
	return nil
}

// Reorder sets Order to the declared worker order. Stored tables lose order
// when decoded from a JSON object.
func (t *Table) Reorder(workers []Worker) {
	t.Order = t.Order[:0]
	for _, w := range workers {
		t.Order = append(t.Order, w.Name)
	}
}

// MarshalJSON writes the table as a keyed object with keys in Order.
func (t Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, worker := range t.Order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(worker)
		if err != nil {
			return nil, err
		}
		files := t.Files[worker]
		if files == nil {
			files = []string{}
		}
		val, err := json.Marshal(files)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a keyed object. Order is left in key-sorted order until
// Reorder is called.
func (t *Table) UnmarshalJSON(data []byte) error {
	var files map[string][]string
	if err := json.Unmarshal(data, &files); err != nil {
		return err
	}
	if files == nil {
		return fmt.Errorf("assignment table is null")
	}
	t.Files = files
	t.Order = make([]string, 0, len(files))
	for worker := range files {
		t.Order = append(t.Order, worker)
	}
	slices.Sort(t.Order)
	return nil
}
