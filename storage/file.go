package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileCollection keeps a collection as one JSON array on disk.
//
// Every call reads the whole file and every mutation rewrites it. The mutex
// serialises read-modify-write cycles inside this process; several processes
// sharing one data directory are not supported.
type FileCollection[T any, PT RecordPtr[T]] struct {
	mu     sync.Mutex
	path   string
	prefix string
	unique []string
	now    func() time.Time
}

// NewFileCollection opens path, creating the directory and an empty array when missing.
// prefix is used for generated ids, e.g. "product" gives "product_1718000000000".
func NewFileCollection[T any, PT RecordPtr[T]](path, prefix string) (*FileCollection[T, PT], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &FileCollection[T, PT]{path: path, prefix: prefix, now: time.Now}, nil
}

// Unique makes Create reject a record whose value for any of fields is already taken
func (c *FileCollection[T, PT]) Unique(fields ...string) *FileCollection[T, PT] {
	c.unique = append(c.unique, fields...)
	return c
}

func (c *FileCollection[T, PT]) checkUnique(records []T, rec T) error {
	if len(c.unique) == 0 {
		return nil
	}
	fields, err := toFields(rec)
	if err != nil {
		return err
	}
	for _, existing := range records {
		other, err := toFields(existing)
		if err != nil {
			return err
		}
		for _, f := range c.unique {
			if matches(other, Query{f: fields[f]}) {
				return fmt.Errorf("%s %v: %w", f, fields[f], ErrDuplicate)
			}
		}
	}
	return nil
}

// Path returns the backing file
func (c *FileCollection[T, PT]) Path() string {
	return c.path
}

func (c *FileCollection[T, PT]) load() ([]T, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.path, err)
	}
	var records []T
	if len(raw) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", c.path, err)
	}
	return records, nil
}

// save writes to a temp file and renames it so readers never see half an array
func (c *FileCollection[T, PT]) save(records []T) error {
	if records == nil {
		records = []T{}
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", c.path, err)
	}
	return nil
}

func (c *FileCollection[T, PT]) indexOf(records []T, id string) int {
	for i := range records {
		if PT(&records[i]).GetID() == id {
			return i
		}
	}
	return -1
}

// newID returns "<prefix>_<unix ms>", moving forward one millisecond until unused
func (c *FileCollection[T, PT]) newID(records []T) string {
	ms := c.now().UnixMilli()
	for {
		id := fmt.Sprintf("%s_%d", c.prefix, ms)
		if c.indexOf(records, id) < 0 {
			return id
		}
		ms++
	}
}

func (c *FileCollection[T, PT]) Find(_ context.Context, q Query) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return nil, err
	}
	if len(q) == 0 {
		if records == nil {
			records = []T{}
		}
		return records, nil
	}
	out := []T{}
	for _, rec := range records {
		fields, err := toFields(rec)
		if err != nil {
			return nil, err
		}
		if matches(fields, q) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (c *FileCollection[T, PT]) FindOne(ctx context.Context, q Query) (*T, error) {
	found, err := c.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (c *FileCollection[T, PT]) FindByID(_ context.Context, id string) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return nil, err
	}
	i := c.indexOf(records, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return &records[i], nil
}

func (c *FileCollection[T, PT]) Create(_ context.Context, rec T) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return nil, err
	}
	p := PT(&rec)
	p.Prepare(len(records), c.now())
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := c.checkUnique(records, rec); err != nil {
		return nil, err
	}
	p.SetID(c.newID(records))

	records = append(records, rec)
	if err := c.save(records); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *FileCollection[T, PT]) FindByIDAndUpdate(_ context.Context, id string, patch Patch) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return nil, err
	}
	i := c.indexOf(records, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	merged, err := applyPatch(records[i], patch)
	if err != nil {
		return nil, err
	}
	if err := PT(&merged).Validate(); err != nil {
		return nil, err
	}
	records[i] = merged
	if err := c.save(records); err != nil {
		return nil, err
	}
	return &merged, nil
}

func (c *FileCollection[T, PT]) FindByIDAndDelete(_ context.Context, id string) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return nil, err
	}
	i := c.indexOf(records, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	removed := records[i]
	records = append(records[:i], records[i+1:]...)
	if err := c.save(records); err != nil {
		return nil, err
	}
	return &removed, nil
}

func (c *FileCollection[T, PT]) Count(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Increment checks and writes under the collection lock, so concurrent callers
// never both spend the same quantity.
func (c *FileCollection[T, PT]) Increment(_ context.Context, id, field string, delta int) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return nil, err
	}
	i := c.indexOf(records, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	fields, err := toFields(records[i])
	if err != nil {
		return nil, err
	}
	current, err := numericField(fields, field)
	if err != nil {
		return nil, err
	}
	next := current + float64(delta)
	if next < 0 {
		return nil, fmt.Errorf("%s %s has %v, needs %d: %w", c.prefix, id, current, -delta, ErrInsufficient)
	}
	merged, err := applyPatch(records[i], Patch{field: next})
	if err != nil {
		return nil, err
	}
	if err := PT(&merged).Validate(); err != nil {
		return nil, err
	}
	records[i] = merged
	if err := c.save(records); err != nil {
		return nil, err
	}
	return &merged, nil
}
