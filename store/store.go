// Package store keeps named numeric arrays in a hierarchy of groups
// inside a bolt database. Groups are nested buckets, arrays are
// values encoded with their element type and shape, and scalar
// attributes of a group are stored as JSON.
package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

// log is the global logging variable.
var log = logging.MustGetLogger("store")

// ROOT is the name of the top level bucket holding all the groups.
var ROOT = []byte("root")

// attrsKey is the key storing group attributes.
const attrsKey = "_attrs"

var (
	// ErrNotFound is returned for missing groups, arrays and
	// attributes.
	ErrNotFound = errors.New("not found")
	// ErrName is returned for names which cannot be used as keys.
	ErrName = errors.New("invalid name")
)

// File is an open container.
type File struct {
	db   *bolt.DB
	path string
}

// Open opens an existing container or creates a new one.
func Open(path string, readOnly bool) (*File, error) {
	if readOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	}
	db, err := bolt.Open(path, 0666, &bolt.Options{Timeout: time.Second, ReadOnly: readOnly})
	if err != nil {
		return nil, err
	}
	f := &File{db: db, path: path}
	if !readOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(ROOT)
			return err
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return f, nil
}

// Create creates a new empty container, removing an existing file.
func Create(path string) (*File, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	log.Debugf("creating %s", path)
	return Open(path, false)
}

// Close closes the container.
func (f *File) Close() error {
	return f.db.Close()
}

// Root returns the root group.
func (f *File) Root() *Group {
	return &Group{f: f}
}

// Group is a named collection of arrays, attributes and subgroups.
type Group struct {
	f    *File
	path []string
}

// Path returns the slash-separated path of the group.
func (g *Group) Path() string {
	return "/" + strings.Join(g.path, "/")
}

func (g *Group) child(name string) *Group {
	path := make([]string, len(g.path), len(g.path)+1)
	copy(path, g.path)
	return &Group{f: g.f, path: append(path, name)}
}

func checkName(name string) error {
	if name == "" || name == attrsKey || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrName, name)
	}
	return nil
}

// bucket returns the bucket of the group or nil if it doesn't exist.
func (g *Group) bucket(tx *bolt.Tx) *bolt.Bucket {
	b := tx.Bucket(ROOT)
	for _, name := range g.path {
		if b == nil {
			return nil
		}
		b = b.Bucket([]byte(name))
	}
	return b
}

// update runs fn with the group bucket in a writable transaction.
func (g *Group) update(fn func(b *bolt.Bucket) error) error {
	return g.f.db.Update(func(tx *bolt.Tx) error {
		b := g.bucket(tx)
		if b == nil {
			return fmt.Errorf("group %s: %w", g.Path(), ErrNotFound)
		}
		return fn(b)
	})
}

// view runs fn with the group bucket in a read-only transaction.
func (g *Group) view(fn func(b *bolt.Bucket) error) error {
	return g.f.db.View(func(tx *bolt.Tx) error {
		b := g.bucket(tx)
		if b == nil {
			return fmt.Errorf("group %s: %w", g.Path(), ErrNotFound)
		}
		return fn(b)
	})
}

// CreateGroup creates a subgroup if it doesn't exist and returns it.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	err := g.update(func(b *bolt.Bucket) error {
		_, err := b.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, err
	}
	return g.child(name), nil
}

// Group returns an existing subgroup.
func (g *Group) Group(name string) (*Group, error) {
	c := g.child(name)
	err := c.view(func(*bolt.Bucket) error { return nil })
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Names returns the names of the arrays and the subgroups.
func (g *Group) Names() (names []string, err error) {
	err = g.view(func(b *bolt.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			if string(k) != attrsKey {
				names = append(names, string(k))
			}
			return nil
		})
	})
	return
}

// Has returns true if the group contains an array or a subgroup with
// the given name.
func (g *Group) Has(name string) bool {
	found := false
	g.view(func(b *bolt.Bucket) error {
		found = b.Get([]byte(name)) != nil || b.Bucket([]byte(name)) != nil
		return nil
	})
	return found
}

// Delete removes an array or a subgroup.
func (g *Group) Delete(name string) error {
	return g.update(func(b *bolt.Bucket) error {
		if b.Bucket([]byte(name)) != nil {
			return b.DeleteBucket([]byte(name))
		}
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("%s/%s: %w", g.Path(), name, ErrNotFound)
		}
		return b.Delete([]byte(name))
	})
}
