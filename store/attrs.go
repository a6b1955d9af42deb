package store

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

func loadAttrs(b *bolt.Bucket) (map[string]json.RawMessage, error) {
	attrs := make(map[string]json.RawMessage)
	v := b.Get([]byte(attrsKey))
	if v == nil {
		return attrs, nil
	}
	if err := json.Unmarshal(v, &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// SetAttr sets a group attribute. The value is serialized to JSON.
func (g *Group) SetAttr(name string, value interface{}) error {
	j, err := json.Marshal(value)
	if err != nil {
		log.Error("Error serializing attribute", name, err)
		return err
	}
	return g.update(func(b *bolt.Bucket) error {
		attrs, err := loadAttrs(b)
		if err != nil {
			return err
		}
		attrs[name] = j
		data, err := json.Marshal(attrs)
		if err != nil {
			return err
		}
		return b.Put([]byte(attrsKey), data)
	})
}

// Attr reads a group attribute into value.
func (g *Group) Attr(name string, value interface{}) error {
	return g.view(func(b *bolt.Bucket) error {
		attrs, err := loadAttrs(b)
		if err != nil {
			return err
		}
		j, ok := attrs[name]
		if !ok {
			return fmt.Errorf("%s attribute %s: %w", g.Path(), name, ErrNotFound)
		}
		return json.Unmarshal(j, value)
	})
}

// AttrNames returns the names of all the group attributes.
func (g *Group) AttrNames() (names []string, err error) {
	err = g.view(func(b *bolt.Bucket) error {
		attrs, err := loadAttrs(b)
		for k := range attrs {
			names = append(names, k)
		}
		return err
	})
	return
}
