/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package includes

import (
	"context"
	"time"

	"github.com/yeuai/botscript/core"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var bucket = []byte("includes")

// Cache is a core.Loader that remembers the last good copy of each
// included script in a BoltDB file.
//
// When the underlying Loader fails, the last good copy is used
// instead.
type Cache struct {
	Loader core.Loader
	Logger *zap.Logger

	filename string
	db       *bolt.DB
}

// NewCache makes a Cache.  Call Open before use.
func NewCache(filename string, loader core.Loader) *Cache {
	return &Cache{
		Loader:   loader,
		Logger:   zap.NewNop(),
		filename: filename,
	}
}

// Open opens (or creates) the bolt file and its bucket.
func (c *Cache) Open() error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}
	db, err := bolt.Open(c.filename, 0644, opts)
	if err != nil {
		return err
	}
	c.db = db
	return c.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
}

// Close closes the bolt file if it's open.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Load implements core.Loader.
func (c *Cache) Load(ctx context.Context, location string) (string, error) {
	src, err := c.Loader.Load(ctx, location)
	if err == nil {
		if err := c.Put(location, src); err != nil {
			c.Logger.Warn("include cache write failed",
				zap.String("location", location),
				zap.Error(err))
		}
		return src, nil
	}

	cached, have, cerr := c.Get(location)
	if cerr != nil || !have {
		return "", err
	}
	c.Logger.Warn("using cached include",
		zap.String("location", location),
		zap.Error(err))
	return cached, nil
}

// Get returns the last good copy of the location's script.
func (c *Cache) Get(location string) (string, bool, error) {
	var (
		src  string
		have bool
	)
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if bs := b.Get([]byte(location)); bs != nil {
			src, have = string(bs), true
		}
		return nil
	})
	return src, have, err
}

// Put stores the script for the location.
func (c *Cache) Put(location, src string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(location), []byte(src))
	})
}

// Locations lists the cached locations.
func (c *Cache) Locations() ([]string, error) {
	var acc []string
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		cur := b.Cursor()
		for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
			acc = append(acc, string(k))
		}
		return nil
	})
	return acc, err
}
