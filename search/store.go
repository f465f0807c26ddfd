// Package search loads inverted index and PageRank round outputs into a
// bolt database and answers single term queries ordered by PageRank.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/reiver/go-porterstemmer"
	"github.com/sirupsen/logrus"
	"github.com/wolfgangmeyers/mrsearch/invindex"
	"github.com/wolfgangmeyers/mrsearch/mapreduce"
	"github.com/wolfgangmeyers/mrsearch/pagerank"
)

var (
	indexBucket = []byte("index") // term -> JSON list of URLs
	rankBucket  = []byte("rank")  // URL -> rank
	stemBucket  = []byte("stems") // stem -> JSON list of terms
)

// openTimeout bounds the wait for the file lock held by another process
const openTimeout = 5 * time.Second

// Store is a bolt backed search database.
type Store struct {
	db     *bolt.DB
	logger logrus.FieldLogger
}

// Open opens or creates the search database at path.
func Open(path string, logger logrus.FieldLogger) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening search database '%v': %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{indexBucket, rankBucket, stemBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	store := new(Store)
	store.db = db
	store.logger = logger.WithField("component", "search_store")
	return store, nil
}

// Close releases the database file.
func (store *Store) Close() error {
	return store.db.Close()
}

// Stem returns the stem used to find related terms of term.
func Stem(term string) string {
	return porterstemmer.StemString(strings.ToLower(term))
}

// LoadIndex adds the records of an inverted index output to the store.
// URLs of a term already in the store are merged, keeping their order.
// Terms that are not purely alphanumeric are skipped. It returns the number
// of terms loaded.
func (store *Store) LoadIndex(ctx context.Context, location mapreduce.Location, delimiter string) (int, error) {
	records, err := location.Records(ctx)
	if err != nil {
		return 0, err
	}
	loaded := 0
	err = store.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(indexBucket)
		stems := tx.Bucket(stemBucket)
		for _, record := range records {
			if !invindex.ValidTerm(record.Key) || record.Value == "" {
				store.logger.WithField("term", record.Key).Debug("Skipping term")
				continue
			}
			if err := mergeList(index, record.Key, strings.Split(record.Value, delimiter)); err != nil {
				return err
			}
			if err := mergeList(stems, Stem(record.Key), []string{record.Key}); err != nil {
				return err
			}
			loaded++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("loading index '%v': %w", location.Path(), err)
	}
	store.logger.WithFields(logrus.Fields{
		"location": location.Path(),
		"terms":    loaded,
	}).Info("Index loaded")
	return loaded, nil
}

// LoadPageRank stores the rank of every node of a PageRank output,
// replacing ranks loaded before. It returns the number of nodes loaded.
func (store *Store) LoadPageRank(ctx context.Context, location mapreduce.Location) (int, error) {
	nodes, err := pagerank.ReadNodes(ctx, location)
	if err != nil {
		return 0, err
	}
	err = store.db.Update(func(tx *bolt.Tx) error {
		ranks := tx.Bucket(rankBucket)
		for _, node := range nodes {
			if err := ranks.Put([]byte(node.URL), []byte(pagerank.FormatRank(node.Rank))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("loading ranks '%v': %w", location.Path(), err)
	}
	store.logger.WithFields(logrus.Fields{
		"location": location.Path(),
		"nodes":    len(nodes),
	}).Info("Ranks loaded")
	return len(nodes), nil
}

// mergeList appends the values not yet present to the JSON list stored at key
func mergeList(bucket *bolt.Bucket, key string, values []string) error {
	list, err := getList(bucket, key)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(list))
	for _, value := range list {
		seen[value] = true
	}
	changed := false
	for _, value := range values {
		if value != "" && !seen[value] {
			seen[value] = true
			list = append(list, value)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(key), data)
}

func getList(bucket *bolt.Bucket, key string) ([]string, error) {
	data := bucket.Get([]byte(key))
	if data == nil {
		return nil, nil
	}
	list := []string{}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decoding '%v': %w", key, err)
	}
	return list, nil
}
