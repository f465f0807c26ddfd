package search

import (
	"sort"
	"strconv"

	"github.com/boltdb/bolt"
)

// DefaultLimit is the number of results returned when no limit is given.
const DefaultLimit = 10

// A Result is a page matching a query.
type Result struct {
	URL    string  `json:"url"`
	Rank   float64 `json:"rank"`
	Ranked bool    `json:"ranked"` // false when no PageRank was loaded for the URL
}

// Results implements sort.Interface: highest rank first, unranked pages
// last, ties by URL.
type Results []Result

func (a Results) Len() int      { return len(a) }
func (a Results) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a Results) Less(i, j int) bool {
	if a[i].Ranked != a[j].Ranked {
		return a[i].Ranked
	}
	if a[i].Rank != a[j].Rank {
		return a[i].Rank > a[j].Rank
	}
	return a[i].URL < a[j].URL
}

// Query returns up to limit pages containing term, best ranked first. Terms
// are matched exactly; with stemmed set, every loaded term sharing the stem
// of term matches as well.
func (store *Store) Query(term string, limit int, stemmed bool) (Results, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	results := Results{}
	err := store.db.View(func(tx *bolt.Tx) error {
		terms := []string{term}
		if stemmed {
			related, err := getList(tx.Bucket(stemBucket), Stem(term))
			if err != nil {
				return err
			}
			terms = append(terms, related...)
		}
		index := tx.Bucket(indexBucket)
		ranks := tx.Bucket(rankBucket)
		seen := map[string]bool{}
		for _, t := range terms {
			urls, err := getList(index, t)
			if err != nil {
				return err
			}
			for _, url := range urls {
				if seen[url] {
					continue
				}
				seen[url] = true
				result := Result{URL: url}
				if data := ranks.Get([]byte(url)); data != nil {
					rank, err := strconv.ParseFloat(string(data), 64)
					if err != nil {
						return err
					}
					result.Rank = rank
					result.Ranked = true
				}
				results = append(results, result)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(results)
	if len(results) > limit {
		results = results[:limit]
	}
	store.logger.WithField("term", term).Debugf("Returning %d results", len(results))
	return results, nil
}
