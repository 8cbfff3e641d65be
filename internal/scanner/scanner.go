// Package scanner walks an object store listing and yields the media objects
// the pipeline should consider.
package scanner

import (
	"context"
	"fmt"
	"iter"
	"path"
	"strings"

	"github.com/dmitrijs2005/mediacatalog/internal/common"
	"github.com/dmitrijs2005/mediacatalog/internal/objectstore"
)

// DefaultExtensions is the media allow-list used when none is configured.
var DefaultExtensions = []string{"mp3", "wav", "flac", "m4a", "aac", "ogg"}

// Scanner lists a prefix of a store, following continuation tokens until the
// listing is exhausted. Order is whatever the store returns.
type Scanner struct {
	lister     objectstore.Lister
	prefix     string
	extensions map[string]struct{}
}

// New returns a Scanner over prefix keeping only keys whose extension is in
// extensions (case-insensitive, with or without the dot). An empty list
// means DefaultExtensions.
func New(lister objectstore.Lister, prefix string, extensions []string) *Scanner {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			allowed[e] = struct{}{}
		}
	}
	return &Scanner{lister: lister, prefix: prefix, extensions: allowed}
}

// Allowed reports whether key has an allow-listed extension.
func (s *Scanner) Allowed(key string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(key), "."))
	_, ok := s.extensions[ext]
	return ok
}

// Objects returns a lazy sequence over the listing. Each range over the
// sequence starts a fresh listing. A listing error is yielded once and ends
// the sequence; callers must not act on a partial listing.
func (s *Scanner) Objects(ctx context.Context) iter.Seq2[objectstore.StorageObject, error] {
	return func(yield func(objectstore.StorageObject, error) bool) {
		token := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(objectstore.StorageObject{}, err)
				return
			}

			page, err := s.lister.ListPage(ctx, s.prefix, token)
			if err != nil {
				yield(objectstore.StorageObject{}, err)
				return
			}

			for _, obj := range page.Objects {
				if !s.Allowed(obj.Key) {
					continue
				}
				if !yield(obj, nil) {
					return
				}
			}

			if page.NextToken == "" {
				return
			}
			if page.NextToken == token {
				yield(objectstore.StorageObject{}, fmt.Errorf("%w: repeated continuation token %q", common.ErrorListing, token))
				return
			}
			token = page.NextToken
		}
	}
}

// Collect drains Objects. Any listing error discards everything collected.
func (s *Scanner) Collect(ctx context.Context) ([]objectstore.StorageObject, error) {
	var out []objectstore.StorageObject
	for obj, err := range s.Objects(ctx) {
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", s.prefix, err)
		}
		out = append(out, obj)
	}
	return out, nil
}
