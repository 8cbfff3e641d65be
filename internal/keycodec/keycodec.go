// Package keycodec encodes and decodes destination object keys.
//
// Library keys have the form
//
//	library/originals/<trackId>[-version-<n>]-<shortHash>.<ext>
//
// and user uploads live under
//
//	users/<userId>/uploads/<uuid>-<slug(title)>.<ext>
//
// Decoding is right-anchored: the last "-<8..12 hex>.<ext>" of the base name is
// the hash. A track id that itself ends in a hex-looking segment is therefore
// read correctly only when a hash follows it; a key that lost its hash would
// be mis-read. Keys produced by this package always carry a hash.
package keycodec

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/mediacatalog/internal/common"
	"github.com/google/uuid"
)

var (
	slugRe    = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	hashExtRe = regexp.MustCompile(`^(.+)-([a-f0-9]{8,12})\.([A-Za-z0-9]+)$`)
	versionRe = regexp.MustCompile(`^(.+)-version-([1-9][0-9]*)$`)
)

// ParsedKey is the decoded form of a library key.
type ParsedKey struct {
	Prefix    string // everything before the base name, without trailing slash
	TrackID   string
	Version   int  // defaults to 1
	Versioned bool // key spelled out "-version-<n>"
	ShortHash string
	Extension string
}

// ParseError reports a key outside the canonical grammar. It unwraps to
// common.ErrorUnparseableKey.
type ParseError struct {
	Key    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable key %q: %s", e.Key, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return common.ErrorUnparseableKey
}

// Key re-encodes p. For every key k accepted by Decode, Decode(k).Key() == k.
func (p *ParsedKey) Key() string {
	var b strings.Builder
	if p.Prefix != "" {
		b.WriteString(p.Prefix)
		b.WriteByte('/')
	}
	b.WriteString(p.TrackID)
	if p.Versioned {
		b.WriteString("-version-")
		b.WriteString(strconv.Itoa(p.Version))
	}
	b.WriteByte('-')
	b.WriteString(p.ShortHash)
	b.WriteByte('.')
	b.WriteString(p.Extension)
	return b.String()
}

// EncodeLibraryKey returns the canonical library key for a track. No version
// segment is written; the version is implicitly 1.
func EncodeLibraryKey(trackID, shortHash, ext string) string {
	p := ParsedKey{
		Prefix:    common.LibraryPrefix,
		TrackID:   trackID,
		Version:   1,
		ShortHash: shortHash,
		Extension: strings.TrimPrefix(ext, "."),
	}
	return p.Key()
}

// UntitledSlug names uploads whose title has no usable characters.
const UntitledSlug = "untitled"

// EncodeUserUploadKey returns the key of a user's upload. Ownership lives in
// the key itself.
func EncodeUserUploadKey(userID, uuid, title, ext string) string {
	slug := Slugify(title)
	if slug == "" {
		slug = UntitledSlug
	}
	return fmt.Sprintf("%s/%s/uploads/%s-%s.%s", common.UserUploadsPrefix, userID, uuid, slug, strings.TrimPrefix(ext, "."))
}

// NewUserUploadKey is EncodeUserUploadKey with a fresh random UUID.
func NewUserUploadKey(userID, title, ext string) string {
	return EncodeUserUploadKey(userID, uuid.NewString(), title, ext)
}

// Decode parses a library key. Keys outside the grammar yield a *ParseError;
// callers skip those objects rather than fail.
func Decode(key string) (*ParsedKey, error) {
	dir, base := path.Split(key)
	if strings.HasPrefix(dir, "/") || strings.Contains(dir, "//") {
		return nil, &ParseError{Key: key, Reason: "empty path segment"}
	}

	m := hashExtRe.FindStringSubmatch(base)
	if m == nil {
		return nil, &ParseError{Key: key, Reason: "no -<hash>.<ext> suffix"}
	}
	stem, hash, ext := m[1], m[2], m[3]

	p := &ParsedKey{
		Prefix:    strings.TrimSuffix(dir, "/"),
		TrackID:   stem,
		Version:   1,
		ShortHash: hash,
		Extension: ext,
	}

	if vm := versionRe.FindStringSubmatch(stem); vm != nil {
		v, err := strconv.Atoi(vm[2])
		if err != nil {
			return nil, &ParseError{Key: key, Reason: "version out of range"}
		}
		p.TrackID, p.Version, p.Versioned = vm[1], v, true
	}

	if !IsSlug(p.TrackID) {
		return nil, &ParseError{Key: key, Reason: fmt.Sprintf("track id %q is not a slug", p.TrackID)}
	}
	return p, nil
}

// CatalogTrackID is the catalog identity of a decoded key. Version 1 keeps the
// bare track id; later versions are catalogued separately.
func (p *ParsedKey) CatalogTrackID() string {
	if p.Version <= 1 {
		return p.TrackID
	}
	return fmt.Sprintf("%s-version-%d", p.TrackID, p.Version)
}
