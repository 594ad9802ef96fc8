// Package artifact defines how task outputs are named in object storage.
package artifact

import (
	"fmt"
	"sort"
	"strings"
)

// Kind distinguishes video objects from thumbnails.
type Kind string

const (
	KindVideo     Kind = "video"
	KindThumbnail Kind = "thumbnail"
)

const (
	videoExt     = ".mp4"
	thumbnailExt = ".jpg"
)

// DefaultVariants is the variant set produced when none is configured.
var DefaultVariants = []string{"v1", "v2"}

// legacyVariants are accepted when reading existing keys but never produced.
var legacyVariants = []string{"processed"}

// Key is a parsed object key.
type Key struct {
	Owner   string
	TaskID  string
	Variant string
	Kind    Kind
}

// String rebuilds the object key.
func (k Key) String() string {
	if k.Kind == KindThumbnail {
		return ThumbnailKey(k.Owner, k.TaskID)
	}
	return VideoKey(k.Owner, k.TaskID, k.Variant)
}

// Scheme names and parses keys for a closed set of variants.
type Scheme struct {
	variants []string
}

// NewScheme returns a scheme recognising the given variants plus the legacy
// suffixes. An empty list selects DefaultVariants.
func NewScheme(variants []string) *Scheme {
	if len(variants) == 0 {
		variants = DefaultVariants
	}
	return &Scheme{variants: append([]string(nil), variants...)}
}

// Variants returns the configured variants in order.
func (s *Scheme) Variants() []string {
	return append([]string(nil), s.variants...)
}

// IsVariant reports whether v is a configured variant.
func (s *Scheme) IsVariant(v string) bool {
	for _, known := range s.variants {
		if known == v {
			return true
		}
	}
	return false
}

// IsReadableVariant also accepts legacy suffixes found in older keys.
func (s *Scheme) IsReadableVariant(v string) bool {
	if s.IsVariant(v) {
		return true
	}
	for _, legacy := range legacyVariants {
		if legacy == v {
			return true
		}
	}
	return false
}

// VideoKey names a task video. An empty variant names the raw original.
func VideoKey(owner, taskID, variant string) string {
	if variant == "" {
		return owner + "/" + taskID + videoExt
	}
	return owner + "/" + taskID + "_" + variant + videoExt
}

// ThumbnailKey names the still image of a task.
func ThumbnailKey(owner, taskID string) string {
	return owner + "/" + taskID + thumbnailExt
}

// Parse recovers owner, task id, variant and kind from an object key.
// A trailing "_suffix" is only a variant when the suffix is recognised;
// anything else stays part of the task id. Keys are ambiguous for a task id
// that itself ends in "_<variant>": "u/abc_v1.mp4" always parses as variant
// v1 of task abc, never as the original of task abc_v1.
func (s *Scheme) Parse(key string) (Key, error) {
	idx := strings.LastIndex(key, "/")
	if idx <= 0 || idx == len(key)-1 {
		return Key{}, fmt.Errorf("invalid object key %q", key)
	}
	owner, name := key[:idx], key[idx+1:]

	switch {
	case strings.HasSuffix(name, thumbnailExt):
		base := strings.TrimSuffix(name, thumbnailExt)
		if base == "" {
			return Key{}, fmt.Errorf("invalid object key %q", key)
		}
		return Key{Owner: owner, TaskID: base, Kind: KindThumbnail}, nil
	case strings.HasSuffix(name, videoExt):
		base := strings.TrimSuffix(name, videoExt)
		if base == "" {
			return Key{}, fmt.Errorf("invalid object key %q", key)
		}
		taskID, variant := base, ""
		if i := strings.LastIndex(base, "_"); i > 0 && s.IsReadableVariant(base[i+1:]) {
			taskID, variant = base[:i], base[i+1:]
		}
		return Key{Owner: owner, TaskID: taskID, Variant: variant, Kind: KindVideo}, nil
	default:
		return Key{}, fmt.Errorf("unsupported object key %q", key)
	}
}

// TaskEntry is one logical task in a listing.
type TaskEntry struct {
	TaskID       string
	Variants     []string
	HasOriginal  bool
	HasThumbnail bool
}

// GroupTasks folds raw object keys into one entry per task id, sorted by
// task id descending. Unparseable keys are skipped.
func (s *Scheme) GroupTasks(keys []string) []TaskEntry {
	byID := make(map[string]*TaskEntry)
	for _, raw := range keys {
		k, err := s.Parse(raw)
		if err != nil {
			continue
		}
		entry, ok := byID[k.TaskID]
		if !ok {
			entry = &TaskEntry{TaskID: k.TaskID, Variants: []string{}}
			byID[k.TaskID] = entry
		}
		switch {
		case k.Kind == KindThumbnail:
			entry.HasThumbnail = true
		case k.Variant == "":
			entry.HasOriginal = true
		default:
			entry.Variants = append(entry.Variants, k.Variant)
		}
	}

	out := make([]TaskEntry, 0, len(byID))
	for _, e := range byID {
		sort.Strings(e.Variants)
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID > out[j].TaskID })
	return out
}
