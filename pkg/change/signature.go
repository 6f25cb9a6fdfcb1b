// Package change decides whether a screen analysis differs meaningfully
// from the last one that triggered a reaction.
//
// Each analysis is reduced to a Signature: the set of (label, quantized
// center) keys of its objects plus the scene label. Quantizing centers to a
// bucket grid absorbs detector jitter; the bucket size trades jitter
// tolerance against sensitivity to small UI motion.
package change

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/teslashibe/go-mimi/pkg/understanding"
)

// DefaultBucket is the quantization grid in analysis-image pixels.
const DefaultBucket = 50

// Key is one quantized object.
type Key struct {
	Label string `json:"label"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return fmt.Sprintf("%s@%d,%d", k.Label, k.X, k.Y)
}

func compareKeys(a, b Key) int {
	if c := strings.Compare(a.Label, b.Label); c != 0 {
		return c
	}
	if a.X != b.X {
		return a.X - b.X
	}
	return a.Y - b.Y
}

// Signature is an order-independent fingerprint of an analysis. Keys are
// sorted and unique, so two signatures are equal iff their key sets and
// scene labels are.
type Signature struct {
	Keys  []Key  `json:"keys"`
	Scene string `json:"scene"`
}

// Quantize snaps c to the nearest multiple of bucket.
func Quantize(c, bucket int) int {
	if bucket < 1 {
		bucket = 1
	}
	return int(math.Round(float64(c)/float64(bucket))) * bucket
}

// Compute derives the signature of a. It is a pure function of a and
// bucket; a nil analysis yields the empty signature. Buckets below 1 are
// treated as 1.
func Compute(a *understanding.ScreenAnalysis, bucket int) Signature {
	if a == nil {
		return Signature{}
	}
	keys := make([]Key, 0, len(a.Objects))
	for _, o := range a.Objects {
		keys = append(keys, Key{
			Label: o.Label,
			X:     Quantize(o.Center.X, bucket),
			Y:     Quantize(o.Center.Y, bucket),
		})
	}
	sort.Slice(keys, func(i, j int) bool { return compareKeys(keys[i], keys[j]) < 0 })

	uniq := keys[:0]
	for i, k := range keys {
		if i == 0 || k != keys[i-1] {
			uniq = append(uniq, k)
		}
	}
	return Signature{Keys: uniq, Scene: a.SceneLabel}
}

// Equal reports set equality of keys and equality of scene labels.
func (s Signature) Equal(o Signature) bool {
	return s.Scene == o.Scene && s.SameObjects(o)
}

// SameObjects reports set equality of keys, ignoring the scene.
func (s Signature) SameObjects(o Signature) bool {
	if len(s.Keys) != len(o.Keys) {
		return false
	}
	for i := range s.Keys {
		if s.Keys[i] != o.Keys[i] {
			return false
		}
	}
	return true
}

// Diff returns the keys in s but not in prev (added) and in prev but not
// in s (removed).
func (s Signature) Diff(prev Signature) (added, removed []Key) {
	i, j := 0, 0
	for i < len(s.Keys) && j < len(prev.Keys) {
		switch c := compareKeys(s.Keys[i], prev.Keys[j]); {
		case c < 0:
			added = append(added, s.Keys[i])
			i++
		case c > 0:
			removed = append(removed, prev.Keys[j])
			j++
		default:
			i++
			j++
		}
	}
	added = append(added, s.Keys[i:]...)
	removed = append(removed, prev.Keys[j:]...)
	return added, removed
}

// String renders the signature as "scene|label@x,y;label@x,y".
func (s Signature) String() string {
	parts := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		parts[i] = k.String()
	}
	return s.Scene + "|" + strings.Join(parts, ";")
}
