// Cache key construction. Keys are namespaced, deterministic strings built
// from typed segments; variable-length filter sets are collapsed into an
// xxhash digest of a canonical serialization so that logically equal filter
// sets always map to the same key and distinct sets practically never
// collide (64-bit digest, tiny key population).
//
// Layout:
//
//	bookings::id::<id>                                   single booking
//	bookings::owner::<owner>::list::<page>::<size>::<digest>
//	bookings::owner::<owner>::count::<digest>
//	bookings::owner::<owner>::stats::<days>
//
// Everything scoped to an owner lives under OwnerPrefix(owner), which is
// what mutation paths invalidate wholesale.
package cache

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator delimits cache key segments.
const KeySeparator = "::"

// fieldSeparator delimits digest input fields; a control character keeps
// user-supplied search text from forging segment boundaries.
const fieldSeparator = "\x1f"

// BookingKey returns the cache key for a single booking id.
func BookingKey(id uint) string {
	return join("bookings", "id", fmt.Sprint(id))
}

// OwnerPrefix returns the key prefix shared by every owner-scoped entry
// (lists, counts, dashboard stats).
func OwnerPrefix(ownerID uint) string {
	return join("bookings", "owner", fmt.Sprint(ownerID)) + KeySeparator
}

// ListKey returns the cache key for one page of an owner's booking list
// under a given filter digest.
func ListKey(ownerID uint, page, pageSize int, filterDigest uint64) string {
	return OwnerPrefix(ownerID) + join("list", fmt.Sprint(page), fmt.Sprint(pageSize), fmt.Sprintf("%016x", filterDigest))
}

// CountKey returns the cache key for an owner's filtered booking count.
func CountKey(ownerID uint, filterDigest uint64) string {
	return OwnerPrefix(ownerID) + join("count", fmt.Sprintf("%016x", filterDigest))
}

// StatsKey returns the cache key for an owner's dashboard statistics over
// the given recent-range in days.
func StatsKey(ownerID uint, rangeDays int) string {
	return OwnerPrefix(ownerID) + join("stats", fmt.Sprint(rangeDays))
}

// Digest hashes an ordered list of fields into a stable 64-bit value.
// Callers must serialize each field deterministically (fixed order, fixed
// formatting) before digesting; empty optional fields should be passed as
// empty strings so the field positions stay aligned.
func Digest(fields ...string) uint64 {
	return xxhash.Sum64String(strings.Join(fields, fieldSeparator))
}

func join(segments ...string) string {
	return strings.Join(segments, KeySeparator)
}
