package usecase

import (
	"fmt"
	"strconv"
	"strings"
)

// trashDestName picks a destination name for base inside the trash
// holding area. The first occupant keeps the plain basename; later
// collisions get "basename_<stamp>", incrementing until free. The
// suffix format is load-bearing: restore parses it back out.
func trashDestName(base string, stamp int64, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for i := stamp; ; i++ {
		name := fmt.Sprintf("%s_%d", base, i)
		if !taken(name) {
			return name
		}
	}
}

// splitTrashName splits a trash entry name into its original basename
// and the numeric collision suffix, if one is present. Only an
// all-digits suffix after the final underscore counts; anything else is
// part of the original name.
func splitTrashName(entry string) (base string, suffix int64, suffixed bool) {
	idx := strings.LastIndex(entry, "_")
	if idx <= 0 || idx == len(entry)-1 {
		return entry, 0, false
	}
	n, err := strconv.ParseInt(entry[idx+1:], 10, 64)
	if err != nil {
		return entry, 0, false
	}
	return entry[:idx], n, true
}

// originSep separates the source-directory marker from the entry name
// in trash names of scan-time matches. The trash contents are the only
// persisted trace of a removal, so an entry whose canonical location is
// not in the restore tables must carry it in its own name.
const originSep = "__"

// originTrashName builds the trash name for an entry matched by name at
// scan time: the base of the library subdirectory it was found in,
// then the entry's own name.
func originTrashName(dirBase, name string) string {
	return dirBase + originSep + name
}

// splitOriginName splits a source-directory marker back off a trash
// base name. Callers must still check the marker against the known
// scan directories; a name that merely contains the separator is not
// one of ours.
func splitOriginName(base string) (dirBase, name string, ok bool) {
	idx := strings.Index(base, originSep)
	if idx <= 0 || idx+len(originSep) >= len(base) {
		return "", base, false
	}
	return base[:idx], base[idx+len(originSep):], true
}
