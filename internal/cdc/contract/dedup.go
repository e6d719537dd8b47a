package contract

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

// HashRecordData computes the adjacent-dedup hash: sort the record's data
// keys, join as "k=v;k=v;…", and base64-encode the MD5 digest. Two
// consecutive records with equal data hash to the same value and the
// second is dropped by the worker loop.
func HashRecordData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := data[k]
		if v == nil {
			// A SQL NULL scans to a Go nil interface; render it as the
			// literal "null" rather than Go's "%v" formatting ("<nil>")
			// so hashes stay stable across scan implementations.
			fmt.Fprintf(&b, "%s=null;", k)
			continue
		}
		fmt.Fprintf(&b, "%s=%v;", k, v)
	}
	sum := md5.Sum([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(sum[:])
}
