package core

import "fmt"

// DedupLatest reverses the record order and then keeps the first record
// seen for each value of the key column, so the most recently merged
// record of every key survives. The result is in reverse merge order.
// An empty key value is an ordinary key. It also returns how many records
// were dropped.
func DedupLatest(d Dataset, key string) (Dataset, int, error) {
	col := d.ColumnIndex(key)
	if col < 0 {
		return Dataset{}, 0, &Error{
			Kind:    KindInvalidConfiguration,
			Columns: []string{key},
			Err:     fmt.Errorf("dedup key is not a column of the dataset"),
		}
	}

	out := Dataset{Columns: append([]string(nil), d.Columns...), Records: make([]Record, 0, len(d.Records))}
	seen := make(map[string]struct{}, len(d.Records))

	for i := len(d.Records) - 1; i >= 0; i-- {
		r := d.Records[i]
		var k string
		if col < len(r) {
			k = r[col]
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.Records = append(out.Records, r.Clone())
	}

	return out, len(d.Records) - len(out.Records), nil
}
