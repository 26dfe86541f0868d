package file

import (
	"testing"

	"segreader/internal/chunk"
)

func batchSizes(batches [][]chunk.Record) []int {
	sizes := make([]int, len(batches))
	for i, b := range batches {
		sizes[i] = len(b)
	}
	return sizes
}

func TestSplit(t *testing.T) {
	records := testRecords(7)
	size, err := RecordSize(records[0])
	if err != nil {
		t.Fatalf("record size: %v", err)
	}
	recSize := int64(size)

	tests := []struct {
		name   string
		policy RotationPolicy
		want   []int
	}{
		{"nil policy", nil, []int{7}},
		{"max records", MaxRecords(3), []int{3, 3, 1}},
		{"max records disabled", MaxRecords(0), []int{7}},
		{"max bytes", MaxBytes(2 * recSize), []int{2, 2, 2, 1}},
		{"max bytes below one record", MaxBytes(1), []int{1, 1, 1, 1, 1, 1, 1}},
		{"any of", AnyOf(MaxRecords(5), MaxBytes(4*recSize)), []int{4, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := batchSizes(Split(records, tt.policy))
			if len(got) != len(tt.want) {
				t.Fatalf("expected batches %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected batches %v, got %v", tt.want, got)
				}
			}
		})
	}

	if got := Split(nil, MaxRecords(1)); got != nil {
		t.Fatalf("expected no batches for no records, got %v", got)
	}
}

func TestWriteRotated(t *testing.T) {
	dir := t.TempDir()
	records := testRecords(5)

	metas, err := WriteRotated(dir, records, MaxRecords(2), Options{})
	if err != nil {
		t.Fatalf("write rotated: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(metas))
	}

	var pos int
	for _, meta := range metas {
		src, err := Open(dir, meta.ID)
		if err != nil {
			t.Fatalf("open %s: %v", meta.ID, err)
		}
		for i := range src.Len() {
			rec, err := src.RecordAt(i)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			assertRecordEqual(t, records[pos], rec)
			pos++
		}
		_ = src.Close()
	}
	if pos != len(records) {
		t.Fatalf("expected %d records across chunks, got %d", len(records), pos)
	}

	ids, err := List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 chunk dirs, got %d", len(ids))
	}
}
