package core

import "testing"

func TestHintInsertAndIter(t *testing.T) {
	dir := t.TempDir()
	h, err := newHint(dir, 7)
	if err != nil {
		t.Fatalf("newHint: %v", err)
	}
	defer h.close()

	want := map[string]Position{
		"a": {FileID: 7, Offset: 0},
		"b": {FileID: 7, Offset: 12},
		"c": NotExist,
	}
	// insert in a fixed order so we can check iteration order below
	order := []string{"a", "b", "c"}
	for _, k := range order {
		if _, err := h.insert([]byte(k), want[k]); err != nil {
			t.Fatalf("insert(%q): %v", k, err)
		}
	}

	it := h.iter()
	var got []hintEntry
	for {
		e, ok := it.scan()
		if !ok {
			break
		}
		got = append(got, e)
	}
	if it.Err() != nil {
		t.Fatalf("iter: %v", it.Err())
	}
	if len(got) != len(order) {
		t.Fatalf("got %d entries, want %d", len(got), len(order))
	}
	for i, k := range order {
		if string(got[i].Key) != k {
			t.Errorf("entry %d key = %q, want %q", i, got[i].Key, k)
		}
		if got[i].Position != want[k] {
			t.Errorf("entry %d position = %+v, want %+v", i, got[i].Position, want[k])
		}
	}
}

func TestHintGet(t *testing.T) {
	dir := t.TempDir()
	h, err := newHint(dir, 3)
	if err != nil {
		t.Fatalf("newHint: %v", err)
	}
	defer h.close()

	want := Position{FileID: 9, Offset: 42}
	off, err := h.insert([]byte("k1"), want)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	// a second record, so the first isn't trivially "whatever's at size 0"
	if _, err := h.insert([]byte("k2"), Position{FileID: 9, Offset: 99}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := h.get(off)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != want {
		t.Errorf("get(%d) = %+v, want %+v", off, got, want)
	}
}

func TestHintReopen(t *testing.T) {
	dir := t.TempDir()
	h, err := newHint(dir, 1)
	if err != nil {
		t.Fatalf("newHint: %v", err)
	}
	if _, err := h.insert([]byte("k"), Position{FileID: 1, Offset: 5}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := h.sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := h.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	h2, err := openHint(dir, 1)
	if err != nil {
		t.Fatalf("openHint: %v", err)
	}
	defer h2.close()

	e, ok := h2.iter().scan()
	if !ok {
		t.Fatal("expected one entry on reopen")
	}
	if string(e.Key) != "k" || e.Position != (Position{FileID: 1, Offset: 5}) {
		t.Errorf("reopened entry = %+v, want k -> {1 5}", e)
	}
}
