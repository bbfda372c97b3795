package xstage

import (
	"errors"
	"testing"
)

type tagMeta struct{ tag string }

func (m tagMeta) MetaName() string { return "tag" }

type stampMeta struct{ ts int64 }

func (m *stampMeta) MetaName() string { return "stamp" }
func (m *stampMeta) Stamp() int64     { return m.ts }

// stamper is a capability satisfied by *stampMeta.
type stamper interface{ Stamp() int64 }

func TestMetaListAddRejectsNil(t *testing.T) {
	var l MetaList
	var typedNil *stampMeta

	tests := []struct {
		name string
		m    Meta
	}{
		{"nil interface", nil},
		{"typed nil pointer", typedNil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := l.Add(tt.m); !errors.Is(err, ErrInvalidParam) {
				t.Errorf("Add() = %v, want ErrInvalidParam", err)
			}
			if l.Len() != 0 {
				t.Errorf("Len() = %d after rejected Add, want 0", l.Len())
			}
		})
	}
}

func TestMetaListAddFind(t *testing.T) {
	var l MetaList
	tag := tagMeta{tag: "a"}
	stamp := &stampMeta{ts: 42}

	if err := l.Add(tag); err != nil {
		t.Fatalf("Add(tag) = %v", err)
	}
	if err := l.Add(stamp); err != nil {
		t.Fatalf("Add(stamp) = %v", err)
	}

	gotTag, ok := LookupMeta[tagMeta](&l)
	if !ok || gotTag != tag {
		t.Errorf("LookupMeta[tagMeta] = %v, %v; want %v, true", gotTag, ok, tag)
	}
	gotStamp, ok := LookupMeta[*stampMeta](&l)
	if !ok || gotStamp != stamp {
		t.Errorf("LookupMeta[*stampMeta] = %v, %v; want %v, true", gotStamp, ok, stamp)
	}
	st, ok := LookupMeta[stamper](&l)
	if !ok || st.Stamp() != 42 {
		t.Errorf("LookupMeta[stamper] = %v, %v; want stamp 42", st, ok)
	}
}

func TestMetaListFirstMatchWins(t *testing.T) {
	var l MetaList
	for _, tag := range []string{"first", "second", "third"} {
		if err := l.Add(tagMeta{tag: tag}); err != nil {
			t.Fatal(err)
		}
	}
	got, ok := LookupMeta[tagMeta](&l)
	if !ok || got.tag != "first" {
		t.Errorf("LookupMeta = %q, %v; want first, true", got.tag, ok)
	}
}

func TestMetaListAbsent(t *testing.T) {
	var l MetaList
	if err := l.Add(tagMeta{}); err != nil {
		t.Fatal(err)
	}
	if _, ok := LookupMeta[*stampMeta](&l); ok {
		t.Error("LookupMeta[*stampMeta] found an item that was never added")
	}
	if _, ok := LookupMeta[tagMeta](nil); ok {
		t.Error("LookupMeta on nil list reported a match")
	}
}

func TestMetaListAllInsertionOrder(t *testing.T) {
	var l MetaList
	want := []string{"tag", "stamp", "tag"}
	_ = l.Add(tagMeta{})
	_ = l.Add(&stampMeta{})
	_ = l.Add(tagMeta{})

	var got []string
	for m := range l.All() {
		got = append(got, m.MetaName())
	}
	if len(got) != len(want) {
		t.Fatalf("All() yielded %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("All()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Early break stops iteration.
	n := 0
	for range l.All() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("iterations after break = %d, want 1", n)
	}
}

func TestFindMetaOnParams(t *testing.T) {
	p := NewParams(nil, nil)
	if err := p.AddMeta(&stampMeta{ts: 7}); err != nil {
		t.Fatal(err)
	}
	got, ok := FindMeta[stamper](p)
	if !ok || got.Stamp() != 7 {
		t.Errorf("FindMeta[stamper] = %v, %v; want stamp 7", got, ok)
	}
	if p.Metas().Len() != 1 {
		t.Errorf("Metas().Len() = %d, want 1", p.Metas().Len())
	}
	if _, ok := FindMeta[stamper](nil); ok {
		t.Error("FindMeta on nil params reported a match")
	}
}
