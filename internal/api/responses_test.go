package api

import (
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestParsePagination(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p, err := ParsePagination(httptest.NewRequest("GET", "/sessions", nil))
		if err != nil {
			t.Fatalf("ParsePagination: %v", err)
		}
		if p.Limit != 50 || p.Offset != 0 {
			t.Errorf("p = %+v, want 50/0", p)
		}
	})

	t.Run("explicit_values", func(t *testing.T) {
		p, err := ParsePagination(httptest.NewRequest("GET", "/sessions?limit=5&offset=10", nil))
		if err != nil {
			t.Fatalf("ParsePagination: %v", err)
		}
		if p.Limit != 5 || p.Offset != 10 {
			t.Errorf("p = %+v, want 5/10", p)
		}
	})

	for _, q := range []string{"limit=abc", "limit=0", "offset=-1", "offset=x"} {
		t.Run("rejects_"+q, func(t *testing.T) {
			if _, err := ParsePagination(httptest.NewRequest("GET", "/sessions?"+q, nil)); err == nil {
				t.Errorf("ParsePagination accepted %q", q)
			}
		})
	}
}

func TestQueryTime(t *testing.T) {
	want := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	r := httptest.NewRequest("GET", "/e?from=2026-03-10T14:00:00Z&bad=yesterday", nil)

	if got, ok := QueryTime(r, "from"); !ok || !got.Equal(want) {
		t.Errorf("QueryTime(from) = %v/%v, want %v/true", got, ok, want)
	}
	if _, ok := QueryTime(r, "bad"); ok {
		t.Error("QueryTime should reject a non-RFC3339 value")
	}
	if _, ok := QueryTime(r, "missing"); ok {
		t.Error("QueryTime should report a missing param")
	}
}

func TestQueryStringList(t *testing.T) {
	r := httptest.NewRequest("GET", "/e?types=transcript,%20engagement:attention%20,", nil)
	got := QueryStringList(r, "types")
	want := []string{"transcript", "engagement:attention"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("QueryStringList = %v, want %v", got, want)
	}
	if QueryStringList(r, "missing") != nil {
		t.Error("missing param should yield nil")
	}
}
