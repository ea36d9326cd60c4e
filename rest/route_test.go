package rest

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiplanet/data-api-builder/apierror"
)

func TestResolveRoute_EntityWithPrimaryKey(t *testing.T) {
	route, err := ResolveRoute("rest-api/Book/id/1", "/rest-api")
	require.NoError(t, err)
	assert.Equal(t, "Book", route.Entity)
	assert.Equal(t, "id/1", route.PrimaryKey)
}

func TestResolveRoute_EntityOnly(t *testing.T) {
	route, err := ResolveRoute("rest-api/Book", "/rest-api")
	require.NoError(t, err)
	assert.Equal(t, "Book", route.Entity)
	assert.Equal(t, "", route.PrimaryKey)
}

func TestResolveRoute_PrefixWithSpace(t *testing.T) {
	route, err := ResolveRoute("rest api/Book/id/1", "/rest api")
	require.NoError(t, err)
	assert.Equal(t, "Book", route.Entity)
	assert.Equal(t, "id/1", route.PrimaryKey)
}

func TestResolveRoute_CompositeKeyFragment(t *testing.T) {
	route, err := ResolveRoute("api/Review/book_id/1/id/568", "/api")
	require.NoError(t, err)
	assert.Equal(t, "Review", route.Entity)
	assert.Equal(t, "book_id/1/id/568", route.PrimaryKey)
}

func TestResolveRoute_PrefixMismatch(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		prefix string
	}{
		{"leading slash on path", "/foo/bar", "foo"},
		{"different prefix", "other/Book/id/1", "/rest-api"},
		{"case sensitive prefix", "Rest-api/Book/id/1", "/rest-api"},
		{"prefix only", "rest-api", "/rest-api"},
		{"prefix with trailing slash only", "rest-api/", "/rest-api"},
		{"empty path", "", "/rest-api"},
		{"empty prefix", "rest-api/Book", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveRoute(tc.path, tc.prefix)
			require.Error(t, err)

			var apiErr *apierror.Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, fmt.Sprintf("Invalid Path for route: %s.", tc.path), apiErr.Message)
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
			assert.Equal(t, apierror.SubCodeBadRequest, apiErr.Sub)
		})
	}
}

func TestResolveRoute_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			route, err := ResolveRoute("rest-api/Book/id/1", "/rest-api")
			assert.NoError(t, err)
			assert.Equal(t, "Book", route.Entity)
			assert.Equal(t, "id/1", route.PrimaryKey)
		}()
	}
	wg.Wait()
}

func TestParsePrimaryKey_Pairs(t *testing.T) {
	pairs, err := ParsePrimaryKey("book_id/1/id/568")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, KeyValue{Column: "book_id", Value: "1"}, pairs[0])
	assert.Equal(t, KeyValue{Column: "id", Value: "568"}, pairs[1])
}

func TestParsePrimaryKey_Empty(t *testing.T) {
	pairs, err := ParsePrimaryKey("")
	require.NoError(t, err)
	assert.Nil(t, pairs)
}

func TestParsePrimaryKey_OddSegments(t *testing.T) {
	_, err := ParsePrimaryKey("id/1/extra")
	require.Error(t, err)

	var apiErr *apierror.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestParsePrimaryKey_EmptyColumn(t *testing.T) {
	_, err := ParsePrimaryKey("//1")
	require.Error(t, err)
}
