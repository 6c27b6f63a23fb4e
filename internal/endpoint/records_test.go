package endpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeHTTPMethod(t *testing.T) {
	require.Equal(t, "GET", NormalizeHTTPMethod("get"))
	require.Equal(t, "DELETE", NormalizeHTTPMethod(" DELETE "))
	require.Equal(t, "ALL", NormalizeHTTPMethod("all"))
	// Unknown method strings fall back to ALL.
	require.Equal(t, "ALL", NormalizeHTTPMethod("TRACE"))
	require.Equal(t, "ALL", NormalizeHTTPMethod(""))
}

func TestMethodFromList(t *testing.T) {
	require.Equal(t, "GET", MethodFromList([]string{"GET"}))
	require.Equal(t, "GET", MethodFromList([]string{"get", "GET"}))
	// Heterogeneous lists collapse to ALL on a single endpoint.
	require.Equal(t, "ALL", MethodFromList([]string{"GET", "POST"}))
	require.Equal(t, "ALL", MethodFromList(nil))
}

func TestPathParamsSyntaxes(t *testing.T) {
	cases := []struct {
		path string
		want []string
	}{
		{"/users/:id", []string{"id"}},
		{"/users/{id}/posts/{postId}", []string{"id", "postId"}},
		{"/users/<name>", []string{"name"}},
		{"/users/<int:uid>", []string{"uid"}},
		{"/plain/path", nil},
		{"/", nil},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, PathParamNames(tc.path), "path %s", tc.path)
	}
}

func TestPathParamsAreRequiredPathLocation(t *testing.T) {
	for _, p := range PathParams("/a/:x/b/{y}") {
		require.Equal(t, LocationPath, p.Location)
		require.True(t, p.Required)
	}
}

func TestJoinPaths(t *testing.T) {
	require.Equal(t, "/api/posts", JoinPaths("/api", "posts"))
	require.Equal(t, "/api/posts", JoinPaths("/api/", "/posts"))
	require.Equal(t, "/api", JoinPaths("/api", ""))
	require.Equal(t, "/", JoinPaths("", ""))
	require.Equal(t, "/users", JoinPaths("", "users"))
}
