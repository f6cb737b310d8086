package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://example.com/p/1", ResolveURL("https://example.com", "/p/1"))
	assert.Equal(t, "https://other.com/x", ResolveURL("https://example.com", "https://other.com/x"))
	assert.Equal(t, "", ResolveURL("https://example.com", "  "))
	assert.Equal(t, "https://example.com/a/c", ResolveURL("https://example.com/a/b", "c"))
}

func TestLastPathSegment(t *testing.T) {
	assert.Equal(t, "sku-998", LastPathSegment("https://example.com/products/sku-998?utm=x"))
	assert.Equal(t, "sku-998", LastPathSegment("https://example.com/products/sku-998/"))
	assert.Equal(t, "", LastPathSegment("https://example.com/"))
}
