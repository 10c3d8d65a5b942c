package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCorpus tests the built-in document set that seeds the knowledge index.
func TestCorpus(t *testing.T) {
	t.Parallel()

	docs := Corpus()
	require.Len(t, docs, 3)

	bySource := make(map[string]string, len(docs))
	for _, doc := range docs {
		assert.NotEmpty(t, doc.Content)
		bySource[doc.SourceType] = doc.Content
	}

	require.Contains(t, bySource, SourcePolicy)
	require.Contains(t, bySource, SourceFAQ)
	require.Contains(t, bySource, SourceProductInfo)

	assert.Contains(t, bySource[SourcePolicy], "RETURN POLICY")
	assert.Contains(t, bySource[SourceFAQ], "Q:")
	assert.Contains(t, bySource[SourceProductInfo], "SKU001")
}
