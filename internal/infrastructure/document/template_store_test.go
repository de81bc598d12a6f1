package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quotation/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateStore_Embedded(t *testing.T) {
	store, err := NewTemplateStore(TemplateStoreConfig{})
	require.NoError(t, err)

	all := store.GetAll()
	require.Len(t, all, len(GetStarterDefinitions()))
	for _, tmpl := range all {
		assert.NotEmpty(t, tmpl.ID)
		assert.NotEmpty(t, tmpl.Name)
	}

	web, err := store.GetByKey("web-development")
	require.NoError(t, err)
	assert.Equal(t, 4, web.Categories)
	assert.Equal(t, 8, web.Tasks)

	byID, err := store.GetByKey(web.ID)
	require.NoError(t, err)
	assert.Equal(t, "web-development", byID.Key)

	_, err = store.GetByKey("missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTemplateStore_InstantiateIsFresh(t *testing.T) {
	store, err := NewTemplateStore(TemplateStoreConfig{})
	require.NoError(t, err)

	a, err := store.Instantiate("consulting")
	require.NoError(t, err)
	b, err := store.Instantiate("consulting")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, FromQuotation(a), FromQuotation(b))
}

func TestTemplateStore_StableIDs(t *testing.T) {
	assert.Equal(t, generateTemplateID("blank"), generateTemplateID("blank"))
	assert.NotEqual(t, generateTemplateID("blank"), generateTemplateID("consulting"))
}

func TestTemplateStore_ExternalOverride(t *testing.T) {
	dir := t.TempDir()
	override := "header:\n  client: Override Ltd\n  currency: GBP\ncategories:\n  - name: Only\n    tasks:\n      - name: One\n        quantity: 1\n        unit_rate: 10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "consulting.yaml"), []byte(override), 0o644))

	store, err := NewTemplateStore(TemplateStoreConfig{ExternalDir: dir})
	require.NoError(t, err)

	q, err := store.Instantiate("consulting")
	require.NoError(t, err)
	assert.Equal(t, "Override Ltd", q.Header().Client)

	// Others still come from the embedded files
	web, err := store.GetByKey("web-development")
	require.NoError(t, err)
	assert.Equal(t, 8, web.Tasks)

	t.Run("invalid override fails loading", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.yaml"), []byte("categories:\n  - name: \"\"\n"), 0o644))
		assert.Error(t, store.Reload())
	})
}
