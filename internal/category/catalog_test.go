package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	assert.Equal(t, 6, c.Len())

	for _, name := range []string{"work", "personal", "promotion", "spam", "finance", "security"} {
		cat, ok := c.ByName(name)
		require.True(t, ok, "missing category %s", name)
		assert.NotEmpty(t, cat.Keywords, "category %s has no keywords", name)
		assert.NotEmpty(t, cat.Color)
	}

	_, ok := c.ByName("nonexistent")
	assert.False(t, ok)
}

func TestDerivedFields(t *testing.T) {
	c := New([]Category{{Name: "work", Color: "#4285f4"}})

	cat, ok := c.ByName("work")
	require.True(t, ok)
	assert.Equal(t, "Cloudidian/Work", cat.LabelName)
	assert.Equal(t, "Work emails", cat.Description)
}

func TestExplicitFieldsPreserved(t *testing.T) {
	c := New([]Category{{
		Name:        "billing",
		Color:       "#ffffff",
		Description: "Billing notices",
		LabelName:   "Custom/Billing",
	}})

	cat, _ := c.ByName("billing")
	assert.Equal(t, "Custom/Billing", cat.LabelName)
	assert.Equal(t, "Billing notices", cat.Description)
}
