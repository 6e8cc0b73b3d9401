package query

import (
	"errors"
	"testing"

	"talent-search-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildFromIntentSkillsBecomeQueryText 技能进检索文本而不是硬过滤
func TestBuildFromIntentSkillsBecomeQueryText(t *testing.T) {
	b := NewBuilder()

	built, err := b.BuildFromIntent(&types.ParsedIntent{
		Skills:    []string{"JavaScript", "TypeScript"},
		Locations: []string{"New York"},
	})
	require.NoError(t, err)

	assert.Equal(t, "JavaScript OR TypeScript", built.QueryText)
	assert.Equal(t, "location eq 'New York'", built.Filter)
	assert.NotContains(t, built.Filter, "JavaScript")
}

// TestBuildCategoryAndOr 类别内 OR，类别间 AND
func TestBuildCategoryAndOr(t *testing.T) {
	b := NewBuilder()

	built, err := b.BuildFromFilters(&types.QueryFilters{
		Locations:    []string{"Austin", "Dallas"},
		Availability: types.AvailabilityImmediate,
		VisaStatus:   types.VisaCitizen,
	})
	require.NoError(t, err)

	assert.Equal(t, "*", built.QueryText)
	assert.Equal(t,
		"(location eq 'Austin' or location eq 'Dallas') and availability eq 'immediate' and visa_status eq 'citizen'",
		built.Filter)
}

// TestBuildMatchAll 无任何实体时产出全量查询
func TestBuildMatchAll(t *testing.T) {
	b := NewBuilder()

	built, err := b.BuildFromFilters(nil)
	require.NoError(t, err)

	assert.Equal(t, "*", built.QueryText)
	assert.Empty(t, built.Filter)
	assert.Equal(t, defaultFacets, built.Facets)
}

// TestBuildEscapesSingleQuote 值中的单引号按语法双写转义
func TestBuildEscapesSingleQuote(t *testing.T) {
	b := NewBuilder()

	built, err := b.BuildFromFilters(&types.QueryFilters{
		Locations: []string{"Coeur d'Alene"},
	})
	require.NoError(t, err)
	assert.Equal(t, "location eq 'Coeur d''Alene'", built.Filter)
}

// TestBuildRejectsControlCharacters 含语法控制字符的值报错而不是静默丢弃
func TestBuildRejectsControlCharacters(t *testing.T) {
	b := NewBuilder()

	_, err := b.BuildFromFilters(&types.QueryFilters{
		Locations: []string{"x) or (1 eq 1"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))

	_, err = b.BuildFromFilters(&types.QueryFilters{
		Locations: []string{"bad\nvalue"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))
}

// TestBuildNilIntent 空意图报校验错误
func TestBuildNilIntent(t *testing.T) {
	b := NewBuilder()

	_, err := b.BuildFromIntent(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))
}
