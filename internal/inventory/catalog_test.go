package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testCatalog = []string{
	"Premium Tea",
	"Green Tea",
	"Digestive Biscuits (300g)",
	"Digestive Biscuits (500g)",
	"Golden Morn Cereal",
}

func TestMatchProduct(t *testing.T) {
	cases := []struct {
		name      string
		reference string
		want      []string
	}{
		{"exact name wins", "digestive biscuits (300g)", []string{"Digestive Biscuits (300g)"}},
		{"partial matches several", "digestive biscuit", []string{"Digestive Biscuits (300g)", "Digestive Biscuits (500g)"}},
		{"abbreviation", "golden morn", []string{"Golden Morn Cereal"}},
		{"typo", "premiun tea", []string{"Premium Tea"}},
		{"no match", "chocolate", []string{}},
		{"empty", "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MatchProduct(tc.reference, testCatalog)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.ElementsMatch(t, tc.want, got)
		})
	}
}

func TestIsAmbiguous(t *testing.T) {
	candidates, ambiguous := IsAmbiguous("digestive", testCatalog)
	assert.True(t, ambiguous)
	assert.Len(t, candidates, 2)

	_, ambiguous = IsAmbiguous("Premium Tea", testCatalog)
	assert.False(t, ambiguous)
}
