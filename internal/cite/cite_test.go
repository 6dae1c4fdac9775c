package cite

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaq/scholaq/internal/store"
)

func paperFixture() *store.Paper {
	return &store.Paper{
		ID:      "p1",
		Title:   "Deep residual learning for image recognition",
		Authors: []string{"Kaiming He", "Xiangyu Zhang"},
		Year:    2016,
		Journal: "CVPR",
		DOI:     "10.1109/CVPR.2016.90",
	}
}

func TestFormat_APA(t *testing.T) {
	out, err := Format(paperFixture(), "apa")
	require.NoError(t, err)

	assert.Equal(t, "He, K., & Zhang, X. (2016). Deep residual learning for image recognition. _CVPR_. https://doi.org/10.1109/CVPR.2016.90", out)
}

func TestFormat_MLA(t *testing.T) {
	out, err := Format(paperFixture(), "mla")
	require.NoError(t, err)

	assert.Contains(t, out, `"Deep residual learning for image recognition."`)
	assert.Contains(t, out, "He, Kaiming, and Xiangyu Zhang.")
	assert.Contains(t, out, "2016.")
}

func TestFormat_Vancouver(t *testing.T) {
	out, err := Format(paperFixture(), "vancouver")
	require.NoError(t, err)

	assert.Contains(t, out, "Kaiming He, Xiangyu Zhang.")
	assert.Contains(t, out, "CVPR.")
}

func TestFormat_CaseInsensitive(t *testing.T) {
	_, err := Format(paperFixture(), " APA ")
	assert.NoError(t, err)
}

func TestFormat_UnknownStyle(t *testing.T) {
	_, err := Format(paperFixture(), "ieee")
	assert.Error(t, err)
}

func TestFormat_MissingFields(t *testing.T) {
	out, err := Format(&store.Paper{Title: "Untitled preprint"}, "apa")
	require.NoError(t, err)

	assert.Equal(t, "(n.d.). Untitled preprint.", out)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"apa", "chicago", "harvard", "mla", "vancouver"}, Names())
}

func TestLookup_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := Lookup("harvard")
			assert.NoError(t, err)
			assert.Equal(t, "harvard", s.Name)
		}()
	}
	wg.Wait()
}
