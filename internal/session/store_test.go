package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreInsertPrepends(t *testing.T) {
	st := NewStore()
	for i, id := range []string{"a", "b", "c"} {
		st.Insert(&Session{ID: id})
		assert.Equal(t, i+1, st.Len())
		assert.Equal(t, id, st.Recent(1)[0].ID)
	}

	all := st.All()
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func TestStoreFindByID(t *testing.T) {
	st := NewStore()
	st.Insert(&Session{ID: "a"})

	s, err := st.FindByID("a")
	assert.NoError(t, err)
	assert.Equal(t, "a", s.ID)

	_, err = st.FindByID("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreRecentCap(t *testing.T) {
	st := NewStore()
	for i := 0; i < 30; i++ {
		st.Insert(&Session{ID: string(rune('a' + i))})
	}

	assert.Len(t, st.Recent(20), 20)
	assert.Len(t, st.Recent(0), 30)
	assert.Len(t, st.Recent(100), 30)
}

func TestStoreReset(t *testing.T) {
	st := NewStore()
	st.Insert(&Session{ID: "a"})
	st.Reset()
	assert.Equal(t, 0, st.Len())
}
