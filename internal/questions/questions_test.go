package questions

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var asked = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func TestList_AddIgnoresBlank(t *testing.T) {
	var l List

	require.False(t, l.Add("", asked))
	require.False(t, l.Add("   \n\t", asked))
	require.True(t, l.Add(" Favourite editor? ", asked))

	require.Equal(t, []Question{{Text: " Favourite editor? ", Timestamp: asked}}, l.Items())
}

func TestList_RemoveAndGet(t *testing.T) {
	var l List
	l.Add("one", asked)
	l.Add("two", asked.Add(time.Minute))
	l.Add("three", asked.Add(2*time.Minute))

	q, err := l.Get(2)
	require.NoError(t, err)
	require.Equal(t, "three", q.Text)

	removed, err := l.Remove(1)
	require.NoError(t, err)
	require.Equal(t, "two", removed.Text)
	require.Equal(t, 2, l.Len())

	_, err = l.Remove(5)
	require.ErrorContains(t, err, "no question at position 6")
	_, err = l.Get(-1)
	require.Error(t, err)

	require.Equal(t, 2, l.Clear())
	require.Zero(t, l.Len())
}

func TestList_ItemsIsACopy(t *testing.T) {
	var l List
	l.Add("one", asked)

	items := l.Items()
	items[0].Text = "changed"

	q, _ := l.Get(0)
	require.Equal(t, "one", q.Text)
}

func TestList_MatchesSliceModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var l List
		var model []string

		steps := rapid.IntRange(0, 50).Draw(t, "steps")
		for range steps {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				text := rapid.StringMatching(`[ a-z?]{0,8}`).Draw(t, "text")
				if l.Add(text, asked) {
					model = append(model, text)
				}
			case 1:
				i := rapid.IntRange(-1, len(model)).Draw(t, "index")
				_, err := l.Remove(i)
				if i < 0 || i >= len(model) {
					if err == nil {
						t.Fatalf("remove(%d) on %d items should fail", i, len(model))
					}
					continue
				}
				if err != nil {
					t.Fatalf("remove(%d): %v", i, err)
				}
				model = append(model[:i], model[i+1:]...)
			case 2:
				l.Clear()
				model = nil
			}
		}

		if l.Len() != len(model) {
			t.Fatalf("len %d, model %d", l.Len(), len(model))
		}
		for i, q := range l.Items() {
			if q.Text != model[i] {
				t.Fatalf("item %d: %q != %q", i, q.Text, model[i])
			}
			if strings.TrimSpace(q.Text) == "" {
				t.Fatalf("blank question stored at %d", i)
			}
		}
	})
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope.json"), zerolog.Nop())

	require.Zero(t, s.Load().Len())
}

func TestStore_ReadsBrowserFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), StorageKey+".json")
	require.NoError(t, os.WriteFile(path, []byte(
		`[{"text":"Favourite editor?","timestamp":"2026-10-18T09:30:00.000Z"}]`), 0o600))

	l := NewStore(path, zerolog.Nop()).Load()

	require.Equal(t, []Question{{Text: "Favourite editor?", Timestamp: asked}}, l.Items())
}

func TestStore_CorruptFileIsLoggedAndEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o600))

	var buf bytes.Buffer
	l := NewStore(path, zerolog.New(&buf)).Load()

	require.Zero(t, l.Len())
	require.Contains(t, buf.String(), "Error loading saved questions")
}

func TestStore_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "q.json")
	s := NewStore(path, zerolog.Nop())

	var l List
	l.Add("one", asked)
	l.Add("two", asked.Add(time.Hour))
	require.NoError(t, s.Save(&l))

	require.Equal(t, l.Items(), s.Load().Items())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"text":"one"`)
	require.Contains(t, string(data), `"timestamp":"2026-10-18T09:30:00Z"`)
}

func TestStore_SaveEmptyWritesArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.json")
	s := NewStore(path, zerolog.Nop())

	require.NoError(t, s.Save(&List{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))
}

func TestStore_Remove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.json")
	s := NewStore(path, zerolog.Nop())

	require.NoError(t, s.Remove(), "removing a missing file is fine")

	var l List
	l.Add("one", asked)
	require.NoError(t, s.Save(&l))
	require.NoError(t, s.Remove())

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestFormatTimestamp(t *testing.T) {
	local := time.Date(2026, 10, 18, 14, 5, 59, 0, time.Local)
	require.Equal(t, "14:05", FormatTimestamp(local))
}
