package candidates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidates(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantISBNs []string
		wantErr   bool
	}{
		{
			name: "bare array",
			reply: `[{"title":"Dune","author":"Frank Herbert","isbn_13":"978-0-441-17271-9","publication_year":1965,"reasoning":"Classic."},
				{"title":"Hyperion","author":"Dan Simmons","isbn_13":"9780553283686"}]`,
			wantISBNs: []string{"9780441172719", "9780553283686"},
		},
		{
			name:      "code fence with object wrapper",
			reply:     "```json\n{\"recommendations\":[{\"title\":\"Dune\",\"author\":\"Frank Herbert\",\"isbn13\":\"9780441172719\"}]}\n```",
			wantISBNs: []string{"9780441172719"},
		},
		{
			name:      "isbn-10 only is converted",
			reply:     `[{"title":"Dune","author":"Frank Herbert","isbn":"0441172717"}]`,
			wantISBNs: []string{"9780441172719"},
		},
		{
			name: "invalid entries dropped",
			reply: `[{"title":"Dune","isbn_13":"9780441172719"},
				{"title":"Fake","isbn_13":"9780441172710"},
				{"title":"","isbn_13":"9780553283686"},
				{"title":"Dune again","isbn_13":"9780441172719"}]`,
			wantISBNs: []string{"9780441172719"},
		},
		{
			name:      "empty array",
			reply:     `[]`,
			wantISBNs: []string{},
		},
		{
			name:    "all invalid",
			reply:   `[{"title":"Fake","isbn_13":"1234567890123"}]`,
			wantErr: true,
		},
		{
			name:    "not json",
			reply:   "Here are some books you might like!",
			wantErr: true,
		},
		{
			name:    "empty",
			reply:   "  ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCandidates(tt.reply)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			isbns := make([]string, 0, len(got))
			for _, c := range got {
				isbns = append(isbns, c.ISBN13)
			}
			assert.Equal(t, tt.wantISBNs, isbns)
		})
	}
}

func TestParseCandidatesFields(t *testing.T) {
	got, err := ParseCandidates(`[{"title":" Dune ","author":" Frank Herbert ","isbn_13":"9780441172719","publication_year":1965,"reasoning":"Desert planet."}]`)
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, "Dune", c.Title)
	assert.Equal(t, "Frank Herbert", c.Author)
	assert.Equal(t, "0441172717", c.ISBN10)
	assert.Equal(t, 1965, c.PublicationYear)
	assert.Equal(t, "Desert planet.", c.Reasoning)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "[]", stripCodeFence("```\n[]\n```"))
	assert.Equal(t, "[]", stripCodeFence("```json\n[]```"))
	assert.Equal(t, "[1]", stripCodeFence("  [1]  "))
}
