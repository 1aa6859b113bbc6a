package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookhound/internal/books"
)

type stubAdapter struct {
	*Base
}

func (s *stubAdapter) Check(context.Context, string) (*books.AvailabilityRecord, error) {
	return nil, nil
}

func newStub(name string, formats ...books.Format) *stubAdapter {
	return &stubAdapter{Base: NewBase(BaseConfig{Name: name, RequestsPerMinute: 10, Formats: formats})}
}

var _ Adapter = (*stubAdapter)(nil)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	ebooks := newStub("ebooks", books.FormatEbook)

	require.NoError(t, r.Register(ebooks))

	got, ok := r.Get("ebooks")
	require.True(t, ok)
	assert.Same(t, ebooks, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicateAndEmptyNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newStub("ebooks", books.FormatEbook)))

	err := r.Register(newStub("ebooks", books.FormatPaperback))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	require.Error(t, r.Register(newStub("")))
	assert.Equal(t, []string{"ebooks"}, r.Names())
}

func TestRegistryAllSupporting(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newStub("ebooks", books.FormatEbook)))
	require.NoError(t, r.Register(newStub("print", books.FormatPaperback, books.FormatHardcover)))
	require.NoError(t, r.Register(newStub("everything", books.AllFormats...)))

	names := func(adapters []Adapter) []string {
		var out []string
		for _, a := range adapters {
			out = append(out, a.Name())
		}
		return out
	}

	assert.Equal(t, []string{"ebooks", "print", "everything"}, names(r.All()))
	assert.Equal(t, []string{"print", "everything"}, names(r.AllSupporting(books.FormatHardcover)))
	assert.Equal(t, []string{"everything"}, names(r.AllSupporting(books.FormatAudiobook)))
}

func TestRegistryNamesIsACopy(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newStub("ebooks", books.FormatEbook)))

	names := r.Names()
	names[0] = "mutated"

	assert.Equal(t, []string{"ebooks"}, r.Names())
}
