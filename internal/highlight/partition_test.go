package highlight

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/podseek/internal/domain"
)

func kw(v string) domain.Term     { return domain.Term{Value: v} }
func phrase(v string) domain.Term { return domain.Term{Value: v, IsExactPhrase: true} }

func transcript(i int, text string) domain.HighlightFragment {
	return domain.HighlightFragment{Text: text, Field: domain.FieldTranscript, SourceIndex: i}
}

func description(i int, text string) domain.HighlightFragment {
	return domain.HighlightFragment{Text: text, Field: domain.FieldDescription, SourceIndex: i}
}

func TestStripMarkers(t *testing.T) {
	assert.Equal(t, "go and rust", StripMarkers("<em>go</em> and <em>rust</em>"))
	assert.Equal(t, "plain", StripMarkers("plain"))
}

func TestPartition_IsolatesEachKeyword(t *testing.T) {
	fragments := []domain.HighlightFragment{
		transcript(0, "we talked about <em>rust</em> and <em>go</em> today"),
		transcript(1, "the <em>rust</em> borrow checker is strict"),
		transcript(2, "<em>go</em> routines are cheap"),
	}

	previews := NewPartitioner().Partition(fragments, []domain.Term{kw("rust"), kw("go")}, Source{})

	require.Len(t, previews, 2)
	assert.Equal(t, "rust", previews[0].Keyword)
	assert.Equal(t, "the <em>rust</em> borrow checker is strict", previews[0].Fragment)
	assert.Equal(t, "go", previews[1].Keyword)
	assert.Equal(t, "<em>go</em> routines are cheap", previews[1].Fragment)
}

func TestPartition_CooccurringMarksOnlyOwnTerm(t *testing.T) {
	fragments := []domain.HighlightFragment{
		transcript(0, "<em>Rust</em> and <em>Go</em> compared"),
	}

	previews := NewPartitioner().Partition(fragments, []domain.Term{kw("rust"), kw("go")}, Source{})

	require.Len(t, previews, 2)
	assert.Equal(t, "<em>Rust</em> and Go compared", previews[0].Fragment)
	assert.Equal(t, "Rust and <em>Go</em> compared", previews[1].Fragment)
}

func TestPartition_KeywordRequiresWordBoundary(t *testing.T) {
	fragments := []domain.HighlightFragment{
		transcript(0, "a <em>going</em> concern"),
		transcript(1, "we use <em>go</em> at work"),
	}

	previews := NewPartitioner().Partition(fragments, []domain.Term{kw("go")}, Source{})

	require.Len(t, previews, 1)
	assert.Equal(t, "we use <em>go</em> at work", previews[0].Fragment)
}

func TestPartition_PhraseMatchesAsSubstring(t *testing.T) {
	fragments := []domain.HighlightFragment{
		description(0, "all about <em>machine learning</em> pipelines"),
	}

	previews := NewPartitioner().Partition(fragments, []domain.Term{phrase("machine learning")}, Source{})

	require.Len(t, previews, 1)
	assert.Equal(t, "machine learning", previews[0].Keyword)
	assert.Equal(t, "all about <em>machine learning</em> pipelines", previews[0].Fragment)
}

func TestPartition_TranscriptScannedBeforeDescription(t *testing.T) {
	fragments := []domain.HighlightFragment{
		description(0, "<em>kubernetes</em> in the show notes"),
		transcript(1, "second <em>kubernetes</em> mention"),
		transcript(0, "first <em>kubernetes</em> mention"),
	}

	previews := NewPartitioner().Partition(fragments, []domain.Term{kw("kubernetes")}, Source{})

	require.Len(t, previews, 1)
	assert.Equal(t, "first <em>kubernetes</em> mention", previews[0].Fragment)
}

func TestPartition_FallsBackToSource(t *testing.T) {
	src := Source{
		Transcript:  strings.Repeat("x", 150) + " talking about postgres here " + strings.Repeat("y", 150),
		Description: "not relevant",
	}

	previews := NewPartitioner().Partition(nil, []domain.Term{kw("postgres")}, src)

	require.Len(t, previews, 1)
	frag := previews[0].Fragment
	assert.Contains(t, frag, "<em>postgres</em>")
	assert.Equal(t, 100+len("postgres")+100+len("<em></em>"), len([]rune(frag)))
}

func TestPartition_SourceFallbackUsesDescription(t *testing.T) {
	src := Source{Transcript: "nothing here", Description: "Notes on SQLite internals"}

	previews := NewPartitioner().Partition(nil, []domain.Term{kw("sqlite")}, src)

	require.Len(t, previews, 1)
	assert.Equal(t, "Notes on <em>SQLite</em> internals", previews[0].Fragment)
}

func TestPartition_OmitsTermsWithoutEvidence(t *testing.T) {
	fragments := []domain.HighlightFragment{transcript(0, "<em>redis</em> caching")}

	previews := NewPartitioner().Partition(fragments, []domain.Term{kw("redis"), kw("memcached")}, Source{Transcript: "redis caching"})

	require.Len(t, previews, 1)
	assert.Equal(t, "redis", previews[0].Keyword)
}

func TestPartition_JapaneseKeywordInsideRun(t *testing.T) {
	fragments := []domain.HighlightFragment{transcript(0, "これは<em>検索</em>のテストです")}

	previews := NewPartitioner().Partition(fragments, []domain.Term{kw("検索")}, Source{})

	require.Len(t, previews, 1)
	assert.Equal(t, "これは<em>検索</em>のテストです", previews[0].Fragment)
}

func TestPartition_CustomStrategies(t *testing.T) {
	fragments := []domain.HighlightFragment{transcript(0, "<em>a</em> and <em>b</em>")}

	previews := NewPartitioner(IsolatedMatch).Partition(fragments, []domain.Term{kw("a"), kw("b")}, Source{})

	assert.Empty(t, previews)
}

func TestCardPreview(t *testing.T) {
	terms := []domain.Term{kw("rust"), kw("go")}
	fragments := []domain.HighlightFragment{
		transcript(0, "<em>rust</em> intro"),
		transcript(1, "<em>go</em> intro"),
	}

	t.Run("joins keyword previews when every term is covered", func(t *testing.T) {
		previews := []domain.KeywordPreview{
			{Keyword: "rust", Fragment: "<em>rust</em> intro"},
			{Keyword: "go", Fragment: "<em>go</em> intro"},
		}
		assert.Equal(t, "<em>rust</em> intro ... <em>go</em> intro", CardPreview(previews, terms, fragments, Source{}))
	})

	t.Run("uses raw fragments when a term is missing", func(t *testing.T) {
		previews := []domain.KeywordPreview{{Keyword: "rust", Fragment: "<em>rust</em> intro"}}
		assert.Equal(t, "<em>rust</em> intro ... <em>go</em> intro", CardPreview(previews, terms, fragments, Source{}))
	})

	t.Run("caps raw fragments at three", func(t *testing.T) {
		many := []domain.HighlightFragment{transcript(0, "a"), transcript(1, "b"), transcript(2, "c"), transcript(3, "d")}
		assert.Equal(t, "a ... b ... c", CardPreview(nil, terms, many, Source{}))
	})

	t.Run("falls back to transcript prefix", func(t *testing.T) {
		long := strings.Repeat("word ", 100)
		got := CardPreview(nil, terms, nil, Source{Transcript: long})
		assert.Len(t, []rune(got), 200)
		assert.True(t, strings.HasSuffix(got, "..."))
	})

	t.Run("uses description when transcript is empty", func(t *testing.T) {
		assert.Equal(t, "short notes", CardPreview(nil, terms, nil, Source{Description: "short   notes"}))
	})
}
