package outline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/knowledge"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/matcher"
)

const sampleOutline = "📚 Questions\n" +
	"\n" +
	"🏫 General\n" +
	"- what is the principal's name?\n" +
	"  • when does school start?\n" +
	"\u200b– where is the library?\n" +
	"— how much are the fees?\r\n" +
	"\u00a0- is there a school bus?\n" +
	"\u3000•\u00a0where do I pay?\n" +
	"-not a bullet\n" +
	"-    \n" +
	"• \n" +
	"plain line"

func TestExtractQuestions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"what is the principal's name?",
		"when does school start?",
		"where is the library?",
		"how much are the fees?",
		"is there a school bus?",
		"where do I pay?",
	}, ExtractQuestions(sampleOutline))

	assert.Empty(t, ExtractQuestions(""))
	assert.Empty(t, ExtractQuestions("header only\n\n"))
}

func TestQuestionID(t *testing.T) {
	t.Parallel()

	id := QuestionID("what is the principal's name?")
	assert.Len(t, id, 11)
	assert.True(t, strings.HasPrefix(id, IDPrefix))
	assert.True(t, IsID(id))

	// SHA-1 of "what is the principals name".
	assert.Equal(t, "q333786f7e2", id)
	assert.Equal(t, id, QuestionID("what is the principal's name?"))
	assert.Equal(t, id, QuestionID("What IS the Principal's Name??"), "normalized before hashing")
	assert.NotEqual(t, id, QuestionID("when does school start?"))
}

func TestIsID(t *testing.T) {
	t.Parallel()

	assert.False(t, IsID(""))
	assert.False(t, IsID("1234567890a"))
	assert.False(t, IsID("qxyzxyzxyzx"))
	assert.False(t, IsID("q12345"))
	assert.True(t, IsID("q0123456789"))
}

func TestRenderWithLinks(t *testing.T) {
	t.Parallel()

	got := RenderWithLinks(sampleOutline, func(q, id string) string {
		return "https://example.test/start?id=" + id + "&x=1"
	})
	lines := strings.Split(got, "\n")
	src := strings.Split(sampleOutline, "\n")
	require.Len(t, lines, len(src))

	id := QuestionID("what is the principal's name?")
	assert.Equal(t, `- <a href="https://example.test/start?id=`+id+`&amp;x=1">what is the principal&#39;s name?</a>`, lines[3])
	assert.True(t, strings.HasPrefix(lines[4], `- <a href=`))
	assert.True(t, strings.HasPrefix(lines[6], `- <a href=`))
	assert.True(t, strings.HasPrefix(lines[7], `- <a href=`))
	assert.Contains(t, lines[8], ">where do I pay?</a>")

	for _, i := range []int{0, 1, 2, 9, 10, 11, 12} {
		assert.Equal(t, src[i], lines[i], "line %d passes through", i)
	}
}

func TestResolve_RoundTrip(t *testing.T) {
	t.Parallel()

	kb, err := knowledge.Builtin()
	require.NoError(t, err)
	m := matcher.New(kb)

	questions := ExtractQuestions(kb.Outline())
	require.Len(t, questions, kb.Len())

	idx := NewIndex(kb.Outline())
	for _, q := range questions {
		id := QuestionID(q)

		got := Resolve(m, id, kb.Outline())
		require.NotNil(t, got, q)
		assert.Equal(t, q, got.Question)

		cached := idx.Resolve(m, id)
		require.NotNil(t, cached, q)
		assert.Equal(t, *got, *cached)
	}
	assert.Empty(t, idx.Unresolved(m))
}

func TestResolve_Unknown(t *testing.T) {
	t.Parallel()

	kb, err := knowledge.Builtin()
	require.NoError(t, err)
	m := matcher.New(kb)

	assert.Nil(t, Resolve(m, "q0000000000", kb.Outline()))
	assert.Nil(t, NewIndex(kb.Outline()).Resolve(m, "q0000000000"))
	assert.Nil(t, Resolve(m, QuestionID("anything"), ""))
}

func TestIndex_Drift(t *testing.T) {
	t.Parallel()

	kb, err := knowledge.FromEntries("test", "- stored question\n- removed question", []knowledge.Entry{
		{Question: "stored question", Answer: "a"},
	})
	require.NoError(t, err)

	idx := NewIndex(kb.Outline())
	assert.Equal(t, []string{"removed question"}, idx.Unresolved(matcher.New(kb)))

	q, ok := idx.Question(QuestionID("removed question"))
	assert.True(t, ok)
	assert.Equal(t, "removed question", q)
}

func TestIndex_RepeatedQuestion(t *testing.T) {
	t.Parallel()

	idx := NewIndex("- fees?\n🏫 Again\n- fees?\n- hours?")
	assert.Equal(t, []string{"fees?", "hours?"}, idx.Questions())
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	src := "<b>Fees & Dates</b>\n- fees?\nplain"
	got := RenderHTML(src, LINEDeepLink("@kalyan"))
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "&lt;b&gt;Fees &amp; Dates&lt;/b&gt;", lines[0])
	assert.Equal(t, `- <a href="https://line.me/R/oaMessage/@kalyan/?/start%20`+QuestionID("fees?")+`">fees?</a>`, lines[1])
	assert.Equal(t, "plain", lines[2])
}

func TestLINEDeepLink(t *testing.T) {
	t.Parallel()

	build := LINEDeepLink("@kalyan")
	assert.Equal(t, "https://line.me/R/oaMessage/@kalyan/?/start%20q0123456789", build("ignored", "q0123456789"))
}
